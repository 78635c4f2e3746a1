package cache

import (
	"context"
	"time"
)

const (
	ProfileKeyPrefix = "profile:"
	PostsListKey     = "posts:list"
)

const (
	ProfileTTL   = 5 * time.Minute
	PostsListTTL = 30 * time.Second
)

func ProfileKey(userID string) string {
	return ProfileKeyPrefix + userID
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateProfile(ctx context.Context, userID string) {
	// author embeds in the cached feed carry the profile too
	Invalidate(ctx, ProfileKey(userID), PostsListKey)
}

func InvalidatePostsList(ctx context.Context) {
	Invalidate(ctx, PostsListKey)
}
