package client

import (
	"context"
	"net/url"
	"strings"
)

// Bucket names.
const (
	BucketPosts   = "posts"
	BucketAvatars = "avatars"
)

func objectPath(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return url.PathEscape(bucket) + "/" + strings.Join(parts, "/")
}

// Upload stores data under bucket/key and returns the stored "bucket/key" path.
// Without upsert an existing key fails with ErrConflict.
func (c *Client) Upload(ctx context.Context, bucket, key string, data []byte, contentType string, upsert bool) (string, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return "", err
	}
	if upsert {
		req.SetHeader("x-upsert", "true")
	}
	var out struct {
		Key string `json:"Key"`
	}
	err = check(req.
		SetHeader("Content-Type", contentType).
		SetBody(data).
		SetResult(&out).
		Put("/storage/v1/object/" + objectPath(bucket, key)))
	if err != nil {
		return "", err
	}
	return out.Key, nil
}

// PublicURL is the unauthenticated URL of bucket/key. It does not check the object exists.
func (c *Client) PublicURL(bucket, key string) string {
	return c.baseURL + "/storage/v1/object/public/" + objectPath(bucket, key)
}

// Remove deletes the given keys from bucket. Missing keys are not an error.
func (c *Client) Remove(ctx context.Context, bucket string, keys ...string) error {
	for _, key := range keys {
		req, err := c.authed(ctx)
		if err != nil {
			return err
		}
		if err := check(req.Delete("/storage/v1/object/" + objectPath(bucket, key))); err != nil {
			return err
		}
	}
	return nil
}
