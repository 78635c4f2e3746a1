package client

import (
	"context"
	"net/url"
)

// GetProfile reads one profile. A missing row is an *APIError matching ErrNoRows.
func (c *Client) GetProfile(ctx context.Context, id string) (*Profile, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	var profile Profile
	if err := check(req.SetResult(&profile).Get("/rest/v1/users/" + url.PathEscape(id))); err != nil {
		return nil, err
	}
	return &profile, nil
}

// InsertProfile creates the caller's profile row.
func (c *Client) InsertProfile(ctx context.Context, in ProfileInsert) (*Profile, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	var profile Profile
	if err := check(req.SetBody(in).SetResult(&profile).Post("/rest/v1/users")); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile applies a partial update to the profile with id and returns the stored row.
func (c *Client) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*Profile, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	var profile Profile
	if err := check(req.SetBody(update).SetResult(&profile).Patch("/rest/v1/users/" + url.PathEscape(id))); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListPosts returns every post, newest first, with authors embedded.
func (c *Client) ListPosts(ctx context.Context) ([]Post, error) {
	return c.listPosts(ctx, "")
}

// ListPostsBy returns one author's posts, newest first.
func (c *Client) ListPostsBy(ctx context.Context, userID string) ([]Post, error) {
	return c.listPosts(ctx, userID)
}

func (c *Client) listPosts(ctx context.Context, userID string) ([]Post, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	if userID != "" {
		req.SetQueryParam("user_id", userID)
	}
	posts := []Post{}
	if err := check(req.SetResult(&posts).Get("/rest/v1/posts")); err != nil {
		return nil, err
	}
	return posts, nil
}

// InsertPost creates a post owned by the signed-in user.
func (c *Client) InsertPost(ctx context.Context, imageURL, caption string) (*Post, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	var post Post
	err = check(req.
		SetBody(map[string]string{"image_url": imageURL, "caption": caption}).
		SetResult(&post).
		Post("/rest/v1/posts"))
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost changes a post's caption. Only the owner may; others get ErrForbidden.
func (c *Client) UpdatePost(ctx context.Context, id, caption string) (*Post, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	var post Post
	err = check(req.
		SetBody(map[string]string{"caption": caption}).
		SetResult(&post).
		Patch("/rest/v1/posts/" + url.PathEscape(id)))
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// DeletePost removes a post and its likes. Only the owner may.
func (c *Client) DeletePost(ctx context.Context, id string) error {
	req, err := c.authed(ctx)
	if err != nil {
		return err
	}
	return check(req.Delete("/rest/v1/posts/" + url.PathEscape(id)))
}

// LikedPostIDs returns the ids of the posts the signed-in user likes.
func (c *Client) LikedPostIDs(ctx context.Context) ([]string, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	if err := check(req.SetResult(&ids).Get("/rest/v1/likes")); err != nil {
		return nil, err
	}
	return ids, nil
}

// LikePost likes a post. Liking an already-liked post changes nothing.
func (c *Client) LikePost(ctx context.Context, postID string) (*LikeResult, error) {
	return c.likeRPC(ctx, "like_post", postID)
}

// UnlikePost removes the like. Unliking a post that is not liked changes nothing.
func (c *Client) UnlikePost(ctx context.Context, postID string) (*LikeResult, error) {
	return c.likeRPC(ctx, "unlike_post", postID)
}

func (c *Client) likeRPC(ctx context.Context, fn, postID string) (*LikeResult, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	var res LikeResult
	err = check(req.
		SetBody(map[string]string{"post_id": postID}).
		SetResult(&res).
		Post("/rest/v1/rpc/" + fn))
	if err != nil {
		return nil, err
	}
	return &res, nil
}
