package server

import (
	"photofeed/internal/models"
	"photofeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	ImageURL string `json:"image_url" validate:"required,url"`
	Caption  string `json:"caption" validate:"caption"`
}

type updatePostRequest struct {
	Caption string `json:"caption" validate:"caption"`
}

// GetPosts handles GET /rest/v1/posts, newest first with the author embedded.
// ?user_id= narrows the list to one author.
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.postService.List(c.UserContext(), c.Query("user_id"))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(posts)
}

// CreatePost handles POST /rest/v1/posts. The caller becomes the owner.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req createPostRequest
	if err := bindJSON(c, &req); err != nil {
		return models.Respond(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:   currentUserID(c),
		ImageURL: req.ImageURL,
		Caption:  req.Caption,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PATCH /rest/v1/posts/:id.
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	var req updatePostRequest
	if err := bindJSON(c, &req); err != nil {
		return models.Respond(c, err)
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:  currentUserID(c),
		PostID:  c.Params("id"),
		Caption: req.Caption,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /rest/v1/posts/:id.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		UserID: currentUserID(c),
		PostID: c.Params("id"),
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
