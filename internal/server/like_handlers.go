package server

import (
	"photofeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

type likeRequest struct {
	PostID string `json:"post_id" validate:"required"`
}

// GetLikedPostIDs handles GET /rest/v1/likes.
func (s *Server) GetLikedPostIDs(c *fiber.Ctx) error {
	ids, err := s.likeService.LikedPostIDs(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(ids)
}

// LikePost handles POST /rest/v1/rpc/like_post.
func (s *Server) LikePost(c *fiber.Ctx) error {
	var req likeRequest
	if err := bindJSON(c, &req); err != nil {
		return models.Respond(c, err)
	}
	res, err := s.likeService.Like(c.UserContext(), currentUserID(c), req.PostID)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(res)
}

// UnlikePost handles POST /rest/v1/rpc/unlike_post.
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	var req likeRequest
	if err := bindJSON(c, &req); err != nil {
		return models.Respond(c, err)
	}
	res, err := s.likeService.Unlike(c.UserContext(), currentUserID(c), req.PostID)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(res)
}
