package server

import (
	"strings"

	"photofeed/internal/models"
	"photofeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadObject handles PUT /storage/v1/object/:bucket/*. The body is the raw object;
// "x-upsert: true" allows overwriting an existing key.
func (s *Server) UploadObject(c *fiber.Ctx) error {
	contentType := c.Get(fiber.HeaderContentType)
	if mediaType, _, ok := strings.Cut(contentType, ";"); ok {
		contentType = strings.TrimSpace(mediaType)
	}

	key, err := s.mediaService.Upload(c.UserContext(), service.UploadInput{
		UserID:      currentUserID(c),
		Bucket:      c.Params("bucket"),
		Key:         c.Params("*"),
		Data:        append([]byte(nil), c.Body()...),
		ContentType: contentType,
		Upsert:      strings.EqualFold(c.Get("x-upsert"), "true"),
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{"Key": key})
}

// RemoveObject handles DELETE /storage/v1/object/:bucket/*. Removing a missing object succeeds.
func (s *Server) RemoveObject(c *fiber.Ctx) error {
	if err := s.mediaService.Remove(c.UserContext(), currentUserID(c), c.Params("bucket"), c.Params("*")); err != nil {
		return models.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetPublicObject handles GET /storage/v1/object/public/:bucket/*.
func (s *Server) GetPublicObject(c *fiber.Ctx) error {
	obj, err := s.mediaService.Get(c.UserContext(), c.Params("bucket"), c.Params("*"))
	if err != nil {
		return models.Respond(c, err)
	}
	c.Set(fiber.HeaderContentType, obj.ContentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	return c.Send(obj.Data)
}
