package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"photofeed/internal/models"
	"photofeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createProfileRequest struct {
	ID        string  `json:"id" validate:"omitempty,uuid"`
	Username  string  `json:"username" validate:"username"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
}

// GetProfile handles GET /rest/v1/users/:id. A missing row answers 404 with code NO_ROWS.
func (s *Server) GetProfile(c *fiber.Ctx) error {
	profile, err := s.profileService.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(profile)
}

// CreateProfile handles POST /rest/v1/users. The id defaults to the caller's.
func (s *Server) CreateProfile(c *fiber.Ctx) error {
	var req createProfileRequest
	if err := bindJSON(c, &req); err != nil {
		return models.Respond(c, err)
	}
	if req.ID == "" {
		req.ID = currentUserID(c)
	}

	profile, err := s.profileService.Create(c.UserContext(), service.CreateProfileInput{
		CallerID:  currentUserID(c),
		ID:        req.ID,
		Username:  req.Username,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(profile)
}

// UpdateProfile handles PATCH /rest/v1/users/:id. Only username and avatar_url are
// writable; "avatar_url": null clears the avatar.
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return models.Respond(c, models.NewValidationError("Invalid request body"))
	}

	in := service.UpdateProfileInput{
		CallerID: currentUserID(c),
		ID:       c.Params("id"),
	}
	for field, raw := range body {
		switch field {
		case "username":
			var username string
			if err := json.Unmarshal(raw, &username); err != nil {
				return models.Respond(c, models.NewValidationError("username must be a string"))
			}
			in.Username = &username
		case "avatar_url":
			if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
				in.ClearAvatar = true
				continue
			}
			var avatar string
			if err := json.Unmarshal(raw, &avatar); err != nil {
				return models.Respond(c, models.NewValidationError("avatar_url must be a string or null"))
			}
			if err := bindVar(avatar, "url"); err != nil {
				return models.Respond(c, models.NewValidationError("avatar_url must be a valid URL"))
			}
			in.AvatarURL = &avatar
		default:
			return models.Respond(c, models.NewValidationError(fmt.Sprintf("column %q cannot be updated", field)))
		}
	}

	profile, err := s.profileService.Update(c.UserContext(), in)
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(profile)
}
