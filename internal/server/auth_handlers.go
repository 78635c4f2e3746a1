package server

import (
	"photofeed/internal/models"
	"photofeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type signupRequest struct {
	Email    string         `json:"email" validate:"required"`
	Password string         `json:"password" validate:"required"`
	Data     map[string]any `json:"data"`
}

type passwordGrantRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshGrantRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type recoverRequest struct {
	Email string `json:"email" validate:"required"`
}

type verifyRequest struct {
	Type     string `json:"type" validate:"required,oneof=signup recovery"`
	Token    string `json:"token" validate:"required"`
	Password string `json:"password"`
}

// Signup handles POST /auth/v1/signup. The account starts unconfirmed and no
// session is returned.
func (s *Server) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := bindJSON(c, &req); err != nil {
		return models.Respond(c, err)
	}

	acct, err := s.authService.SignUp(c.UserContext(), service.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		Data:     req.Data,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": acct})
}

// Token handles POST /auth/v1/token?grant_type=password|refresh_token.
func (s *Server) Token(c *fiber.Ctx) error {
	var (
		sess *service.Session
		err  error
	)
	switch c.Query("grant_type") {
	case "password":
		var req passwordGrantRequest
		if err := bindJSON(c, &req); err != nil {
			return models.Respond(c, err)
		}
		sess, err = s.authService.SignInWithPassword(c.UserContext(), req.Email, req.Password)
	case "refresh_token":
		var req refreshGrantRequest
		if err := bindJSON(c, &req); err != nil {
			return models.Respond(c, err)
		}
		sess, err = s.authService.Refresh(c.UserContext(), req.RefreshToken)
	default:
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("grant_type must be password or refresh_token"))
	}
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(sess)
}

// Logout handles POST /auth/v1/logout.
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.authService.SignOut(c.UserContext(), currentClaims(c)); err != nil {
		return models.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Recover handles POST /auth/v1/recover. It answers 200 whether or not the email is registered.
func (s *Server) Recover(c *fiber.Ctx) error {
	var req recoverRequest
	if err := bindJSON(c, &req); err != nil {
		return models.Respond(c, err)
	}
	if err := s.authService.Recover(c.UserContext(), req.Email); err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(fiber.Map{})
}

// Verify handles GET and POST /auth/v1/verify. The GET form is the link sent by email.
func (s *Server) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if c.Method() == fiber.MethodGet {
		req = verifyRequest{Type: c.Query("type"), Token: c.Query("token")}
		if err := bindStruct(&req); err != nil {
			return models.Respond(c, err)
		}
	} else if err := bindJSON(c, &req); err != nil {
		return models.Respond(c, err)
	}

	sess, err := s.authService.Verify(c.UserContext(), service.VerifyInput{
		Type:     req.Type,
		Token:    req.Token,
		Password: req.Password,
	})
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(sess)
}

// GetCurrentUser handles GET /auth/v1/user.
func (s *Server) GetCurrentUser(c *fiber.Ctx) error {
	acct, err := s.authService.CurrentUser(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.Respond(c, err)
	}
	return c.JSON(acct)
}
