package server

import (
	"encoding/json"
	"strings"

	"photofeed/internal/auth"
	"photofeed/internal/models"
	"photofeed/internal/observability"
	"photofeed/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// AuthRequired validates the bearer token and stores the caller in locals.
// WebSocket upgrades may pass the token as the "token" query parameter instead.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" && websocket.IsWebSocketUpgrade(c) {
			token = c.Query("token")
		}
		if token == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := s.authService.Authenticate(c.UserContext(), token)
		if err != nil {
			return models.Respond(c, err)
		}

		c.Locals("userID", claims.Subject)
		c.Locals("claims", claims)
		c.SetUserContext(observability.WithUserID(c.UserContext(), claims.Subject))
		return c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func currentUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals("userID").(string)
	return userID
}

func currentClaims(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals("claims").(*auth.Claims)
	return claims
}

// bindJSON decodes the body into req and runs its validate tags.
func bindJSON(c *fiber.Ctx, req any) error {
	if err := json.Unmarshal(c.Body(), req); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return bindStruct(req)
}

func bindStruct(req any) error {
	if err := validation.Struct(req); err != nil {
		return models.NewValidationError(err.Error())
	}
	return nil
}

func bindVar(value any, tag string) error {
	return validation.Validator().Var(value, tag)
}

func currentClaimsFromConn(conn *websocket.Conn) *auth.Claims {
	claims, _ := conn.Locals("claims").(*auth.Claims)
	return claims
}
