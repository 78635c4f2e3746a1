package server

import (
	"encoding/json"
	"errors"

	"photofeed/internal/notifications"
	"photofeed/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RealtimeAuthHandler handles GET /realtime/v1/auth. Each connection receives the
// caller's auth events (SIGNED_OUT, USER_UPDATED) as JSON text frames.
func (s *Server) RealtimeAuthHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("userID").(string)
		sessionID := ""
		if claims := currentClaimsFromConn(conn); claims != nil {
			sessionID = claims.SessionID
		}

		client, err := s.hub.Register(userID, sessionID, conn)
		if err != nil {
			status := "registration_failed"
			if errors.Is(err, notifications.ErrUserConnLimit) || errors.Is(err, notifications.ErrServerConnLimit) {
				status = "connection_limit"
			}
			observability.Logger.Warn("realtime registration rejected", "user_id", userID, "error", err)
			payload, _ := json.Marshal(fiber.Map{"error": err.Error(), "code": status})
			_ = conn.WriteMessage(websocket.TextMessage, payload)
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
