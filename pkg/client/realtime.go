package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// realtimeMessage is one frame from /realtime/v1/auth. Error frames carry
// Error and Code and are followed by a close.
type realtimeMessage struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Error     string `json:"error"`
	Code      string `json:"code"`
}

// SubscribeRealtime opens the auth-event socket for the current session.
// A SIGNED_OUT for this session (or for every session of the user) clears the
// local session as if SignOut had been called. USER_UPDATED is forwarded to
// listeners. Calling it again while subscribed does nothing.
func (c *Client) SubscribeRealtime(ctx context.Context) error {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNoSession
	}

	c.rtMu.Lock()
	defer c.rtMu.Unlock()
	if c.realtime != nil {
		return nil
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1/auth"
	u.RawQuery = url.Values{"token": {sess.AccessToken}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("realtime dial: %v", err)}
		}
		return fmt.Errorf("realtime dial: %w", err)
	}
	c.realtime = conn
	go c.readRealtime(conn, sess.SessionID)
	return nil
}

func (c *Client) readRealtime(conn *websocket.Conn, sessionID string) {
	defer func() {
		c.rtMu.Lock()
		if c.realtime == conn {
			c.realtime = nil
		}
		c.rtMu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg realtimeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("realtime: undecodable frame", "error", err)
			continue
		}
		if msg.Error != "" {
			slog.Warn("realtime: server refused subscription", "code", msg.Code, "error", msg.Error)
			return
		}

		switch AuthChangeEvent(msg.Type) {
		case EventSignedOut:
			if msg.SessionID != "" && msg.SessionID != sessionID {
				continue
			}
			c.clearLocal()
			return
		case EventUserUpdated:
			c.emit(EventUserUpdated, c.currentSession())
		}
	}
}

// RealtimeConnected reports whether the auth-event socket is open.
func (c *Client) RealtimeConnected() bool {
	c.rtMu.Lock()
	defer c.rtMu.Unlock()
	return c.realtime != nil
}

func (c *Client) closeRealtime() {
	c.rtMu.Lock()
	conn := c.realtime
	c.realtime = nil
	c.rtMu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}
}
