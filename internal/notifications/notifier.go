// Package notifications delivers auth-state events to a user's realtime connections.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"

	"photofeed/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Auth event types pushed over the realtime socket.
const (
	EventSignedOut   = "SIGNED_OUT"
	EventUserUpdated = "USER_UPDATED"
)

const authChannelPrefix = "auth:user:"

// AuthEvent is the payload published for a user. An empty SessionID on
// SIGNED_OUT means every session of the user was revoked.
type AuthEvent struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
}

// UserChannel returns the pub/sub channel for a user's auth events.
func UserChannel(userID string) string {
	return authChannelPrefix + userID
}

// Notifier publishes auth events into Redis channels. Without Redis it
// delivers in-process to whatever subscriber is registered.
type Notifier struct {
	rdb *redis.Client

	mu    sync.RWMutex
	local func(channel, payload string)
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishAuthEvent sends ev to the user's channel.
func (n *Notifier) PublishAuthEvent(ctx context.Context, ev AuthEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal auth event: %w", err)
	}
	channel := UserChannel(ev.UserID)

	if n.rdb == nil {
		n.mu.RLock()
		local := n.local
		n.mu.RUnlock()
		if local != nil {
			local(channel, string(payload))
		}
		return nil
	}
	return n.rdb.Publish(ctx, channel, string(payload)).Err()
}

// StartAuthSubscriber subscribes to `auth:user:*` and calls onMessage for each
// message until ctx is done.
func (n *Notifier) StartAuthSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	handle := func(channel, payload string) {
		defer func() {
			if r := recover(); r != nil {
				observability.Logger.Error("panic in auth subscriber",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
		}()
		onMessage(channel, payload)
	}

	if n.rdb == nil {
		n.mu.Lock()
		n.local = handle
		n.mu.Unlock()
		go func() {
			<-ctx.Done()
			n.mu.Lock()
			n.local = nil
			n.mu.Unlock()
		}()
		return nil
	}

	sub := n.rdb.PSubscribe(ctx, authChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe auth events: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handle(msg.Channel, msg.Payload)
			}
		}
	}()

	return nil
}

func userFromChannel(channel string) (string, bool) {
	userID, ok := strings.CutPrefix(channel, authChannelPrefix)
	return userID, ok && userID != ""
}
