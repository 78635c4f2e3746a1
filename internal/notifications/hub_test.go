package notifications

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterAndDeliver(t *testing.T) {
	hub := NewHub()

	a, err := hub.Register("u1", "s1", nil)
	require.NoError(t, err)
	b, err := hub.Register("u1", "s2", nil)
	require.NoError(t, err)
	other, err := hub.Register("u2", "s3", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, hub.ConnectionCount("u1"))

	hub.Deliver("u1", []byte("hello"))
	assert.Equal(t, "hello", string(<-a.Send))
	assert.Equal(t, "hello", string(<-b.Send))
	assert.Empty(t, other.Send)

	hub.UnregisterClient(a)
	hub.UnregisterClient(a)
	assert.Equal(t, 1, hub.ConnectionCount("u1"))
	_, open := <-a.Send
	assert.False(t, open)

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.ConnectionCount("u1"))
}

func TestHub_PerUserLimit(t *testing.T) {
	hub := NewHub()
	for range maxConnsPerUser {
		_, err := hub.Register("u1", "s", nil)
		require.NoError(t, err)
	}
	_, err := hub.Register("u1", "s", nil)
	assert.ErrorIs(t, err, ErrUserConnLimit)
	_ = hub.Shutdown(context.Background())
}

func TestHub_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register("u1", "s", nil)
	require.NoError(t, err)

	for range cap(c.Send) + 5 {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, cap(c.Send))

	hub.UnregisterClient(c)
	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })
}

func TestHub_WiringForwardsEvents(t *testing.T) {
	hub := NewHub()
	n := NewNotifier(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, n))

	c, err := hub.Register("u9", "s", nil)
	require.NoError(t, err)

	require.NoError(t, n.PublishAuthEvent(ctx, AuthEvent{Type: EventSignedOut, UserID: "u9", SessionID: "s"}))
	assert.Eventually(t, func() bool { return len(c.Send) == 1 }, testEventuallyTimeout, testPollInterval)
	assert.JSONEq(t, `{"type":"SIGNED_OUT","user_id":"u9","session_id":"s"}`, string(<-c.Send))
}
