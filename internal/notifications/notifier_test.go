package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestUserChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "auth:user:abc", UserChannel("abc"))

	id, ok := userFromChannel("auth:user:abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = userFromChannel("auth:user:")
	assert.False(t, ok)
	_, ok = userFromChannel("chat:conv:1")
	assert.False(t, ok)
}

func TestNotifier_NoRedisWithoutSubscriberIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishAuthEvent(context.Background(), AuthEvent{Type: EventSignedOut, UserID: "u1"}))
}

func TestNotifier_NoRedisDeliversInProcess(t *testing.T) {
	n := NewNotifier(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 1)
	require.NoError(t, n.StartAuthSubscriber(ctx, func(channel, payload string) {
		assert.Equal(t, "auth:user:u1", channel)
		got <- payload
	}))

	require.NoError(t, n.PublishAuthEvent(context.Background(), AuthEvent{Type: EventUserUpdated, UserID: "u1"}))

	var ev AuthEvent
	require.NoError(t, json.Unmarshal([]byte(<-got), &ev))
	assert.Equal(t, AuthEvent{Type: EventUserUpdated, UserID: "u1"}, ev)
}

func TestNotifier_RedisRoundTripStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payloads := make(chan string, 4)
	require.NoError(t, n.StartAuthSubscriber(ctx, func(_ string, payload string) {
		payloads <- payload
	}))

	require.NoError(t, n.PublishAuthEvent(context.Background(), AuthEvent{Type: EventSignedOut, UserID: "u2", SessionID: "s1"}))
	select {
	case p := <-payloads:
		assert.JSONEq(t, `{"type":"SIGNED_OUT","user_id":"u2","session_id":"s1"}`, p)
	case <-time.After(testEventuallyTimeout):
		t.Fatal("no event received")
	}

	cancel()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, n.PublishAuthEvent(context.Background(), AuthEvent{Type: EventSignedOut, UserID: "u2"}))
	assert.Never(t, func() bool { return len(payloads) > 0 }, 200*time.Millisecond, testPollInterval)
}
