package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerAddsContextValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("production", &buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = WithUserID(ctx, "user-1")
	logger.InfoContext(ctx, "hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "req-1", record["request_id"])
	assert.Equal(t, "user-1", record["user_id"])
	assert.NotContains(t, record, "trace_id")
}

func TestNewLoggerTextOutsideProduction(t *testing.T) {
	var buf bytes.Buffer
	NewLogger("development", &buf).With("k", "v").Info("hi")
	assert.Contains(t, buf.String(), "msg=hi")
	assert.Contains(t, buf.String(), "k=v")
}

func TestRecordAuthEvent(t *testing.T) {
	ok := AuthEvents.WithLabelValues("test_event", "ok")
	failed := AuthEvents.WithLabelValues("test_event", "error")
	beforeOK, beforeFailed := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	RecordAuthEvent("test_event", nil)
	RecordAuthEvent("test_event", errors.New("boom"))
	RecordAuthEvent("test_event", errors.New("boom"))

	assert.Equal(t, beforeOK+1, testutil.ToFloat64(ok))
	assert.Equal(t, beforeFailed+2, testutil.ToFloat64(failed))
}

func TestRecordLikeMutation(t *testing.T) {
	changed := LikeMutations.WithLabelValues("like", "true")
	noop := LikeMutations.WithLabelValues("like", "false")
	beforeChanged, beforeNoop := testutil.ToFloat64(changed), testutil.ToFloat64(noop)

	RecordLikeMutation("like", true)
	RecordLikeMutation("like", false)

	assert.Equal(t, beforeChanged+1, testutil.ToFloat64(changed))
	assert.Equal(t, beforeNoop+1, testutil.ToFloat64(noop))
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{ServiceName: "photofeed-test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := StartSpan(context.Background(), "noop")
	EndSpan(span, errors.New("ignored"))
	assert.False(t, span.SpanContext().IsSampled())
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(TracingConfig{ServiceName: "photofeed-test", Enabled: true, Exporter: "zipkin"})
	assert.ErrorContains(t, err, "zipkin")
}

func TestNewSampler(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", newSampler(1).Description())
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
