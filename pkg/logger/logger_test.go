package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContext_AttachesKeys(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	SetDefault(New(&buf, "info"))
	defer SetDefault(prev)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, WalletKey, "0xabc")
	ctx = context.WithValue(ctx, ServiceKey, "bookings")

	InfoContext(ctx, "hello", "booking_id", 7)
	DebugContext(ctx, "suppressed at info level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "0xabc", entry["wallet"])
	assert.Equal(t, "bookings", entry["service"])
	assert.EqualValues(t, 7, entry["booking_id"])
}
