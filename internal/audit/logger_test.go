package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.New(&buf))

	entry := NewEntry(context.Background(), "registration_group.join", "user-1", "registration_group", "group-1").
		WithAfter(map[string]any{"member_user_id": "user-1"})

	logger.Log(entry)

	var wrapper map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &wrapper))

	var logged Entry
	require.NoError(t, json.Unmarshal(wrapper["audit"], &logged))

	assert.Equal(t, entry.ID, logged.ID)
	assert.Equal(t, "registration_group.join", logged.Action)
	assert.Equal(t, "user-1", logged.ActorUserID)
	assert.Equal(t, "group-1", logged.EntityID)
	assert.Equal(t, "user-1", logged.After["member_user_id"])
	assert.Contains(t, string(wrapper["component"]), "audit")
}

func TestLogger_NilIsNoop(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() {
		logger.Log(Entry{Action: "noop"})
	})
}

func TestNewEntry_AssignsIDAndIP(t *testing.T) {
	ctx := WithIP(context.Background(), "203.0.113.9")

	first := NewEntry(ctx, "user.delete", "admin", "user", "u1")
	second := NewEntry(ctx, "user.delete", "admin", "user", "u1")

	assert.Len(t, first.ID, 26)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "203.0.113.9", first.IPAddress)
	assert.False(t, first.Timestamp.IsZero())
}

func TestIPFromContext_Missing(t *testing.T) {
	assert.Empty(t, IPFromContext(context.Background()))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:       "x-forwarded-for first hop",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"},
			remoteAddr: "10.0.0.2:1234",
			want:       "203.0.113.1",
		},
		{
			name:       "x-real-ip",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			remoteAddr: "10.0.0.2:1234",
			want:       "198.51.100.7",
		},
		{
			name:       "prefer x-forwarded-for",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1", "X-Real-IP": "198.51.100.7"},
			remoteAddr: "10.0.0.2:1234",
			want:       "203.0.113.1",
		},
		{
			name:       "remote addr host",
			remoteAddr: "192.0.2.44:5555",
			want:       "192.0.2.44",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
