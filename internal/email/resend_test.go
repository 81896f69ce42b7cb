package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rungomx/server/internal/config"
)

func newTestService(t *testing.T, serverURL string) *Service {
	t.Helper()
	client := resend.NewClient("test-api-key")
	baseURL, err := url.Parse(serverURL + "/")
	require.NoError(t, err)
	client.BaseURL = baseURL

	return &Service{
		config:       config.EmailConfig{ResendAPIKey: "test-api-key", From: "RunGoMX <no-reply@rungomx.com>"},
		resendClient: client,
		templates:    defaultTemplates,
		logger:       zerolog.Nop(),
	}
}

func TestSendViaResend_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))

		var req resend.SendEmailRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Subject", req.Subject)
		assert.Contains(t, req.Html, "Body")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "email-123"})
	}))
	defer server.Close()

	svc := newTestService(t, server.URL)
	assert.NoError(t, svc.sendViaResend(context.Background(), "ana@example.com", "Subject", "<p>Body</p>"))
}

func TestSendViaResend_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		wantMsg string
	}{
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			headers: map[string]string{
				"X-RateLimit-Limit":     "2",
				"X-RateLimit-Remaining": "0",
				"X-RateLimit-Reset":     "1",
			},
			wantMsg: "rate limit",
		},
		{
			name:    "validation error",
			status:  http.StatusUnprocessableEntity,
			wantMsg: "resend API error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "rejected", "name": "validation_error"})
			}))
			defer server.Close()

			svc := newTestService(t, server.URL)
			err := svc.sendViaResend(context.Background(), "ana@example.com", "Subject", "<p>Body</p>")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSendViaResend_NilClient(t *testing.T) {
	svc := &Service{logger: zerolog.Nop()}
	err := svc.sendViaResend(context.Background(), "ana@example.com", "Subject", "<p>Body</p>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestSendViaResend_CanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestService(t, server.URL)
	assert.Error(t, svc.sendViaResend(ctx, "ana@example.com", "Subject", "<p>Body</p>"))
}
