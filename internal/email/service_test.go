package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rungomx/server/internal/config"
)

func TestValidateEmailAddress(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"runner@example.com", false},
		{"ana+maraton@example.mx", false},
		{"Ana Runner <ana@example.com>", false},
		{"", true},
		{"not-an-email", true},
		{"user@", true},
		{"victim@example.com\r\nBcc: attacker@evil.com", true},
		{"victim@example.com\nSubject: Phishing", true},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := validateEmailAddress(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewService(t *testing.T) {
	svc, err := NewService(config.EmailConfig{From: "RunGoMX <no-reply@rungomx.com>"}, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, svc.Enabled())

	svc, err = NewService(config.EmailConfig{ResendAPIKey: "re_test", From: "RunGoMX <no-reply@rungomx.com>"}, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, svc.Enabled())

	_, err = NewService(config.EmailConfig{ResendAPIKey: "re_test", From: "broken"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestSendAccountDeleted_Disabled(t *testing.T) {
	svc, err := NewService(config.EmailConfig{}, zerolog.Nop())
	require.NoError(t, err)

	assert.NoError(t, svc.SendAccountDeleted(context.Background(), "ana@example.com", "Ana"))
	assert.Error(t, svc.SendAccountDeleted(context.Background(), "bad\r\naddress", "Ana"))
}

func TestSendAccountDeleted_RendersAndSends(t *testing.T) {
	var got resend.SendEmailRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "email-1"})
	}))
	defer server.Close()

	svc := newTestService(t, server.URL)
	require.NoError(t, svc.SendAccountDeleted(context.Background(), "ana@example.com", "Ana <b>Runner</b>"))

	assert.Equal(t, []string{"ana@example.com"}, got.To)
	assert.Equal(t, "RunGoMX <no-reply@rungomx.com>", got.From)
	assert.Contains(t, got.Html, "Ana &lt;b&gt;Runner&lt;/b&gt;", "names are HTML escaped")
}
