package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rungomx/server/internal/action"
)

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		limit   int64
		wantErr string
	}{
		{name: "valid", body: `{"token":"abc"}`},
		{name: "empty", body: "", wantErr: "Request body is required"},
		{name: "malformed", body: `{"token":`, wantErr: "Invalid request body"},
		{name: "unknown field", body: `{"token":"abc","admin":true}`, wantErr: "Invalid request body"},
		{name: "trailing object", body: `{"token":"a"}{"token":"b"}`, wantErr: "Request body must contain a single JSON object"},
		{name: "too large", body: `{"token":"` + strings.Repeat("x", 64) + `"}`, limit: 16, wantErr: "Request body too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.limit > 0 {
				req.Body = http.MaxBytesReader(httptest.NewRecorder(), req.Body, tt.limit)
			}

			var dst joinRequest
			err := decodeJSON(req, &dst)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "abc", dst.Token)
				return
			}
			require.ErrorIs(t, err, action.ErrValidation)
			result := action.From[any](err)
			assert.Equal(t, tt.wantErr, result.Error)
		})
	}
}
