package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	tests := []struct {
		name      string
		version   string
		gitCommit string
		buildDate string
		want      versionResponse
	}{
		{
			name:      "ldflags set",
			version:   "1.4.0",
			gitCommit: "abc123",
			buildDate: "2026-09-30T12:00:00Z",
			want:      versionResponse{Version: "1.4.0", GitCommit: "abc123", BuildDate: "2026-09-30T12:00:00Z"},
		},
		{
			name: "defaults",
			want: versionResponse{Version: "dev", GitCommit: "unknown", BuildDate: "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Version(tt.version, tt.gitCommit, tt.buildDate).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))

			require.Equal(t, http.StatusOK, w.Code)
			var got versionResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&got))

			tt.want.GoVersion = runtime.Version()
			assert.Equal(t, tt.want, got)
		})
	}
}
