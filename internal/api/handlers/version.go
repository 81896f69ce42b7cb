package handlers

import (
	"net/http"
	"runtime"

	"github.com/rungomx/server/internal/api/render"
)

type versionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Version reports build metadata set through ldflags. Empty values become
// "dev" or "unknown".
func Version(version, gitCommit, buildDate string) http.HandlerFunc {
	if version == "" {
		version = "dev"
	}
	if gitCommit == "" {
		gitCommit = "unknown"
	}
	if buildDate == "" {
		buildDate = "unknown"
	}
	response := versionResponse{
		Version:   version,
		GitCommit: gitCommit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, http.StatusOK, response)
	}
}
