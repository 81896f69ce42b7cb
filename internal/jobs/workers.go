package jobs

import (
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

// Deps are the collaborators the workers need.
type Deps struct {
	Store              CleanupStore
	Mailer             AccountMailer
	Logger             *slog.Logger
	RateLimitRetention time.Duration
	AuditRetention     time.Duration
}

// NewWorkers registers every worker.
func NewWorkers(deps Deps) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker[RateLimitCleanupArgs](workers, RateLimitCleanupWorker{
		Store:     deps.Store,
		Retention: deps.RateLimitRetention,
		Logger:    deps.Logger,
	})
	river.AddWorker[AuditLogCleanupArgs](workers, AuditLogCleanupWorker{
		Store:     deps.Store,
		Retention: deps.AuditRetention,
		Logger:    deps.Logger,
	})
	river.AddWorker[SessionCleanupArgs](workers, SessionCleanupWorker{
		Store:  deps.Store,
		Logger: deps.Logger,
	})
	river.AddWorker[AccountDeletedEmailArgs](workers, AccountDeletedEmailWorker{
		Mailer: deps.Mailer,
		Logger: deps.Logger,
	})
	return workers
}
