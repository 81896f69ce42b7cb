package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// AccountDeletedEmailArgs carries the pre-anonymization address.
type AccountDeletedEmailArgs struct {
	To   string `json:"to"`
	Name string `json:"name"`
}

func (AccountDeletedEmailArgs) Kind() string { return JobKindAccountDeletedEmail }

// AccountMailer sends the deletion notice.
type AccountMailer interface {
	SendAccountDeleted(ctx context.Context, to, name string) error
}

type AccountDeletedEmailWorker struct {
	river.WorkerDefaults[AccountDeletedEmailArgs]
	Mailer AccountMailer
	Logger *slog.Logger
}

func (w AccountDeletedEmailWorker) Work(ctx context.Context, job *river.Job[AccountDeletedEmailArgs]) error {
	if w.Mailer == nil {
		return fmt.Errorf("mailer not configured")
	}
	if err := w.Mailer.SendAccountDeleted(ctx, job.Args.To, job.Args.Name); err != nil {
		return fmt.Errorf("send account deleted email: %w", err)
	}
	return nil
}

// JobInserter is the subset of *river.Client used to enqueue jobs.
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// QueuedNotifier enqueues deletion notices so delivery is retried in the
// background. It satisfies users.Notifier.
type QueuedNotifier struct {
	inserter JobInserter
	policy   *RetryPolicy
}

func NewQueuedNotifier(inserter JobInserter, policy *RetryPolicy) *QueuedNotifier {
	if policy == nil {
		policy = NewRetryPolicy(0)
	}
	return &QueuedNotifier{inserter: inserter, policy: policy}
}

func (n *QueuedNotifier) SendAccountDeleted(ctx context.Context, to, name string) error {
	_, err := n.inserter.Insert(ctx, AccountDeletedEmailArgs{To: to, Name: name}, n.policy.InsertOpts(JobKindAccountDeletedEmail))
	if err != nil {
		return fmt.Errorf("enqueue account deleted email: %w", err)
	}
	return nil
}
