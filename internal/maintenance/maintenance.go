// Package maintenance holds the operator tasks: shutting the call system down
// and purging archived threads.
package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"messenger-service/internal/logger"
	"messenger-service/internal/models"
	"messenger-service/internal/storage"
)

// Job routing keys, published when work is dispatched instead of run inline.
const (
	JobEndCalls     = "maintenance.calls.end_all"
	JobPurgeThreads = "maintenance.threads.purge"
)

type CallEnder interface {
	ListActive(ctx context.Context) ([]models.Call, error)
	EndAll(ctx context.Context) (int, error)
}

type Lockout interface {
	IsDown(ctx context.Context) (bool, error)
	Down(ctx context.Context, duration time.Duration) error
	Up(ctx context.Context) error
}

type ThreadPurger interface {
	ListArchivedBefore(ctx context.Context, cutoff time.Time) ([]models.Thread, error)
	Purge(ctx context.Context, threadID string) error
}

type AttachmentRemover interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Dispatcher queues a job for the serve process. rabbitmq.Publisher satisfies it.
// A nil Dispatcher makes every task run inline.
type Dispatcher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type PurgeJob struct {
	ThreadIDs []string `json:"thread_ids"`
}

// Runner executes maintenance tasks and reports what it did as console lines.
type Runner struct {
	callingEnabled bool
	calls          CallEnder
	lockout        Lockout
	threads        ThreadPurger
	attachments    AttachmentRemover
	dispatcher     Dispatcher
	now            func() time.Time
}

func NewRunner(callingEnabled bool, calls CallEnder, lockout Lockout, threads ThreadPurger, attachments AttachmentRemover, dispatcher Dispatcher) *Runner {
	return &Runner{
		callingEnabled: callingEnabled,
		calls:          calls,
		lockout:        lockout,
		threads:        threads,
		attachments:    attachments,
		dispatcher:     dispatcher,
		now:            time.Now,
	}
}

// CallsDown ends every active call and disables calling for duration.
func (r *Runner) CallsDown(ctx context.Context, duration time.Duration, now bool) ([]string, error) {
	if !r.callingEnabled {
		return []string{"Call system currently disabled."}, nil
	}
	down, err := r.lockout.IsDown(ctx)
	if err != nil {
		return nil, fmt.Errorf("check lockout: %w", err)
	}
	if down {
		return []string{"Call system is already shutdown."}, nil
	}

	if err := r.lockout.Down(ctx, duration); err != nil {
		return nil, fmt.Errorf("set lockout: %w", err)
	}

	now = now || !r.canDispatch(ctx)

	var out []string
	active, err := r.calls.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active calls: %w", err)
	}
	switch {
	case len(active) == 0:
		out = append(out, "No active calls to end found.")
	case now:
		if _, err := r.calls.EndAll(ctx); err != nil {
			return nil, fmt.Errorf("end calls: %w", err)
		}
		out = append(out, fmt.Sprintf("%d active calls found. End calls completed!", len(active)))
	default:
		if err := r.dispatcher.Publish(ctx, JobEndCalls, struct{}{}); err != nil {
			return nil, fmt.Errorf("dispatch end calls: %w", err)
		}
		out = append(out, fmt.Sprintf("%d active calls found. End calls dispatched!", len(active)))
	}

	logger.FromContext(ctx).Info("call system down", zap.Duration("duration", duration), zap.Int("active_calls", len(active)))
	return append(out, fmt.Sprintf("Call system is now down for %d minutes.", int(duration.Minutes()))), nil
}

// CallsUp lifts the calls-down lockout.
func (r *Runner) CallsUp(ctx context.Context) ([]string, error) {
	if !r.callingEnabled {
		return []string{"Call system currently disabled."}, nil
	}
	down, err := r.lockout.IsDown(ctx)
	if err != nil {
		return nil, fmt.Errorf("check lockout: %w", err)
	}
	if !down {
		return []string{"Call system is already online."}, nil
	}
	if err := r.lockout.Up(ctx); err != nil {
		return nil, fmt.Errorf("clear lockout: %w", err)
	}
	logger.FromContext(ctx).Info("call system up")
	return []string{"Call system is now online."}, nil
}

// PurgeThreads removes threads archived at least days ago, with their attachments.
func (r *Runner) PurgeThreads(ctx context.Context, days int, now bool) ([]string, error) {
	cutoff := r.now().AddDate(0, 0, -days)
	threads, err := r.threads.ListArchivedBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list archived threads: %w", err)
	}
	if len(threads) == 0 {
		return []string{fmt.Sprintf("No threads archived %d days or greater found.", days)}, nil
	}

	ids := make([]string, 0, len(threads))
	for _, t := range threads {
		ids = append(ids, t.ID)
	}

	if now || !r.canDispatch(ctx) {
		if err := r.purge(ctx, ids); err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("%d threads archived %d days or greater found. Purging completed!", len(ids), days)}, nil
	}
	if err := r.dispatcher.Publish(ctx, JobPurgeThreads, PurgeJob{ThreadIDs: ids}); err != nil {
		return nil, fmt.Errorf("dispatch purge: %w", err)
	}
	return []string{fmt.Sprintf("%d threads archived %d days or greater found. Purging dispatched!", len(ids), days)}, nil
}

func (r *Runner) canDispatch(ctx context.Context) bool {
	if r.dispatcher == nil {
		logger.FromContext(ctx).Warn("no job queue available, running maintenance inline")
		return false
	}
	return true
}

func (r *Runner) purge(ctx context.Context, threadIDs []string) error {
	for _, id := range threadIDs {
		removed, err := r.attachments.DeletePrefix(ctx, storage.ThreadPath(id))
		if err != nil {
			return fmt.Errorf("remove attachments of %s: %w", id, err)
		}
		if err := r.threads.Purge(ctx, id); err != nil {
			return fmt.Errorf("purge thread %s: %w", id, err)
		}
		logger.FromContext(ctx).Info("thread purged", zap.String("thread_id", id), zap.Int("attachments", removed))
	}
	return nil
}

// HandleJob runs a dispatched job. It is the rabbitmq.Handler of the serve process.
func (r *Runner) HandleJob(ctx context.Context, routingKey string, body []byte) error {
	switch routingKey {
	case JobEndCalls:
		ended, err := r.calls.EndAll(ctx)
		if err != nil {
			return err
		}
		logger.FromContext(ctx).Info("dispatched calls ended", zap.Int("ended", ended))
		return nil
	case JobPurgeThreads:
		var job PurgeJob
		if err := json.Unmarshal(body, &job); err != nil {
			return fmt.Errorf("decode purge job: %w", err)
		}
		return r.purge(ctx, job.ThreadIDs)
	default:
		return fmt.Errorf("unknown job %q", routingKey)
	}
}
