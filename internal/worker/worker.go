package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/formwork/platform/internal/dispatch"
	"github.com/formwork/platform/internal/domain"
)

// Config tunes the claim loop.
type Config struct {
	PollInterval time.Duration // base polling interval
	Burst        int           // max jobs claimed per tick
	IdleDelay    time.Duration // extra sleep when no work was found
	MaxAttempts  int           // terminal Failed after this many attempts
	Backoff      BackoffConfig
	ReapInterval time.Duration // how often stale claims are swept
	StaleAfter   time.Duration // claim age at which a job counts as abandoned
}

// DefaultConfig returns the standard worker tuning.
func DefaultConfig() Config {
	return Config{
		PollInterval: 500 * time.Millisecond,
		Burst:        10,
		IdleDelay:    800 * time.Millisecond,
		MaxAttempts:  5,
		Backoff:      DefaultBackoff(),
		ReapInterval: 30 * time.Second,
		StaleAfter:   2 * time.Minute,
	}
}

// Worker consumes action jobs from the durable queue, executes them, and
// records terminal results. Many workers may run concurrently across
// processes; the queue's claim semantics keep each job on one worker at a
// time, and the result store's idempotent upsert absorbs redelivery.
type Worker struct {
	queue    dispatch.JobQueue
	executor *dispatch.Executor
	results  dispatch.ResultStore
	cfg      Config
	logger   *slog.Logger
}

// New creates a worker.
func New(queue dispatch.JobQueue, executor *dispatch.Executor, results dispatch.ResultStore, cfg Config, logger *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = 800 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = 30 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 2 * time.Minute
	}
	return &Worker{queue: queue, executor: executor, results: results, cfg: cfg, logger: logger}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.logger.Info("action worker started",
		"poll_interval", w.cfg.PollInterval,
		"burst", w.cfg.Burst,
		"max_attempts", w.cfg.MaxAttempts,
	)

	lastReap := time.Now()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("action worker stopped")
			return
		case <-ticker.C:
			if time.Since(lastReap) >= w.cfg.ReapInterval {
				w.reap(ctx)
				lastReap = time.Now()
			}
			processed, err := w.Tick(ctx)
			if err != nil {
				w.logger.Error("worker tick failed", "error", err)
			}
			if processed == 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(w.cfg.IdleDelay):
				}
			}
		}
	}
}

// Tick claims and processes up to Burst jobs, returning how many ran.
// Exported so tests and single-process deployments can drain the queue
// deterministically.
func (w *Worker) Tick(ctx context.Context) (int, error) {
	jobs, err := w.queue.Claim(ctx, w.cfg.Burst)
	if err != nil {
		return 0, err
	}
	for _, job := range jobs {
		w.process(ctx, job)
	}
	return len(jobs), nil
}

// reap returns claims abandoned by dead workers to the pending set. Any
// worker in the fleet may sweep; the release update is idempotent.
func (w *Worker) reap(ctx context.Context) {
	released, err := w.queue.ReleaseStale(ctx, w.cfg.StaleAfter)
	if err != nil {
		w.logger.Error("release stale jobs failed", "error", err)
		return
	}
	if released > 0 {
		w.logger.Warn("released stale job claims", "count", released, "stale_after", w.cfg.StaleAfter)
	}
}

func (w *Worker) process(ctx context.Context, job domain.ActionJob) {
	result, err := w.executor.Execute(ctx, job)
	if err != nil {
		// Transient failure: retry with backoff until attempts are exhausted.
		if job.Attempt+1 < w.cfg.MaxAttempts {
			retryAt := NextRetryAt(time.Now(), job.Attempt+1, w.cfg.Backoff, nil)
			w.logger.Warn("action retry scheduled",
				"correlation_id", job.CorrelationID,
				"action_definition_id", job.ActionDefinitionID,
				"attempt", job.Attempt+1,
				"retry_at", retryAt,
				"error", err,
			)
			if nackErr := w.queue.Nack(ctx, job, retryAt); nackErr != nil {
				w.logger.Error("nack failed", "seq_id", job.SeqID, "error", nackErr)
			}
			return
		}
		result = domain.FailedResult(job, domain.CodeRetryExhausted, err.Error())
	}

	if recErr := w.results.Record(ctx, result); recErr != nil {
		// Release the claim so the job redelivers once the store recovers.
		// The re-execution is absorbed by the result upsert's first-write-wins
		// key, so at-least-once holds even across a store outage.
		retryAt := NextRetryAt(time.Now(), job.Attempt+1, w.cfg.Backoff, nil)
		w.logger.Error("record result failed, releasing job for redelivery",
			"correlation_id", job.CorrelationID,
			"action_definition_id", job.ActionDefinitionID,
			"retry_at", retryAt,
			"error", recErr,
		)
		if nackErr := w.queue.Nack(ctx, job, retryAt); nackErr != nil {
			// The claim stays held; the stale-claim sweep returns it to pending.
			w.logger.Error("nack failed", "seq_id", job.SeqID, "error", nackErr)
		}
		return
	}

	if ackErr := w.queue.Ack(ctx, job); ackErr != nil {
		w.logger.Error("ack failed", "seq_id", job.SeqID, "error", ackErr)
	}

	w.logger.Info("action completed",
		"correlation_id", job.CorrelationID,
		"action_type", job.ActionType,
		"status", result.Status,
	)
}
