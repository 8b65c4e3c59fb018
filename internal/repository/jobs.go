package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/formwork/platform/internal/domain"
	"github.com/google/uuid"
)

type jobRepo struct{}

// NewJobRepository returns a pgx-backed JobRepository over the action_jobs
// queue table.
func NewJobRepository() JobRepository {
	return &jobRepo{}
}

func (r *jobRepo) InsertBatch(ctx context.Context, db DBTX, jobs []domain.ActionJob) error {
	for _, job := range jobs {
		event, err := json.Marshal(job.Event)
		if err != nil {
			return fmt.Errorf("marshal event snapshot: %w", err)
		}
		_, err = db.Exec(ctx, `
			INSERT INTO action_jobs
			  (correlation_id, action_definition_id, action_type, config, event, attempt, status, run_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'pending', now())`,
			job.CorrelationID, job.ActionDefinitionID, string(job.ActionType),
			job.Config, event, job.Attempt,
		)
		if err != nil {
			return fmt.Errorf("insert action job: %w", err)
		}
	}
	return nil
}

// Claim locks due jobs with FOR UPDATE SKIP LOCKED so concurrent workers
// never pull the same row. Claimed jobs flip to in_flight; a crashed worker's
// rows are returned to pending by ReleaseStale, which the worker loop runs
// on its reap interval.
func (r *jobRepo) Claim(ctx context.Context, db DBTX, limit int) ([]domain.ActionJob, error) {
	rows, err := db.Query(ctx, `
		UPDATE action_jobs SET status = 'in_flight', claimed_at = now()
		WHERE id IN (
			SELECT id FROM action_jobs
			WHERE status = 'pending' AND run_at <= now()
			ORDER BY id ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, correlation_id, action_definition_id, action_type, config, event, attempt`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.ActionJob
	for rows.Next() {
		var job domain.ActionJob
		var actionType string
		var event []byte
		if err := rows.Scan(&job.SeqID, &job.CorrelationID, &job.ActionDefinitionID,
			&actionType, &job.Config, &event, &job.Attempt); err != nil {
			return nil, fmt.Errorf("scan claimed job: %w", err)
		}
		job.ActionType = domain.ActionType(actionType)
		if err := json.Unmarshal(event, &job.Event); err != nil {
			return nil, fmt.Errorf("unmarshal event snapshot: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *jobRepo) Ack(ctx context.Context, db DBTX, seqID int64) error {
	_, err := db.Exec(ctx, `DELETE FROM action_jobs WHERE id = $1`, seqID)
	if err != nil {
		return fmt.Errorf("ack job: %w", err)
	}
	return nil
}

func (r *jobRepo) Nack(ctx context.Context, db DBTX, seqID int64, retryAt time.Time) error {
	_, err := db.Exec(ctx, `
		UPDATE action_jobs
		SET status = 'pending', claimed_at = NULL, attempt = attempt + 1, run_at = $2
		WHERE id = $1`, seqID, retryAt)
	if err != nil {
		return fmt.Errorf("nack job: %w", err)
	}
	return nil
}

// ReleaseStale returns in_flight rows claimed before the cutoff to pending.
// The attempt count is left alone: a stale claim means a dead worker, not a
// failed action.
func (r *jobRepo) ReleaseStale(ctx context.Context, db DBTX, olderThan time.Duration) (int, error) {
	tag, err := db.Exec(ctx, `
		UPDATE action_jobs
		SET status = 'pending', claimed_at = NULL, run_at = now()
		WHERE status = 'in_flight' AND claimed_at < $1`,
		time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("release stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *jobRepo) PendingByCorrelation(ctx context.Context, db DBTX, correlationID uuid.UUID) (int, error) {
	var n int
	err := db.QueryRow(ctx, `
		SELECT count(*) FROM action_jobs WHERE correlation_id = $1`, correlationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending jobs: %w", err)
	}
	return n, nil
}
