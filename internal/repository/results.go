package repository

import (
	"context"
	"fmt"

	"github.com/formwork/platform/internal/domain"
	"github.com/google/uuid"
)

type resultRepo struct{}

// NewResultRepository returns a pgx-backed ResultRepository.
func NewResultRepository() ResultRepository {
	return &resultRepo{}
}

// Record upserts a terminal result. ON CONFLICT DO NOTHING keeps the first
// write: redelivered jobs record once, never two conflicting rows.
func (r *resultRepo) Record(ctx context.Context, db DBTX, result domain.ActionResult) error {
	_, err := db.Exec(ctx, `
		INSERT INTO action_results
		  (correlation_id, action_definition_id, action_type, status, effect, error_code, error_detail, recorded_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
		ON CONFLICT (correlation_id, action_definition_id) DO NOTHING`,
		result.CorrelationID, result.ActionDefinitionID, string(result.ActionType),
		string(result.Status), result.Effect, result.ErrorCode, result.ErrorDetail,
		result.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("record action result: %w", err)
	}
	return nil
}

func (r *resultRepo) ListByCorrelation(ctx context.Context, db DBTX, correlationID uuid.UUID) ([]domain.ActionResult, error) {
	rows, err := db.Query(ctx, `
		SELECT correlation_id, action_definition_id, action_type, status,
		       effect, COALESCE(error_code, ''), COALESCE(error_detail, ''), recorded_at
		FROM action_results
		WHERE correlation_id = $1
		ORDER BY recorded_at ASC`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("list action results: %w", err)
	}
	defer rows.Close()

	var out []domain.ActionResult
	for rows.Next() {
		var res domain.ActionResult
		var actionType, status string
		if err := rows.Scan(&res.CorrelationID, &res.ActionDefinitionID, &actionType, &status,
			&res.Effect, &res.ErrorCode, &res.ErrorDetail, &res.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan action result: %w", err)
		}
		res.ActionType = domain.ActionType(actionType)
		res.Status = domain.ResultStatus(status)
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *resultRepo) FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]PublishableResult, error) {
	rows, err := db.Query(ctx, `
		SELECT id, correlation_id, action_definition_id, action_type, status,
		       effect, COALESCE(error_code, ''), COALESCE(error_detail, ''), recorded_at
		FROM action_results
		WHERE published_at IS NULL
		ORDER BY id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished results: %w", err)
	}
	defer rows.Close()

	var out []PublishableResult
	for rows.Next() {
		var p PublishableResult
		var actionType, status string
		if err := rows.Scan(&p.SeqID, &p.Result.CorrelationID, &p.Result.ActionDefinitionID,
			&actionType, &status, &p.Result.Effect, &p.Result.ErrorCode,
			&p.Result.ErrorDetail, &p.Result.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan unpublished result: %w", err)
		}
		p.Result.ActionType = domain.ActionType(actionType)
		p.Result.Status = domain.ResultStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *resultRepo) MarkPublished(ctx context.Context, db DBTX, seqIDs []int64) error {
	if len(seqIDs) == 0 {
		return nil
	}
	_, err := db.Exec(ctx, `
		UPDATE action_results SET published_at = now() WHERE id = ANY($1)`, seqIDs)
	if err != nil {
		return fmt.Errorf("mark results published: %w", err)
	}
	return nil
}
