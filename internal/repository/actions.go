package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/formwork/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type actionDefinitionRepo struct{}

// NewActionDefinitionRepository returns a pgx-backed ActionDefinitionRepository.
func NewActionDefinitionRepository() ActionDefinitionRepository {
	return &actionDefinitionRepo{}
}

const actionDefinitionColumns = `id, namespace_id, resource_id, trigger, action_type, ordinal, config, created_at, updated_at`

func (r *actionDefinitionRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.ActionDefinition, error) {
	row := db.QueryRow(ctx, `
		SELECT `+actionDefinitionColumns+`
		FROM action_definitions WHERE id = $1`, id)
	def, err := scanActionDefinition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound("action definition", id.String())
	}
	return def, err
}

// ListForNamespace returns the namespace-level default chain for a trigger.
// Ordinal orders the chain; created_at breaks ties so insertion order is stable.
func (r *actionDefinitionRepo) ListForNamespace(ctx context.Context, db DBTX, namespaceID uuid.UUID, trigger domain.Trigger) ([]domain.ActionDefinition, error) {
	rows, err := db.Query(ctx, `
		SELECT `+actionDefinitionColumns+`
		FROM action_definitions
		WHERE namespace_id = $1 AND resource_id IS NULL AND trigger = $2
		ORDER BY ordinal ASC, created_at ASC`, namespaceID, string(trigger))
	if err != nil {
		return nil, fmt.Errorf("list namespace actions: %w", err)
	}
	defer rows.Close()
	return collectActionDefinitions(rows)
}

func (r *actionDefinitionRepo) ListForResource(ctx context.Context, db DBTX, resourceID uuid.UUID, trigger domain.Trigger) ([]domain.ActionDefinition, error) {
	rows, err := db.Query(ctx, `
		SELECT `+actionDefinitionColumns+`
		FROM action_definitions
		WHERE resource_id = $1 AND trigger = $2
		ORDER BY ordinal ASC, created_at ASC`, resourceID, string(trigger))
	if err != nil {
		return nil, fmt.Errorf("list resource actions: %w", err)
	}
	defer rows.Close()
	return collectActionDefinitions(rows)
}

func (r *actionDefinitionRepo) Create(ctx context.Context, db DBTX, def *domain.ActionDefinition) error {
	_, err := db.Exec(ctx, `
		INSERT INTO action_definitions (id, namespace_id, resource_id, trigger, action_type, ordinal, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		def.ID, def.NamespaceID, def.ResourceID, string(def.Trigger), string(def.Type),
		def.Ordinal, def.Config, def.CreatedAt, def.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert action definition: %w", err)
	}
	return nil
}

func (r *actionDefinitionRepo) Update(ctx context.Context, db DBTX, def *domain.ActionDefinition) error {
	tag, err := db.Exec(ctx, `
		UPDATE action_definitions SET ordinal = $2, config = $3, updated_at = now()
		WHERE id = $1`,
		def.ID, def.Ordinal, def.Config,
	)
	if err != nil {
		return fmt.Errorf("update action definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("action definition", def.ID.String())
	}
	return nil
}

func (r *actionDefinitionRepo) Delete(ctx context.Context, db DBTX, id uuid.UUID) error {
	tag, err := db.Exec(ctx, `DELETE FROM action_definitions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete action definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("action definition", id.String())
	}
	return nil
}

func collectActionDefinitions(rows pgx.Rows) ([]domain.ActionDefinition, error) {
	var out []domain.ActionDefinition
	for rows.Next() {
		def, err := scanActionDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *def)
	}
	return out, rows.Err()
}

func scanActionDefinition(row pgx.Row) (*domain.ActionDefinition, error) {
	var def domain.ActionDefinition
	var trigger, actionType string
	err := row.Scan(&def.ID, &def.NamespaceID, &def.ResourceID, &trigger, &actionType,
		&def.Ordinal, &def.Config, &def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan action definition: %w", err)
	}
	def.Trigger = domain.Trigger(trigger)
	def.Type = domain.ActionType(actionType)
	return &def, nil
}
