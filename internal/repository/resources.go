package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/formwork/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type resourceRepo struct{}

// NewResourceRepository returns a pgx-backed ResourceRepository.
func NewResourceRepository() ResourceRepository {
	return &resourceRepo{}
}

func (r *resourceRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Resource, error) {
	row := db.QueryRow(ctx, `
		SELECT id, namespace_id, properties, created_at, updated_at
		FROM resources WHERE id = $1`, id)
	return scanResource(row, id.String())
}

func (r *resourceRepo) Create(ctx context.Context, db DBTX, res *domain.Resource) error {
	props, err := json.Marshal(res.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO resources (id, namespace_id, properties, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		res.ID, res.NamespaceID, props, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	return nil
}

func (r *resourceRepo) UpdateProperties(ctx context.Context, db DBTX, id uuid.UUID, properties map[string]any) (*domain.Resource, error) {
	props, err := json.Marshal(properties)
	if err != nil {
		return nil, fmt.Errorf("marshal properties: %w", err)
	}
	row := db.QueryRow(ctx, `
		UPDATE resources SET properties = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, namespace_id, properties, created_at, updated_at`,
		id, props,
	)
	return scanResource(row, id.String())
}

func (r *resourceRepo) Delete(ctx context.Context, db DBTX, id uuid.UUID) error {
	tag, err := db.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("resource", id.String())
	}
	return nil
}

func (r *resourceRepo) ListByNamespace(ctx context.Context, db DBTX, namespaceID uuid.UUID, limit int) ([]domain.Resource, error) {
	rows, err := db.Query(ctx, `
		SELECT id, namespace_id, properties, created_at, updated_at
		FROM resources
		WHERE namespace_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, namespaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var out []domain.Resource
	for rows.Next() {
		var res domain.Resource
		var props []byte
		if err := rows.Scan(&res.ID, &res.NamespaceID, &props, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		if err := json.Unmarshal(props, &res.Properties); err != nil {
			return nil, fmt.Errorf("unmarshal properties: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanResource(row pgx.Row, ref string) (*domain.Resource, error) {
	var res domain.Resource
	var props []byte
	err := row.Scan(&res.ID, &res.NamespaceID, &props, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound("resource", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("scan resource: %w", err)
	}
	if err := json.Unmarshal(props, &res.Properties); err != nil {
		return nil, fmt.Errorf("unmarshal properties: %w", err)
	}
	return &res, nil
}
