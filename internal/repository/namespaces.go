package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/formwork/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type namespaceRepo struct{}

// NewNamespaceRepository returns a pgx-backed NamespaceRepository.
func NewNamespaceRepository() NamespaceRepository {
	return &namespaceRepo{}
}

func (r *namespaceRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Namespace, error) {
	row := db.QueryRow(ctx, `
		SELECT id, slug, name, COALESCE(success_message, ''), created_at, updated_at
		FROM namespaces WHERE id = $1`, id)
	return scanNamespace(row, id.String())
}

func (r *namespaceRepo) FindBySlug(ctx context.Context, db DBTX, slug string) (*domain.Namespace, error) {
	row := db.QueryRow(ctx, `
		SELECT id, slug, name, COALESCE(success_message, ''), created_at, updated_at
		FROM namespaces WHERE slug = $1`, slug)
	return scanNamespace(row, slug)
}

func (r *namespaceRepo) Create(ctx context.Context, db DBTX, ns *domain.Namespace) error {
	_, err := db.Exec(ctx, `
		INSERT INTO namespaces (id, slug, name, success_message, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`,
		ns.ID, ns.Slug, ns.Name, ns.SuccessMessage, ns.CreatedAt, ns.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert namespace: %w", err)
	}
	return nil
}

func (r *namespaceRepo) Update(ctx context.Context, db DBTX, ns *domain.Namespace) error {
	tag, err := db.Exec(ctx, `
		UPDATE namespaces SET name = $2, success_message = NULLIF($3, ''), updated_at = now()
		WHERE id = $1`,
		ns.ID, ns.Name, ns.SuccessMessage,
	)
	if err != nil {
		return fmt.Errorf("update namespace: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("namespace", ns.ID.String())
	}
	return nil
}

func (r *namespaceRepo) List(ctx context.Context, db DBTX) ([]domain.Namespace, error) {
	rows, err := db.Query(ctx, `
		SELECT id, slug, name, COALESCE(success_message, ''), created_at, updated_at
		FROM namespaces ORDER BY slug ASC`)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	defer rows.Close()

	var out []domain.Namespace
	for rows.Next() {
		var ns domain.Namespace
		if err := rows.Scan(&ns.ID, &ns.Slug, &ns.Name, &ns.SuccessMessage, &ns.CreatedAt, &ns.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan namespace: %w", err)
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

func scanNamespace(row pgx.Row, ref string) (*domain.Namespace, error) {
	var ns domain.Namespace
	err := row.Scan(&ns.ID, &ns.Slug, &ns.Name, &ns.SuccessMessage, &ns.CreatedAt, &ns.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound("namespace", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("scan namespace: %w", err)
	}
	return &ns, nil
}
