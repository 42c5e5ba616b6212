package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresModelStore implements ModelRepository on the proc_def table.
// Rows with type 'dmn' hold DMN documents in the bpmn column.
type PostgresModelStore struct {
	db *sql.DB
}

// NewPostgresModelStore creates a new PostgreSQL-backed model store
func NewPostgresModelStore(db *sql.DB) *PostgresModelStore {
	return &PostgresModelStore{db: db}
}

// ListModels returns the owner's non-deleted DMN documents ordered by creation time.
// Any database failure is reported as ErrStoreUnavailable.
func (s *PostgresModelStore) ListModels(ctx context.Context, owner, tenant string) ([]StoredModel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, bpmn, type, owner, tenant_id, isdeleted, created_at, updated_at
		FROM proc_def
		WHERE owner = $1 AND tenant_id = $2 AND type = $3 AND isdeleted = false
		ORDER BY created_at ASC, id ASC
	`, owner, tenant, ModelTypeDMN)
	if err != nil {
		return nil, unavailable("list", owner, tenant, err)
	}
	defer rows.Close()

	var models []StoredModel
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, unavailable("list", owner, tenant, err)
		}
		models = append(models, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable("list", owner, tenant, err)
	}

	return models, nil
}

// Add inserts a new model
func (s *PostgresModelStore) Add(ctx context.Context, m *StoredModel) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM proc_def WHERE id = $1 AND tenant_id = $2 AND isdeleted = false)
	`, m.ID, m.Tenant).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check model existence: %w", err)
	}
	if exists {
		return fmt.Errorf("model %s: %w", m.ID, ErrModelExists)
	}

	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO proc_def (id, tenant_id, name, bpmn, type, owner, isdeleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7, $8)
		ON CONFLICT (id, tenant_id) DO UPDATE
		SET name = EXCLUDED.name, bpmn = EXCLUDED.bpmn, type = EXCLUDED.type, owner = EXCLUDED.owner,
		    isdeleted = false, created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at
	`, m.ID, m.Tenant, m.Name, m.XML, m.Type, m.Owner, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert model: %w", err)
	}

	return nil
}

// Get retrieves a non-deleted model by ID
func (s *PostgresModelStore) Get(ctx context.Context, tenant, id string) (*StoredModel, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, bpmn, type, owner, tenant_id, isdeleted, created_at, updated_at
		FROM proc_def
		WHERE id = $1 AND tenant_id = $2 AND isdeleted = false
	`, id, tenant)

	m, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model %s: %w", id, ErrModelNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	return m, nil
}

// Update modifies an existing model
func (s *PostgresModelStore) Update(ctx context.Context, m *StoredModel) error {
	m.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx, `
		UPDATE proc_def
		SET name = $1, bpmn = $2, type = $3, owner = $4, updated_at = $5
		WHERE id = $6 AND tenant_id = $7 AND isdeleted = false
	`, m.Name, m.XML, m.Type, m.Owner, m.UpdatedAt, m.ID, m.Tenant)
	if err != nil {
		return fmt.Errorf("failed to update model: %w", err)
	}

	return expectOneRow(result, m.ID)
}

// Delete soft-deletes a model
func (s *PostgresModelStore) Delete(ctx context.Context, tenant, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE proc_def
		SET isdeleted = true, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND isdeleted = false
	`, id, tenant)
	if err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}

	return expectOneRow(result, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModel(row rowScanner) (*StoredModel, error) {
	var m StoredModel
	if err := row.Scan(&m.ID, &m.Name, &m.XML, &m.Type, &m.Owner, &m.Tenant,
		&m.Deleted, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func expectOneRow(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("model %s: %w", id, ErrModelNotFound)
	}
	return nil
}
