package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AuxiliaryRepository manages the auxiliary_data key/value table used for
// the schema-version and network-name sentinels.
type AuxiliaryRepository struct {
	q Querier
}

// NewAuxiliaryRepository creates a repository bound to q (a *Client or a
// Session's transaction).
func NewAuxiliaryRepository(q Querier) *AuxiliaryRepository {
	return &AuxiliaryRepository{q: q}
}

// Get returns the value stored under key, or ErrNotFound if it is unset.
func (r *AuxiliaryRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.q.QueryRowContext(ctx, `SELECT value FROM auxiliary_data WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get auxiliary data %q: %w", key, err)
	}
	return value, nil
}

// Set upserts key to value.
func (r *AuxiliaryRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO auxiliary_data (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := r.q.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set auxiliary data %q: %w", key, err)
	}
	return nil
}
