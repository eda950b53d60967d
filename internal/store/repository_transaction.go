package store

import (
	"context"
	"database/sql"
	"fmt"
)

// TransactionRepository handles CRUD for Transaction rows.
type TransactionRepository struct {
	q Querier
}

// NewTransactionRepository creates a repository bound to q (a *Client or a
// Session's transaction).
func NewTransactionRepository(q Querier) *TransactionRepository {
	return &TransactionRepository{q: q}
}

// Insert creates a new Transaction row.
func (r *TransactionRepository) Insert(ctx context.Context, t *Transaction) error {
	query := `
		INSERT INTO transactions (hash, status, from_address, nonce, replaces, raw_content)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hash) DO NOTHING`
	_, err := r.q.ExecContext(ctx, query, t.Hash, int(t.Status), t.FromAddress, t.Nonce, t.Replaces, t.RawContent)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// Get retrieves a Transaction by hash.
func (r *TransactionRepository) Get(ctx context.Context, hash []byte) (*Transaction, error) {
	query := `
		SELECT hash, status, from_address, nonce, replaces, raw_content, created_at
		FROM transactions WHERE hash = $1`
	t := &Transaction{}
	var status int
	err := r.q.QueryRowContext(ctx, query, hash).Scan(
		&t.Hash, &status, &t.FromAddress, &t.Nonce, &t.Replaces, &t.RawContent, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	t.Status = TransactionStatus(status)
	return t, nil
}

// UpdateStatus sets a Transaction's status, e.g. SUBMITTED -> IN_BLOCK once
// the verification engine observes it on chain.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, hash []byte, status TransactionStatus) error {
	_, err := r.q.ExecContext(ctx, `UPDATE transactions SET status = $1 WHERE hash = $2`, int(status), hash)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	return nil
}

// List returns up to limit Transaction rows, most recent first, for the
// dashboard read surface.
func (r *TransactionRepository) List(ctx context.Context, limit int) ([]*Transaction, error) {
	query := `
		SELECT hash, status, from_address, nonce, replaces, raw_content, created_at
		FROM transactions ORDER BY created_at DESC LIMIT $1`
	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		t := &Transaction{}
		var status int
		if err := rows.Scan(&t.Hash, &status, &t.FromAddress, &t.Nonce, &t.Replaces, &t.RawContent, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Status = TransactionStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}
