package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CommitmentRepository handles CRUD and range queries for Commitment rows,
// the core bookkeeping table the verification engine reads and mutates on
// every block.
type CommitmentRepository struct {
	q Querier
}

// NewCommitmentRepository creates a repository bound to q (a *Client or a
// Session's transaction).
func NewCommitmentRepository(q Querier) *CommitmentRepository {
	return &CommitmentRepository{q: q}
}

// Insert creates a new Commitment row with c.Status. An existing row for
// the same (node, tx_hash) is left unchanged.
func (r *CommitmentRepository) Insert(ctx context.Context, c *Commitment) error {
	query := `
		INSERT INTO commitments (node, tx_hash, index, accumulator, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (node, tx_hash) DO NOTHING`
	_, err := r.q.ExecContext(ctx, query, c.Node, c.TxHash, c.Index, c.Accumulator, int(c.Status))
	if err != nil {
		return fmt.Errorf("failed to insert commitment: %w", err)
	}
	return nil
}

// Get retrieves a single Commitment by node and transaction hash.
func (r *CommitmentRepository) Get(ctx context.Context, node string, txHash []byte) (*Commitment, error) {
	query := `
		SELECT node, tx_hash, index, accumulator, status, created_at
		FROM commitments WHERE node = $1 AND tx_hash = $2`
	c := &Commitment{}
	var status int
	err := r.q.QueryRowContext(ctx, query, node, txHash).Scan(
		&c.Node, &c.TxHash, &c.Index, &c.Accumulator, &status, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrCommitmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get commitment: %w", err)
	}
	c.Status = CommitmentStatus(status)
	return c, nil
}

// UpdateStatus sets a Commitment's status.
func (r *CommitmentRepository) UpdateStatus(ctx context.Context, node string, txHash []byte, status CommitmentStatus) error {
	query := `UPDATE commitments SET status = $1 WHERE node = $2 AND tx_hash = $3`
	if _, err := r.q.ExecContext(ctx, query, int(status), node, txHash); err != nil {
		return fmt.Errorf("failed to update commitment status: %w", err)
	}
	return nil
}

// ListByIndexRange returns commitments for node with index in
// [startIndex, endIndex), ordered by index ascending. This is the window
// query behind the Step 5 omission sweep of the verification algorithm.
func (r *CommitmentRepository) ListByIndexRange(ctx context.Context, node string, startIndex, endIndex uint64) ([]*Commitment, error) {
	query := `
		SELECT node, tx_hash, index, accumulator, status, created_at
		FROM commitments
		WHERE node = $1 AND index >= $2 AND index < $3
		ORDER BY index ASC`
	rows, err := r.q.QueryContext(ctx, query, node, startIndex, endIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to list commitments by index range: %w", err)
	}
	defer rows.Close()
	return scanCommitments(rows)
}

// MaxIndex returns the highest commitment index recorded for node, and
// whether any commitment exists for it at all.
func (r *CommitmentRepository) MaxIndex(ctx context.Context, node string) (uint64, bool, error) {
	var max sql.NullInt64
	err := r.q.QueryRowContext(ctx, `SELECT MAX(index) FROM commitments WHERE node = $1`, node).Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get max commitment index: %w", err)
	}
	if !max.Valid {
		return 0, false, nil
	}
	return uint64(max.Int64), true, nil
}

// List returns up to limit Commitment rows across every node, most recent
// first, for the dashboard read surface.
func (r *CommitmentRepository) List(ctx context.Context, limit int) ([]*Commitment, error) {
	query := `
		SELECT node, tx_hash, index, accumulator, status, created_at
		FROM commitments ORDER BY created_at DESC LIMIT $1`
	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list commitments: %w", err)
	}
	defer rows.Close()
	return scanCommitments(rows)
}

func scanCommitments(rows *sql.Rows) ([]*Commitment, error) {
	var out []*Commitment
	for rows.Next() {
		c := &Commitment{}
		var status int
		if err := rows.Scan(&c.Node, &c.TxHash, &c.Index, &c.Accumulator, &status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan commitment: %w", err)
		}
		c.Status = CommitmentStatus(status)
		out = append(out, c)
	}
	return out, rows.Err()
}
