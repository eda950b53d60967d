package store

import (
	"context"
	"database/sql"
	"fmt"
)

// BlockRepository handles CRUD for Block rows and their transaction
// membership (block_transactions).
type BlockRepository struct {
	q Querier
}

// NewBlockRepository creates a repository bound to q (a *Client or a
// Session's transaction).
func NewBlockRepository(q Querier) *BlockRepository {
	return &BlockRepository{q: q}
}

// Insert creates a new Block row.
func (r *BlockRepository) Insert(ctx context.Context, b *Block) error {
	query := `
		INSERT INTO blocks (number, hash, node_id, raw_content)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (number) DO NOTHING`
	_, err := r.q.ExecContext(ctx, query, b.Number, b.Hash, b.NodeID, b.RawContent)
	if err != nil {
		return fmt.Errorf("failed to insert block: %w", err)
	}
	return nil
}

// Get retrieves a Block by number.
func (r *BlockRepository) Get(ctx context.Context, number uint64) (*Block, error) {
	query := `
		SELECT number, hash, node_id, raw_content, created_at
		FROM blocks WHERE number = $1`
	b := &Block{}
	err := r.q.QueryRowContext(ctx, query, number).Scan(&b.Number, &b.Hash, &b.NodeID, &b.RawContent, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get block: %w", err)
	}
	return b, nil
}

// LatestNumber returns the highest known block number, and whether any
// block has been ingested at all.
func (r *BlockRepository) LatestNumber(ctx context.Context) (uint64, bool, error) {
	var max sql.NullInt64
	err := r.q.QueryRowContext(ctx, `SELECT MAX(number) FROM blocks`).Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get latest block number: %w", err)
	}
	if !max.Valid {
		return 0, false, nil
	}
	return uint64(max.Int64), true, nil
}

// InsertTransactionMembership records that txHash appears in block number
// at the given 1-based order.
func (r *BlockRepository) InsertTransactionMembership(ctx context.Context, blockNumber uint64, txHash []byte, order int) error {
	query := `
		INSERT INTO block_transactions (block_number, tx_hash, "order")
		VALUES ($1, $2, $3)
		ON CONFLICT (block_number, tx_hash) DO NOTHING`
	_, err := r.q.ExecContext(ctx, query, blockNumber, txHash, order)
	if err != nil {
		return fmt.Errorf("failed to insert block transaction membership: %w", err)
	}
	return nil
}

// TransactionsForBlock returns the (tx_hash, order) pairs of a block's
// membership, ordered by position.
func (r *BlockRepository) TransactionsForBlock(ctx context.Context, blockNumber uint64) ([]*BlockTransaction, error) {
	query := `
		SELECT block_number, tx_hash, "order"
		FROM block_transactions WHERE block_number = $1 ORDER BY "order" ASC`
	rows, err := r.q.QueryContext(ctx, query, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list block transactions: %w", err)
	}
	defer rows.Close()

	var out []*BlockTransaction
	for rows.Next() {
		bt := &BlockTransaction{}
		if err := rows.Scan(&bt.BlockNumber, &bt.TxHash, &bt.Order); err != nil {
			return nil, fmt.Errorf("failed to scan block transaction: %w", err)
		}
		out = append(out, bt)
	}
	return out, rows.Err()
}

// List returns up to limit Block rows, most recent first, for the
// dashboard read surface.
func (r *BlockRepository) List(ctx context.Context, limit int) ([]*Block, error) {
	query := `
		SELECT number, hash, node_id, raw_content, created_at
		FROM blocks ORDER BY number DESC LIMIT $1`
	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	defer rows.Close()

	var out []*Block
	for rows.Next() {
		b := &Block{}
		if err := rows.Scan(&b.Number, &b.Hash, &b.NodeID, &b.RawContent, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
