package store

import (
	"context"
	"database/sql"
	"fmt"
)

// BlockStateRepository handles CRUD for BlockState rows, the per-block
// offset_index/shift_index/accumulator_state bookkeeping the verification
// engine carries forward from block to block.
type BlockStateRepository struct {
	q Querier
}

// NewBlockStateRepository creates a repository bound to q (a *Client or a
// Session's transaction).
func NewBlockStateRepository(q Querier) *BlockStateRepository {
	return &BlockStateRepository{q: q}
}

// Upsert writes (or overwrites) the BlockState row for s.BlockNumber.
func (r *BlockStateRepository) Upsert(ctx context.Context, s *BlockState) error {
	query := `
		INSERT INTO block_state (block_number, offset_index, shift_index, accumulator_state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (block_number) DO UPDATE SET
			offset_index = EXCLUDED.offset_index,
			shift_index = EXCLUDED.shift_index,
			accumulator_state = EXCLUDED.accumulator_state`
	_, err := r.q.ExecContext(ctx, query, s.BlockNumber, s.OffsetIndex, s.ShiftIndex, s.AccumulatorState)
	if err != nil {
		return fmt.Errorf("failed to upsert block state: %w", err)
	}
	return nil
}

// Get retrieves the BlockState for blockNumber.
func (r *BlockStateRepository) Get(ctx context.Context, blockNumber uint64) (*BlockState, error) {
	query := `
		SELECT block_number, offset_index, shift_index, accumulator_state
		FROM block_state WHERE block_number = $1`
	s := &BlockState{}
	err := r.q.QueryRowContext(ctx, query, blockNumber).Scan(&s.BlockNumber, &s.OffsetIndex, &s.ShiftIndex, &s.AccumulatorState)
	if err == sql.ErrNoRows {
		return nil, ErrBlockStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get block state: %w", err)
	}
	return s, nil
}

// Latest returns the BlockState for the highest known block_number, i.e.
// the state the engine should carry into processing the next block.
func (r *BlockStateRepository) Latest(ctx context.Context) (*BlockState, error) {
	query := `
		SELECT block_number, offset_index, shift_index, accumulator_state
		FROM block_state ORDER BY block_number DESC LIMIT 1`
	s := &BlockState{}
	err := r.q.QueryRowContext(ctx, query).Scan(&s.BlockNumber, &s.OffsetIndex, &s.ShiftIndex, &s.AccumulatorState)
	if err == sql.ErrNoRows {
		return nil, ErrBlockStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest block state: %w", err)
	}
	return s, nil
}
