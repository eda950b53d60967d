package store

import (
	"context"
	"database/sql"
	"fmt"
)

// NodeStatsRepository handles the per-node running tallies surfaced on the
// dashboard.
type NodeStatsRepository struct {
	q Querier
}

// NewNodeStatsRepository creates a repository bound to q (a *Client or a
// Session's transaction).
func NewNodeStatsRepository(q Querier) *NodeStatsRepository {
	return &NodeStatsRepository{q: q}
}

// IncrementCounts adds the given deltas to node's running tallies, creating
// the row if it doesn't exist yet.
func (r *NodeStatsRepository) IncrementCounts(ctx context.Context, node string, totalDelta, reorderedDelta, censoredDelta uint64) error {
	query := `
		INSERT INTO node_stats (node, total_transactions, reordered_count, censored_count, last_updated)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (node) DO UPDATE SET
			total_transactions = node_stats.total_transactions + EXCLUDED.total_transactions,
			reordered_count = node_stats.reordered_count + EXCLUDED.reordered_count,
			censored_count = node_stats.censored_count + EXCLUDED.censored_count,
			last_updated = now()`
	_, err := r.q.ExecContext(ctx, query, node, totalDelta, reorderedDelta, censoredDelta)
	if err != nil {
		return fmt.Errorf("failed to increment node stats: %w", err)
	}
	return nil
}

// Get retrieves the NodeStats row for node.
func (r *NodeStatsRepository) Get(ctx context.Context, node string) (*NodeStats, error) {
	query := `
		SELECT node, total_transactions, reordered_count, censored_count, last_updated
		FROM node_stats WHERE node = $1`
	s := &NodeStats{}
	err := r.q.QueryRowContext(ctx, query, node).Scan(&s.Node, &s.TotalTransactions, &s.ReorderedCount, &s.CensoredCount, &s.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node stats: %w", err)
	}
	return s, nil
}

// List returns the NodeStats for every known node, for the dashboard.
func (r *NodeStatsRepository) List(ctx context.Context) ([]*NodeStats, error) {
	query := `
		SELECT node, total_transactions, reordered_count, censored_count, last_updated
		FROM node_stats ORDER BY node ASC`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list node stats: %w", err)
	}
	defer rows.Close()

	var out []*NodeStats
	for rows.Next() {
		s := &NodeStats{}
		if err := rows.Scan(&s.Node, &s.TotalTransactions, &s.ReorderedCount, &s.CensoredCount, &s.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan node stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
