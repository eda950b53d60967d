package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Session is a scoped transactional session: begin/commit/rollback with
// guaranteed release on every exit path. The ingestor, verification engine,
// and relay each perform their mutations inside exactly one session.
type Session struct {
	tx *sql.Tx
}

// Tx returns the underlying *sql.Tx for repository calls.
func (s *Session) Tx() *sql.Tx { return s.tx }

// WithinSession opens a transaction, runs fn, and commits on success or
// rolls back on error or panic. The rollback/commit always runs exactly
// once regardless of how fn exits.
func WithinSession(ctx context.Context, c *Client, fn func(ctx context.Context, s *Session) error) (err error) {
	tx, beginErr := c.db.BeginTx(ctx, nil)
	if beginErr != nil {
		return fmt.Errorf("failed to begin session: %w", beginErr)
	}

	session := &Session{tx: tx}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, session)
	return err
}
