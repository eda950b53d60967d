// Package verify implements the verification engine: the per-block,
// per-node commitment reconciliation state machine that is the core of
// this service. See ProcessBlock for the Step 0-7 algorithm.
package verify

import (
	"context"
	"fmt"
	"log"

	"github.com/certen/slasher-proxy/internal/store"
)

// Engine reconciles a node's issued commitments against the transactions
// that actually appeared on-chain, block by block.
type Engine struct {
	store  *store.Client
	logger *log.Logger
}

// New constructs an Engine bound to storeClient.
func New(storeClient *store.Client, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[Engine] ", log.LstdFlags)
	}
	return &Engine{store: storeClient, logger: logger}
}

// ProcessBlock runs Steps 0-7 for block number against nodeID's
// commitments, in one scoped session. A non-retryable precondition
// failure (BLOCK_NOT_FOUND, PREV_STATE_MISSING) is logged and returns nil
// — it requires operator intervention or redelivery, not a retry of this
// call. Any other error rolls back the entire session; BlockState(number)
// is not written and the caller may retry.
func (e *Engine) ProcessBlock(ctx context.Context, number uint64, nodeID string) error {
	return store.WithinSession(ctx, e.store, func(ctx context.Context, s *store.Session) error {
		repos := store.NewRepositories(s.Tx())

		// Step 0 — preconditions.
		if _, err := repos.Blocks.Get(ctx, number); err != nil {
			if err == store.ErrBlockNotFound {
				e.logger.Printf("BLOCK_NOT_FOUND: block %d", number)
				return nil
			}
			return fmt.Errorf("loading block %d: %w", number, err)
		}

		// Defend against duplicate delivery: if this block's state was
		// already written, this is a redelivery — skip without mutation.
		if _, err := repos.BlockStates.Get(ctx, number); err == nil {
			e.logger.Printf("block %d already processed, skipping", number)
			return nil
		} else if err != store.ErrBlockStateNotFound {
			return fmt.Errorf("checking existing block state %d: %w", number, err)
		}

		var prevOffset, prevShift uint64
		if number > 1 {
			prevState, err := repos.BlockStates.Get(ctx, number-1)
			if err != nil {
				if err == store.ErrBlockStateNotFound {
					e.logger.Printf("PREV_STATE_MISSING: block %d", number)
					return nil
				}
				return fmt.Errorf("loading block state %d: %w", number-1, err)
			}
			prevOffset, prevShift = prevState.OffsetIndex, prevState.ShiftIndex
		}

		// Step 1 — read state.
		startRange := prevOffset + 1
		var reorderedTxs uint64
		processedIndexes := make(map[uint64]bool)
		var currentOrder uint64

		blockTxs, err := repos.Blocks.TransactionsForBlock(ctx, number)
		if err != nil {
			return fmt.Errorf("loading block transactions for %d: %w", number, err)
		}

		// Step 2 — iterate the block's transactions in order ascending.
		for _, bt := range blockTxs {
			if err := repos.Transactions.UpdateStatus(ctx, bt.TxHash, store.TransactionInBlock); err != nil {
				return fmt.Errorf("updating transaction status: %w", err)
			}

			tx, err := repos.Transactions.Get(ctx, bt.TxHash)
			if err != nil {
				return fmt.Errorf("loading transaction: %w", err)
			}

			// 2b — replacement rule.
			if len(tx.Replaces) > 0 {
				replaced, err := repos.Commitments.Get(ctx, nodeID, tx.Replaces)
				if err != nil && err != store.ErrCommitmentNotFound {
					return fmt.Errorf("loading replaced commitment: %w", err)
				}
				if err == nil && (replaced.Status == store.CommitmentPending || replaced.Status == store.CommitmentOmitted) {
					if err := repos.Commitments.UpdateStatus(ctx, nodeID, tx.Replaces, store.CommitmentRevoked); err != nil {
						return fmt.Errorf("revoking replaced commitment: %w", err)
					}
				}
			}

			// 2c — reconcile against the commitment for this tx.
			commitment, err := repos.Commitments.Get(ctx, nodeID, bt.TxHash)
			switch {
			case err == store.ErrCommitmentNotFound:
				if err := repos.Commitments.Insert(ctx, &store.Commitment{
					Node:   nodeID,
					TxHash: bt.TxHash,
					Index:  currentOrder + 1,
					Status: store.CommitmentUnexpected,
				}); err != nil {
					return fmt.Errorf("inserting unexpected commitment: %w", err)
				}
				currentOrder++

			case err != nil:
				return fmt.Errorf("loading commitment: %w", err)

			case commitment.Status == store.CommitmentOmitted:
				if err := repos.Commitments.UpdateStatus(ctx, nodeID, bt.TxHash, store.CommitmentReordered); err != nil {
					return fmt.Errorf("reordering commitment: %w", err)
				}
				reorderedTxs++

			case commitment.Status == store.CommitmentPending:
				if err := repos.Commitments.UpdateStatus(ctx, nodeID, bt.TxHash, store.CommitmentFulfilled); err != nil {
					return fmt.Errorf("fulfilling commitment: %w", err)
				}
				processedIndexes[commitment.Index] = true

			default:
				e.logger.Printf("commitment %x for node %s already processed (status=%s)", bt.TxHash, nodeID, commitment.Status)
			}
		}

		// Step 3 — expected window.
		totalNewTxs := uint64(len(blockTxs)) - reorderedTxs
		endRange := startRange + totalNewTxs + prevShift

		// Step 4 — out-of-window fulfillments.
		var outOfRangeTxs uint64
		for index := range processedIndexes {
			if index < startRange || index >= endRange {
				outOfRangeTxs++
			}
		}

		// Step 5 — sweep omissions.
		pending, err := repos.Commitments.ListByIndexRange(ctx, nodeID, startRange, endRange)
		if err != nil {
			return fmt.Errorf("listing commitments in window: %w", err)
		}
		var swept uint64
		for _, c := range pending {
			if swept >= totalNewTxs {
				break
			}
			if c.Status != store.CommitmentPending {
				continue
			}
			if err := repos.Commitments.UpdateStatus(ctx, nodeID, c.TxHash, store.CommitmentOmitted); err != nil {
				return fmt.Errorf("sweeping omitted commitment: %w", err)
			}
			swept++
		}

		// Step 6 — advance state.
		if err := repos.BlockStates.Upsert(ctx, &store.BlockState{
			BlockNumber: number,
			OffsetIndex: prevOffset + totalNewTxs,
			ShiftIndex:  prevShift + outOfRangeTxs,
		}); err != nil {
			return fmt.Errorf("writing block state: %w", err)
		}

		// Step 7 — statistics. total_transactions is incremented by the
		// relay when a commitment is issued, not here.
		if err := repos.NodeStats.IncrementCounts(ctx, nodeID, 0, reorderedTxs, swept); err != nil {
			return fmt.Errorf("updating node stats: %w", err)
		}

		e.logger.Printf("processed block %d for node %s: offset=%d shift=%d reordered=%d omitted=%d",
			number, nodeID, prevOffset+totalNewTxs, prevShift+outOfRangeTxs, reorderedTxs, swept)
		return nil
	})
}
