// Package ingest implements the block ingestor: given a block number
// discovered by the event source, fetches the canonical block, upserts
// Block/Transaction/BlockTransaction rows in one scoped session. The
// caller hands the block number on to the verification engine once
// Ingest returns.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/certen/slasher-proxy/internal/ethrpc"
	"github.com/certen/slasher-proxy/internal/store"
)

// ErrMalformed reports a block that cannot be parsed into the data model.
// The block is skipped, not partially written.
var ErrMalformed = fmt.Errorf("ingest malformed")

// Ingestor upserts canonical blocks. It does not signal the verification
// engine itself; that is left to the caller.
type Ingestor struct {
	store       *store.Client
	rpc         *ethrpc.Client
	validatorID string
	logger      *log.Logger
}

// New constructs an Ingestor. validatorID is the configured node identity
// attributed to every ingested block — never the block's own `miner`
// field, which is meaningless across chains.
func New(storeClient *store.Client, rpc *ethrpc.Client, validatorID string, logger *log.Logger) *Ingestor {
	if logger == nil {
		logger = log.New(log.Writer(), "[Ingestor] ", log.LstdFlags)
	}
	return &Ingestor{store: storeClient, rpc: rpc, validatorID: validatorID, logger: logger}
}

// Ingest fetches block number, upserts it and its transactions in one
// session, and returns nil if the block was already present (idempotent
// no-op) or newly ingested. A malformed block is reported as ErrMalformed
// and never partially written.
func (i *Ingestor) Ingest(ctx context.Context, number uint64) error {
	block, err := i.rpc.GetBlock(ctx, number)
	if err != nil {
		return fmt.Errorf("failed to fetch block %d: %w", number, err)
	}

	rawContent, err := i.rpc.GetBlockRaw(ctx, number)
	if err != nil || !json.Valid(rawContent) {
		return fmt.Errorf("%w: failed to fetch raw body for block %d: %v", ErrMalformed, number, err)
	}

	return store.WithinSession(ctx, i.store, func(ctx context.Context, s *store.Session) error {
		repos := store.NewRepositories(s.Tx())

		if _, err := repos.Blocks.Get(ctx, number); err == nil {
			i.logger.Printf("block %d already ingested, skipping", number)
			return nil
		} else if err != store.ErrBlockNotFound {
			return fmt.Errorf("checking existing block: %w", err)
		}

		blockHash := block.Hash().Bytes()
		if err := repos.Blocks.Insert(ctx, &store.Block{
			Number:     number,
			Hash:       blockHash,
			NodeID:     i.validatorID,
			RawContent: rawContent,
		}); err != nil {
			return fmt.Errorf("inserting block: %w", err)
		}

		for order, tx := range block.Transactions() {
			from, err := senderAddress(tx)
			if err != nil {
				i.logger.Printf("block %d tx %s: unable to recover sender: %v", number, tx.Hash().Hex(), err)
				from = "unknown"
			}

			if err := repos.Transactions.Insert(ctx, &store.Transaction{
				Hash:        tx.Hash().Bytes(),
				Status:      store.TransactionInBlock,
				FromAddress: from,
				Nonce:       tx.Nonce(),
			}); err != nil {
				return fmt.Errorf("inserting transaction %s: %w", tx.Hash().Hex(), err)
			}

			if err := repos.Blocks.InsertTransactionMembership(ctx, number, tx.Hash().Bytes(), order+1); err != nil {
				return fmt.Errorf("inserting block membership for %s: %w", tx.Hash().Hex(), err)
			}
		}

		i.logger.Printf("ingested block %d (%d transactions)", number, len(block.Transactions()))
		return nil
	})
}

func senderAddress(tx *gethtypes.Transaction) (string, error) {
	signer := gethtypes.LatestSignerForChainID(tx.ChainId())
	addr, err := gethtypes.Sender(signer, tx)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}
