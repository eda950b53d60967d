// Package store is the persistent store: durable Transactions,
// Commitments, Blocks, BlockTransactions, BlockState, NodeStats and
// AuxiliaryData, plus scoped transactional sessions for the ingestor,
// verification engine, and relay.
package store

import "time"

// TransactionStatus is the tagged status of a Transaction row.
type TransactionStatus int

const (
	TransactionSubmitted TransactionStatus = iota
	TransactionInBlock
	TransactionError
)

func (s TransactionStatus) String() string {
	switch s {
	case TransactionSubmitted:
		return "SUBMITTED"
	case TransactionInBlock:
		return "IN_BLOCK"
	case TransactionError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// CommitmentStatus is the tagged status of a Commitment row. Exactly one
// terminal transition is permitted out of PENDING within the engine.
type CommitmentStatus int

const (
	CommitmentPending CommitmentStatus = iota
	CommitmentFulfilled
	CommitmentOmitted
	CommitmentReordered
	CommitmentRevoked
	CommitmentUnexpected
)

func (s CommitmentStatus) String() string {
	switch s {
	case CommitmentPending:
		return "PENDING"
	case CommitmentFulfilled:
		return "FULFILLED"
	case CommitmentOmitted:
		return "OMITTED"
	case CommitmentReordered:
		return "REORDERED"
	case CommitmentRevoked:
		return "REVOKED"
	case CommitmentUnexpected:
		return "UNEXPECTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether this status is terminal for the engine: OMITTED
// is terminal unless later rescued into REORDERED, so it is not counted as
// terminal here — callers that need "no more engine work will ever touch
// this row without an on-chain appearance" should treat OMITTED as
// provisionally terminal instead.
func (s CommitmentStatus) Terminal() bool {
	switch s {
	case CommitmentFulfilled, CommitmentReordered, CommitmentRevoked, CommitmentUnexpected:
		return true
	default:
		return false
	}
}

// Transaction is identified by Hash (32 raw bytes, not hex).
type Transaction struct {
	Hash        []byte
	Status      TransactionStatus
	FromAddress string
	Nonce       uint64
	Replaces    []byte // optional hash of a prior transaction this supersedes
	RawContent  []byte // the raw relayed RPC body, dashboard-only
	CreatedAt   time.Time
}

// Commitment is uniquely identified by (Node, TxHash).
type Commitment struct {
	Node        string
	TxHash      []byte
	Index       uint64
	Accumulator []byte // opaque; never verified by the engine
	Status      CommitmentStatus
	CreatedAt   time.Time
}

// Block's primary key is Number.
type Block struct {
	Number     uint64
	Hash       []byte
	NodeID     string
	RawContent []byte
	CreatedAt  time.Time
}

// BlockTransaction defines the ordered contents of a block.
type BlockTransaction struct {
	BlockNumber uint64
	TxHash      []byte
	Order       int // 1-based position within the block
}

// BlockState is the engine's durable per-block resume point, keyed on
// block number as a contiguous prefix of processed blocks.
type BlockState struct {
	BlockNumber       uint64
	OffsetIndex       uint64
	ShiftIndex        uint64
	AccumulatorState  []byte
}

// NodeStats are running per-node counters.
type NodeStats struct {
	Node              string
	TotalTransactions uint64
	ReorderedCount    uint64
	CensoredCount     uint64
	LastUpdated       time.Time
}

// AuxiliaryData is a generic string key/value store used for schema
// version and network name sentinels.
type AuxiliaryData struct {
	Key   string
	Value string
}

const (
	// SchemaVersionKey is the AuxiliaryData key holding the schema version.
	SchemaVersionKey = "dbVersion"
	// CurrentSchemaVersion is the version this repo's migrations produce.
	CurrentSchemaVersion = "20"
	// NetworkNameKey is the AuxiliaryData key holding the configured network name.
	NetworkNameKey = "network"
)
