package store

import "errors"

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrBlockNotFound is returned when a Block row is missing.
	ErrBlockNotFound = errors.New("block not found")

	// ErrBlockStateNotFound is returned when a BlockState row is missing.
	ErrBlockStateNotFound = errors.New("block state not found")

	// ErrTransactionNotFound is returned when a Transaction row is missing.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrCommitmentNotFound is returned when a Commitment row is missing.
	ErrCommitmentNotFound = errors.New("commitment not found")

	// ErrSchemaMismatch is returned when the stored schema version does
	// not match CurrentSchemaVersion and no migration path is implemented.
	ErrSchemaMismatch = errors.New("schema version mismatch")

	// ErrNetworkMismatch is returned when the stored network name sentinel
	// does not match the configured network name.
	ErrNetworkMismatch = errors.New("network name mismatch")
)
