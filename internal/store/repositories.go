package store

// Repositories bundles every repository behind a single constructor, bound
// to a single Querier (a Session's transaction, or the Client directly for
// read-only dashboard access).
type Repositories struct {
	Transactions *TransactionRepository
	Commitments  *CommitmentRepository
	Blocks       *BlockRepository
	BlockStates  *BlockStateRepository
	NodeStats    *NodeStatsRepository
	Auxiliary    *AuxiliaryRepository
}

// NewRepositories constructs a Repositories bundle bound to q.
func NewRepositories(q Querier) *Repositories {
	return &Repositories{
		Transactions: NewTransactionRepository(q),
		Commitments:  NewCommitmentRepository(q),
		Blocks:       NewBlockRepository(q),
		BlockStates:  NewBlockStateRepository(q),
		NodeStats:    NewNodeStatsRepository(q),
		Auxiliary:    NewAuxiliaryRepository(q),
	}
}
