package verify

import (
	"context"
	"os"
	"testing"

	"github.com/certen/slasher-proxy/internal/store"
)

// These tests run against a real Postgres instance named by
// SLASHER_TEST_DB, matching the store package's test convention.
var testClient *store.Client

func TestMain(m *testing.M) {
	dsn := os.Getenv("SLASHER_TEST_DB")
	if dsn == "" {
		os.Exit(0)
	}

	c, err := store.NewClient(dsn, store.Options{})
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	if err := c.MigrateUp(context.Background()); err != nil {
		panic("failed to migrate test database: " + err.Error())
	}
	testClient = c

	code := m.Run()
	testClient.Close()
	os.Exit(code)
}

func cleanup(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, table := range []string{"block_transactions", "commitments", "blocks", "block_state", "transactions", "node_stats"} {
		if _, err := testClient.DB().ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("cleanup failed on %s: %v", table, err)
		}
	}
}

// seedBlock creates a Block and its BlockTransaction links for txHashes in
// order, creating any missing Transaction rows as plain placeholders.
func seedBlock(t *testing.T, number uint64, nodeID string, txHashes [][]byte) {
	t.Helper()
	ctx := context.Background()
	err := store.WithinSession(ctx, testClient, func(ctx context.Context, s *store.Session) error {
		repos := store.NewRepositories(s.Tx())
		if err := repos.Blocks.Insert(ctx, &store.Block{Number: number, Hash: []byte("block" + string(rune(number))), NodeID: nodeID}); err != nil {
			return err
		}
		for i, h := range txHashes {
			if _, err := repos.Transactions.Get(ctx, h); err == store.ErrTransactionNotFound {
				if err := repos.Transactions.Insert(ctx, &store.Transaction{Hash: h, FromAddress: "dummy", Nonce: 0}); err != nil {
					return err
				}
			}
			if err := repos.Blocks.InsertTransactionMembership(ctx, number, h, i+1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seedBlock failed: %v", err)
	}
}

func seedCommitment(t *testing.T, node string, index uint64, txHash []byte, status store.CommitmentStatus) {
	t.Helper()
	ctx := context.Background()
	err := store.WithinSession(ctx, testClient, func(ctx context.Context, s *store.Session) error {
		repos := store.NewRepositories(s.Tx())
		if _, err := repos.Transactions.Get(ctx, txHash); err == store.ErrTransactionNotFound {
			if err := repos.Transactions.Insert(ctx, &store.Transaction{Hash: txHash, FromAddress: "dummy", Nonce: 0}); err != nil {
				return err
			}
		}
		return repos.Commitments.Insert(ctx, &store.Commitment{Node: node, TxHash: txHash, Index: index, Status: status})
	})
	if err != nil {
		t.Fatalf("seedCommitment failed: %v", err)
	}
}

func getCommitment(t *testing.T, node string, txHash []byte) *store.Commitment {
	t.Helper()
	c, err := store.NewRepositories(testClient).Commitments.Get(context.Background(), node, txHash)
	if err != nil {
		t.Fatalf("getCommitment failed: %v", err)
	}
	return c
}

func getBlockState(t *testing.T, number uint64) *store.BlockState {
	t.Helper()
	s, err := store.NewRepositories(testClient).BlockStates.Get(context.Background(), number)
	if err != nil {
		t.Fatalf("getBlockState failed: %v", err)
	}
	return s
}

func TestProcessBlockSunnyDay(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	cleanup(t)
	defer cleanup(t)

	node := "nodeA"
	txs := [][]byte{[]byte("abcdef"), []byte("123456"), []byte("deadbe")}
	seedBlock(t, 1, node, txs)
	seedCommitment(t, node, 1, txs[0], store.CommitmentPending)
	seedCommitment(t, node, 2, txs[1], store.CommitmentPending)
	seedCommitment(t, node, 3, txs[2], store.CommitmentPending)

	engine := New(testClient, nil)
	if err := engine.ProcessBlock(context.Background(), 1, node); err != nil {
		t.Fatalf("ProcessBlock failed: %v", err)
	}

	for _, h := range txs {
		if c := getCommitment(t, node, h); c.Status != store.CommitmentFulfilled {
			t.Errorf("expected FULFILLED, got %s", c.Status)
		}
	}
	state := getBlockState(t, 1)
	if state.OffsetIndex != 3 || state.ShiftIndex != 0 {
		t.Errorf("expected offset=3 shift=0, got offset=%d shift=%d", state.OffsetIndex, state.ShiftIndex)
	}
}

func TestProcessBlockEmptyBlock(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	cleanup(t)
	defer cleanup(t)

	node := "nodeX"
	seedBlock(t, 1, node, nil)

	engine := New(testClient, nil)
	if err := engine.ProcessBlock(context.Background(), 1, node); err != nil {
		t.Fatalf("ProcessBlock failed: %v", err)
	}

	state := getBlockState(t, 1)
	if state.OffsetIndex != 0 || state.ShiftIndex != 0 {
		t.Errorf("expected offset=0 shift=0, got offset=%d shift=%d", state.OffsetIndex, state.ShiftIndex)
	}
}

func TestProcessBlockNotFound(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	cleanup(t)
	defer cleanup(t)

	engine := New(testClient, nil)
	if err := engine.ProcessBlock(context.Background(), 999, "nodeZ"); err != nil {
		t.Fatalf("expected no error for missing block, got %v", err)
	}

	if _, err := store.NewRepositories(testClient).BlockStates.Get(context.Background(), 999); err != store.ErrBlockStateNotFound {
		t.Fatalf("expected no block state to be written, got %v", err)
	}
}

func TestProcessBlockPrevStateMissing(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	cleanup(t)
	defer cleanup(t)

	node := "nodeC"
	seedBlock(t, 2, node, [][]byte{[]byte("222222")})

	engine := New(testClient, nil)
	if err := engine.ProcessBlock(context.Background(), 2, node); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := store.NewRepositories(testClient).BlockStates.Get(context.Background(), 2); err != store.ErrBlockStateNotFound {
		t.Fatalf("expected no block state to be written, got %v", err)
	}
}

func TestProcessBlockExtraPendingStaysOpen(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	cleanup(t)
	defer cleanup(t)

	node := "nodeE"
	seedBlock(t, 1, node, [][]byte{[]byte("111111")})
	seedCommitment(t, node, 1, []byte("111111"), store.CommitmentPending)
	engine := New(testClient, nil)
	if err := engine.ProcessBlock(context.Background(), 1, node); err != nil {
		t.Fatalf("block 1 failed: %v", err)
	}

	seedBlock(t, 2, node, [][]byte{[]byte("222222"), []byte("333333")})
	seedCommitment(t, node, 2, []byte("222222"), store.CommitmentPending)
	seedCommitment(t, node, 3, []byte("333333"), store.CommitmentPending)
	seedCommitment(t, node, 4, []byte("444444"), store.CommitmentPending)
	if err := engine.ProcessBlock(context.Background(), 2, node); err != nil {
		t.Fatalf("block 2 failed: %v", err)
	}

	if c := getCommitment(t, node, []byte("222222")); c.Status != store.CommitmentFulfilled {
		t.Errorf("expected FULFILLED, got %s", c.Status)
	}
	if c := getCommitment(t, node, []byte("333333")); c.Status != store.CommitmentFulfilled {
		t.Errorf("expected FULFILLED, got %s", c.Status)
	}
	if c := getCommitment(t, node, []byte("444444")); c.Status != store.CommitmentPending {
		t.Errorf("expected commitment 4 to remain PENDING (outside window), got %s", c.Status)
	}

	state := getBlockState(t, 2)
	if state.OffsetIndex != 3 || state.ShiftIndex != 0 {
		t.Errorf("expected offset=3 shift=0, got offset=%d shift=%d", state.OffsetIndex, state.ShiftIndex)
	}
}

func TestProcessBlockOmissionThenReorderAcrossBlocks(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	cleanup(t)
	defer cleanup(t)

	node := "nodeF"
	engine := New(testClient, nil)

	// Block 1: both commitments fulfilled.
	seedBlock(t, 1, node, [][]byte{[]byte("aaaaaa"), []byte("bbbbbb")})
	seedCommitment(t, node, 1, []byte("aaaaaa"), store.CommitmentPending)
	seedCommitment(t, node, 2, []byte("bbbbbb"), store.CommitmentPending)
	if err := engine.ProcessBlock(context.Background(), 1, node); err != nil {
		t.Fatalf("block 1 failed: %v", err)
	}
	state1 := getBlockState(t, 1)
	if state1.OffsetIndex != 2 || state1.ShiftIndex != 0 {
		t.Fatalf("block 1: expected offset=2 shift=0, got offset=%d shift=%d", state1.OffsetIndex, state1.ShiftIndex)
	}

	// Block 2: commitment 3 (cccccc) is omitted, commitment 4 (dddddd) fulfilled.
	seedCommitment(t, node, 3, []byte("cccccc"), store.CommitmentPending)
	seedCommitment(t, node, 4, []byte("dddddd"), store.CommitmentPending)
	seedBlock(t, 2, node, [][]byte{[]byte("dddddd")})
	if err := engine.ProcessBlock(context.Background(), 2, node); err != nil {
		t.Fatalf("block 2 failed: %v", err)
	}
	if c := getCommitment(t, node, []byte("cccccc")); c.Status != store.CommitmentOmitted {
		t.Errorf("expected OMITTED, got %s", c.Status)
	}
	if c := getCommitment(t, node, []byte("dddddd")); c.Status != store.CommitmentFulfilled {
		t.Errorf("expected FULFILLED, got %s", c.Status)
	}
	state2 := getBlockState(t, 2)
	if state2.OffsetIndex != 3 || state2.ShiftIndex != 1 {
		t.Fatalf("block 2: expected offset=3 shift=1, got offset=%d shift=%d", state2.OffsetIndex, state2.ShiftIndex)
	}

	// Block 3: cccccc (previously omitted) reappears -> REORDERED; a fresh
	// unexpected transaction arrives; commitment 6 (ffffff) is swept OMITTED.
	seedCommitment(t, node, 5, []byte("eeeeee"), store.CommitmentPending)
	seedCommitment(t, node, 6, []byte("ffffff"), store.CommitmentPending)
	seedCommitment(t, node, 7, []byte("fffff2"), store.CommitmentPending)
	seedBlock(t, 3, node, [][]byte{[]byte("eeeeee"), []byte("cccccc"), []byte("ffffaq")})
	if err := engine.ProcessBlock(context.Background(), 3, node); err != nil {
		t.Fatalf("block 3 failed: %v", err)
	}
	if c := getCommitment(t, node, []byte("cccccc")); c.Status != store.CommitmentReordered {
		t.Errorf("expected REORDERED, got %s", c.Status)
	}
	if c := getCommitment(t, node, []byte("eeeeee")); c.Status != store.CommitmentFulfilled {
		t.Errorf("expected FULFILLED, got %s", c.Status)
	}
	if c := getCommitment(t, node, []byte("ffffaq")); c.Status != store.CommitmentUnexpected {
		t.Errorf("expected UNEXPECTED, got %s", c.Status)
	}
	if c := getCommitment(t, node, []byte("ffffff")); c.Status != store.CommitmentOmitted {
		t.Errorf("expected OMITTED, got %s", c.Status)
	}
	state3 := getBlockState(t, 3)
	if state3.OffsetIndex != 5 || state3.ShiftIndex != 1 {
		t.Errorf("block 3: expected offset=5 shift=1, got offset=%d shift=%d", state3.OffsetIndex, state3.ShiftIndex)
	}
}

func TestProcessBlockReplacementRevokesPriorCommitment(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	cleanup(t)
	defer cleanup(t)

	node := "nodeC"
	ctx := context.Background()

	oldTx := []byte("oldtx")
	newTx := []byte("newtx")
	err := store.WithinSession(ctx, testClient, func(ctx context.Context, s *store.Session) error {
		repos := store.NewRepositories(s.Tx())
		if err := repos.Transactions.Insert(ctx, &store.Transaction{Hash: oldTx, FromAddress: "dummy", Nonce: 0}); err != nil {
			return err
		}
		return repos.Transactions.Insert(ctx, &store.Transaction{Hash: newTx, FromAddress: "dummy", Nonce: 1, Replaces: oldTx})
	})
	if err != nil {
		t.Fatalf("seeding transactions failed: %v", err)
	}
	seedCommitment(t, node, 1, oldTx, store.CommitmentPending)

	err = store.WithinSession(ctx, testClient, func(ctx context.Context, s *store.Session) error {
		repos := store.NewRepositories(s.Tx())
		if err := repos.Blocks.Insert(ctx, &store.Block{Number: 1, Hash: []byte("blockreplace"), NodeID: node}); err != nil {
			return err
		}
		return repos.Blocks.InsertTransactionMembership(ctx, 1, newTx, 1)
	})
	if err != nil {
		t.Fatalf("seeding block failed: %v", err)
	}

	engine := New(testClient, nil)
	if err := engine.ProcessBlock(ctx, 1, node); err != nil {
		t.Fatalf("ProcessBlock failed: %v", err)
	}

	if c := getCommitment(t, node, oldTx); c.Status != store.CommitmentRevoked {
		t.Errorf("expected REVOKED, got %s", c.Status)
	}
	if c := getCommitment(t, node, newTx); c.Status != store.CommitmentUnexpected {
		t.Errorf("expected UNEXPECTED, got %s", c.Status)
	}

	tx, err := store.NewRepositories(testClient).Transactions.Get(ctx, newTx)
	if err != nil {
		t.Fatalf("Get transaction failed: %v", err)
	}
	if tx.Status != store.TransactionInBlock {
		t.Errorf("expected IN_BLOCK, got %s", tx.Status)
	}
}
