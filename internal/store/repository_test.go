package store

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Tests in this file exercise the repositories against a real Postgres
// instance named by SLASHER_TEST_DB. They are skipped when that variable
// is unset.
var testClient *Client

func TestMain(m *testing.M) {
	dsn := os.Getenv("SLASHER_TEST_DB")
	if dsn == "" {
		os.Exit(0)
	}

	c, err := NewClient(dsn, Options{})
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

func TestAuxiliaryRepositoryGetSet(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	ctx := context.Background()
	repo := NewAuxiliaryRepository(testClient)

	if _, err := repo.Get(ctx, "nonexistent-key"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.Set(ctx, "dbVersion", "20"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, err := repo.Get(ctx, "dbVersion")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "20" {
		t.Errorf("expected value 20, got %s", value)
	}

	_, _ = testClient.db.ExecContext(ctx, "DELETE FROM auxiliary_data WHERE key = $1", "dbVersion")
}

func TestCheckSentinelsSeedsFreshDatabase(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	ctx := context.Background()
	_, _ = testClient.db.ExecContext(ctx, "DELETE FROM auxiliary_data")

	if err := testClient.CheckSentinels(ctx, "devnet"); err != nil {
		t.Fatalf("expected fresh database to seed sentinels, got %v", err)
	}
	if err := testClient.CheckSentinels(ctx, "devnet"); err != nil {
		t.Fatalf("expected matching network to pass, got %v", err)
	}
	if err := testClient.CheckSentinels(ctx, "mainnet"); err == nil {
		t.Fatal("expected network mismatch to fail")
	}

	_, _ = testClient.db.ExecContext(ctx, "DELETE FROM auxiliary_data")
}

func TestTransactionRepositoryInsertGet(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	ctx := context.Background()
	repo := NewTransactionRepository(testClient)

	hash := []byte{0x01, 0x02, 0x03}
	tx := &Transaction{Hash: hash, Status: TransactionSubmitted, FromAddress: "0xabc", Nonce: 1}
	if err := repo.Insert(ctx, tx); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := repo.Get(ctx, hash)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.FromAddress != "0xabc" || got.Nonce != 1 {
		t.Errorf("unexpected transaction: %+v", got)
	}

	if err := repo.UpdateStatus(ctx, hash, TransactionInBlock); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, err = repo.Get(ctx, hash)
	if err != nil {
		t.Fatalf("Get after update failed: %v", err)
	}
	if got.Status != TransactionInBlock {
		t.Errorf("expected status %s, got %s", TransactionInBlock, got.Status)
	}

	_, _ = testClient.db.ExecContext(ctx, "DELETE FROM transactions WHERE hash = $1", hash)
}

func TestCommitmentRepositoryIndexRange(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	ctx := context.Background()
	txRepo := NewTransactionRepository(testClient)
	repo := NewCommitmentRepository(testClient)

	node := "validator-range-test"
	for i := uint64(0); i < 5; i++ {
		hash := []byte{byte(i), 0xAA}
		if err := txRepo.Insert(ctx, &Transaction{Hash: hash, FromAddress: "0xabc", Nonce: i}); err != nil {
			t.Fatalf("seed transaction failed: %v", err)
		}
		if err := repo.Insert(ctx, &Commitment{Node: node, TxHash: hash, Index: i}); err != nil {
			t.Fatalf("Insert commitment failed: %v", err)
		}
	}

	window, err := repo.ListByIndexRange(ctx, node, 1, 4)
	if err != nil {
		t.Fatalf("ListByIndexRange failed: %v", err)
	}
	if len(window) != 3 {
		t.Fatalf("expected 3 commitments in [1,4), got %d", len(window))
	}
	for i, c := range window {
		if c.Index != uint64(i)+1 {
			t.Errorf("expected index %d, got %d", i+1, c.Index)
		}
	}

	maxIdx, ok, err := repo.MaxIndex(ctx, node)
	if err != nil {
		t.Fatalf("MaxIndex failed: %v", err)
	}
	if !ok || maxIdx != 4 {
		t.Errorf("expected max index 4, got %d (ok=%v)", maxIdx, ok)
	}

	_, _ = testClient.db.ExecContext(ctx, "DELETE FROM commitments WHERE node = $1", node)
	_, _ = testClient.db.ExecContext(ctx, "DELETE FROM transactions WHERE from_address = $1", "0xabc")
}

func TestWithinSessionRollsBackOnError(t *testing.T) {
	if testClient == nil {
		t.Skip("test database not configured")
	}
	ctx := context.Background()
	hash := []byte{0xFF, 0xEE}

	sentinelErr := sql.ErrNoRows
	err := WithinSession(ctx, testClient, func(ctx context.Context, s *Session) error {
		repo := NewTransactionRepository(s.Tx())
		if err := repo.Insert(ctx, &Transaction{Hash: hash, FromAddress: "0xdef", Nonce: 9}); err != nil {
			return err
		}
		return sentinelErr
	})
	if err != sentinelErr {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	_, err = NewTransactionRepository(testClient).Get(ctx, hash)
	if err != ErrTransactionNotFound {
		t.Fatalf("expected rollback to discard the insert, got %v", err)
	}
}
