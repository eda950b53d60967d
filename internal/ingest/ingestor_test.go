package ingest

import (
	"math/big"
	"testing"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestSenderAddressRecoversSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey)

	chainID := big.NewInt(1)
	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    1,
		To:       &want,
		Value:    big.NewInt(0),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
	signer := gethtypes.LatestSignerForChainID(chainID)
	signedTx, err := gethtypes.SignTx(tx, signer, key)
	if err != nil {
		t.Fatalf("failed to sign transaction: %v", err)
	}

	got, err := senderAddress(signedTx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want.Hex() {
		t.Fatalf("got sender %s, want %s", got, want.Hex())
	}
}

func TestSenderAddressFailsForUnsignedTransaction(t *testing.T) {
	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    0,
		Value:    big.NewInt(0),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})

	if _, err := senderAddress(tx); err == nil {
		t.Fatal("expected an error recovering the sender of an unsigned transaction")
	}
}
