package relay

import (
	"bytes"
	"testing"
)

func TestHexToBytes(t *testing.T) {
	got, err := hexToBytes("0xdeadbeef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Fatalf("got %x", got)
	}

	if _, err := hexToBytes("0xzz"); err == nil {
		t.Fatal("expected an error for malformed hex")
	}
}

func TestHexToBytesWithoutPrefix(t *testing.T) {
	got, err := hexToBytes("deadbeef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Fatalf("got %x", got)
	}
}

func TestDecodeSenderAndNonceFallsBackOnMalformedInput(t *testing.T) {
	from, nonce := decodeSenderAndNonce("0xnotarealtransaction")
	if from != "unknown" {
		t.Fatalf("expected unknown sender, got %q", from)
	}
	if nonce != 0 {
		t.Fatalf("expected nonce 0, got %d", nonce)
	}
}
