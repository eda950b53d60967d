package commitment

import "testing"

func TestCanonicalizeJSONSortsKeys(t *testing.T) {
	got, err := CanonicalizeJSON([]byte(`{"b":1,"a":2}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != `{"a":2,"b":1}` {
		t.Fatalf("got %s", got)
	}
}

func TestHashCanonicalIsOrderIndependent(t *testing.T) {
	a, err := HashCanonical(map[string]interface{}{"tx_hash": "0x1", "index": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := HashCanonical(map[string]interface{}{"index": 2, "tx_hash": "0x1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("expected equal hashes for reordered keys, got %s vs %s", a, b)
	}
}

func TestHashCanonicalDiffersOnValueChange(t *testing.T) {
	a, _ := HashCanonical(map[string]interface{}{"index": 1})
	b, _ := HashCanonical(map[string]interface{}{"index": 2})
	if a == b {
		t.Fatal("expected different hashes for different values")
	}
}
