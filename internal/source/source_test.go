package source

import "testing"

func TestParseBlockNumberHex(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uint64
		wantErr bool
	}{
		{"zero", "0x0", 0, false},
		{"typical", "0x1b4", 436, false},
		{"no prefix", "1b4", 436, false},
		{"malformed", "0xzz", 0, true},
		{"empty", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBlockNumberHex(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseBlockNumberHex(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("parseBlockNumberHex(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestSelectRejectsBothSourcesConfigured(t *testing.T) {
	_, err := Select(Config{Channel: "blocks", WebsocketURL: "ws://example.invalid"})
	if err == nil {
		t.Fatal("expected an error when both Channel and WebsocketURL are set")
	}
}

func TestSelectPicksPostgresListener(t *testing.T) {
	src, err := Select(Config{DatabaseURL: "postgres://x", Channel: "blocks"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := src.(*postgresListener); !ok {
		t.Fatalf("expected *postgresListener, got %T", src)
	}
}

func TestSelectPicksWebSocketSubscriber(t *testing.T) {
	src, err := Select(Config{WebsocketURL: "ws://example.invalid"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := src.(*websocketSubscriber); !ok {
		t.Fatalf("expected *websocketSubscriber, got %T", src)
	}
}

func TestSelectFallsBackToNoneSource(t *testing.T) {
	src, err := Select(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := src.(*noneSource); !ok {
		t.Fatalf("expected *noneSource, got %T", src)
	}
}
