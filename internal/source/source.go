// Package source implements the block event source: the process selects
// exactly one of a database-channel listener, a WebSocket subscriber, or
// no source at all, and feeds discovered block numbers to the ingestor.
package source

import (
	"context"
	"fmt"
	"log"
	"time"
)

// OnBlock is called, in delivery order, whenever a block number is
// observed. Implementations MUST NOT assume strict ordering or
// deduplication — the verification engine defends against both.
type OnBlock func(blockNumber uint64)

// Source is satisfied by each of the three event-source implementations.
type Source interface {
	// Run blocks until ctx is cancelled or an unrecoverable error occurs.
	Run(ctx context.Context, onBlock OnBlock) error
}

// Config names the parameters needed to construct whichever Source is
// configured. Exactly one of Channel or WebsocketURL may be set.
type Config struct {
	DatabaseURL        string
	Channel            string
	WebsocketURL       string
	ReconnectBackoff   time.Duration
	Logger             *log.Logger
}

// Select chooses the configured Source. Configuring both a database
// channel and a WebSocket URL is a fatal configuration error.
func Select(cfg Config) (Source, error) {
	if cfg.Channel != "" && cfg.WebsocketURL != "" {
		return nil, fmt.Errorf("config invalid: BLOCKS_CHANNEL and BLOCKS_WEBSOCKET_URL are mutually exclusive")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[Source] ", log.LstdFlags)
	}

	switch {
	case cfg.Channel != "":
		return NewPostgresListener(cfg.DatabaseURL, cfg.Channel, logger), nil
	case cfg.WebsocketURL != "":
		backoff := cfg.ReconnectBackoff
		if backoff <= 0 {
			backoff = 5 * time.Second
		}
		return NewWebSocketSubscriber(cfg.WebsocketURL, backoff, logger), nil
	default:
		return &noneSource{}, nil
	}
}

// noneSource is used when no event source is configured: the relay still
// works, but issued commitments never resolve until an event source is
// enabled.
type noneSource struct{}

func (s *noneSource) Run(ctx context.Context, onBlock OnBlock) error {
	<-ctx.Done()
	return ctx.Err()
}
