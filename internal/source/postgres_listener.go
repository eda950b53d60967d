package source

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/lib/pq"
)

// postgresListener subscribes to a Postgres LISTEN/NOTIFY channel and
// decodes each payload as a decimal block number.
type postgresListener struct {
	dsn     string
	channel string
	logger  *log.Logger
}

// NewPostgresListener constructs the database-channel block event source.
func NewPostgresListener(dsn, channel string, logger *log.Logger) Source {
	return &postgresListener{dsn: dsn, channel: channel, logger: logger}
}

// Run listens on channel until ctx is cancelled. Timeouts waiting for a
// notification are logged and ignored.
func (l *postgresListener) Run(ctx context.Context, onBlock OnBlock) error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.logger.Printf("listener event error: %v", err)
		}
	}

	listener := pq.NewListener(l.dsn, 10*time.Second, time.Minute, reportProblem)
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		return err
	}
	l.logger.Printf("listening on channel %q", l.channel)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-listener.Notify:
			if n == nil {
				// Connection was lost and pq re-established it; nothing to do.
				continue
			}
			blockNumber, err := strconv.ParseUint(n.Extra, 10, 64)
			if err != nil {
				l.logger.Printf("ignoring malformed notification payload %q: %v", n.Extra, err)
				continue
			}
			onBlock(blockNumber)
		case <-time.After(90 * time.Second):
			l.logger.Println("timeout waiting for notification from Postgres")
			if err := listener.Ping(); err != nil {
				l.logger.Printf("listener ping failed: %v", err)
			}
		}
	}
}
