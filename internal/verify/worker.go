package verify

import (
	"context"
	"log"
)

// Worker drains a channel of block numbers fed by the ingestor and runs
// the engine on each, in delivery order, for a single configured node:
// one goroutine, one channel, no cross-component locking.
type Worker struct {
	engine *Engine
	nodeID string
	logger *log.Logger
}

// NewWorker constructs a Worker bound to engine and nodeID.
func NewWorker(engine *Engine, nodeID string, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.New(log.Writer(), "[Worker] ", log.LstdFlags)
	}
	return &Worker{engine: engine, nodeID: nodeID, logger: logger}
}

// Run consumes blockNumbers until the channel is closed or ctx is
// cancelled. A ProcessBlock error is logged and does not stop the worker
// — the block may be redelivered by the event source.
func (w *Worker) Run(ctx context.Context, blockNumbers <-chan uint64) {
	for {
		select {
		case <-ctx.Done():
			return
		case number, ok := <-blockNumbers:
			if !ok {
				return
			}
			if err := w.engine.ProcessBlock(ctx, number, w.nodeID); err != nil {
				w.logger.Printf("failed to process block %d: %v", number, err)
			}
		}
	}
}
