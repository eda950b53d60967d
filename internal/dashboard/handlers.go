// Package dashboard implements the read-only dashboard surface:
// unauthenticated JSON dumps of the core tables. Transactions, commitments
// and blocks are capped at a configurable row limit; node stats are
// returned in full. It never mutates state and plays no part in the verification
// engine itself.
package dashboard

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/certen/slasher-proxy/internal/store"
)

// Handlers serves GET /dashboard/{transactions|commitments|blocks|nodestats}.
type Handlers struct {
	store     *store.Client
	rowLimit  int
	logger    *log.Logger
}

// NewHandlers constructs Handlers bound to storeClient, capping the
// transaction, commitment and block lists at rowLimit rows. The node stats
// list is not capped.
func NewHandlers(storeClient *store.Client, rowLimit int, logger *log.Logger) *Handlers {
	if rowLimit <= 0 {
		rowLimit = 500
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[Dashboard] ", log.LstdFlags)
	}
	return &Handlers{store: storeClient, rowLimit: rowLimit, logger: logger}
}

// Transactions serves GET /dashboard/transactions.
func (h *Handlers) Transactions(w http.ResponseWriter, r *http.Request) {
	repo := store.NewTransactionRepository(h.store)
	txs, err := repo.List(r.Context(), h.rowLimit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]interface{}{"transactions": txs})
}

// Commitments serves GET /dashboard/commitments.
func (h *Handlers) Commitments(w http.ResponseWriter, r *http.Request) {
	repo := store.NewCommitmentRepository(h.store)
	commitments, err := repo.List(r.Context(), h.rowLimit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]interface{}{"commitments": commitments})
}

// Blocks serves GET /dashboard/blocks.
func (h *Handlers) Blocks(w http.ResponseWriter, r *http.Request) {
	repo := store.NewBlockRepository(h.store)
	blocks, err := repo.List(r.Context(), h.rowLimit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]interface{}{"blocks": blocks})
}

// NodeStats serves GET /dashboard/nodestats.
func (h *Handlers) NodeStats(w http.ResponseWriter, r *http.Request) {
	repo := store.NewNodeStatsRepository(h.store)
	stats, err := repo.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, map[string]interface{}{"node_stats": stats})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Printf("failed to encode dashboard response: %v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	h.logger.Printf("dashboard query failed: %v", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "failed to query dashboard data"})
}
