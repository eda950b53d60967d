// Package relay implements the public POST /eth_sendRawTransaction
// endpoint that forwards a raw transaction to the validator and records
// the resulting commitment.
package relay

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/certen/slasher-proxy/internal/commitment"
	"github.com/certen/slasher-proxy/internal/store"
)

// sendRawTransactionRequest is the inbound JSON-RPC envelope.
type sendRawTransactionRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// validatorResult is the extended eth_sendRawTransaction reply contract:
// the validator's txHash plus the commitment and index it issued.
type validatorResult struct {
	TxHash     string `json:"txHash"`
	Commitment string `json:"commitment"`
	TxIndex    uint64 `json:"txIndex"`
}

type validatorResponse struct {
	Result *validatorResult `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Handler serves POST /eth_sendRawTransaction.
type Handler struct {
	store       *store.Client
	httpClient  *http.Client
	rpcURL      string
	validatorID string
	logger      *log.Logger
}

// NewHandler constructs a Handler bound to storeClient, forwarding to
// rpcURL under identity validatorID.
func NewHandler(storeClient *store.Client, rpcURL, validatorID string, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(log.Writer(), "[Relay] ", log.LstdFlags)
	}
	return &Handler{
		store:       storeClient,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		rpcURL:      rpcURL,
		validatorID: validatorID,
		logger:      logger,
	}
}

// ServeHTTP handles POST /eth_sendRawTransaction.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var req sendRawTransactionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Method != "eth_sendRawTransaction" {
		writeJSONError(w, "invalid method", http.StatusBadRequest)
		return
	}
	if len(req.Params) != 1 {
		writeJSONError(w, "invalid params", http.StatusBadRequest)
		return
	}
	rawTxHex, ok := req.Params[0].(string)
	if !ok {
		writeJSONError(w, "invalid params", http.StatusBadRequest)
		return
	}

	h.logger.Printf("forwarding eth_sendRawTransaction to %s", h.rpcURL)
	respBody, status, err := h.forward(r.Context(), body)
	if err != nil {
		h.logger.Printf("error forwarding to validator: %v", err)
		writeJSONError(w, "Error forwarding to validator", http.StatusInternalServerError)
		return
	}

	var resp validatorResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		writeJSONError(w, "invalid response from validator", http.StatusBadRequest)
		return
	}
	if resp.Error != nil {
		writeJSONError(w, fmt.Sprintf("Transaction rejected: %s", resp.Error.Message), http.StatusBadRequest)
		return
	}
	if resp.Result == nil || resp.Result.TxHash == "" {
		writeJSONError(w, "malformed validator result", http.StatusBadRequest)
		return
	}

	if err := h.recordCommitment(r.Context(), resp.Result, rawTxHex, body); err != nil {
		h.logger.Printf("failed to record commitment for %s: %v", resp.Result.TxHash, err)
		writeJSONError(w, "failed to record commitment", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	w.Write(respBody)
}

func (h *Handler) forward(ctx context.Context, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("building forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("validator request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading validator response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// recordCommitment inserts the Transaction/Commitment rows and increments
// NodeStats in one session. from_address/nonce are best-effort decoded
// from the raw transaction hex; a decode failure never fails the request.
func (h *Handler) recordCommitment(ctx context.Context, result *validatorResult, rawTxHex string, rawBody []byte) error {
	txHash, err := hexToBytes(result.TxHash)
	if err != nil {
		return fmt.Errorf("decoding tx hash: %w", err)
	}
	commitmentBytes, err := hexToBytes(result.Commitment)
	if err != nil || len(commitmentBytes) == 0 {
		// The validator didn't supply a usable commitment value; derive a
		// deterministic one locally so the accumulator column is never
		// left empty for a transaction we accepted.
		digest, hashErr := commitment.HashCanonical(map[string]interface{}{
			"tx_hash":  result.TxHash,
			"tx_index": result.TxIndex,
		})
		if hashErr == nil {
			commitmentBytes, _ = hexToBytes(digest)
		}
	}

	from, nonce := decodeSenderAndNonce(rawTxHex)

	return store.WithinSession(ctx, h.store, func(ctx context.Context, s *store.Session) error {
		repos := store.NewRepositories(s.Tx())

		if _, err := repos.Transactions.Get(ctx, txHash); err == store.ErrTransactionNotFound {
			if err := repos.Transactions.Insert(ctx, &store.Transaction{
				Hash:        txHash,
				Status:      store.TransactionSubmitted,
				FromAddress: from,
				Nonce:       nonce,
				RawContent:  rawBody,
			}); err != nil {
				return fmt.Errorf("inserting transaction: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("checking existing transaction: %w", err)
		}

		if err := repos.Commitments.Insert(ctx, &store.Commitment{
			Node:        h.validatorID,
			TxHash:      txHash,
			Index:       result.TxIndex,
			Accumulator: commitmentBytes,
			Status:      store.CommitmentPending,
		}); err != nil {
			return fmt.Errorf("inserting commitment: %w", err)
		}

		if err := repos.NodeStats.IncrementCounts(ctx, h.validatorID, 1, 0, 0); err != nil {
			return fmt.Errorf("updating node stats: %w", err)
		}
		return nil
	})
}

// decodeSenderAndNonce best-effort RLP-decodes the raw transaction to
// recover its sender and nonce. Falls back to "unknown"/0 on any decode
// failure.
func decodeSenderAndNonce(rawTxHex string) (string, uint64) {
	raw, err := hexToBytes(rawTxHex)
	if err != nil {
		return "unknown", 0
	}
	tx := new(gethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return "unknown", 0
	}
	signer := gethtypes.LatestSignerForChainID(tx.ChainId())
	from, err := gethtypes.Sender(signer, tx)
	if err != nil {
		return "unknown", tx.Nonce()
	}
	return from.Hex(), tx.Nonce()
}

func hexToBytes(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
