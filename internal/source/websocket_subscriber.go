package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// subscribeRequest is the eth_subscribe("newHeads") frame sent on connect.
type subscribeRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// subscriptionMessage is a newHeads push notification.
type subscriptionMessage struct {
	Params *struct {
		Result struct {
			Number string `json:"number"`
		} `json:"result"`
	} `json:"params"`
}

// websocketSubscriber opens a persistent WebSocket to the validator,
// subscribes to newHeads, and extracts the block number from each push.
type websocketSubscriber struct {
	url     string
	backoff time.Duration
	logger  *log.Logger
}

// NewWebSocketSubscriber constructs the WebSocket block event source.
func NewWebSocketSubscriber(url string, backoff time.Duration, logger *log.Logger) Source {
	return &websocketSubscriber{url: url, backoff: backoff, logger: logger}
}

// Run reconnects indefinitely with a fixed backoff on any connection error,
// matching the original's `while True: ... sleep(5)` loop.
func (s *websocketSubscriber) Run(ctx context.Context, onBlock OnBlock) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := s.handleConnection(ctx, onBlock); err != nil {
			s.logger.Printf("error in websocket connection: %v", err)
		}

		s.logger.Printf("reconnecting in %s...", s.backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff):
		}
	}
}

func (s *websocketSubscriber) handleConnection(ctx context.Context, onBlock OnBlock) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial websocket: %w", err)
	}
	defer conn.Close()
	s.logger.Printf("connected to websocket at %s", s.url)

	req := subscribeRequest{JSONRPC: "2.0", ID: 1, Method: "eth_subscribe", Params: []interface{}{"newHeads"}}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("failed to send subscribe frame: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.processMessages(conn, onBlock)
	}()

	select {
	case <-ctx.Done():
		conn.Close()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (s *websocketSubscriber) processMessages(conn *websocket.Conn, onBlock OnBlock) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("websocket connection closed: %w", err)
		}

		var msg subscriptionMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Params == nil {
			s.logger.Printf("received message: %s", raw)
			continue
		}

		blockNumber, err := parseBlockNumberHex(msg.Params.Result.Number)
		if err != nil {
			s.logger.Printf("ignoring malformed block number %q: %v", msg.Params.Result.Number, err)
			continue
		}

		s.logger.Printf("new block received: %d", blockNumber)
		onBlock(blockNumber)
	}
}

// parseBlockNumberHex parses a 0x-prefixed hex block number as sent in a
// newHeads push notification.
func parseBlockNumberHex(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
}
