// Package ethrpc wraps go-ethereum's ethclient for the calls the block
// ingestor needs: fetching a canonical block with full transaction
// objects by number, and reporting the chain's latest block number.
package ethrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client is a thin wrapper over ethclient.Client for validator RPC access.
type Client struct {
	client *ethclient.Client
	rpc    *rpc.Client
	url    string
}

// NewClient dials url and returns a ready Client.
func NewClient(url string) (*Client, error) {
	rpcClient, err := rpc.DialContext(context.Background(), url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to validator rpc: %w", err)
	}
	return &Client{client: ethclient.NewClient(rpcClient), rpc: rpcClient, url: url}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// GetBlock fetches the block at number with full transaction objects, the
// Go equivalent of `eth_getBlockByNumber(hex(number), true)`.
func (c *Client) GetBlock(ctx context.Context, number uint64) (*types.Block, error) {
	block, err := c.client.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, fmt.Errorf("failed to get block %d: %w", number, err)
	}
	return block, nil
}

// GetBlockRaw fetches the exact `eth_getBlockByNumber` JSON response for
// number, byte for byte, so it can be stored and later re-parsed without
// another round trip.
func (c *Client) GetBlockRaw(ctx context.Context, number uint64) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "eth_getBlockByNumber", hexutil.EncodeUint64(number), true); err != nil {
		return nil, fmt.Errorf("failed to get raw block %d: %w", number, err)
	}
	return raw, nil
}

// GetLatestBlockNumber returns the chain head's block number.
func (c *Client) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.client.BlockNumber(ctx)
}

// Health verifies the connection is alive.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("validator rpc health check failed: %w", err)
	}
	return nil
}
