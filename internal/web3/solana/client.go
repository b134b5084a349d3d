// Package solana implements web3.Client for Solana clusters using the
// JSON-RPC 2.0 client shipped with go-ethereum.
package solana

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/shopspring/decimal"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/internal/web3"
)

const (
	DefaultRPCURL     = "https://api.mainnet-beta.solana.com"
	defaultCommitment = "confirmed"
	lamportsDecimals  = 9
)

// Config describes how to construct a Solana client.
type Config struct {
	Name       string
	RPCURL     string
	Commitment string
	Notes      string
}

// Client talks to a Solana RPC node.
type Client struct {
	name       string
	notes      string
	commitment string
	mu         sync.Mutex
	rpc        *gethrpc.Client
}

// NewClient dials the configured RPC endpoint. No request is sent until first use.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		rpcURL = DefaultRPCURL
	}
	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接 Solana 节点失败: %w", err)
	}
	commitment := strings.TrimSpace(cfg.Commitment)
	if commitment == "" {
		commitment = defaultCommitment
	}
	return &Client{name: cfg.Name, notes: cfg.Notes, commitment: commitment, rpc: rpcClient}, nil
}

type commitmentConfig struct {
	Commitment string `json:"commitment"`
}

// Balance returns the SOL balance of address.
func (c *Client) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	if err := c.ValidateAddress(address); err != nil {
		return decimal.Zero, err
	}
	rpcClient, err := c.client()
	if err != nil {
		return decimal.Zero, err
	}
	var res struct {
		Value uint64 `json:"value"`
	}
	if err := rpcClient.CallContext(ctx, &res, "getBalance", address, commitmentConfig{c.commitment}); err != nil {
		return decimal.Zero, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "getBalance failed")
	}
	return LamportsToSOL(res.Value), nil
}

// Snapshot reports the genesis hash and current slot.
func (c *Client) Snapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	rpcClient, err := c.client()
	if err != nil {
		return web3.ChainSnapshot{}, err
	}
	var genesis string
	if err := rpcClient.CallContext(ctx, &genesis, "getGenesisHash"); err != nil {
		return web3.ChainSnapshot{}, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "getGenesisHash failed")
	}
	var slot uint64
	if err := rpcClient.CallContext(ctx, &slot, "getSlot", commitmentConfig{c.commitment}); err != nil {
		return web3.ChainSnapshot{}, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "getSlot failed")
	}
	return web3.ChainSnapshot{
		Name:    c.name,
		Type:    web3.TypeSolana,
		ChainID: genesis,
		Height:  slot,
		Symbol:  c.Symbol(),
		Notes:   c.notes,
	}, nil
}

// ValidateAddress checks that address is a base58 encoded 32 byte public key.
func (c *Client) ValidateAddress(address string) error {
	_, err := DecodePublicKey(address)
	return err
}

// Symbol implements web3.Client.
func (c *Client) Symbol() string { return "SOL" }

// Close releases the RPC connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc != nil {
		c.rpc.Close()
		c.rpc = nil
	}
}

func (c *Client) client() (*gethrpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rpc == nil {
		return nil, errors.New("solana client is closed")
	}
	return c.rpc, nil
}

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -lamportsDecimals)
}
