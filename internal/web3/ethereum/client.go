package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/internal/web3"
)

const weiDecimals = 18

// Config describes how to construct an EVM compatible client.
type Config struct {
	Name   string
	RPCURL string
	Symbol string
	Notes  string
}

// chainReader mirrors the subset of ethclient used here, so simulated
// backends can be plugged in for tests.
type chainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Client implements the web3.Client interface for EVM compatible chains.
type Client struct {
	name   string
	notes  string
	symbol string
	mu     sync.Mutex
	reader chainReader
	eth    *ethclient.Client
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置 EVM RPC 地址")
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接 EVM 节点失败: %w", err)
	}
	c := newClient(cfg, eth)
	c.eth = eth
	return c, nil
}

// NewClientWithReader wraps an existing reader such as a simulated backend client.
func NewClientWithReader(cfg Config, reader chainReader) *Client {
	return newClient(cfg, reader)
}

func newClient(cfg Config, reader chainReader) *Client {
	symbol := strings.TrimSpace(cfg.Symbol)
	if symbol == "" {
		symbol = "ETH"
	}
	return &Client{name: cfg.Name, notes: cfg.Notes, symbol: symbol, reader: reader}
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	c.reader = nil
}

// Snapshot gathers chain id and head block number.
func (c *Client) Snapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	reader, err := c.backend()
	if err != nil {
		return web3.ChainSnapshot{}, err
	}
	chainID, err := reader.ChainID(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "获取链 ID 失败")
	}
	height, err := reader.BlockNumber(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "获取最新区块高度失败")
	}
	return web3.ChainSnapshot{
		Name:    c.name,
		Type:    web3.TypeEVM,
		ChainID: chainID.String(),
		Height:  height,
		Symbol:  c.symbol,
		Notes:   c.notes,
	}, nil
}

// Balance returns the latest balance of address in ether units.
func (c *Client) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	if err := c.ValidateAddress(address); err != nil {
		return decimal.Zero, err
	}
	reader, err := c.backend()
	if err != nil {
		return decimal.Zero, err
	}
	wei, err := reader.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "查询余额失败")
	}
	return decimal.NewFromBigInt(wei, -weiDecimals), nil
}

// ValidateAddress checks the hex address format.
func (c *Client) ValidateAddress(address string) error {
	if !common.IsHexAddress(strings.TrimSpace(address)) {
		return xerrors.New(xerrors.CodeInvalidArgument, "invalid evm address")
	}
	return nil
}

// Symbol implements web3.Client.
func (c *Client) Symbol() string { return c.symbol }

func (c *Client) backend() (chainReader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reader == nil {
		return nil, errors.New("未初始化的 EVM 客户端")
	}
	return c.reader, nil
}
