package web3

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Chain types understood by the provider registry.
const (
	TypeSolana = "solana"
	TypeEVM    = "evm"
)

// ChainSnapshot represents summarized network metadata for UI/reporting.
type ChainSnapshot struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	ChainID string `json:"chain_id"`
	Height  uint64 `json:"height"`
	Symbol  string `json:"symbol"`
	Notes   string `json:"notes,omitempty"`
}

// Client defines the read-only surface every chain implementation provides.
// Balances are expressed in the chain's native unit (SOL, ETH).
type Client interface {
	Snapshot(ctx context.Context) (ChainSnapshot, error)
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
	ValidateAddress(address string) error
	Symbol() string
	Close()
}

// Wallet binds a chain client to the address of its owner.
type Wallet struct {
	client  Client
	address string
}

// NewWallet validates the owner address against the client's chain.
func NewWallet(client Client, address string) (*Wallet, error) {
	if client == nil {
		return nil, errors.New("wallet requires a chain client")
	}
	address = strings.TrimSpace(address)
	if err := client.ValidateAddress(address); err != nil {
		return nil, err
	}
	return &Wallet{client: client, address: address}, nil
}

// Address returns the owner address.
func (w *Wallet) Address() string { return w.address }

// Symbol returns the native currency symbol.
func (w *Wallet) Symbol() string { return w.client.Symbol() }

// Balance returns the owner balance in native units.
func (w *Wallet) Balance(ctx context.Context) (decimal.Decimal, error) {
	return w.client.Balance(ctx, w.address)
}
