package ethereum

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"

	"Merem-Agent/internal/web3"
)

func TestSimulatedSnapshotAndBalance(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	owner := crypto.PubkeyToAddress(key.PublicKey)
	oneAndHalfEther, _ := new(big.Int).SetString("1500000000000000000", 10)

	backend := simulated.NewBackend(types.GenesisAlloc{
		owner: {Balance: oneAndHalfEther},
	})
	t.Cleanup(func() { _ = backend.Close() })
	backend.Commit()

	client := NewClientWithReader(Config{Name: "simulated", Notes: "simulated backend"}, backend.Client())
	t.Cleanup(client.Close)

	snapshot, err := client.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.ChainID != "1337" {
		t.Fatalf("unexpected chain id %s", snapshot.ChainID)
	}
	if snapshot.Height == 0 {
		t.Fatal("expected block height to advance after commit")
	}
	if snapshot.Type != web3.TypeEVM || snapshot.Symbol != "ETH" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	wallet, err := web3.NewWallet(client, owner.Hex())
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	balance, err := wallet.Balance(ctx)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.StringFixed(4) != "1.5000" {
		t.Fatalf("unexpected balance %s", balance)
	}
}

func TestValidateAddress(t *testing.T) {
	client := NewClientWithReader(Config{}, nil)
	if err := client.ValidateAddress("0x0000000000000000000000000000000000000001"); err != nil {
		t.Fatalf("valid address rejected: %v", err)
	}
	if err := client.ValidateAddress("So11111111111111111111111111111111111111112"); err == nil {
		t.Fatal("expected solana address to be rejected")
	}
}

func TestClosedClientFails(t *testing.T) {
	client := NewClientWithReader(Config{}, nil)
	if _, err := client.Snapshot(context.Background()); err == nil {
		t.Fatal("expected error for client without backend")
	}
}

var _ web3.Client = (*Client)(nil)
