package provider

import (
	"context"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Merem-Agent/internal/config"
	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/internal/web3"
)

func TestRegistryFromChainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chains.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chains:
  solana-devnet:
    type: solana
    rpc_url: http://127.0.0.1:8899
    description: local validator
  base:
    type: evm
    rpc_url: http://127.0.0.1:8545
    symbol: ETH
`), 0o600))

	reg, err := NewRegistry(context.Background(), config.Web3Config{ChainConfig: path, DefaultChain: "solana-devnet"})
	require.NoError(t, err)
	defer reg.Close()

	assert.Equal(t, []string{"base", "solana-devnet"}, reg.Chains())
	def, err := reg.DefaultClient()
	require.NoError(t, err)
	assert.Equal(t, "SOL", def.Symbol())

	evm, ok := reg.FirstOfType(web3.TypeEVM)
	require.True(t, ok)
	assert.Equal(t, "ETH", evm.Symbol())
}

func TestRegistryFallsBackToSolanaRPC(t *testing.T) {
	reg, err := NewRegistry(context.Background(), config.Web3Config{
		DefaultChain: "solana-mainnet",
		Solana:       config.SolanaConfig{RPCURL: "http://127.0.0.1:8899"},
	})
	require.NoError(t, err)
	defer reg.Close()
	assert.Equal(t, []string{"solana-mainnet"}, reg.Chains())
}

func TestRegistryRejectsUnknownDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chains.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chains:\n  a:\n    type: solana\n    rpc_url: http://127.0.0.1:1\n"), 0o600))
	_, err := NewRegistry(context.Background(), config.Web3Config{ChainConfig: path, DefaultChain: "missing"})
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("chains:\n  a:\n    type: cosmos\n"), 0o600))
	_, err = NewRegistry(context.Background(), config.Web3Config{ChainConfig: path})
	require.Error(t, err)
}

func TestOpenSolanaWallet(t *testing.T) {
	reg, err := NewRegistry(context.Background(), config.Web3Config{Solana: config.SolanaConfig{RPCURL: "http://127.0.0.1:8899"}})
	require.NoError(t, err)
	defer reg.Close()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	wallet, err := OpenSolanaWallet(reg, config.SolanaConfig{PrivateKey: base58.Encode(priv)})
	require.NoError(t, err)
	assert.Equal(t, base58.Encode(pub), wallet.Address())

	wallet, err = OpenSolanaWallet(reg, config.SolanaConfig{PublicKey: base58.Encode(pub)})
	require.NoError(t, err)
	assert.Equal(t, base58.Encode(pub), wallet.Address())

	_, err = OpenSolanaWallet(reg, config.SolanaConfig{})
	assert.Equal(t, xerrors.CodeWalletUnavailable, xerrors.CodeOf(err))

	_, err = OpenSolanaWallet(reg, config.SolanaConfig{PrivateKey: "garbage!"})
	assert.Equal(t, xerrors.CodeWalletUnavailable, xerrors.CodeOf(err))

	otherPub, _, _ := ed25519.GenerateKey(nil)
	_, err = OpenSolanaWallet(reg, config.SolanaConfig{PrivateKey: base58.Encode(priv), PublicKey: base58.Encode(otherPub)})
	assert.Error(t, err)
}
