package provider

import (
	"strings"

	"Merem-Agent/internal/config"
	xerrors "Merem-Agent/internal/errors"
	"Merem-Agent/internal/web3"
	"Merem-Agent/internal/web3/solana"
)

// OpenSolanaWallet binds the configured Solana credential to the first Solana
// chain of the registry. The private key is only used to derive the owner
// address; a public key alone is enough for read-only use.
func OpenSolanaWallet(reg *Registry, cfg config.SolanaConfig) (*web3.Wallet, error) {
	client, ok := reg.FirstOfType(web3.TypeSolana)
	if !ok {
		return nil, xerrors.New(xerrors.CodeWalletUnavailable, "no solana chain configured")
	}

	address := strings.TrimSpace(cfg.PublicKey)
	if secret := strings.TrimSpace(cfg.PrivateKey); secret != "" {
		derived, err := solana.PublicKeyFromSecret(secret)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeWalletUnavailable, err, "solana private key rejected")
		}
		if address != "" && address != derived {
			return nil, xerrors.New(xerrors.CodeWalletUnavailable, "solana public key does not match private key")
		}
		address = derived
	}
	if address == "" {
		return nil, xerrors.New(xerrors.CodeWalletUnavailable, "SOLANA_PRIVATE_KEY or SOLANA_PUBLIC_KEY is not set")
	}

	wallet, err := web3.NewWallet(client, address)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeWalletUnavailable, err, "solana wallet rejected")
	}
	return wallet, nil
}
