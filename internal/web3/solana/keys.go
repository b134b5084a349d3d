package solana

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	xerrors "Merem-Agent/internal/errors"
)

// DecodePublicKey decodes a base58 Solana address.
func DecodePublicKey(address string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(strings.TrimSpace(address))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid solana address")
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("invalid solana address: want %d bytes, got %d", ed25519.PublicKeySize, len(raw)))
	}
	return ed25519.PublicKey(raw), nil
}

// DecodeSecretKey accepts a base58 string or the JSON byte array written by
// solana-keygen. Both 64 byte keypairs and 32 byte seeds are supported.
func DecodeSecretKey(secret string) (ed25519.PrivateKey, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "solana secret key is empty")
	}

	var raw []byte
	if strings.HasPrefix(secret, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(secret), &ints); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid solana keypair array")
		}
		raw = make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, "invalid solana keypair array")
			}
			raw[i] = byte(v)
		}
	} else {
		decoded, err := base58.Decode(secret)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid solana secret key")
		}
		raw = decoded
	}

	switch len(raw) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	default:
		return nil, xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("invalid solana secret key length %d", len(raw)))
	}
}

// PublicKeyFromSecret derives the base58 address of a secret key.
func PublicKeyFromSecret(secret string) (string, error) {
	key, err := DecodeSecretKey(secret)
	if err != nil {
		return "", err
	}
	return base58.Encode(key.Public().(ed25519.PublicKey)), nil
}
