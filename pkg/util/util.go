package util

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// StringToECDSAPrivateKey parses a hex encoded secp256k1 private key, with or without 0x prefix.
func StringToECDSAPrivateKey(pk string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(pk), "0x")
	if len(trimmed) != 64 {
		return nil, fmt.Errorf("private key must be 32 bytes (64 hex chars), got %d chars", len(trimmed))
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

// DeriveAddressFromECDSAPrivateKey returns the account controlled by pk.
func DeriveAddressFromECDSAPrivateKey(pk *ecdsa.PrivateKey) (common.Address, error) {
	if pk == nil {
		return common.Address{}, fmt.Errorf("private key is nil")
	}
	return crypto.PubkeyToAddress(pk.PublicKey), nil
}
