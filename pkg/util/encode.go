package util

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseBytes32Hex decodes a 0x-prefixed 32 byte hex string, e.g. a payment or shop ID.
func ParseBytes32Hex(value string) ([32]byte, error) {
	var out [32]byte
	decoded, err := hexutil.Decode(strings.TrimSpace(value))
	if err != nil {
		return out, fmt.Errorf("invalid hex value %q: %w", value, err)
	}
	if len(decoded) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

// FormatAmount renders an amount the way the relay expects it on the wire:
// a base-10 string, never a JSON number.
func FormatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.Text(10)
}

// ParseAmount parses a base-10 amount string.
func ParseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

// ParseAddress parses a 0x-prefixed hex address, rejecting anything that is not 20 bytes.
func ParseAddress(value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "0x") || !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address format: %s", value)
	}
	return common.HexToAddress(trimmed), nil
}
