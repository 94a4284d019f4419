package relayClient

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/acc-coin/acc-sdk-go/pkg/relayerr"
	"github.com/acc-coin/acc-sdk-go/pkg/types"
)

// GetBalance returns the balance of a 0x-prefixed account address, or of a phone number otherwise.
func (c *Client) GetBalance(ctx context.Context, accountOrPhone string) (*types.UserBalance, error) {
	trimmed := strings.TrimSpace(accountOrPhone)
	if strings.HasPrefix(trimmed, "0x") && common.IsHexAddress(trimmed) {
		return c.GetBalanceAccount(ctx, common.HexToAddress(trimmed))
	}
	return c.GetBalancePhone(ctx, trimmed)
}

// GetBalanceAccount returns the point and token balances of account.
func (c *Client) GetBalanceAccount(ctx context.Context, account common.Address) (*types.UserBalance, error) {
	var balance types.UserBalance
	if err := c.get(ctx, &balance, PathBalanceAccount, account.Hex()); err != nil {
		return nil, fmt.Errorf("failed to get balance of %s: %w", account.Hex(), err)
	}
	if err := checkBalance(&balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// GetBalancePhone returns the balances held for a phone number. The number is
// normalized before any request is made.
func (c *Client) GetBalancePhone(ctx context.Context, phoneNumber string) (*types.UserBalance, error) {
	normalized, err := c.normalizer.Normalize(phoneNumber)
	if err != nil {
		return nil, err
	}
	var balance types.UserBalance
	if err := c.get(ctx, &balance, PathBalancePhone, normalized); err != nil {
		return nil, fmt.Errorf("failed to get balance of phone number: %w", err)
	}
	if err := checkBalance(&balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// GetLedgerNonceOf returns the nonce the next signed request of account must carry.
func (c *Client) GetLedgerNonceOf(ctx context.Context, account common.Address) (uint64, error) {
	return c.nonces.CurrentNonce(ctx, account)
}

// GetChainId returns the side chain id, fetched once per client.
func (c *Client) GetChainId(ctx context.Context) (uint64, error) {
	return c.chain.CurrentChainId(ctx)
}

func checkBalance(b *types.UserBalance) error {
	if b.Point.Balance == nil || b.Point.Value == nil || b.Token.Balance == nil || b.Token.Value == nil {
		return relayerr.RelayUnavailable("balance response is incomplete", nil)
	}
	return nil
}
