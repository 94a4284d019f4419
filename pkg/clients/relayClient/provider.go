package relayClient

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/acc-coin/acc-sdk-go/pkg/codec"
	"github.com/acc-coin/acc-sdk-go/pkg/relayerr"
	"github.com/acc-coin/acc-sdk-go/pkg/types"
	"github.com/acc-coin/acc-sdk-go/pkg/util"
)

// IsProvider reports whether account may provide points.
func (c *Client) IsProvider(ctx context.Context, account common.Address) (bool, error) {
	var status types.ProviderStatusResponse
	if err := c.get(ctx, &status, PathProviderStatus, account.Hex()); err != nil {
		return false, fmt.Errorf("failed to get provider status of %s: %w", account.Hex(), err)
	}
	return status.Enable, nil
}

// ProvideToAddress transfers amount points from provider to receiver. The
// client's signer may be the provider itself or its registered delegate.
func (c *Client) ProvideToAddress(ctx context.Context, provider, receiver common.Address, amount *big.Int) (string, error) {
	if err := codec.CheckUint256("amount", amount); err != nil {
		return "", err
	}

	signature, err := c.signMessage(ctx, func(nonce, chainId uint64) codec.Message {
		return codec.ProvideToAddress{
			Provider: provider,
			Receiver: receiver,
			Amount:   amount,
			ChainId:  chainId,
			Nonce:    nonce,
		}
	})
	if err != nil {
		return "", err
	}

	req := &types.ProvideToAddressRequest{
		Provider:  provider.Hex(),
		Receiver:  receiver.Hex(),
		Amount:    util.FormatAmount(amount),
		Signature: signature,
	}
	var resp types.TxHashResponse
	if err := c.post(ctx, PathSendAccount, req, &resp); err != nil {
		return "", fmt.Errorf("failed to provide points to address: %w", err)
	}

	c.logger.Sugar().Infow("Provided points to address",
		"provider", provider.Hex(),
		"receiver", receiver.Hex(),
		"amount", req.Amount,
		"tx_hash", resp.TxHash,
	)
	return resp.TxHash, nil
}

// ProvideToPhone transfers amount points from provider to the owner of
// phoneNumber. Only the phone hash leaves the client.
func (c *Client) ProvideToPhone(ctx context.Context, provider common.Address, phoneNumber string, amount *big.Int) (string, error) {
	normalized, err := c.normalizer.Normalize(phoneNumber)
	if err != nil {
		return "", err
	}
	if err := codec.CheckUint256("amount", amount); err != nil {
		return "", err
	}
	phoneHash := codec.PhoneHash(normalized)

	signature, err := c.signMessage(ctx, func(nonce, chainId uint64) codec.Message {
		return codec.ProvideToPhone{
			Provider:  provider,
			PhoneHash: phoneHash,
			Amount:    amount,
			ChainId:   chainId,
			Nonce:     nonce,
		}
	})
	if err != nil {
		return "", err
	}

	req := &types.ProvideToPhoneRequest{
		Provider:  provider.Hex(),
		Receiver:  phoneHash.Hex(),
		Amount:    util.FormatAmount(amount),
		Signature: signature,
	}
	var resp types.TxHashResponse
	if err := c.post(ctx, PathSendPhoneHash, req, &resp); err != nil {
		return "", fmt.Errorf("failed to provide points to phone: %w", err)
	}

	c.logger.Sugar().Infow("Provided points to phone hash",
		"provider", provider.Hex(),
		"phone_hash", phoneHash.Hex(),
		"amount", req.Amount,
		"tx_hash", resp.TxHash,
	)
	return resp.TxHash, nil
}

// SetTransferDelegator registers delegate as the transfer assistant of the
// client's account. Delegates can provide points but cannot deposit or withdraw.
// The zero address clears the registration.
func (c *Client) SetTransferDelegator(ctx context.Context, delegate common.Address) (string, error) {
	provider := c.signer.Address()
	signature, err := c.signMessage(ctx, func(nonce, chainId uint64) codec.Message {
		return codec.RegisterDelegate{
			Provider: provider,
			Delegate: delegate,
			ChainId:  chainId,
			Nonce:    nonce,
		}
	})
	if err != nil {
		return "", err
	}

	req := &types.RegisterAssistantRequest{
		Provider:  provider.Hex(),
		Assistant: delegate.Hex(),
		Signature: signature,
	}
	var resp types.TxHashResponse
	if err := c.post(ctx, PathAssistantRegister, req, &resp); err != nil {
		return "", fmt.Errorf("failed to register transfer delegator: %w", err)
	}

	c.logger.Sugar().Infow("Registered transfer delegator",
		"provider", provider.Hex(),
		"delegate", delegate.Hex(),
		"tx_hash", resp.TxHash,
	)
	return resp.TxHash, nil
}

// GetTransferDelegator returns the delegate registered for the client's
// account, or the zero address when there is none.
func (c *Client) GetTransferDelegator(ctx context.Context) (common.Address, error) {
	var resp types.AssistantResponse
	if err := c.get(ctx, &resp, PathAssistant, c.signer.Address().Hex()); err != nil {
		return common.Address{}, fmt.Errorf("failed to get transfer delegator: %w", err)
	}
	if resp.Assistant == "" {
		return common.Address{}, nil
	}
	delegate, err := util.ParseAddress(resp.Assistant)
	if err != nil {
		return common.Address{}, relayerr.RelayUnavailable("relay returned a malformed delegate address", err)
	}
	return delegate, nil
}
