package relayClient

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/acc-coin/acc-sdk-go/pkg/codec"
	"github.com/acc-coin/acc-sdk-go/pkg/relayerr"
	"github.com/acc-coin/acc-sdk-go/pkg/types"
	"github.com/acc-coin/acc-sdk-go/pkg/util"
)

// GetTemporaryAccount obtains a short-lived payment account bound to the
// client's account.
func (c *Client) GetTemporaryAccount(ctx context.Context) (string, error) {
	account := c.signer.Address()
	signature, err := c.signMessage(ctx, func(nonce, chainId uint64) codec.Message {
		return codec.AccountBinding{
			Account: account,
			Nonce:   nonce,
			ChainId: chainId,
		}
	})
	if err != nil {
		return "", err
	}

	req := &types.TemporaryAccountRequest{
		Account:   account.Hex(),
		Signature: signature,
	}
	var resp types.TemporaryAccountResponse
	if err := c.post(ctx, PathTemporaryAccount, req, &resp); err != nil {
		return "", fmt.Errorf("failed to get temporary account: %w", err)
	}
	if resp.TemporaryAccount == "" {
		return "", relayerr.RelayUnavailable("relay returned no temporary account", nil)
	}
	return resp.TemporaryAccount, nil
}

// ApproveNewPayment approves or denies a pending payment made against the
// client's account. paymentId and shopId are 0x-prefixed 32 byte hex strings.
func (c *Client) ApproveNewPayment(
	ctx context.Context,
	paymentId string,
	purchaseId string,
	amount *big.Int,
	currency string,
	shopId string,
	approval bool,
) (*types.PaymentTaskItemShort, error) {
	paymentId = strings.TrimSpace(paymentId)
	paymentIdBytes, err := util.ParseBytes32Hex(paymentId)
	if err != nil {
		return nil, relayerr.InvalidArgument("invalid payment id: %v", err)
	}
	shopIdBytes, err := util.ParseBytes32Hex(shopId)
	if err != nil {
		return nil, relayerr.InvalidArgument("invalid shop id: %v", err)
	}
	if err := codec.CheckUint256("amount", amount); err != nil {
		return nil, err
	}

	account := c.signer.Address()
	signature, err := c.signMessage(ctx, func(nonce, chainId uint64) codec.Message {
		return codec.PaymentApproval{
			PaymentId:  paymentIdBytes,
			PurchaseId: purchaseId,
			Amount:     amount,
			Currency:   currency,
			ShopId:     shopIdBytes,
			Account:    account,
			ChainId:    chainId,
			Nonce:      nonce,
		}
	})
	if err != nil {
		return nil, err
	}

	req := &types.PaymentApprovalRequest{
		PaymentId: paymentId,
		Approval:  approval,
		Signature: signature,
	}
	var item types.PaymentTaskItemShort
	if err := c.post(ctx, PathPaymentApproval, req, &item); err != nil {
		return nil, fmt.Errorf("failed to approve payment %s: %w", paymentId, err)
	}

	c.logger.Sugar().Infow("Answered payment approval",
		"payment_id", paymentId,
		"approval", approval,
		"payment_status", item.PaymentStatus,
	)
	return &item, nil
}
