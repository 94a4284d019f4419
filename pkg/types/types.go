package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// BigInt is an unsigned relay amount. The relay renders amounts as decimal
// strings but some fields arrive as JSON numbers; both decode.
type BigInt struct {
	big.Int
}

// NewBigInt copies v into a BigInt. A nil v yields zero.
func NewBigInt(v *big.Int) *BigInt {
	b := new(BigInt)
	if v != nil {
		b.Set(v)
	}
	return b
}

// Big returns a copy as *big.Int.
func (b *BigInt) Big() *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(&b.Int)
}

func (b BigInt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.Text(10) + `"`), nil
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		b.SetInt64(0)
		return nil
	}
	s := strings.Trim(string(trimmed), `"`)
	if s == "" {
		return fmt.Errorf("empty numeric value")
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	if _, ok := b.SetString(s, base); !ok {
		return fmt.Errorf("invalid numeric value %s", string(trimmed))
	}
	return nil
}

// Balance is an amount together with its value in the settlement currency.
type Balance struct {
	Balance *BigInt `json:"balance"`
	Value   *BigInt `json:"value"`
}

// UserBalance holds the point and token balances of an account or phone number.
type UserBalance struct {
	Point Balance `json:"point"`
	Token Balance `json:"token"`
}

// PaymentTaskItemShort is the relay's summary of a payment task.
type PaymentTaskItemShort struct {
	PaymentId     string         `json:"paymentId"`
	PurchaseId    string         `json:"purchaseId"`
	Amount        *BigInt        `json:"amount"`
	Currency      string         `json:"currency"`
	ShopId        string         `json:"shopId"`
	Account       common.Address `json:"account"`
	PaidPoint     *BigInt        `json:"paidPoint"`
	PaidValue     *BigInt        `json:"paidValue"`
	FeePoint      *BigInt        `json:"feePoint"`
	FeeValue      *BigInt        `json:"feeValue"`
	TotalPoint    *BigInt        `json:"totalPoint"`
	TotalValue    *BigInt        `json:"totalValue"`
	PaymentStatus int            `json:"paymentStatus"`
}

// Uint64Value is a relay scalar that may be a JSON number or a decimal string.
type Uint64Value uint64

func (v *Uint64Value) UnmarshalJSON(data []byte) error {
	var n BigInt
	if err := n.UnmarshalJSON(data); err != nil {
		return err
	}
	if n.Sign() < 0 || !n.IsUint64() {
		return fmt.Errorf("value %s does not fit in uint64", n.Text(10))
	}
	*v = Uint64Value(n.Uint64())
	return nil
}

func (v Uint64Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint64(v))
}
