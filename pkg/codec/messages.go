package codec

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/acc-coin/acc-sdk-go/pkg/relayerr"
)

// Message is a typed canonical message. The set of implementations is closed:
// only the variants in this package satisfy it.
type Message interface {
	Kind() OperationKind
	// Fields returns the field values in layout order.
	Fields() []interface{}
	sealed()
}

// AccountBinding proves control of Account when requesting a temporary payment account.
type AccountBinding struct {
	Account common.Address
	Nonce   uint64
	ChainId uint64
}

func (m AccountBinding) Kind() OperationKind { return OperationAccountBinding }
func (m AccountBinding) Fields() []interface{} {
	return []interface{}{m.Account, m.Nonce, m.ChainId}
}
func (AccountBinding) sealed() {}

// PaymentApproval approves or denies a pending payment on behalf of Account.
type PaymentApproval struct {
	PaymentId  [32]byte
	PurchaseId string
	Amount     *big.Int
	Currency   string
	ShopId     [32]byte
	Account    common.Address
	ChainId    uint64
	Nonce      uint64
}

func (m PaymentApproval) Kind() OperationKind { return OperationPaymentApproval }
func (m PaymentApproval) Fields() []interface{} {
	return []interface{}{m.PaymentId, m.PurchaseId, m.Amount, m.Currency, m.ShopId, m.Account, m.ChainId, m.Nonce}
}
func (PaymentApproval) sealed() {}

// ProvideToAddress transfers points from Provider to a wallet address.
type ProvideToAddress struct {
	Provider common.Address
	Receiver common.Address
	Amount   *big.Int
	ChainId  uint64
	Nonce    uint64
}

func (m ProvideToAddress) Kind() OperationKind { return OperationProvideToAddress }
func (m ProvideToAddress) Fields() []interface{} {
	return []interface{}{m.Provider, m.Receiver, m.Amount, m.ChainId, m.Nonce}
}
func (ProvideToAddress) sealed() {}

// ProvideToPhone transfers points from Provider to the owner of a phone number,
// identified only by its PhoneHash.
type ProvideToPhone struct {
	Provider  common.Address
	PhoneHash common.Hash
	Amount    *big.Int
	ChainId   uint64
	Nonce     uint64
}

func (m ProvideToPhone) Kind() OperationKind { return OperationProvideToPhone }
func (m ProvideToPhone) Fields() []interface{} {
	return []interface{}{m.Provider, m.PhoneHash, m.Amount, m.ChainId, m.Nonce}
}
func (ProvideToPhone) sealed() {}

// RegisterDelegate registers Delegate as the transfer assistant of Provider.
// The zero address clears the registration.
type RegisterDelegate struct {
	Provider common.Address
	Delegate common.Address
	ChainId  uint64
	Nonce    uint64
}

func (m RegisterDelegate) Kind() OperationKind { return OperationRegisterDelegate }
func (m RegisterDelegate) Fields() []interface{} {
	return []interface{}{m.Provider, m.Delegate, m.ChainId, m.Nonce}
}
func (RegisterDelegate) sealed() {}

// Encode builds the canonical message for m.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, relayerr.InvalidArgument("message is nil")
	}
	return BuildMessage(m.Kind(), m.Fields()...)
}

// HashMessage builds the canonical message for m and returns its digest.
func HashMessage(m Message) (common.Hash, error) {
	encoded, err := Encode(m)
	if err != nil {
		return common.Hash{}, err
	}
	return Hash(encoded), nil
}
