package codec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/acc-coin/acc-sdk-go/pkg/relayerr"
)

/*
Canonical message layouts

Every signed relay request is authenticated by an ECDSA signature over
keccak256(abi.encode(fields...)). The field order and ABI types below are the
wire contract shared with the relay and the on-chain contracts. Changing any
of them is a protocol change, never a bug fix.

	AccountBinding:   address account, uint256 nonce, uint256 chainId
	PaymentApproval:  bytes32 paymentId, string purchaseId, uint256 amount, string currency,
	                  bytes32 shopId, address account, uint256 chainId, uint256 nonce
	ProvideToAddress: address provider, address receiver, uint256 amount, uint256 chainId, uint256 nonce
	ProvideToPhone:   address provider, bytes32 phoneHash, uint256 amount, uint256 chainId, uint256 nonce
	RegisterDelegate: address provider, address delegate, uint256 chainId, uint256 nonce

Note the nonce/chainId order differs between AccountBinding and the others.
*/

// OperationKind tags each canonical message layout.
type OperationKind uint8

const (
	OperationUnknown OperationKind = iota
	OperationAccountBinding
	OperationPaymentApproval
	OperationProvideToAddress
	OperationProvideToPhone
	OperationRegisterDelegate
)

func (k OperationKind) String() string {
	switch k {
	case OperationAccountBinding:
		return "AccountBinding"
	case OperationPaymentApproval:
		return "PaymentApproval"
	case OperationProvideToAddress:
		return "ProvideToAddress"
	case OperationProvideToPhone:
		return "ProvideToPhone"
	case OperationRegisterDelegate:
		return "RegisterDelegate"
	default:
		return fmt.Sprintf("OperationKind(%d)", uint8(k))
	}
}

// FieldType is the ABI type of a single message field.
type FieldType string

const (
	FieldTypeAddress FieldType = "address"
	FieldTypeUint256 FieldType = "uint256"
	FieldTypeBytes32 FieldType = "bytes32"
	FieldTypeString  FieldType = "string"
)

// Field describes one position in a canonical message.
type Field struct {
	Name string
	Type FieldType
}

var layouts = map[OperationKind][]Field{
	OperationAccountBinding: {
		{Name: "account", Type: FieldTypeAddress},
		{Name: "nonce", Type: FieldTypeUint256},
		{Name: "chainId", Type: FieldTypeUint256},
	},
	OperationPaymentApproval: {
		{Name: "paymentId", Type: FieldTypeBytes32},
		{Name: "purchaseId", Type: FieldTypeString},
		{Name: "amount", Type: FieldTypeUint256},
		{Name: "currency", Type: FieldTypeString},
		{Name: "shopId", Type: FieldTypeBytes32},
		{Name: "account", Type: FieldTypeAddress},
		{Name: "chainId", Type: FieldTypeUint256},
		{Name: "nonce", Type: FieldTypeUint256},
	},
	OperationProvideToAddress: {
		{Name: "provider", Type: FieldTypeAddress},
		{Name: "receiver", Type: FieldTypeAddress},
		{Name: "amount", Type: FieldTypeUint256},
		{Name: "chainId", Type: FieldTypeUint256},
		{Name: "nonce", Type: FieldTypeUint256},
	},
	OperationProvideToPhone: {
		{Name: "provider", Type: FieldTypeAddress},
		{Name: "phoneHash", Type: FieldTypeBytes32},
		{Name: "amount", Type: FieldTypeUint256},
		{Name: "chainId", Type: FieldTypeUint256},
		{Name: "nonce", Type: FieldTypeUint256},
	},
	OperationRegisterDelegate: {
		{Name: "provider", Type: FieldTypeAddress},
		{Name: "delegate", Type: FieldTypeAddress},
		{Name: "chainId", Type: FieldTypeUint256},
		{Name: "nonce", Type: FieldTypeUint256},
	},
}

var (
	abiTypes  = map[FieldType]abi.Type{}
	arguments = map[OperationKind]abi.Arguments{}
)

func init() {
	for _, ft := range []FieldType{FieldTypeAddress, FieldTypeUint256, FieldTypeBytes32, FieldTypeString} {
		t, err := abi.NewType(string(ft), "", nil)
		if err != nil {
			panic(fmt.Sprintf("codec: failed to build ABI type %s: %v", ft, err))
		}
		abiTypes[ft] = t
	}
	for kind, fields := range layouts {
		args := make(abi.Arguments, 0, len(fields))
		for _, f := range fields {
			args = append(args, abi.Argument{Name: f.Name, Type: abiTypes[f.Type]})
		}
		arguments[kind] = args
	}
}

// Layout returns a copy of the field layout for kind.
func Layout(kind OperationKind) ([]Field, error) {
	fields, ok := layouts[kind]
	if !ok {
		return nil, relayerr.InvalidArgument("unknown operation kind %s", kind)
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return out, nil
}

// BuildMessage ABI-encodes the ordered field values for kind into its canonical message.
func BuildMessage(kind OperationKind, values ...interface{}) ([]byte, error) {
	fields, ok := layouts[kind]
	if !ok {
		return nil, relayerr.InvalidArgument("unknown operation kind %s", kind)
	}
	if len(values) != len(fields) {
		return nil, relayerr.InvalidArgument("%s expects %d fields, got %d", kind, len(fields), len(values))
	}

	normalized := make([]interface{}, len(values))
	for i, f := range fields {
		v, err := normalizeField(f, values[i])
		if err != nil {
			return nil, err
		}
		normalized[i] = v
	}

	encoded, err := arguments[kind].Pack(normalized...)
	if err != nil {
		return nil, relayerr.InvalidArgument("failed to encode %s: %v", kind, err)
	}
	return encoded, nil
}

// Hash reduces a canonical message to the 32-byte digest that gets signed.
func Hash(message []byte) common.Hash {
	return crypto.Keccak256Hash(message)
}

func normalizeField(f Field, value interface{}) (interface{}, error) {
	switch f.Type {
	case FieldTypeAddress:
		return toAddress(f.Name, value)
	case FieldTypeUint256:
		return toUint256(f.Name, value)
	case FieldTypeBytes32:
		return toBytes32(f.Name, value)
	case FieldTypeString:
		s, ok := value.(string)
		if !ok {
			return nil, relayerr.InvalidArgument("field %s must be a string, got %T", f.Name, value)
		}
		return s, nil
	default:
		return nil, relayerr.InvalidArgument("field %s has unsupported type %s", f.Name, f.Type)
	}
}

func toAddress(name string, value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case [20]byte:
		return common.Address(v), nil
	case []byte:
		if len(v) != common.AddressLength {
			return common.Address{}, relayerr.InvalidArgument("field %s must be exactly %d bytes, got %d", name, common.AddressLength, len(v))
		}
		return common.BytesToAddress(v), nil
	default:
		return common.Address{}, relayerr.InvalidArgument("field %s must be an address, got %T", name, value)
	}
}

func toUint256(name string, value interface{}) (*big.Int, error) {
	var n *big.Int
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, relayerr.InvalidArgument("field %s is nil", name)
		}
		n = new(big.Int).Set(v)
	case uint64:
		n = new(big.Int).SetUint64(v)
	case int64:
		n = big.NewInt(v)
	case int:
		n = big.NewInt(int64(v))
	default:
		return nil, relayerr.InvalidArgument("field %s must be an unsigned integer, got %T", name, value)
	}
	if err := CheckUint256(name, n); err != nil {
		return nil, err
	}
	return n, nil
}

// CheckUint256 rejects nil, negative, and wider-than-256-bit values.
func CheckUint256(name string, n *big.Int) error {
	if n == nil {
		return relayerr.InvalidArgument("field %s is nil", name)
	}
	if n.Sign() < 0 {
		return relayerr.InvalidArgument("field %s must be non-negative, got %s", name, n.String())
	}
	if n.BitLen() > 256 {
		return relayerr.InvalidArgument("field %s exceeds 256 bits", name)
	}
	return nil
}

func toBytes32(name string, value interface{}) ([32]byte, error) {
	var out [32]byte
	switch v := value.(type) {
	case [32]byte:
		return v, nil
	case common.Hash:
		return v, nil
	case []byte:
		if len(v) != 32 {
			return out, relayerr.InvalidArgument("field %s must be exactly 32 bytes, got %d", name, len(v))
		}
		copy(out[:], v)
		return out, nil
	default:
		return out, relayerr.InvalidArgument("field %s must be bytes32, got %T", name, value)
	}
}
