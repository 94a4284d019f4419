package messageSigner

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/acc-coin/acc-sdk-go/pkg/relayerr"
)

// SignatureLength is the length of an r || s || v signature.
const SignatureLength = crypto.SignatureLength

// SignatureScheme selects what digest is actually passed to secp256k1.
type SignatureScheme string

const (
	// SchemeRawDigest signs the 32-byte message hash as is.
	SchemeRawDigest SignatureScheme = "raw"
	// SchemePersonalMessage signs keccak256("\x19Ethereum Signed Message:\n32" || hash).
	SchemePersonalMessage SignatureScheme = "personal"
)

// DefaultSignatureScheme is used when no scheme is configured.
const DefaultSignatureScheme = SchemeRawDigest

// ParseSignatureScheme maps a configuration value onto a scheme. Empty selects the default.
func ParseSignatureScheme(value string) (SignatureScheme, error) {
	switch SignatureScheme(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return DefaultSignatureScheme, nil
	case SchemeRawDigest:
		return SchemeRawDigest, nil
	case SchemePersonalMessage:
		return SchemePersonalMessage, nil
	default:
		return "", relayerr.InvalidArgument("unsupported signature scheme %q", value)
	}
}

func (s SignatureScheme) String() string {
	return string(s)
}

// Digest returns the 32 bytes the scheme actually signs for hash.
func (s SignatureScheme) Digest(hash common.Hash) ([]byte, error) {
	switch s {
	case SchemeRawDigest:
		return hash.Bytes(), nil
	case SchemePersonalMessage:
		return accounts.TextHash(hash.Bytes()), nil
	default:
		return nil, relayerr.InvalidArgument("unsupported signature scheme %q", string(s))
	}
}

// IMessageSigner signs canonical message hashes on behalf of a single account.
type IMessageSigner interface {
	Address() common.Address
	// SignHash returns a 65 byte signature with v in {27, 28}.
	SignHash(hash common.Hash) ([]byte, error)
	Scheme() SignatureScheme
}

// RecoverAddress returns the account that produced signature over hash under scheme.
func RecoverAddress(hash common.Hash, signature []byte, scheme SignatureScheme) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, relayerr.InvalidArgument("invalid signature length: expected %d bytes, got %d", SignatureLength, len(signature))
	}
	digest, err := scheme.Digest(hash)
	if err != nil {
		return common.Address{}, err
	}

	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, relayerr.InvalidArgument("failed to recover public key: %v", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature reports whether signature over hash was produced by expected.
func VerifySignature(hash common.Hash, signature []byte, scheme SignatureScheme, expected common.Address) error {
	recovered, err := RecoverAddress(hash, signature, scheme)
	if err != nil {
		return err
	}
	if recovered != expected {
		return fmt.Errorf("signature recovered %s, expected %s", recovered.Hex(), expected.Hex())
	}
	return nil
}
