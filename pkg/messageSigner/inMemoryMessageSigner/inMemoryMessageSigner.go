package inMemoryMessageSigner

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/acc-coin/acc-sdk-go/pkg/messageSigner"
	"github.com/acc-coin/acc-sdk-go/pkg/relayerr"
)

type InMemoryMessageSigner struct {
	logger     *zap.Logger
	credential *messageSigner.Credential
	scheme     messageSigner.SignatureScheme
}

// NewInMemoryMessageSigner signs with a key held in process memory.
func NewInMemoryMessageSigner(
	credential *messageSigner.Credential,
	scheme messageSigner.SignatureScheme,
	logger *zap.Logger,
) (*InMemoryMessageSigner, error) {
	if credential == nil {
		return nil, relayerr.InvalidKey("credential is required", nil)
	}
	if credential.Destroyed() {
		return nil, relayerr.InvalidKey("credential has been destroyed", nil)
	}
	if scheme == "" {
		scheme = messageSigner.DefaultSignatureScheme
	}
	if _, err := scheme.Digest(common.Hash{}); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Sugar().Infow("Created in-memory message signer",
		"address", credential.Address().Hex(),
		"signature_scheme", scheme.String(),
	)

	return &InMemoryMessageSigner{
		logger:     logger,
		credential: credential,
		scheme:     scheme,
	}, nil
}

// NewInMemoryMessageSignerFromHex is a convenience constructor for a hex encoded key.
func NewInMemoryMessageSignerFromHex(
	privateKey string,
	scheme messageSigner.SignatureScheme,
	logger *zap.Logger,
) (*InMemoryMessageSigner, error) {
	credential, err := messageSigner.NewCredentialFromHex(privateKey)
	if err != nil {
		return nil, err
	}
	return NewInMemoryMessageSigner(credential, scheme, logger)
}

func (s *InMemoryMessageSigner) Address() common.Address {
	return s.credential.Address()
}

func (s *InMemoryMessageSigner) Scheme() messageSigner.SignatureScheme {
	return s.scheme
}

// SignHash signs hash under the configured scheme. The returned v is 27 or 28.
func (s *InMemoryMessageSigner) SignHash(hash common.Hash) ([]byte, error) {
	digest, err := s.scheme.Digest(hash)
	if err != nil {
		return nil, err
	}

	sig, err := s.credential.Sign(digest)
	if err != nil {
		if relayerr.IsKind(err, relayerr.KindInvalidKey) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to sign message hash: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	s.logger.Sugar().Debugw("Signed message hash",
		"hash", hash.Hex(),
		"signature_scheme", s.scheme.String(),
	)
	return sig, nil
}

// Destroy wipes the underlying key.
func (s *InMemoryMessageSigner) Destroy() {
	s.credential.Destroy()
}

var _ messageSigner.IMessageSigner = (*InMemoryMessageSigner)(nil)
