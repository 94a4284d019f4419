package messageSigner

import (
	"crypto/ecdsa"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/acc-coin/acc-sdk-go/pkg/relayerr"
	"github.com/acc-coin/acc-sdk-go/pkg/util"
)

const redacted = "Credential(REDACTED)"

// Credential holds a secp256k1 private key. It never renders the key in logs,
// fmt output or JSON, and Destroy wipes it from memory.
type Credential struct {
	mu      sync.RWMutex
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewCredentialFromHex parses a 64 character hex key, with or without 0x prefix.
func NewCredentialFromHex(hexKey string) (*Credential, error) {
	key, err := util.StringToECDSAPrivateKey(hexKey)
	if err != nil {
		// the parse error may echo input characters
		return nil, relayerr.InvalidKey("malformed private key", nil)
	}
	return newCredential(key)
}

// NewCredentialFromBytes builds a credential from a raw 32 byte key. The caller keeps ownership of raw.
func NewCredentialFromBytes(raw []byte) (*Credential, error) {
	if len(raw) != 32 {
		return nil, relayerr.InvalidKey("private key must be 32 bytes", nil)
	}
	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, relayerr.InvalidKey("malformed private key", nil)
	}
	return newCredential(key)
}

func newCredential(key *ecdsa.PrivateKey) (*Credential, error) {
	address, err := util.DeriveAddressFromECDSAPrivateKey(key)
	if err != nil {
		return nil, relayerr.InvalidKey("failed to derive address", err)
	}
	return &Credential{key: key, address: address}, nil
}

// Address is the account controlled by the key. It stays readable after Destroy.
func (c *Credential) Address() common.Address {
	return c.address
}

// Destroyed reports whether Destroy has been called.
func (c *Credential) Destroyed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key == nil
}

// Destroy zeroes the private scalar. Later signing attempts fail with InvalidKey.
func (c *Credential) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key == nil {
		return
	}
	b := c.key.D.Bits()
	clear(b)
	c.key = nil
}

// Sign produces a recoverable signature with v in {0, 1}.
func (c *Credential) Sign(digest []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.key == nil {
		return nil, relayerr.InvalidKey("credential has been destroyed", nil)
	}
	return crypto.Sign(digest, c.key)
}

func (c *Credential) String() string {
	return redacted
}

func (c *Credential) GoString() string {
	return redacted
}

func (c *Credential) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (c *Credential) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}
