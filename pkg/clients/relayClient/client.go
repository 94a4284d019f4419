package relayClient

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/acc-coin/acc-sdk-go/pkg/codec"
	"github.com/acc-coin/acc-sdk-go/pkg/config"
	"github.com/acc-coin/acc-sdk-go/pkg/messageSigner"
	"github.com/acc-coin/acc-sdk-go/pkg/messageSigner/inMemoryMessageSigner"
	"github.com/acc-coin/acc-sdk-go/pkg/oracle"
	"github.com/acc-coin/acc-sdk-go/pkg/phone"
	"github.com/acc-coin/acc-sdk-go/pkg/transport"
)

// Relay REST paths.
const (
	PathBalanceAccount    = "/v1/ledger/balance/account/"
	PathBalancePhone      = "/v1/ledger/balance/phone/"
	PathProviderStatus    = "/v1/provider/status/"
	PathAssistantRegister = "/v1/provider/assistant/register"
	PathAssistant         = "/v1/provider/assistant/"
	PathSendAccount       = "/v1/provider/send/account"
	PathSendPhoneHash     = "/v1/provider/send/phoneHash"
	PathTemporaryAccount  = "/v2/payment/account/temporary"
	PathPaymentApproval   = "/v2/payment/new/approval"
)

// ClientConfig holds the configuration for the relay client
type ClientConfig struct {
	RelayURL string
	Signer   messageSigner.IMessageSigner
	Logger   *zap.Logger
	// HTTPClient defaults to a transport.Client with default settings.
	HTTPClient transport.HTTPClient
	// PhoneNormalizer defaults to libphonenumber INTERNATIONAL formatting.
	PhoneNormalizer phone.Normalizer
}

// Client talks to the ACC relay on behalf of the account held by its signer.
// Calls for the same account must not overlap: both would sign the same nonce.
type Client struct {
	relayURL   string
	signer     messageSigner.IMessageSigner
	httpClient transport.HTTPClient
	normalizer phone.Normalizer
	nonces     *oracle.NonceOracle
	chain      *oracle.ChainOracle
	logger     *zap.Logger
}

// NewClient creates a new relay client instance with dependency injection
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.RelayURL == "" {
		return nil, fmt.Errorf("relay URL is required")
	}
	if _, err := url.ParseRequestURI(cfg.RelayURL); err != nil {
		return nil, fmt.Errorf("invalid relay URL: %w", err)
	}
	if cfg.Signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = transport.NewClient(transport.DefaultConfig(), cfg.Logger)
	}
	normalizer := cfg.PhoneNormalizer
	if normalizer == nil {
		normalizer = phone.NewLibPhoneNumberNormalizer(phone.DefaultRegion)
	}
	relayURL := strings.TrimRight(cfg.RelayURL, "/")

	cfg.Logger.Sugar().Infow("Created relay client",
		"relay_url", relayURL,
		"address", cfg.Signer.Address().Hex(),
		"signature_scheme", cfg.Signer.Scheme().String(),
	)

	return &Client{
		relayURL:   relayURL,
		signer:     cfg.Signer,
		httpClient: httpClient,
		normalizer: normalizer,
		nonces:     oracle.NewNonceOracle(relayURL, httpClient, cfg.Logger),
		chain:      oracle.NewChainOracle(relayURL, httpClient, cfg.Logger),
		logger:     cfg.Logger,
	}, nil
}

// NewClientFromConfig wires an in-memory signer and an HTTP transport from user configuration.
func NewClientFromConfig(cfg *config.ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	relayURL, err := cfg.GetRelayURL()
	if err != nil {
		return nil, err
	}
	scheme, err := cfg.GetSignatureScheme()
	if err != nil {
		return nil, err
	}
	signer, err := inMemoryMessageSigner.NewInMemoryMessageSignerFromHex(cfg.PrivateKey, scheme, logger)
	if err != nil {
		return nil, err
	}

	transportCfg := transport.DefaultConfig()
	if cfg.HTTPTimeout > 0 {
		transportCfg.BaseTimeout = cfg.HTTPTimeout
	}
	transportCfg.RateLimit = cfg.RateLimit

	return NewClient(&ClientConfig{
		RelayURL:   relayURL,
		Signer:     signer,
		Logger:     logger,
		HTTPClient: transport.NewClient(transportCfg, logger),
	})
}

// GetAddress returns the account the client signs for.
func (c *Client) GetAddress() common.Address {
	return c.signer.Address()
}

func (c *Client) endpoint(path string, segments ...string) string {
	var sb strings.Builder
	sb.WriteString(c.relayURL)
	sb.WriteString(path)
	for _, s := range segments {
		sb.WriteString(url.PathEscape(s))
	}
	return sb.String()
}

// signMessage fetches a fresh nonce and the chain id, builds the canonical
// message for the operation and signs its hash.
func (c *Client) signMessage(ctx context.Context, build func(nonce, chainId uint64) codec.Message) (string, error) {
	nonce, err := c.nonces.CurrentNonce(ctx, c.signer.Address())
	if err != nil {
		return "", fmt.Errorf("failed to fetch ledger nonce: %w", err)
	}
	chainId, err := c.chain.CurrentChainId(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch chain id: %w", err)
	}

	msg := build(nonce, chainId)
	hash, err := codec.HashMessage(msg)
	if err != nil {
		return "", err
	}
	sig, err := c.signer.SignHash(hash)
	if err != nil {
		return "", err
	}

	c.logger.Sugar().Debugw("Signed relay message",
		"operation", msg.Kind().String(),
		"nonce", nonce,
		"chain_id", chainId,
		"hash", hash.Hex(),
	)
	return hexutil.Encode(sig), nil
}

func (c *Client) get(ctx context.Context, target interface{}, path string, segments ...string) error {
	env, err := c.httpClient.Get(ctx, c.endpoint(path, segments...))
	if err != nil {
		return err
	}
	return env.Into(target)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, target interface{}) error {
	env, err := c.httpClient.Post(ctx, c.endpoint(path), body)
	if err != nil {
		return err
	}
	return env.Into(target)
}
