package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/acc-coin/acc-sdk-go/pkg/messageSigner"
	"github.com/acc-coin/acc-sdk-go/pkg/util"
)

// Environment variable names for the relay client configuration
const (
	EnvACCNetwork         = "ACC_NETWORK"
	EnvACCRelayURL        = "ACC_RELAY_URL"
	EnvACCPrivateKey      = "ACC_PRIVATE_KEY"
	EnvACCSignatureScheme = "ACC_SIGNATURE_SCHEME"
	EnvACCHTTPTimeout     = "ACC_HTTP_TIMEOUT"
	EnvACCRateLimit       = "ACC_RATE_LIMIT"
	EnvACCVerbose         = "ACC_VERBOSE"
)

type NetworkType string

func (n NetworkType) String() string {
	return string(n)
}

const (
	NetworkType_Testnet NetworkType = "testnet"
	NetworkType_Mainnet NetworkType = "mainnet"
)

// Endpoints are the service URLs of one deployment.
type Endpoints struct {
	Relay string
	Save  string
}

var NetworkEndpoints = map[NetworkType]*Endpoints{
	NetworkType_Testnet: {
		Relay: "https://relay.test.acccoin.io",
		Save:  "https://save.test.acccoin.io",
	},
	NetworkType_Mainnet: {
		Relay: "https://relay.main.acccoin.io",
		Save:  "https://save.main.acccoin.io",
	},
}

func GetEndpointsForNetwork(network NetworkType) (*Endpoints, error) {
	endpoints, ok := NetworkEndpoints[network]
	if !ok {
		return nil, fmt.Errorf("unsupported network: %s", network)
	}
	return endpoints, nil
}

// GetSupportedNetworksString returns supported networks for CLI help
func GetSupportedNetworksString() string {
	return fmt.Sprintf("%s, %s", NetworkType_Testnet, NetworkType_Mainnet)
}

// ClientConfig is the user facing configuration of a relay client.
type ClientConfig struct {
	Network         NetworkType   `json:"network" yaml:"network"`
	RelayURL        string        `json:"relayUrl" yaml:"relayUrl"` // overrides the network default
	PrivateKey      string        `json:"-" yaml:"-"`
	SignatureScheme string        `json:"signatureScheme" yaml:"signatureScheme"`
	HTTPTimeout     time.Duration `json:"httpTimeout" yaml:"httpTimeout"`
	RateLimit       float64       `json:"rateLimit" yaml:"rateLimit"` // requests per second, 0 disables
	Verbose         bool          `json:"verbose" yaml:"verbose"`
}

// Validate checks every field and reports all problems at once.
func (c *ClientConfig) Validate() error {
	var allErrors field.ErrorList

	if c.RelayURL == "" {
		if c.Network == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("network"), "network or relayUrl is required"))
		} else if _, ok := NetworkEndpoints[c.Network]; !ok {
			allErrors = append(allErrors, field.NotSupported(field.NewPath("network"), c.Network.String(),
				[]string{NetworkType_Testnet.String(), NetworkType_Mainnet.String()}))
		}
	} else if err := validateRelayURL(c.RelayURL); err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("relayUrl"), c.RelayURL, err.Error()))
	}

	if c.PrivateKey == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("privateKey"), "privateKey is required"))
	} else if _, err := util.StringToECDSAPrivateKey(c.PrivateKey); err != nil {
		// never echo the key itself
		allErrors = append(allErrors, field.Invalid(field.NewPath("privateKey"), "<redacted>", "must be a 32 byte hex encoded secp256k1 key"))
	}

	if _, err := messageSigner.ParseSignatureScheme(c.SignatureScheme); err != nil {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("signatureScheme"), c.SignatureScheme,
			[]string{messageSigner.SchemeRawDigest.String(), messageSigner.SchemePersonalMessage.String()}))
	}
	if c.HTTPTimeout < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("httpTimeout"), c.HTTPTimeout.String(), "must not be negative"))
	}
	if c.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimit"), c.RateLimit, "must not be negative"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// GetRelayURL returns the explicit relay URL, or the network default.
func (c *ClientConfig) GetRelayURL() (string, error) {
	if c.RelayURL != "" {
		return strings.TrimRight(c.RelayURL, "/"), nil
	}
	endpoints, err := GetEndpointsForNetwork(c.Network)
	if err != nil {
		return "", err
	}
	return endpoints.Relay, nil
}

// GetSignatureScheme returns the configured scheme, defaulting to raw digest signing.
func (c *ClientConfig) GetSignatureScheme() (messageSigner.SignatureScheme, error) {
	return messageSigner.ParseSignatureScheme(c.SignatureScheme)
}

func (c *ClientConfig) String() string {
	return fmt.Sprintf("ClientConfig{Network: %s, RelayURL: %s, SignatureScheme: %s, HTTPTimeout: %s, RateLimit: %g, Verbose: %t}",
		c.Network, c.RelayURL, c.SignatureScheme, c.HTTPTimeout, c.RateLimit, c.Verbose)
}

func validateRelayURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// LoadClientConfigFromEnv builds a ClientConfig from ACC_* environment variables.
// The result is not validated.
func LoadClientConfigFromEnv() (*ClientConfig, error) {
	cfg := &ClientConfig{
		Network:         NetworkType(strings.ToLower(os.Getenv(EnvACCNetwork))),
		RelayURL:        os.Getenv(EnvACCRelayURL),
		PrivateKey:      os.Getenv(EnvACCPrivateKey),
		SignatureScheme: os.Getenv(EnvACCSignatureScheme),
	}
	if cfg.Network == "" && cfg.RelayURL == "" {
		cfg.Network = NetworkType_Testnet
	}

	if v := os.Getenv(EnvACCHTTPTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvACCHTTPTimeout, err)
		}
		cfg.HTTPTimeout = d
	}
	if v := os.Getenv(EnvACCRateLimit); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvACCRateLimit, err)
		}
		cfg.RateLimit = r
	}
	if v := os.Getenv(EnvACCVerbose); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvACCVerbose, err)
		}
		cfg.Verbose = b
	}
	return cfg, nil
}
