package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/acc-coin/acc-sdk-go/pkg/clients/relayClient"
	"github.com/acc-coin/acc-sdk-go/pkg/config"
	"github.com/acc-coin/acc-sdk-go/pkg/logger"
	"github.com/acc-coin/acc-sdk-go/pkg/util"
)

func init() {
	//nolint:errcheck
	godotenv.Load("./.env")
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "acc-client",
		Usage: "ACC relay client for providing points and answering payments",
		Description: `A client for the ACC relay.

Every state-changing command signs a canonical message with the configured
private key. The key is read from --private-key or ACC_PRIVATE_KEY and is
never printed.`,
		Version: "1.0.0",
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			{
				Name:   "address",
				Usage:  "Print the account of the configured key",
				Action: addressCommand,
			},
			{
				Name:      "balance",
				Usage:     "Get the balance of an account address or phone number",
				ArgsUsage: "<0x-address | phone-number>",
				Action:    balanceCommand,
			},
			{
				Name:  "nonce",
				Usage: "Get the ledger nonce of an account",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "account",
						Usage: "Account address (default: the configured key)",
					},
				},
				Action: nonceCommand,
			},
			{
				Name:   "chain-id",
				Usage:  "Get the side chain id",
				Action: chainIdCommand,
			},
			{
				Name:  "is-provider",
				Usage: "Check whether an account may provide points",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "account",
						Usage: "Account address (default: the configured key)",
					},
				},
				Action: isProviderCommand,
			},
			{
				Name:  "provide-address",
				Usage: "Provide points to a wallet address",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "provider",
						Usage: "Provider address (default: the configured key)",
					},
					&cli.StringFlag{
						Name:     "receiver",
						Usage:    "Receiver address",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "amount",
						Usage:    "Amount in base units",
						Required: true,
					},
				},
				Action: provideAddressCommand,
			},
			{
				Name:  "provide-phone",
				Usage: "Provide points to a phone number",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "provider",
						Usage: "Provider address (default: the configured key)",
					},
					&cli.StringFlag{
						Name:     "phone",
						Usage:    "Phone number in international format",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "amount",
						Usage:    "Amount in base units",
						Required: true,
					},
				},
				Action: providePhoneCommand,
			},
			{
				Name:  "set-delegator",
				Usage: "Register a transfer delegator for the configured account",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "delegate",
						Usage:    "Delegate address, the zero address clears it",
						Required: true,
					},
				},
				Action: setDelegatorCommand,
			},
			{
				Name:   "get-delegator",
				Usage:  "Get the transfer delegator of the configured account",
				Action: getDelegatorCommand,
			},
			{
				Name:   "temporary-account",
				Usage:  "Get a temporary payment account for the configured account",
				Action: temporaryAccountCommand,
			},
			{
				Name:  "approve-payment",
				Usage: "Approve or deny a pending payment",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "payment-id", Usage: "Payment id (bytes32 hex)", Required: true},
					&cli.StringFlag{Name: "purchase-id", Usage: "Purchase id", Required: true},
					&cli.StringFlag{Name: "amount", Usage: "Payment amount in base units", Required: true},
					&cli.StringFlag{Name: "currency", Usage: "Payment currency", Required: true},
					&cli.StringFlag{Name: "shop-id", Usage: "Shop id (bytes32 hex)", Required: true},
					&cli.BoolFlag{Name: "deny", Usage: "Deny instead of approve"},
				},
				Action: approvePaymentCommand,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// globalFlags are shared by every command; each falls back to its ACC_* variable.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "network",
			Usage:   fmt.Sprintf("Network to use (%s)", config.GetSupportedNetworksString()),
			EnvVars: []string{config.EnvACCNetwork},
			Value:   config.NetworkType_Testnet.String(),
		},
		&cli.StringFlag{
			Name:    "relay-url",
			Usage:   "Relay URL, overrides the network default",
			EnvVars: []string{config.EnvACCRelayURL},
		},
		&cli.StringFlag{
			Name:    "private-key",
			Usage:   "Hex encoded secp256k1 private key",
			EnvVars: []string{config.EnvACCPrivateKey},
		},
		&cli.StringFlag{
			Name:    "signature-scheme",
			Usage:   "Signature scheme expected by the relay (raw, personal)",
			EnvVars: []string{config.EnvACCSignatureScheme},
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "Per request HTTP timeout",
			EnvVars: []string{config.EnvACCHTTPTimeout},
			Value:   10 * time.Second,
		},
		&cli.Float64Flag{
			Name:    "rate-limit",
			Usage:   "Maximum relay requests per second, 0 disables limiting",
			EnvVars: []string{config.EnvACCRateLimit},
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Usage:   "Enable debug logging",
			EnvVars: []string{config.EnvACCVerbose},
		},
	}
}

// clientConfigFromFlags maps the global flags onto a client configuration.
func clientConfigFromFlags(c *cli.Context) *config.ClientConfig {
	return &config.ClientConfig{
		Network:         config.NetworkType(c.String("network")),
		RelayURL:        c.String("relay-url"),
		PrivateKey:      c.String("private-key"),
		SignatureScheme: c.String("signature-scheme"),
		HTTPTimeout:     c.Duration("timeout"),
		RateLimit:       c.Float64("rate-limit"),
		Verbose:         c.Bool("verbose"),
	}
}

// createClient creates a new relay client from CLI context
func createClient(c *cli.Context) (*relayClient.Client, error) {
	cfg := clientConfigFromFlags(c)

	zapLogger, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Verbose})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	client, err := relayClient.NewClientFromConfig(cfg, zapLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create relay client: %w", err)
	}
	return client, nil
}

// accountOrSelf parses the named flag, defaulting to the client's own account.
func accountOrSelf(c *cli.Context, client *relayClient.Client, name string) (common.Address, error) {
	raw := c.String(name)
	if raw == "" {
		return client.GetAddress(), nil
	}
	addr, err := util.ParseAddress(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return addr, nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func addressCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	fmt.Println(client.GetAddress().Hex())
	return nil
}

func balanceCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one address or phone number")
	}
	client, err := createClient(c)
	if err != nil {
		return err
	}
	balance, err := client.GetBalance(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	return printJSON(balance)
}

func nonceCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	account, err := accountOrSelf(c, client, "account")
	if err != nil {
		return err
	}
	nonce, err := client.GetLedgerNonceOf(c.Context, account)
	if err != nil {
		return err
	}
	fmt.Printf("%d\n", nonce)
	return nil
}

func chainIdCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	chainId, err := client.GetChainId(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("%d\n", chainId)
	return nil
}

func isProviderCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	account, err := accountOrSelf(c, client, "account")
	if err != nil {
		return err
	}
	enabled, err := client.IsProvider(c.Context, account)
	if err != nil {
		return err
	}
	fmt.Printf("%t\n", enabled)
	return nil
}

func provideAddressCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	provider, err := accountOrSelf(c, client, "provider")
	if err != nil {
		return err
	}
	receiver, err := util.ParseAddress(c.String("receiver"))
	if err != nil {
		return fmt.Errorf("invalid --receiver: %w", err)
	}
	amount, err := util.ParseAmount(c.String("amount"))
	if err != nil {
		return fmt.Errorf("invalid --amount: %w", err)
	}

	txHash, err := client.ProvideToAddress(c.Context, provider, receiver, amount)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Provided %s points to %s\n  tx: %s\n", amount.String(), receiver.Hex(), txHash)
	return nil
}

func providePhoneCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	provider, err := accountOrSelf(c, client, "provider")
	if err != nil {
		return err
	}
	amount, err := util.ParseAmount(c.String("amount"))
	if err != nil {
		return fmt.Errorf("invalid --amount: %w", err)
	}

	txHash, err := client.ProvideToPhone(c.Context, provider, c.String("phone"), amount)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Provided %s points to phone number\n  tx: %s\n", amount.String(), txHash)
	return nil
}

func setDelegatorCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	delegate, err := util.ParseAddress(c.String("delegate"))
	if err != nil {
		return fmt.Errorf("invalid --delegate: %w", err)
	}
	txHash, err := client.SetTransferDelegator(c.Context, delegate)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Registered delegator %s\n  tx: %s\n", delegate.Hex(), txHash)
	return nil
}

func getDelegatorCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	delegate, err := client.GetTransferDelegator(c.Context)
	if err != nil {
		return err
	}
	fmt.Println(delegate.Hex())
	return nil
}

func temporaryAccountCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	account, err := client.GetTemporaryAccount(c.Context)
	if err != nil {
		return err
	}
	fmt.Println(account)
	return nil
}

func approvePaymentCommand(c *cli.Context) error {
	client, err := createClient(c)
	if err != nil {
		return err
	}
	amount, err := util.ParseAmount(c.String("amount"))
	if err != nil {
		return fmt.Errorf("invalid --amount: %w", err)
	}

	item, err := client.ApproveNewPayment(c.Context,
		c.String("payment-id"),
		c.String("purchase-id"),
		amount,
		c.String("currency"),
		c.String("shop-id"),
		!c.Bool("deny"),
	)
	if err != nil {
		return err
	}
	return printJSON(item)
}
