package oracle

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/acc-coin/acc-sdk-go/pkg/relayerr"
	"github.com/acc-coin/acc-sdk-go/pkg/transport"
	"github.com/acc-coin/acc-sdk-go/pkg/types"
)

const (
	NoncePath   = "/v1/ledger/nonce/"
	ChainIdPath = "/v1/chain/side/id"
)

// NonceOracle reads the relay ledger nonce of an account. Nonces are never
// cached: the relay consumes one per accepted request.
type NonceOracle struct {
	relayURL   string
	httpClient transport.HTTPClient
	logger     *zap.Logger
}

func NewNonceOracle(relayURL string, httpClient transport.HTTPClient, logger *zap.Logger) *NonceOracle {
	return &NonceOracle{
		relayURL:   strings.TrimRight(relayURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// CurrentNonce fetches the nonce the next signed request by account must carry.
func (o *NonceOracle) CurrentNonce(ctx context.Context, account common.Address) (uint64, error) {
	env, err := o.httpClient.Get(ctx, o.relayURL+NoncePath+account.Hex())
	if err != nil {
		return 0, err
	}
	var resp types.NonceResponse
	if err := env.Into(&resp); err != nil {
		return 0, err
	}
	o.logger.Sugar().Debugw("Fetched ledger nonce",
		"account", account.Hex(),
		"nonce", uint64(resp.Nonce),
	)
	return uint64(resp.Nonce), nil
}

// ChainOracle fetches the side chain id once and memoizes it for its lifetime.
// Concurrent first callers share a single request; failures are not memoized.
type ChainOracle struct {
	relayURL   string
	httpClient transport.HTTPClient
	logger     *zap.Logger

	mu      sync.RWMutex
	chainId uint64
	known   bool
	group   singleflight.Group
}

func NewChainOracle(relayURL string, httpClient transport.HTTPClient, logger *zap.Logger) *ChainOracle {
	return &ChainOracle{
		relayURL:   strings.TrimRight(relayURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// CurrentChainId returns the memoized chain id, fetching it on first use.
func (o *ChainOracle) CurrentChainId(ctx context.Context) (uint64, error) {
	if id, ok := o.cached(); ok {
		return id, nil
	}

	ch := o.group.DoChan("chainId", func() (interface{}, error) {
		if id, ok := o.cached(); ok {
			return id, nil
		}
		// shared by every waiter; each caller's ctx only bounds its own wait
		id, err := o.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return uint64(0), err
		}
		o.mu.Lock()
		o.chainId, o.known = id, true
		o.mu.Unlock()
		o.logger.Sugar().Infow("Resolved chain id", "chain_id", id)
		return id, nil
	})

	select {
	case <-ctx.Done():
		return 0, relayerr.RelayUnavailable("chain id lookup aborted", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(uint64), nil
	}
}

func (o *ChainOracle) cached() (uint64, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.chainId, o.known
}

func (o *ChainOracle) fetch(ctx context.Context) (uint64, error) {
	env, err := o.httpClient.Get(ctx, o.relayURL+ChainIdPath)
	if err != nil {
		return 0, err
	}
	var resp types.ChainIdResponse
	if err := env.Into(&resp); err != nil {
		return 0, err
	}
	if resp.ChainId == 0 {
		return 0, relayerr.RelayUnavailable(fmt.Sprintf("relay reported chain id %d", resp.ChainId), nil)
	}
	return uint64(resp.ChainId), nil
}
