package oracle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acc-coin/acc-sdk-go/pkg/envelope"
	"github.com/acc-coin/acc-sdk-go/pkg/relayerr"
)

const relayURL = "http://relay.local/"

type fakeHTTPClient struct {
	mu    sync.Mutex
	calls map[string]int
	get   func(url string) (*envelope.Envelope, error)
}

func (f *fakeHTTPClient) Get(_ context.Context, url string) (*envelope.Envelope, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[url]++
	f.mu.Unlock()
	return f.get(url)
}

func (f *fakeHTTPClient) Post(_ context.Context, url string, _ interface{}) (*envelope.Envelope, error) {
	return nil, errors.New("unexpected post to " + url)
}

func (f *fakeHTTPClient) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func decode(t *testing.T, body string) *envelope.Envelope {
	t.Helper()
	env, err := envelope.Decode([]byte(body))
	require.NoError(t, err)
	return env
}

func TestNonceOracle_NeverCached(t *testing.T) {
	account := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	var nonce int64 = 5
	client := &fakeHTTPClient{}
	client.get = func(url string) (*envelope.Envelope, error) {
		n := atomic.AddInt64(&nonce, 1) - 1
		env, err := envelope.Success(map[string]interface{}{"account": account.Hex(), "nonce": n})
		return env, err
	}

	o := NewNonceOracle(relayURL, client, zap.NewNop())
	first, err := o.CurrentNonce(context.Background(), account)
	require.NoError(t, err)
	second, err := o.CurrentNonce(context.Background(), account)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), first)
	assert.Equal(t, uint64(6), second)
	assert.Equal(t, 2, client.count("http://relay.local/v1/ledger/nonce/"+account.Hex()))
}

func TestNonceOracle_Errors(t *testing.T) {
	account := common.HexToAddress("0x01")
	tests := []struct {
		name string
		body string
		err  error
	}{
		{"rejected", `{"code":2001,"error":{"message":"unknown account"}}`, relayerr.ErrRelayRejected},
		{"no data", `{"code":0}`, relayerr.ErrRelayUnavailable},
		{"bad nonce", `{"code":0,"data":{"nonce":"abc"}}`, relayerr.ErrRelayUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeHTTPClient{get: func(string) (*envelope.Envelope, error) { return decode(t, tt.body), nil }}
			_, err := NewNonceOracle(relayURL, client, zap.NewNop()).CurrentNonce(context.Background(), account)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestChainOracle_MemoizedUnderConcurrency(t *testing.T) {
	release := make(chan struct{})
	client := &fakeHTTPClient{}
	client.get = func(string) (*envelope.Envelope, error) {
		<-release
		return envelope.Success(map[string]string{"chainId": "215110"})
	}
	o := NewChainOracle(relayURL, client, zap.NewNop())

	const callers = 16
	var wg sync.WaitGroup
	results := make([]uint64, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = o.CurrentChainId(context.Background())
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, uint64(215110), results[i])
	}

	again, err := o.CurrentChainId(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(215110), again)
	assert.Equal(t, 1, client.count("http://relay.local"+ChainIdPath))
}

func TestChainOracle_FailureNotMemoized(t *testing.T) {
	var attempts int32
	client := &fakeHTTPClient{}
	client.get = func(string) (*envelope.Envelope, error) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return nil, relayerr.RelayUnavailable("connection refused", nil)
		}
		return envelope.Success(map[string]int{"chainId": 1})
	}
	o := NewChainOracle(relayURL, client, zap.NewNop())

	_, err := o.CurrentChainId(context.Background())
	assert.ErrorIs(t, err, relayerr.ErrRelayUnavailable)

	id, err := o.CurrentChainId(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestChainOracle_ZeroChainIdRejected(t *testing.T) {
	client := &fakeHTTPClient{get: func(string) (*envelope.Envelope, error) {
		return envelope.Success(map[string]int{"chainId": 0})
	}}
	_, err := NewChainOracle(relayURL, client, zap.NewNop()).CurrentChainId(context.Background())
	assert.ErrorIs(t, err, relayerr.ErrRelayUnavailable)
}

func TestChainOracle_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	client := &fakeHTTPClient{get: func(string) (*envelope.Envelope, error) {
		<-release
		return envelope.Success(map[string]int{"chainId": 7})
	}}
	o := NewChainOracle(relayURL, client, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.CurrentChainId(ctx)
	assert.ErrorIs(t, err, relayerr.ErrRelayUnavailable)
	assert.ErrorIs(t, err, context.Canceled)

	// the shared lookup keeps running and serves later callers
	close(release)
	id, err := o.CurrentChainId(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
}
