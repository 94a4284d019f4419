package relayClient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acc-coin/acc-sdk-go/pkg/codec"
	"github.com/acc-coin/acc-sdk-go/pkg/config"
	"github.com/acc-coin/acc-sdk-go/pkg/messageSigner"
	"github.com/acc-coin/acc-sdk-go/pkg/messageSigner/inMemoryMessageSigner"
	"github.com/acc-coin/acc-sdk-go/pkg/relayerr"
	"github.com/acc-coin/acc-sdk-go/pkg/testutil"
	"github.com/acc-coin/acc-sdk-go/pkg/transport"
	"github.com/acc-coin/acc-sdk-go/pkg/types"
)

const (
	providerKey  = "0x70438bc3ed02b5e4b76d496625cb7c06d6b7bf4362295b16fdfe91a046d4586c"
	testPhone    = "+82 10-1000-2000"
	compactPhone = "+821010002000"
)

var receiver = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

func hundredPoints() *big.Int {
	return new(big.Int).Mul(big.NewInt(100), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func assertAmount(t *testing.T, expected, actual *big.Int) {
	t.Helper()
	require.NotNil(t, actual)
	assert.Equal(t, expected.String(), actual.String())
}

func testTransportConfig() *transport.Config {
	cfg := transport.DefaultConfig()
	cfg.BaseTimeout = 5 * time.Second
	cfg.Retry = transport.RetryConfig{
		MaxAttempts:     3,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      5 * time.Millisecond,
		BackoffMultiple: 2,
		MaxJitter:       time.Millisecond,
	}
	return cfg
}

func newTestSigner(t *testing.T, key string, scheme messageSigner.SignatureScheme) *inMemoryMessageSigner.InMemoryMessageSigner {
	t.Helper()
	signer, err := inMemoryMessageSigner.NewInMemoryMessageSignerFromHex(key, scheme, zap.NewNop())
	require.NoError(t, err)
	return signer
}

func newTestClient(t *testing.T, relay *testutil.FakeRelay, signer messageSigner.IMessageSigner) *Client {
	t.Helper()
	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	client, err := NewClient(&ClientConfig{
		RelayURL:   relay.URL,
		Signer:     signer,
		Logger:     logger,
		HTTPClient: transport.NewClient(testTransportConfig(), logger),
	})
	require.NoError(t, err)
	return client
}

func newRandomKey(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return hexutil.Encode(crypto.FromECDSA(key))
}

func TestNewClient_Validation(t *testing.T) {
	signer := newTestSigner(t, providerKey, messageSigner.SchemeRawDigest)
	logger := zap.NewNop()

	tests := []struct {
		name   string
		cfg    *ClientConfig
		errMsg string
	}{
		{"nil config", nil, "config cannot be nil"},
		{"missing relay", &ClientConfig{Signer: signer, Logger: logger}, "relay URL is required"},
		{"bad relay", &ClientConfig{RelayURL: "relay", Signer: signer, Logger: logger}, "invalid relay URL"},
		{"missing signer", &ClientConfig{RelayURL: "http://relay", Logger: logger}, "signer is required"},
		{"missing logger", &ClientConfig{RelayURL: "http://relay", Signer: signer}, "logger is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	client, err := NewClient(&ClientConfig{RelayURL: "http://relay/", Signer: signer, Logger: logger})
	require.NoError(t, err)
	assert.Equal(t, "http://relay", client.relayURL)
	assert.Equal(t, signer.Address(), client.GetAddress())
}

func TestNewClientFromConfig(t *testing.T) {
	relay := testutil.NewFakeRelay(t, testutil.WithChainId(215110))

	client, err := NewClientFromConfig(&config.ClientConfig{
		RelayURL:    relay.URL,
		PrivateKey:  providerKey,
		HTTPTimeout: 3 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)

	chainId, err := client.GetChainId(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(215110), chainId)

	_, err = NewClientFromConfig(&config.ClientConfig{Network: config.NetworkType_Testnet}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "privateKey is required")
}

func TestProvideToAddress_PostsCanonicalBody(t *testing.T) {
	relay := testutil.NewFakeRelay(t, testutil.WithChainId(1))
	signer := newTestSigner(t, providerKey, messageSigner.SchemeRawDigest)
	provider := signer.Address()
	relay.RegisterProvider(provider)
	relay.SetNonce(provider, 5)

	client := newTestClient(t, relay, signer)
	txHash, err := client.ProvideToAddress(context.Background(), provider, receiver, hundredPoints())
	require.NoError(t, err)
	assert.NotEmpty(t, txHash)

	hash, err := codec.HashMessage(codec.ProvideToAddress{
		Provider: provider,
		Receiver: receiver,
		Amount:   hundredPoints(),
		ChainId:  1,
		Nonce:    5,
	})
	require.NoError(t, err)
	expectedSig, err := signer.SignHash(hash)
	require.NoError(t, err)

	bodies := relay.Requests(http.MethodPost, testutil.RouteSendAccount)
	require.Len(t, bodies, 1)
	assert.JSONEq(t, fmt.Sprintf(`{
		"provider": %q,
		"receiver": %q,
		"amount": "100000000000000000000",
		"signature": %q
	}`, provider.Hex(), receiver.Hex(), hexutil.Encode(expectedSig)), string(bodies[0]))

	assert.Equal(t, uint64(6), relay.Nonce(provider))
	assertAmount(t, hundredPoints(), relay.PointBalance(receiver))

	balance, err := client.GetBalance(context.Background(), receiver.Hex())
	require.NoError(t, err)
	assertAmount(t, hundredPoints(), balance.Point.Balance.Big())
	assert.Equal(t, 1, relay.Hits(http.MethodGet, testutil.RouteBalanceAccount))
}

func TestProvideToPhone(t *testing.T) {
	relay := testutil.NewFakeRelay(t)
	signer := newTestSigner(t, providerKey, messageSigner.SchemeRawDigest)
	provider := signer.Address()
	relay.RegisterProvider(provider)

	client := newTestClient(t, relay, signer)
	_, err := client.ProvideToPhone(context.Background(), provider, compactPhone, big.NewInt(2500))
	require.NoError(t, err)

	bodies := relay.Requests(http.MethodPost, testutil.RouteSendPhoneHash)
	require.Len(t, bodies, 1)
	var req types.ProvideToPhoneRequest
	require.NoError(t, json.Unmarshal(bodies[0], &req))
	assert.Equal(t, codec.PhoneHash(testPhone).Hex(), req.Receiver)
	assert.NotContains(t, string(bodies[0]), "1000-2000")
	assert.Equal(t, "2500", req.Amount)

	assertAmount(t, big.NewInt(2500), relay.PhonePointBalance(testPhone))

	for _, input := range []string{testPhone, compactPhone} {
		balance, err := client.GetBalance(context.Background(), input)
		require.NoError(t, err)
		assertAmount(t, big.NewInt(2500), balance.Point.Balance.Big())
	}
	assert.Equal(t, 2, relay.Hits(http.MethodGet, testutil.RouteBalancePhone))
}

func TestInvalidInputs_MakeNoNetworkCalls(t *testing.T) {
	relay := testutil.NewFakeRelay(t)
	signer := newTestSigner(t, providerKey, messageSigner.SchemeRawDigest)
	client := newTestClient(t, relay, signer)
	ctx := context.Background()
	provider := signer.Address()

	_, err := client.ProvideToPhone(ctx, provider, "not-a-phone", big.NewInt(1))
	assert.ErrorIs(t, err, relayerr.ErrInvalidPhoneNumber)

	_, err = client.GetBalancePhone(ctx, "not-a-phone")
	assert.ErrorIs(t, err, relayerr.ErrInvalidPhoneNumber)

	_, err = client.GetBalance(ctx, "0x1234")
	assert.ErrorIs(t, err, relayerr.ErrInvalidPhoneNumber)

	tooWide := new(big.Int).Lsh(big.NewInt(1), 256)
	for _, amount := range []*big.Int{nil, big.NewInt(-1), tooWide} {
		_, err = client.ProvideToAddress(ctx, provider, receiver, amount)
		assert.ErrorIs(t, err, relayerr.ErrInvalidArgument)
		_, err = client.ProvideToPhone(ctx, provider, testPhone, amount)
		assert.ErrorIs(t, err, relayerr.ErrInvalidArgument)
	}

	validId := "0x" + fmt.Sprintf("%064x", 1)
	_, err = client.ApproveNewPayment(ctx, "0x1234", "P1", big.NewInt(1), "krw", validId, true)
	assert.ErrorIs(t, err, relayerr.ErrInvalidArgument)
	_, err = client.ApproveNewPayment(ctx, validId, "P1", big.NewInt(1), "krw", "shop", true)
	assert.ErrorIs(t, err, relayerr.ErrInvalidArgument)
	_, err = client.ApproveNewPayment(ctx, validId, "P1", big.NewInt(-5), "krw", validId, true)
	assert.ErrorIs(t, err, relayerr.ErrInvalidArgument)

	assert.Equal(t, 0, relay.TotalHits())
}

func TestNonceFetchedBeforeEverySignature(t *testing.T) {
	relay := testutil.NewFakeRelay(t, testutil.WithChainId(1))
	signer := newTestSigner(t, providerKey, messageSigner.SchemeRawDigest)
	provider := signer.Address()
	relay.RegisterProvider(provider)
	relay.SetNonce(provider, 5)

	client := newTestClient(t, relay, signer)
	for i := 0; i < 2; i++ {
		_, err := client.ProvideToAddress(context.Background(), provider, receiver, big.NewInt(10))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, relay.Hits(http.MethodGet, testutil.RouteNonce))
	assert.Equal(t, uint64(7), relay.Nonce(provider))

	bodies := relay.Requests(http.MethodPost, testutil.RouteSendAccount)
	require.Len(t, bodies, 2)
	for i, body := range bodies {
		var req types.ProvideToAddressRequest
		require.NoError(t, json.Unmarshal(body, &req))
		sig, err := hexutil.Decode(req.Signature)
		require.NoError(t, err)

		hash, err := codec.HashMessage(codec.ProvideToAddress{
			Provider: provider, Receiver: receiver, Amount: big.NewInt(10), ChainId: 1, Nonce: uint64(5 + i),
		})
		require.NoError(t, err)
		require.NoError(t, messageSigner.VerifySignature(hash, sig, messageSigner.SchemeRawDigest, provider))
	}

	nonce, err := client.GetLedgerNonceOf(context.Background(), provider)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), nonce)
}

func TestChainIdFetchedOnce(t *testing.T) {
	relay := testutil.NewFakeRelay(t, testutil.WithChainId(215110))
	signer := newTestSigner(t, providerKey, messageSigner.SchemeRawDigest)
	relay.RegisterProvider(signer.Address())
	client := newTestClient(t, relay, signer)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := client.GetChainId(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, uint64(215110), id)
		}()
	}
	wg.Wait()

	_, err := client.ProvideToAddress(context.Background(), signer.Address(), receiver, big.NewInt(1))
	require.NoError(t, err)
	_, err = client.GetTemporaryAccount(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, relay.Hits(http.MethodGet, testutil.RouteChainId))
}

func TestReplayedRequestRejected(t *testing.T) {
	relay := testutil.NewFakeRelay(t)
	signer := newTestSigner(t, providerKey, messageSigner.SchemeRawDigest)
	provider := signer.Address()
	relay.RegisterProvider(provider)

	client := newTestClient(t, relay, signer)
	_, err := client.ProvideToAddress(context.Background(), provider, receiver, big.NewInt(10))
	require.NoError(t, err)

	bodies := relay.Requests(http.MethodPost, testutil.RouteSendAccount)
	require.Len(t, bodies, 1)

	raw := transport.NewClient(testTransportConfig(), zap.NewNop())
	env, err := raw.Post(context.Background(), relay.URL+PathSendAccount, json.RawMessage(bodies[0]))
	require.NoError(t, err)

	err = env.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, &relayerr.Error{Kind: relayerr.KindRelayRejected, Code: testutil.CodeInvalidSignature})
	assertAmount(t, big.NewInt(10), relay.PointBalance(receiver))
	assert.Equal(t, uint64(1), relay.Nonce(provider))
}

func TestEnvelopeMapping(t *testing.T) {
	relay := testutil.NewFakeRelay(t)
	signer := newTestSigner(t, providerKey, messageSigner.SchemeRawDigest)
	client := newTestClient(t, relay, signer)
	ctx := context.Background()

	relay.Override(http.MethodGet, testutil.RouteProviderStatus, http.StatusOK, `{"code":1,"error":{"message":"x"}}`)
	_, err := client.IsProvider(ctx, signer.Address())
	require.Error(t, err)
	var relayErr *relayerr.Error
	require.True(t, errors.As(err, &relayErr))
	assert.Equal(t, relayerr.KindRelayRejected, relayErr.Kind)
	assert.Equal(t, 1, relayErr.Code)
	assert.Equal(t, "x", relayErr.Message)

	relay.Override(http.MethodGet, testutil.RouteProviderStatus, http.StatusOK, `{"code":0}`)
	_, err = client.IsProvider(ctx, signer.Address())
	assert.ErrorIs(t, err, relayerr.ErrRelayUnavailable)

	for i := 0; i < 3; i++ {
		relay.Override(http.MethodGet, testutil.RouteProviderStatus, http.StatusBadGateway, `<html>bad gateway</html>`)
	}
	before := relay.Hits(http.MethodGet, testutil.RouteProviderStatus)
	_, err = client.IsProvider(ctx, signer.Address())
	assert.ErrorIs(t, err, relayerr.ErrRelayUnavailable)
	assert.Equal(t, before+3, relay.Hits(http.MethodGet, testutil.RouteProviderStatus))

	enabled, err := client.IsProvider(ctx, signer.Address())
	require.NoError(t, err)
	assert.False(t, enabled)

	relay.RegisterProvider(signer.Address())
	enabled, err = client.IsProvider(ctx, signer.Address())
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestRejectedSignedRequestNotRetried(t *testing.T) {
	relay := testutil.NewFakeRelay(t)
	signer := newTestSigner(t, providerKey, messageSigner.SchemeRawDigest)
	client := newTestClient(t, relay, signer)

	// not a registered provider
	_, err := client.ProvideToAddress(context.Background(), signer.Address(), receiver, big.NewInt(1))
	assert.ErrorIs(t, err, &relayerr.Error{Kind: relayerr.KindRelayRejected, Code: testutil.CodeNotProvider})
	assert.Equal(t, 1, relay.Hits(http.MethodPost, testutil.RouteSendAccount))
	assert.Equal(t, uint64(0), relay.Nonce(signer.Address()))
}

func TestTransferDelegator(t *testing.T) {
	relay := testutil.NewFakeRelay(t)
	providerSigner := newTestSigner(t, providerKey, messageSigner.SchemeRawDigest)
	assistantSigner := newTestSigner(t, newRandomKey(t), messageSigner.SchemeRawDigest)
	provider := providerSigner.Address()
	relay.RegisterProvider(provider)

	providerClient := newTestClient(t, relay, providerSigner)
	assistantClient := newTestClient(t, relay, assistantSigner)
	ctx := context.Background()

	delegate, err := providerClient.GetTransferDelegator(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, delegate)

	// a delegate cannot act before registration
	_, err = assistantClient.ProvideToAddress(ctx, provider, receiver, big.NewInt(3))
	assert.ErrorIs(t, err, relayerr.ErrRelayRejected)

	txHash, err := providerClient.SetTransferDelegator(ctx, assistantSigner.Address())
	require.NoError(t, err)
	assert.NotEmpty(t, txHash)

	delegate, err = providerClient.GetTransferDelegator(ctx)
	require.NoError(t, err)
	assert.Equal(t, assistantSigner.Address(), delegate)

	_, err = assistantClient.ProvideToAddress(ctx, provider, receiver, big.NewInt(3))
	require.NoError(t, err)
	assertAmount(t, big.NewInt(3), relay.PointBalance(receiver))
	assert.Equal(t, uint64(1), relay.Nonce(assistantSigner.Address()))
	assert.Equal(t, uint64(1), relay.Nonce(provider))

	// clearing the delegate
	_, err = providerClient.SetTransferDelegator(ctx, common.Address{})
	require.NoError(t, err)
	delegate, err = providerClient.GetTransferDelegator(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, delegate)
}

func TestGetTemporaryAccount(t *testing.T) {
	relay := testutil.NewFakeRelay(t)
	signer := newTestSigner(t, providerKey, messageSigner.SchemeRawDigest)
	client := newTestClient(t, relay, signer)
	relay.SetNonce(signer.Address(), 7)

	first, err := client.GetTemporaryAccount(context.Background())
	require.NoError(t, err)
	second, err := client.GetTemporaryAccount(context.Background())
	require.NoError(t, err)

	assert.True(t, common.IsHexAddress(first))
	assert.NotEqual(t, first, second)
	assert.Equal(t, uint64(9), relay.Nonce(signer.Address()))

	// derived from the nonce each request consumed
	for i, got := range []string{first, second} {
		nonce := new(big.Int).SetUint64(uint64(7 + i))
		expected := common.BytesToAddress(crypto.Keccak256(signer.Address().Bytes(), nonce.Bytes()))
		assert.Equal(t, expected.Hex(), got)
	}

	bodies := relay.Requests(http.MethodPost, testutil.RouteTemporaryAccount)
	require.Len(t, bodies, 2)
	var req types.TemporaryAccountRequest
	require.NoError(t, json.Unmarshal(bodies[0], &req))
	assert.Equal(t, signer.Address().Hex(), req.Account)
}

func TestApproveNewPayment(t *testing.T) {
	relay := testutil.NewFakeRelay(t)
	signer := newTestSigner(t, providerKey, messageSigner.SchemeRawDigest)
	client := newTestClient(t, relay, signer)
	ctx := context.Background()

	paymentId := "0x" + fmt.Sprintf("%064x", 0x1111)
	shopId := "0x" + fmt.Sprintf("%064x", 0x2222)
	relay.AddPayment(&types.PaymentTaskItemShort{
		PaymentId:  paymentId,
		PurchaseId: "P000001",
		Amount:     types.NewBigInt(big.NewInt(1000)),
		Currency:   "krw",
		ShopId:     shopId,
		Account:    signer.Address(),
		PaidPoint:  types.NewBigInt(big.NewInt(1000)),
		PaidValue:  types.NewBigInt(big.NewInt(1000)),
		FeePoint:   types.NewBigInt(big.NewInt(50)),
		FeeValue:   types.NewBigInt(big.NewInt(50)),
		TotalPoint: types.NewBigInt(big.NewInt(1050)),
		TotalValue: types.NewBigInt(big.NewInt(1050)),
	})

	// signing a different amount than the payment holds does not verify
	_, err := client.ApproveNewPayment(ctx, paymentId, "P000001", big.NewInt(999), "krw", shopId, true)
	assert.ErrorIs(t, err, &relayerr.Error{Kind: relayerr.KindRelayRejected, Code: testutil.CodeInvalidSignature})

	item, err := client.ApproveNewPayment(ctx, paymentId, "P000001", big.NewInt(1000), "krw", shopId, true)
	require.NoError(t, err)
	assert.Equal(t, testutil.PaymentStatusApproved, item.PaymentStatus)
	assert.Equal(t, "1050", item.TotalPoint.Text(10))
	assert.Equal(t, signer.Address(), item.Account)

	_, err = client.ApproveNewPayment(ctx, "0x"+fmt.Sprintf("%064x", 0x3333), "P000002", big.NewInt(1), "krw", shopId, false)
	assert.ErrorIs(t, err, &relayerr.Error{Kind: relayerr.KindRelayRejected, Code: testutil.CodePaymentNotFound})
}

func TestSignatureSchemeMustMatchRelay(t *testing.T) {
	relay := testutil.NewFakeRelay(t, testutil.WithSignatureScheme(messageSigner.SchemePersonalMessage))

	personal := newTestClient(t, relay, newTestSigner(t, providerKey, messageSigner.SchemePersonalMessage))
	_, err := personal.GetTemporaryAccount(context.Background())
	require.NoError(t, err)

	raw := newTestClient(t, relay, newTestSigner(t, providerKey, messageSigner.SchemeRawDigest))
	_, err = raw.GetTemporaryAccount(context.Background())
	assert.ErrorIs(t, err, relayerr.ErrRelayRejected)
}

func TestDestroyedSignerFailsBeforePosting(t *testing.T) {
	relay := testutil.NewFakeRelay(t)
	signer := newTestSigner(t, providerKey, messageSigner.SchemeRawDigest)
	relay.RegisterProvider(signer.Address())
	client := newTestClient(t, relay, signer)

	signer.Destroy()
	_, err := client.ProvideToAddress(context.Background(), signer.Address(), receiver, big.NewInt(1))
	assert.ErrorIs(t, err, relayerr.ErrInvalidKey)
	assert.Equal(t, 0, relay.Hits(http.MethodPost, testutil.RouteSendAccount))
}
