package testutil

import (
	"bytes"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/acc-coin/acc-sdk-go/pkg/codec"
	"github.com/acc-coin/acc-sdk-go/pkg/envelope"
	"github.com/acc-coin/acc-sdk-go/pkg/messageSigner"
	"github.com/acc-coin/acc-sdk-go/pkg/types"
	"github.com/acc-coin/acc-sdk-go/pkg/util"
)

// Envelope codes returned by the fake relay.
const (
	CodeInvalidSignature  = 1501
	CodeNotProvider       = 1054
	CodeInvalidParameters = 2001
	CodePaymentNotFound   = 2003
)

// Payment statuses set by the approval endpoint.
const (
	PaymentStatusApproved = 3
	PaymentStatusDenied   = 4
)

// Route patterns as registered on the fake relay, for Hits and Requests.
const (
	RouteNonce             = "/v1/ledger/nonce/:account"
	RouteChainId           = "/v1/chain/side/id"
	RouteBalanceAccount    = "/v1/ledger/balance/account/:account"
	RouteBalancePhone      = "/v1/ledger/balance/phone/:phone"
	RouteProviderStatus    = "/v1/provider/status/:account"
	RouteAssistantRegister = "/v1/provider/assistant/register"
	RouteAssistant         = "/v1/provider/assistant/:account"
	RouteSendAccount       = "/v1/provider/send/account"
	RouteSendPhoneHash     = "/v1/provider/send/phoneHash"
	RouteTemporaryAccount  = "/v2/payment/account/temporary"
	RoutePaymentApproval   = "/v2/payment/new/approval"
)

type override struct {
	status int
	body   string
}

// FakeRelay is an in-process relay. It keeps per-account nonces, verifies
// signed requests by rebuilding the canonical message and recovering the
// signer, and consumes the nonce of every accepted request.
type FakeRelay struct {
	URL     string
	ChainId uint64

	server *httptest.Server
	echo   *echo.Echo
	scheme messageSigner.SignatureScheme
	logger *zap.Logger

	mu         sync.Mutex
	nonces     map[common.Address]uint64
	providers  map[common.Address]bool
	assistants map[common.Address]common.Address
	balances   map[string]*big.Int
	payments   map[string]*types.PaymentTaskItemShort
	hits       map[string]int
	requests   map[string][][]byte
	overrides  map[string][]override
}

type Option func(*FakeRelay)

func WithChainId(chainId uint64) Option {
	return func(r *FakeRelay) { r.ChainId = chainId }
}

func WithSignatureScheme(scheme messageSigner.SignatureScheme) Option {
	return func(r *FakeRelay) { r.scheme = scheme }
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *FakeRelay) { r.logger = logger }
}

// NewFakeRelay starts a fake relay that is shut down when the test ends.
func NewFakeRelay(t testing.TB, opts ...Option) *FakeRelay {
	r := &FakeRelay{
		ChainId:    1,
		scheme:     messageSigner.SchemeRawDigest,
		logger:     zap.NewNop(),
		nonces:     map[common.Address]uint64{},
		providers:  map[common.Address]bool{},
		assistants: map[common.Address]common.Address{},
		balances:   map[string]*big.Int{},
		payments:   map[string]*types.PaymentTaskItemShort{},
		hits:       map[string]int{},
		requests:   map[string][][]byte{},
		overrides:  map[string][]override{},
	}
	for _, opt := range opts {
		opt(r)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(r.record)

	e.GET(RouteNonce, r.handleNonce)
	e.GET(RouteChainId, r.handleChainId)
	e.GET(RouteBalanceAccount, r.handleBalanceAccount)
	e.GET(RouteBalancePhone, r.handleBalancePhone)
	e.GET(RouteProviderStatus, r.handleProviderStatus)
	e.GET(RouteAssistant, r.handleGetAssistant)
	e.POST(RouteAssistantRegister, r.handleRegisterAssistant)
	e.POST(RouteSendAccount, r.handleSendAccount)
	e.POST(RouteSendPhoneHash, r.handleSendPhoneHash)
	e.POST(RouteTemporaryAccount, r.handleTemporaryAccount)
	e.POST(RoutePaymentApproval, r.handlePaymentApproval)

	r.echo = e
	r.server = httptest.NewServer(e)
	r.URL = r.server.URL
	t.Cleanup(r.server.Close)
	return r
}

func routeKey(method, route string) string {
	return method + " " + route
}

// record counts hits, keeps request bodies and serves queued overrides.
func (r *FakeRelay) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := routeKey(c.Request().Method, c.Path())

		var body []byte
		if c.Request().Body != nil {
			body, _ = io.ReadAll(c.Request().Body)
			c.Request().Body = io.NopCloser(bytes.NewReader(body))
		}

		r.mu.Lock()
		r.hits[key]++
		if len(body) > 0 {
			r.requests[key] = append(r.requests[key], body)
		}
		var o *override
		if queued := r.overrides[key]; len(queued) > 0 {
			o = &queued[0]
			r.overrides[key] = queued[1:]
		}
		r.mu.Unlock()

		if o != nil {
			return c.Blob(o.status, echo.MIMEApplicationJSON, []byte(o.body))
		}
		return next(c)
	}
}

// Hits returns how many requests reached method and route.
func (r *FakeRelay) Hits(method, route string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits[routeKey(method, route)]
}

// TotalHits returns the number of requests received on any route.
func (r *FakeRelay) TotalHits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.hits {
		total += n
	}
	return total
}

// Requests returns the raw bodies received on method and route, oldest first.
func (r *FakeRelay) Requests(method, route string) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.requests[routeKey(method, route)]))
	copy(out, r.requests[routeKey(method, route)])
	return out
}

// Override makes the next request to method and route answer with status and a raw body.
func (r *FakeRelay) Override(method, route string, status int, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := routeKey(method, route)
	r.overrides[key] = append(r.overrides[key], override{status: status, body: body})
}

func (r *FakeRelay) SetNonce(account common.Address, nonce uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nonces[account] = nonce
}

func (r *FakeRelay) Nonce(account common.Address) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nonces[account]
}

func (r *FakeRelay) RegisterProvider(account common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[account] = true
}

func (r *FakeRelay) Assistant(provider common.Address) common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assistants[provider]
}

// SetPointBalance sets the point balance of an account.
func (r *FakeRelay) SetPointBalance(account common.Address, amount *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[balanceKey(account.Bytes())] = new(big.Int).Set(amount)
}

// PointBalance returns the point balance of an account.
func (r *FakeRelay) PointBalance(account common.Address) *big.Int {
	return r.balance(balanceKey(account.Bytes()))
}

// PhonePointBalance returns the points held for a normalized phone number.
func (r *FakeRelay) PhonePointBalance(normalizedPhone string) *big.Int {
	return r.balance(balanceKey(codec.PhoneHash(normalizedPhone).Bytes()))
}

func (r *FakeRelay) balance(key string) *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.balances[key]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// AddPayment registers a pending payment awaiting approval by item.Account.
func (r *FakeRelay) AddPayment(item *types.PaymentTaskItemShort) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *item
	r.payments[strings.ToLower(item.PaymentId)] = &copied
}

func balanceKey(id []byte) string {
	return hexutil.Encode(id)
}

func fail(c echo.Context, code int, message string) error {
	return c.JSON(http.StatusOK, envelope.Failure(code, message))
}

func ok(c echo.Context, data interface{}) error {
	env, err := envelope.Success(data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, env)
}

func parseAccountParam(c echo.Context) (common.Address, bool) {
	addr, err := util.ParseAddress(c.Param("account"))
	return addr, err == nil
}

func (r *FakeRelay) handleNonce(c echo.Context) error {
	account, valid := parseAccountParam(c)
	if !valid {
		return fail(c, CodeInvalidParameters, "invalid account")
	}
	return ok(c, map[string]string{"account": account.Hex(), "nonce": util.FormatAmount(new(big.Int).SetUint64(r.Nonce(account)))})
}

func (r *FakeRelay) handleChainId(c echo.Context) error {
	return ok(c, map[string]uint64{"chainId": r.ChainId})
}

func (r *FakeRelay) userBalance(key string) *types.UserBalance {
	points := r.balance(key)
	return &types.UserBalance{
		Point: types.Balance{Balance: types.NewBigInt(points), Value: types.NewBigInt(points)},
		Token: types.Balance{Balance: types.NewBigInt(nil), Value: types.NewBigInt(nil)},
	}
}

func (r *FakeRelay) handleBalanceAccount(c echo.Context) error {
	account, valid := parseAccountParam(c)
	if !valid {
		return fail(c, CodeInvalidParameters, "invalid account")
	}
	return ok(c, r.userBalance(balanceKey(account.Bytes())))
}

func (r *FakeRelay) handleBalancePhone(c echo.Context) error {
	phone, err := url.PathUnescape(c.Param("phone"))
	if err != nil || phone == "" {
		return fail(c, CodeInvalidParameters, "invalid phone")
	}
	return ok(c, r.userBalance(balanceKey(codec.PhoneHash(phone).Bytes())))
}

func (r *FakeRelay) handleProviderStatus(c echo.Context) error {
	account, valid := parseAccountParam(c)
	if !valid {
		return fail(c, CodeInvalidParameters, "invalid account")
	}
	r.mu.Lock()
	enabled := r.providers[account]
	r.mu.Unlock()
	return ok(c, map[string]interface{}{"account": account.Hex(), "enable": enabled})
}

func (r *FakeRelay) handleGetAssistant(c echo.Context) error {
	provider, valid := parseAccountParam(c)
	if !valid {
		return fail(c, CodeInvalidParameters, "invalid account")
	}
	return ok(c, map[string]string{"provider": provider.Hex(), "assistant": r.Assistant(provider).Hex()})
}

// verify tries each candidate signer with its current nonce and consumes the
// nonce of the first one whose signature recovers. Callers hold r.mu.
func (r *FakeRelay) verify(signature string, candidates []common.Address, build func(nonce uint64) codec.Message) (common.Address, bool) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, false
	}
	for _, candidate := range candidates {
		if candidate == (common.Address{}) {
			continue
		}
		hash, err := codec.HashMessage(build(r.nonces[candidate]))
		if err != nil {
			return common.Address{}, false
		}
		recovered, err := messageSigner.RecoverAddress(hash, sig, r.scheme)
		if err == nil && recovered == candidate {
			r.nonces[candidate]++
			return candidate, true
		}
	}
	r.logger.Sugar().Debugw("Fake relay rejected signature", "candidates", len(candidates))
	return common.Address{}, false
}

func txHash(signature string) string {
	return crypto.Keccak256Hash([]byte(signature)).Hex()
}

func (r *FakeRelay) handleRegisterAssistant(c echo.Context) error {
	var req types.RegisterAssistantRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, CodeInvalidParameters, "invalid body")
	}
	provider, err1 := util.ParseAddress(req.Provider)
	assistant, err2 := util.ParseAddress(req.Assistant)
	if err1 != nil || err2 != nil {
		return fail(c, CodeInvalidParameters, "invalid address")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, valid := r.verify(req.Signature, []common.Address{provider}, func(nonce uint64) codec.Message {
		return codec.RegisterDelegate{Provider: provider, Delegate: assistant, ChainId: r.ChainId, Nonce: nonce}
	})
	if !valid {
		return fail(c, CodeInvalidSignature, "invalid signature")
	}
	r.assistants[provider] = assistant
	return ok(c, map[string]string{"txHash": txHash(req.Signature)})
}

// providerSigners are the accounts allowed to sign transfers for provider.
func (r *FakeRelay) providerSigners(provider common.Address) []common.Address {
	return []common.Address{provider, r.assistants[provider]}
}

func (r *FakeRelay) credit(key string, amount *big.Int) {
	current, exists := r.balances[key]
	if !exists {
		current = new(big.Int)
	}
	r.balances[key] = new(big.Int).Add(current, amount)
}

func (r *FakeRelay) handleSendAccount(c echo.Context) error {
	var req types.ProvideToAddressRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, CodeInvalidParameters, "invalid body")
	}
	provider, err1 := util.ParseAddress(req.Provider)
	receiver, err2 := util.ParseAddress(req.Receiver)
	amount, err3 := util.ParseAmount(req.Amount)
	if err1 != nil || err2 != nil || err3 != nil {
		return fail(c, CodeInvalidParameters, "invalid parameters")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.providers[provider] {
		return fail(c, CodeNotProvider, "account is not a provider")
	}
	_, valid := r.verify(req.Signature, r.providerSigners(provider), func(nonce uint64) codec.Message {
		return codec.ProvideToAddress{Provider: provider, Receiver: receiver, Amount: amount, ChainId: r.ChainId, Nonce: nonce}
	})
	if !valid {
		return fail(c, CodeInvalidSignature, "invalid signature")
	}
	r.credit(balanceKey(receiver.Bytes()), amount)
	return ok(c, map[string]string{"txHash": txHash(req.Signature)})
}

func (r *FakeRelay) handleSendPhoneHash(c echo.Context) error {
	var req types.ProvideToPhoneRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, CodeInvalidParameters, "invalid body")
	}
	provider, err1 := util.ParseAddress(req.Provider)
	phoneHash, err2 := util.ParseBytes32Hex(req.Receiver)
	amount, err3 := util.ParseAmount(req.Amount)
	if err1 != nil || err2 != nil || err3 != nil {
		return fail(c, CodeInvalidParameters, "invalid parameters")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.providers[provider] {
		return fail(c, CodeNotProvider, "account is not a provider")
	}
	_, valid := r.verify(req.Signature, r.providerSigners(provider), func(nonce uint64) codec.Message {
		return codec.ProvideToPhone{Provider: provider, PhoneHash: phoneHash, Amount: amount, ChainId: r.ChainId, Nonce: nonce}
	})
	if !valid {
		return fail(c, CodeInvalidSignature, "invalid signature")
	}
	r.credit(balanceKey(phoneHash[:]), amount)
	return ok(c, map[string]string{"txHash": txHash(req.Signature)})
}

func (r *FakeRelay) handleTemporaryAccount(c echo.Context) error {
	var req types.TemporaryAccountRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, CodeInvalidParameters, "invalid body")
	}
	account, err := util.ParseAddress(req.Account)
	if err != nil {
		return fail(c, CodeInvalidParameters, "invalid account")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	consumed := r.nonces[account]
	_, valid := r.verify(req.Signature, []common.Address{account}, func(nonce uint64) codec.Message {
		return codec.AccountBinding{Account: account, Nonce: nonce, ChainId: r.ChainId}
	})
	if !valid {
		return fail(c, CodeInvalidSignature, "invalid signature")
	}
	temporary := common.BytesToAddress(crypto.Keccak256(account.Bytes(), new(big.Int).SetUint64(consumed).Bytes()))
	return ok(c, map[string]string{"temporaryAccount": temporary.Hex()})
}

func (r *FakeRelay) handlePaymentApproval(c echo.Context) error {
	var req types.PaymentApprovalRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, CodeInvalidParameters, "invalid body")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	item, exists := r.payments[strings.ToLower(req.PaymentId)]
	if !exists {
		return fail(c, CodePaymentNotFound, "payment not found")
	}
	paymentId, err1 := util.ParseBytes32Hex(item.PaymentId)
	shopId, err2 := util.ParseBytes32Hex(item.ShopId)
	if err1 != nil || err2 != nil || item.Amount == nil {
		return fail(c, CodeInvalidParameters, "stored payment is malformed")
	}
	_, valid := r.verify(req.Signature, []common.Address{item.Account}, func(nonce uint64) codec.Message {
		return codec.PaymentApproval{
			PaymentId:  paymentId,
			PurchaseId: item.PurchaseId,
			Amount:     item.Amount.Big(),
			Currency:   item.Currency,
			ShopId:     shopId,
			Account:    item.Account,
			ChainId:    r.ChainId,
			Nonce:      nonce,
		}
	})
	if !valid {
		return fail(c, CodeInvalidSignature, "invalid signature")
	}
	if req.Approval {
		item.PaymentStatus = PaymentStatusApproved
	} else {
		item.PaymentStatus = PaymentStatusDenied
	}
	return ok(c, item)
}
