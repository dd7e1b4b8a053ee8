package swap

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/xswap/internal/chains"
	"github.com/wormhole-demo/xswap/internal/quote"
	"github.com/wormhole-demo/xswap/internal/submitter"
	"github.com/wormhole-demo/xswap/internal/wormhole"
)

// fakeVenue prices every pair at num/den base units per input unit.
type fakeVenue struct {
	num, den *big.Int
}

func (v *fakeVenue) Protocol() chains.Protocol { return chains.ProtocolUniswapV2 }
func (v *fakeVenue) PoolFee() uint32 { return 0 }

func (v *fakeVenue) PoolAddress(a, b common.Address) common.Address {
	return quote.ComputeV2PairAddress(common.HexToAddress("0xfac7"), common.Hash{}, a, b)
}

func (v *fakeVenue) HasCode(ctx context.Context, address common.Address) (bool, error) {
	return true, nil
}

func (v *fakeVenue) QuoteExactIn(ctx context.Context, in, out common.Address, amountIn *big.Int) (*big.Int, error) {
	res := new(big.Int).Mul(amountIn, v.num)
	return res.Quo(res, v.den), nil
}

func (v *fakeVenue) QuoteExactOut(ctx context.Context, in, out common.Address, amountOut *big.Int) (*big.Int, error) {
	res := new(big.Int).Mul(amountOut, v.den)
	return res.Quo(res, v.num), nil
}

type sentTx struct {
	chain vaaLib.ChainID
	to    common.Address
	value *big.Int
	data  []byte
}

type fakeWallet struct {
	mu       sync.Mutex
	address  common.Address
	active   vaaLib.ChainID
	switches []vaaLib.ChainID
	receipts []*types.Receipt
	sent     []sentTx
}

func (w *fakeWallet) Address() common.Address { return w.address }

func (w *fakeWallet) ActiveChain() vaaLib.ChainID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *fakeWallet) SwitchChain(ctx context.Context, chain vaaLib.ChainID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.switches = append(w.switches, chain)
	w.active = chain
	return nil
}

func (w *fakeWallet) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, errors.New("unexpected call")
}

func (w *fakeWallet) SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Receipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent = append(w.sent, sentTx{chain: w.active, to: to, value: value, data: data})
	if len(w.receipts) == 0 {
		return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: common.HexToHash("0xd0d0")}, nil
	}
	r := w.receipts[0]
	w.receipts = w.receipts[1:]
	return r, nil
}

func (w *fakeWallet) sentTxs() []sentTx {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]sentTx(nil), w.sent...)
}

type fakeFetcher struct {
	vaa    []byte
	err    error
	search wormhole.SearchParams
}

func (f *fakeFetcher) FetchSignedVAA(ctx context.Context, chain vaaLib.ChainID, search wormhole.SearchParams) ([]byte, error) {
	f.search = search
	return f.vaa, f.err
}

type fakeCircle struct {
	hash    common.Hash
	block   bool // wait for cancellation instead of answering
	polling chan struct{}
}

func (c *fakeCircle) Poll(ctx context.Context, messageHash common.Hash) ([]byte, error) {
	c.hash = messageHash
	if c.block {
		c.polling <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []byte("attestation"), nil
}

// fakeChecker reports consumption from the consumeAt-th check onwards.
type fakeChecker struct {
	mu        sync.Mutex
	consumeAt int
	exec      *Executor
	calls     int
	states    []State
	hash      common.Hash
	checked   chan struct{}
}

func (c *fakeChecker) IsMessageConsumed(ctx context.Context, hash common.Hash) (bool, error) {
	state := c.exec.State()
	c.mu.Lock()
	c.calls++
	c.states = append(c.states, state)
	c.hash = hash
	calls := c.calls
	c.mu.Unlock()
	if c.checked != nil {
		select {
		case c.checked <- struct{}{}:
		default:
		}
	}
	if calls == 2 {
		return false, errors.New("rpc unavailable")
	}
	return c.consumeAt > 0 && calls >= c.consumeAt, nil
}

func (c *fakeChecker) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type executorFixture struct {
	exec        *Executor
	registry    *chains.Registry
	src         chains.ExecutionParameters
	dst         chains.ExecutionParameters
	eth         chains.TokenInfo
	avax        chains.TokenInfo
	wallet      *fakeWallet
	fetcher     *fakeFetcher
	circle      *fakeCircle
	checker     *fakeChecker
	clock       *clock.Mock
	transitions []StateTransition
	vaa         []byte
	message     []byte
}

const testSequence = 7

func newExecutorFixture(t *testing.T, policy RelayPolicy) *executorFixture {
	configs := chains.DefaultChainConfigs()
	configs[0].Execution.SwapContract = common.HexToAddress("0x5151")
	configs[1].Execution.SwapContract = common.HexToAddress("0xd5d5")
	registry, err := chains.NewRegistry(configs)
	require.NoError(t, err)

	f := &executorFixture{
		registry: registry,
		src:      configs[0].Execution,
		dst:      configs[1].Execution,
		wallet:   &fakeWallet{address: common.HexToAddress("0xbeef"), active: vaaLib.ChainIDEthereum},
		circle:   &fakeCircle{},
		clock:    clock.NewMock(),
		message:  []byte("circle burn message"),
	}
	f.eth, err = registry.TokenBySymbol(chains.EthereumName, "ETH")
	require.NoError(t, err)
	f.avax, err = registry.TokenBySymbol(chains.AvalancheName, "AVAX")
	require.NoError(t, err)

	signed := &vaaLib.VAA{
		Version:        1,
		Timestamp:      time.Unix(1, 0),
		EmitterChain:   vaaLib.ChainIDEthereum,
		EmitterAddress: wormhole.EmitterAddress(f.src.CircleIntegration),
		Sequence:       testSequence,
		Payload:        []byte{1, 2, 3},
	}
	f.vaa, err = signed.Marshal()
	require.NoError(t, err)
	f.fetcher = &fakeFetcher{vaa: f.vaa}

	quoter := quote.NewQuoter(zap.NewNop(), registry, map[vaaLib.ChainID]quote.Venue{
		vaaLib.ChainIDEthereum:  &fakeVenue{num: big.NewInt(2), den: big.NewInt(1e9)},
		vaaLib.ChainIDAvalanche: &fakeVenue{num: big.NewInt(5e10), den: big.NewInt(1)},
	}, f.clock)

	f.checker = &fakeChecker{}
	f.exec, err = NewExecutor(zap.NewNop(), Config{
		Quoter:       quoter,
		Resolver:     registry.Resolver(),
		VAAFetcher:   f.fetcher,
		Circle:       f.circle,
		Integrations: map[vaaLib.ChainID]ConsumptionChecker{vaaLib.ChainIDAvalanche: f.checker},
		Clock:        f.clock,
		RelayPolicy:  policy,
		OnStateChange: func(from, to State, reason string) {
			f.transitions = append(f.transitions, StateTransition{From: from, To: to, Reason: reason})
		},
	})
	require.NoError(t, err)
	f.checker.exec = f.exec
	return f
}

func (f *executorFixture) quote(t *testing.T) *quote.ExactInCrossParameters {
	ctx := context.Background()
	require.NoError(t, f.exec.Initialize(f.eth.Address, f.avax.Address))
	require.NoError(t, f.exec.SetSlippage(decimal.RequireFromString("0.01")))
	require.NoError(t, f.exec.SetRelayerFee(decimal.RequireFromString("0.00001")))
	_, err := f.exec.ComputeAndVerifySrcPoolAddress(ctx)
	require.NoError(t, err)
	_, err = f.exec.ComputeAndVerifyDstPoolAddress(ctx)
	require.NoError(t, err)

	params, err := f.exec.ComputeQuoteExactIn(ctx, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.Equal(t, StateQuoted, f.exec.State())
	return params
}

func (f *executorFixture) sourceReceipt(t *testing.T, withMessage bool) *types.Receipt {
	published := wormhole.EventsABI.Events["LogMessagePublished"]
	data, err := published.Inputs.NonIndexed().Pack(uint64(testSequence), uint32(0), []byte{1}, uint8(1))
	require.NoError(t, err)
	logs := []*types.Log{{
		Address: f.src.CoreBridge,
		Topics:  []common.Hash{published.ID, common.BytesToHash(f.src.CircleIntegration.Bytes())},
		Data:    data,
	}}
	if withMessage {
		sent := wormhole.EventsABI.Events["MessageSent"]
		data, err := sent.Inputs.Pack(f.message)
		require.NoError(t, err)
		logs = append(logs, &types.Log{Address: f.src.CircleEmitter, Topics: []common.Hash{sent.ID}, Data: data})
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: common.HexToHash("0x5a5a"), Logs: logs}
}

func statesOf(transitions []StateTransition) []State {
	states := make([]State, 0, len(transitions))
	for _, tr := range transitions {
		states = append(states, tr.To)
	}
	return states
}

// runAdvancing runs fn while moving the mock clock forward.
func runAdvancing(t *testing.T, mock *clock.Mock, step time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	for i := 0; i < 5000; i++ {
		select {
		case err := <-done:
			return err
		default:
		}
		mock.Add(step)
		time.Sleep(time.Millisecond)
	}
	t.Fatal("executor did not finish")
	return nil
}

func TestRunCompletesWhenRelayerRedeems(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{MaxAttempts: 20})
	params := f.quote(t)
	f.checker.consumeAt = 3
	f.wallet.receipts = []*types.Receipt{f.sourceReceipt(t, true)}

	require.NoError(t, f.exec.Run(context.Background(), f.wallet, f.wallet.address))

	require.Equal(t, StateComplete, f.exec.State())
	require.Equal(t, 3, f.checker.callCount())

	sent := f.wallet.sentTxs()
	require.Len(t, sent, 1)
	require.Equal(t, f.src.SwapContract, sent[0].to)
	require.Equal(t, params.AmountIn, sent[0].value)

	search, err := f.exec.VAASearchParams()
	require.NoError(t, err)
	require.Equal(t, uint64(testSequence), search.Sequence)
	require.Equal(t, wormhole.EmitterAddress(f.src.CircleIntegration), search.EmitterAddress)
	require.Equal(t, search, f.fetcher.search)

	key, err := wormhole.ConsumedMessageHash(f.vaa)
	require.NoError(t, err)
	require.Equal(t, key, f.checker.hash)

	status := f.exec.Status()
	require.False(t, status.IsSwapping)
	require.True(t, status.IsSourceSwapComplete)
	require.True(t, status.HasSignedVAA)
	require.True(t, status.IsTargetSwapComplete)
	require.Empty(t, status.RelayerTimeoutString)
	require.Equal(t, StatusComplete, status.Message)

	target, err := f.exec.TargetReceipt()
	require.NoError(t, err)
	require.Nil(t, target)

	require.Equal(t, []State{
		StateQuoting, StateQuoted, StateSourceSwapping, StateSourceConfirmed,
		StateAwaitingAttestation, StateRelayedComplete, StateComplete,
	}, statesOf(f.transitions))
	require.Equal(t, statesOf(f.exec.Transitions()), statesOf(f.transitions))
}

func TestRunFallsBackToManualRedeemAfterRelayTimeout(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{MaxAttempts: 20, Interval: 5 * time.Second})
	f.quote(t)
	f.wallet.receipts = []*types.Receipt{f.sourceReceipt(t, true)}

	err := runAdvancing(t, f.clock, time.Second, func() error {
		return f.exec.Run(context.Background(), f.wallet, f.wallet.address)
	})
	require.NoError(t, err)

	require.Equal(t, 20, f.checker.callCount())
	for i, state := range f.checker.states {
		require.Equal(t, StateAwaitingAttestation, state, "check %d", i+1)
	}

	require.Equal(t, StateComplete, f.exec.State())
	require.Contains(t, statesOf(f.transitions), StateManualRedeeming)
	require.NotContains(t, statesOf(f.transitions), StateRelayedComplete)
	require.Equal(t, []vaaLib.ChainID{vaaLib.ChainIDAvalanche}, f.wallet.switches)
	require.Equal(t, crypto.Keccak256Hash(f.message), f.circle.hash)

	sent := f.wallet.sentTxs()
	require.Len(t, sent, 2)
	require.Equal(t, vaaLib.ChainIDAvalanche, sent[1].chain)
	require.Equal(t, f.dst.SwapContract, sent[1].to)
	want, err := submitter.PackRedeem(true, submitter.RedeemParameters{
		EncodedWormholeMessage: f.vaa,
		CircleBridgeMessage:    f.message,
		CircleAttestation:      []byte("attestation"),
	})
	require.NoError(t, err)
	require.Equal(t, want, sent[1].data)

	status := f.exec.Status()
	require.Equal(t, StatusRelayerTimeout, status.RelayerTimeoutString)
	require.Equal(t, StatusComplete, status.Message)
	require.True(t, status.IsTargetSwapComplete)

	target, err := f.exec.TargetReceipt()
	require.NoError(t, err)
	require.NotNil(t, target)
}

func TestWaitForRelayMovesToManualOnlyAfterLastCheck(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{MaxAttempts: 4, Interval: 5 * time.Second})
	f.quote(t)
	f.wallet.receipts = []*types.Receipt{f.sourceReceipt(t, true)}

	ctx := context.Background()
	_, err := f.exec.EvmApproveAndSwap(ctx, f.wallet, f.wallet.address)
	require.NoError(t, err)
	_, err = f.exec.DiscoverMessage()
	require.NoError(t, err)
	_, err = f.exec.AwaitSignedVAA(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingRelayer, f.exec.Status().Message)

	var relayed bool
	err = runAdvancing(t, f.clock, time.Second, func() error {
		var err error
		relayed, err = f.exec.WaitForRelay(ctx)
		return err
	})
	require.NoError(t, err)
	require.False(t, relayed)
	require.Equal(t, 4, f.checker.callCount())
	require.Equal(t, StateManualRedeeming, f.exec.State())
	require.Equal(t, StatusRelayerTimeout, f.exec.Status().Message)
}

// attest drives a quoted swap up to a fetched signed VAA.
func (f *executorFixture) attest(t *testing.T) {
	ctx := context.Background()
	f.quote(t)
	f.wallet.receipts = []*types.Receipt{f.sourceReceipt(t, true)}
	_, err := f.exec.EvmApproveAndSwap(ctx, f.wallet, f.wallet.address)
	require.NoError(t, err)
	_, err = f.exec.DiscoverMessage()
	require.NoError(t, err)
	_, err = f.exec.AwaitSignedVAA(ctx)
	require.NoError(t, err)
}

func TestWaitForRelaySpacesChecksByInterval(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{MaxAttempts: 2, Interval: 5 * time.Second})
	f.checker.checked = make(chan struct{}, 1)
	f.attest(t)

	done := make(chan error, 1)
	go func() {
		_, err := f.exec.WaitForRelay(context.Background())
		done <- err
	}()

	awaitCheck := func() {
		select {
		case <-f.checker.checked:
		case <-time.After(5 * time.Second):
			t.Fatal("consumption check did not happen")
		}
		// let the executor start its wait on the mock clock
		time.Sleep(20 * time.Millisecond)
	}

	awaitCheck()
	f.clock.Add(4 * time.Second)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, f.checker.callCount())

	f.clock.Add(time.Second)
	awaitCheck()
	require.Equal(t, 2, f.checker.callCount())
	require.Equal(t, StateAwaitingAttestation, f.exec.State())

	f.clock.Add(5 * time.Second)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay wait did not time out")
	}
	require.Equal(t, StateManualRedeeming, f.exec.State())
}

func TestCancelledRedeemStaysRedeemable(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{MaxAttempts: 1})
	f.attest(t)
	relayed, err := f.exec.WaitForRelay(context.Background())
	require.NoError(t, err)
	require.False(t, relayed)
	require.Equal(t, StateManualRedeeming, f.exec.State())

	f.circle.block = true
	f.circle.polling = make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.exec.FetchVaaAndSwap(ctx, f.wallet)
		done <- err
	}()

	select {
	case <-f.circle.polling:
	case <-time.After(5 * time.Second):
		t.Fatal("circle poll never started")
	}
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancellation did not stop the circle poll")
	}

	require.Equal(t, StateManualRedeeming, f.exec.State())
	require.NotContains(t, statesOf(f.transitions), StateFailed)
	signed, err := f.exec.SignedVAA()
	require.NoError(t, err)
	require.Equal(t, f.vaa, signed)

	f.circle.block = false
	receipt, err := f.exec.FetchVaaAndSwap(context.Background(), f.wallet)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	require.Equal(t, StateComplete, f.exec.State())
}

func TestApproveAndSwapRequiresQuote(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{})
	require.NoError(t, f.exec.Initialize(f.eth.Address, f.avax.Address))

	_, err := f.exec.EvmApproveAndSwap(context.Background(), f.wallet, f.wallet.address)
	require.ErrorIs(t, err, ErrInvalidExecutionState)
	require.Empty(t, f.wallet.sentTxs())
	require.Equal(t, StateIdle, f.exec.State())
}

func TestExactOutQuoteIsNotExecutable(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{})
	f.quote(t)

	params, err := f.exec.ComputeQuoteExactOut(context.Background(), decimal.NewFromInt(10))
	require.NoError(t, err)
	require.NotNil(t, params)

	cached, err := f.exec.CachedQuote()
	require.NoError(t, err)
	require.Equal(t, quote.QuoteTypeExactOut, cached.Type())
	_, ok := cached.ExactIn()
	require.False(t, ok)

	_, err = f.exec.EvmApproveAndSwap(context.Background(), f.wallet, f.wallet.address)
	require.ErrorIs(t, err, ErrInvalidExecutionState)
	require.Empty(t, f.wallet.sentTxs())
}

func TestSwitchDirectionInvalidatesQuote(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{})
	f.quote(t)

	require.NoError(t, f.exec.SwitchDirection())
	require.Equal(t, StateIdle, f.exec.State())
	_, err := f.exec.CachedQuote()
	require.ErrorIs(t, err, ErrInvalidExecutionState)

	_, err = f.exec.ComputeQuoteExactIn(context.Background(), decimal.NewFromInt(1))
	require.ErrorIs(t, err, quote.ErrPoolNotVerified)
	require.Equal(t, StateIdle, f.exec.State())
}

func TestConfigurationChangeInvalidatesQuote(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{})
	f.quote(t)

	require.NoError(t, f.exec.SetSlippage(decimal.RequireFromString("0.02")))
	require.Equal(t, StateIdle, f.exec.State())
	_, err := f.exec.CachedQuote()
	require.ErrorIs(t, err, ErrInvalidExecutionState)
}

func TestSearchParamsUnavailableBeforeConfirmation(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{})
	f.quote(t)

	_, err := f.exec.VAASearchParams()
	require.ErrorIs(t, err, ErrInvalidExecutionState)
	_, err = f.exec.SignedVAA()
	require.ErrorIs(t, err, ErrInvalidExecutionState)
}

func TestMissingCircleMessageFailsAttempt(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{})
	f.quote(t)
	f.wallet.receipts = []*types.Receipt{f.sourceReceipt(t, false)}

	err := f.exec.Run(context.Background(), f.wallet, f.wallet.address)
	require.ErrorIs(t, err, ErrMessageNotFound)

	require.Equal(t, StateIdle, f.exec.State())
	require.ErrorIs(t, f.exec.Status().LastError, ErrMessageNotFound)
	require.Contains(t, statesOf(f.transitions), StateFailed)
	_, err = f.exec.CachedQuote()
	require.ErrorIs(t, err, ErrInvalidExecutionState)
}

func TestRevertedSourceSwapFailsAttempt(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{})
	f.quote(t)
	f.wallet.receipts = []*types.Receipt{{Status: types.ReceiptStatusFailed}}

	_, err := f.exec.EvmApproveAndSwap(context.Background(), f.wallet, f.wallet.address)
	require.ErrorIs(t, err, ErrSourceTxReverted)
	require.Equal(t, StateIdle, f.exec.State())
	require.False(t, f.exec.Status().IsSwapping)
}

func TestApproveAndSwapSwitchesToSourceChain(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{})
	f.quote(t)
	f.wallet.active = vaaLib.ChainIDAvalanche
	f.wallet.receipts = []*types.Receipt{f.sourceReceipt(t, true)}

	_, err := f.exec.EvmApproveAndSwap(context.Background(), f.wallet, f.wallet.address)
	require.NoError(t, err)
	require.Equal(t, []vaaLib.ChainID{vaaLib.ChainIDEthereum}, f.wallet.switches)
	require.Equal(t, StateSourceConfirmed, f.exec.State())
	require.True(t, f.exec.Status().IsSourceSwapComplete)
}

func TestAttestationFailureFailsAttempt(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{})
	f.quote(t)
	f.wallet.receipts = []*types.Receipt{f.sourceReceipt(t, true)}
	f.fetcher.err = errors.New("guardians unreachable")

	err := f.exec.Run(context.Background(), f.wallet, f.wallet.address)
	require.Error(t, err)
	require.Equal(t, StateIdle, f.exec.State())
	require.Equal(t, err, f.exec.Status().LastError)
}

func TestRecoverRedeemsFromReceipt(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{MaxAttempts: 20, Interval: time.Hour})
	require.NoError(t, f.exec.Initialize(f.eth.Address, f.avax.Address))

	require.NoError(t, f.exec.Recover(context.Background(), f.wallet, f.sourceReceipt(t, true)))

	require.Equal(t, 1, f.checker.callCount())
	require.Equal(t, StateComplete, f.exec.State())
	require.Len(t, f.wallet.sentTxs(), 1)
	require.Equal(t, f.dst.SwapContract, f.wallet.sentTxs()[0].to)
}

func TestRecoverSkipsRedeemWhenAlreadyRelayed(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{})
	f.checker.consumeAt = 1
	require.NoError(t, f.exec.Initialize(f.eth.Address, f.avax.Address))

	require.NoError(t, f.exec.Recover(context.Background(), f.wallet, f.sourceReceipt(t, true)))
	require.Equal(t, StateComplete, f.exec.State())
	require.Empty(t, f.wallet.sentTxs())
}

func TestResetCancelsRelayWait(t *testing.T) {
	f := newExecutorFixture(t, RelayPolicy{MaxAttempts: 20, Interval: 5 * time.Second})
	f.checker.checked = make(chan struct{}, 1)
	f.quote(t)
	f.wallet.receipts = []*types.Receipt{f.sourceReceipt(t, true)}

	done := make(chan error, 1)
	go func() { done <- f.exec.Run(context.Background(), f.wallet, f.wallet.address) }()

	select {
	case <-f.checker.checked:
	case <-time.After(5 * time.Second):
		t.Fatal("relay wait never started")
	}
	f.exec.Reset()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("reset did not cancel the relay wait")
	}
	require.Equal(t, StateIdle, f.exec.State())
	require.Len(t, f.wallet.sentTxs(), 1)
}
