package swap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/xswap/internal/attestation"
	"github.com/wormhole-demo/xswap/internal/chains"
	"github.com/wormhole-demo/xswap/internal/quote"
	"github.com/wormhole-demo/xswap/internal/submitter"
	"github.com/wormhole-demo/xswap/internal/wormhole"
)

var (
	ErrInvalidExecutionState = errors.New("invalid execution state")
	ErrMessageNotFound       = errors.New("no Circle message found in source transaction")
	ErrSourceTxReverted      = errors.New("source transaction reverted")
	ErrTargetTxReverted      = errors.New("target transaction reverted")
)

// Wallet is the signer capability the executor drives. Transactions go to
// the active chain.
type Wallet interface {
	submitter.Sender
	ActiveChain() vaaLib.ChainID
	SwitchChain(ctx context.Context, chain vaaLib.ChainID) error
}

// CircleAttestor blocks until Circle has attested a burn message.
type CircleAttestor interface {
	Poll(ctx context.Context, messageHash common.Hash) ([]byte, error)
}

// ConsumptionChecker reports whether a VAA was already redeemed on a chain.
type ConsumptionChecker interface {
	IsMessageConsumed(ctx context.Context, hash common.Hash) (bool, error)
}

type Config struct {
	Quoter        *quote.Quoter
	Resolver      *chains.Resolver
	VAAFetcher    attestation.VAAFetcher
	Circle        CircleAttestor
	Integrations  map[vaaLib.ChainID]ConsumptionChecker
	Clock         clock.Clock
	RelayPolicy   RelayPolicy
	OnStateChange StateChangeCallback
}

// Executor runs one cross-chain swap attempt at a time: quote, source swap,
// message discovery, attestation, then relayed or manual redemption.
type Executor struct {
	mu       sync.Mutex
	sm       *stateMachine
	pending  []StateTransition
	callback StateChangeCallback

	quoter       *quote.Quoter
	resolver     *chains.Resolver
	vaas         attestation.VAAFetcher
	circle       CircleAttestor
	integrations map[vaaLib.ChainID]ConsumptionChecker
	clock        clock.Clock
	relay        RelayPolicy
	logger       *zap.Logger

	initialized bool
	tokenIn     chains.TokenInfo
	tokenOut    chains.TokenInfo
	srcParams   chains.ExecutionParameters
	dstParams   chains.ExecutionParameters

	phase  phase
	status Status

	attempt       context.Context
	cancelAttempt context.CancelFunc
}

func NewExecutor(logger *zap.Logger, cfg Config) (*Executor, error) {
	if cfg.Quoter == nil || cfg.Resolver == nil || cfg.VAAFetcher == nil || cfg.Circle == nil {
		return nil, fmt.Errorf("executor requires a quoter, resolver, VAA fetcher and Circle attestor")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	relay := cfg.RelayPolicy
	if relay.MaxAttempts <= 0 {
		relay = DefaultRelayPolicy()
	}

	logger = logger.With(zap.String("component", "SwapExecutor"))
	integrations := make(map[vaaLib.ChainID]ConsumptionChecker, len(cfg.Integrations))
	for chain, checker := range cfg.Integrations {
		integrations[chain] = checker
	}

	e := &Executor{
		sm:           newStateMachine(logger, clk),
		callback:     cfg.OnStateChange,
		quoter:       cfg.Quoter,
		resolver:     cfg.Resolver,
		vaas:         cfg.VAAFetcher,
		circle:       cfg.Circle,
		integrations: integrations,
		clock:        clk,
		relay:        relay,
		logger:       logger,
		phase:        idlePhase{},
	}
	e.attempt, e.cancelAttempt = context.WithCancel(context.Background())
	return e, nil
}

func (e *Executor) lock() {
	e.mu.Lock()
}

// unlock releases the mutex and then reports transitions queued while it was held.
func (e *Executor) unlock() {
	pending := e.pending
	e.pending = nil
	callback := e.callback
	e.mu.Unlock()

	if callback == nil {
		return
	}
	for _, t := range pending {
		callback(t.From, t.To, t.Reason)
	}
}

func (e *Executor) transition(to State, reason string) error {
	t, err := e.sm.transitionTo(to, reason)
	if err != nil {
		return err
	}
	e.pending = append(e.pending, t)
	return nil
}

func (e *Executor) invalidState(want string) error {
	return fmt.Errorf("%w: %s required, executor is %s", ErrInvalidExecutionState, want, e.sm.currentState)
}

// resetLocked drops all cached quote and execution data and returns to idle.
func (e *Executor) resetLocked(reason string) {
	e.cancelAttempt()
	e.attempt, e.cancelAttempt = context.WithCancel(context.Background())
	e.phase = idlePhase{}
	e.status = Status{}
	if e.sm.currentState != StateIdle {
		_ = e.transition(StateIdle, reason)
	}
}

// failLocked records err, passes through Failed and resets to idle.
func (e *Executor) failLocked(err error) {
	if e.sm.currentState == StateIdle || e.sm.currentState.Terminal() {
		return
	}
	e.logger.Error("Swap attempt failed", zap.Stringer("state", e.sm.currentState), zap.Error(err))
	_ = e.transition(StateFailed, err.Error())
	e.resetLocked("reset after failure")
	e.status.LastError = err
}

func (e *Executor) fail(err error) error {
	e.lock()
	defer e.unlock()
	e.failLocked(err)
	return err
}

func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// bind derives a context that is also cancelled when the attempt is reset.
func (e *Executor) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	e.lock()
	attempt := e.attempt
	e.unlock()

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(attempt, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (e *Executor) configurable() error {
	switch e.sm.currentState {
	case StateIdle, StateQuoted, StateComplete:
		return nil
	}
	return e.invalidState("an executor without a swap in flight")
}

// Initialize selects the token pair and resolves both chains' execution
// parameters. Cached quotes and pool verification are discarded.
func (e *Executor) Initialize(tokenIn, tokenOut common.Address) error {
	e.lock()
	defer e.unlock()
	if err := e.configurable(); err != nil {
		return err
	}
	return e.initializeLocked(tokenIn, tokenOut)
}

func (e *Executor) initializeLocked(tokenIn, tokenOut common.Address) error {
	e.resetLocked("initialize")
	e.initialized = false

	if err := e.quoter.Initialize(tokenIn, tokenOut); err != nil {
		return err
	}
	src, err := e.resolver.Resolve(e.quoter.SrcChainID())
	if err != nil {
		return err
	}
	dst, err := e.resolver.Resolve(e.quoter.DstChainID())
	if err != nil {
		return err
	}

	e.srcParams, e.dstParams = src, dst
	e.tokenIn, e.tokenOut = e.quoter.TokenIn(), e.quoter.TokenOut()
	e.initialized = true
	return nil
}

// SwitchDirection swaps source and destination. Every cached quote and
// pool verification is invalidated.
func (e *Executor) SwitchDirection() error {
	e.lock()
	defer e.unlock()
	if err := e.configurable(); err != nil {
		return err
	}
	if !e.initialized {
		return e.invalidState("an initialized token pair")
	}
	return e.initializeLocked(e.tokenOut.Address, e.tokenIn.Address)
}

func (e *Executor) SetSlippage(slippage decimal.Decimal) error {
	return e.configure("slippage changed", func() error { return e.quoter.SetSlippage(slippage) })
}

func (e *Executor) SetRelayerFee(fee decimal.Decimal) error {
	return e.configure("relayer fee changed", func() error { return e.quoter.SetRelayerFee(fee) })
}

func (e *Executor) SetDeadlines(deadline time.Duration) error {
	return e.configure("deadline changed", func() error {
		e.quoter.SetDeadlines(deadline)
		return nil
	})
}

func (e *Executor) ComputeAndVerifySrcPoolAddress(ctx context.Context) (common.Address, error) {
	var pool common.Address
	err := e.configure("source pool verified", func() error {
		var err error
		pool, err = e.quoter.ComputeAndVerifySrcPoolAddress(ctx)
		return err
	})
	return pool, err
}

func (e *Executor) ComputeAndVerifyDstPoolAddress(ctx context.Context) (common.Address, error) {
	var pool common.Address
	err := e.configure("destination pool verified", func() error {
		var err error
		pool, err = e.quoter.ComputeAndVerifyDstPoolAddress(ctx)
		return err
	})
	return pool, err
}

// configure applies a quote input change, which invalidates any cached quote.
func (e *Executor) configure(reason string, apply func() error) error {
	e.lock()
	defer e.unlock()
	if err := e.configurable(); err != nil {
		return err
	}
	e.resetLocked(reason)
	return apply()
}

// ComputeQuoteExactIn prices a swap of amountIn tokenIn and caches it for execution.
func (e *Executor) ComputeQuoteExactIn(ctx context.Context, amountIn decimal.Decimal) (*quote.ExactInCrossParameters, error) {
	var params *quote.ExactInCrossParameters
	err := e.computeQuote(func() (CachedQuote, error) {
		var err error
		params, err = e.quoter.ComputeExactInParameters(ctx, amountIn)
		return exactInQuote(params), err
	})
	if err != nil {
		return nil, err
	}
	return params, nil
}

// ComputeQuoteExactOut prices a swap yielding amountOut tokenOut. The swap
// contracts only execute exact-in quotes, so the result is informational.
func (e *Executor) ComputeQuoteExactOut(ctx context.Context, amountOut decimal.Decimal) (*quote.ExactOutCrossParameters, error) {
	var params *quote.ExactOutCrossParameters
	err := e.computeQuote(func() (CachedQuote, error) {
		var err error
		params, err = e.quoter.ComputeExactOutParameters(ctx, amountOut)
		return exactOutQuote(params), err
	})
	if err != nil {
		return nil, err
	}
	return params, nil
}

func (e *Executor) computeQuote(compute func() (CachedQuote, error)) error {
	e.lock()
	defer e.unlock()
	if err := e.configurable(); err != nil {
		return err
	}
	if !e.initialized {
		return e.invalidState("an initialized token pair")
	}
	if e.sm.currentState == StateComplete {
		e.resetLocked("new quote")
	}

	e.phase = idlePhase{}
	if err := e.transition(StateQuoting, "computing quote"); err != nil {
		return err
	}
	cached, err := compute()
	if err != nil {
		_ = e.transition(StateIdle, "quote failed")
		return err
	}
	e.phase = quotedPhase{quote: cached}
	return e.transition(StateQuoted, cached.Type().String()+" quote ready")
}

// CachedQuote returns the quote that the next swap would execute.
func (e *Executor) CachedQuote() (CachedQuote, error) {
	e.lock()
	defer e.unlock()
	p, ok := e.phase.(quotedPhase)
	if !ok {
		return CachedQuote{}, e.invalidState("a computed quote")
	}
	return p.quote, nil
}

// EvmApproveAndSwap submits the source chain swap for the cached exact-in
// quote and waits for it to be mined. On success the message search
// parameters are derived from the receipt. Any failure resets the executor.
func (e *Executor) EvmApproveAndSwap(ctx context.Context, wallet Wallet, recipient common.Address) (*types.Receipt, error) {
	e.lock()
	qp, ok := e.phase.(quotedPhase)
	var params *quote.ExactInCrossParameters
	if ok {
		params, ok = qp.quote.ExactIn()
	}
	if !ok || !e.initialized {
		err := e.invalidState("a cached exact-in quote")
		e.unlock()
		return nil, err
	}
	protocol, err := e.quoter.Protocol(e.srcParams.Chain)
	if err != nil {
		e.unlock()
		return nil, err
	}
	swap := submitter.SourceSwap{
		Protocol:  protocol,
		Token:     e.tokenIn,
		Quote:     params,
		Source:    e.srcParams,
		Target:    e.dstParams,
		Recipient: recipient,
	}
	if err := e.transition(StateSourceSwapping, "submitting source swap"); err != nil {
		e.unlock()
		return nil, err
	}
	e.status.IsSwapping = true
	e.status.Message = StatusAwaitingWallet
	e.unlock()

	ctx, cancel := e.bind(ctx)
	defer cancel()

	receipt, err := e.submitSource(ctx, wallet, swap)
	if err != nil {
		return nil, e.fail(err)
	}
	search, err := wormhole.SearchParamsFromReceipt(receipt, swap.Source.CoreBridge, swap.Source.CircleIntegration)
	if err != nil {
		return nil, e.fail(err)
	}

	e.lock()
	defer e.unlock()
	if e.sm.currentState != StateSourceSwapping {
		return nil, e.invalidState(StateSourceSwapping.String())
	}
	e.phase = sourceConfirmedPhase{inFlight{quote: qp.quote, sourceReceipt: receipt, search: search}}
	e.status.IsSourceSwapComplete = true
	if err := e.transition(StateSourceConfirmed, "source transaction "+receipt.TxHash.Hex()); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (e *Executor) submitSource(ctx context.Context, wallet Wallet, swap submitter.SourceSwap) (*types.Receipt, error) {
	if wallet.ActiveChain() != swap.Source.Chain {
		if err := wallet.SwitchChain(ctx, swap.Source.Chain); err != nil {
			return nil, err
		}
	}
	receipt, err := submitter.NewEVMSubmitter(e.logger, wallet).SubmitSourceSwap(ctx, swap)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s", ErrSourceTxReverted, receipt.TxHash.Hex())
	}
	return receipt, nil
}

// Resume restores a swap whose source transaction was confirmed outside
// this executor, so that the destination side can be completed.
func (e *Executor) Resume(receipt *types.Receipt) error {
	e.lock()
	defer e.unlock()
	if err := e.configurable(); err != nil {
		return err
	}
	if !e.initialized {
		return e.invalidState("an initialized token pair")
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s", ErrSourceTxReverted, receipt.TxHash.Hex())
	}
	search, err := wormhole.SearchParamsFromReceipt(receipt, e.srcParams.CoreBridge, e.srcParams.CircleIntegration)
	if err != nil {
		return err
	}

	e.resetLocked("resume")
	e.phase = sourceConfirmedPhase{inFlight{sourceReceipt: receipt, search: search}}
	e.status.IsSwapping = true
	e.status.IsSourceSwapComplete = true
	return e.transition(StateSourceConfirmed, "resumed from "+receipt.TxHash.Hex())
}

// VAASearchParams returns the coordinates of the emitted message. They exist
// only once the source transaction has confirmed.
func (e *Executor) VAASearchParams() (wormhole.SearchParams, error) {
	e.lock()
	defer e.unlock()
	f, ok := flight(e.phase)
	if !ok {
		return wormhole.SearchParams{}, e.invalidState("a confirmed source transaction")
	}
	return f.search, nil
}

// SourceReceipt returns the confirmed source transaction receipt.
func (e *Executor) SourceReceipt() (*types.Receipt, error) {
	e.lock()
	defer e.unlock()
	f, ok := flight(e.phase)
	if !ok {
		return nil, e.invalidState("a confirmed source transaction")
	}
	return f.sourceReceipt, nil
}

// DiscoverMessage finds the Circle burn message in the source receipt. A
// confirmed transaction without one cannot be completed and fails the attempt.
func (e *Executor) DiscoverMessage() (*wormhole.CircleMessage, error) {
	e.lock()
	defer e.unlock()
	p, ok := e.phase.(sourceConfirmedPhase)
	if !ok {
		return nil, e.invalidState(StateSourceConfirmed.String())
	}
	if p.message != nil {
		return p.message, nil
	}

	message, err := wormhole.FindCircleMessage(p.sourceReceipt.Logs, e.srcParams.CircleEmitter)
	if err == nil && message == nil {
		err = fmt.Errorf("%w: %s", ErrMessageNotFound, p.sourceReceipt.TxHash.Hex())
	}
	if err != nil {
		e.failLocked(err)
		return nil, err
	}

	e.logger.Info("Circle message found", zap.String("messageHash", message.Hash.Hex()))
	p.message = message
	e.phase = p
	return message, nil
}

// AwaitSignedVAA blocks until the guardians have signed the message.
func (e *Executor) AwaitSignedVAA(ctx context.Context) ([]byte, error) {
	e.lock()
	p, ok := e.phase.(sourceConfirmedPhase)
	if !ok || p.message == nil {
		err := e.invalidState("a discovered Circle message")
		e.unlock()
		return nil, err
	}
	if err := e.transition(StateAwaitingAttestation, "fetching signed VAA"); err != nil {
		e.unlock()
		return nil, err
	}
	e.status.Message = StatusAwaitingSignature
	chain := e.srcParams.Chain
	e.unlock()

	ctx, cancel := e.bind(ctx)
	defer cancel()

	vaaBytes, err := e.vaas.FetchSignedVAA(ctx, chain, p.search)
	if err != nil {
		return nil, e.fail(err)
	}
	key, err := wormhole.ConsumedMessageHash(vaaBytes)
	if err != nil {
		return nil, e.fail(fmt.Errorf("failed to parse signed VAA: %w", err))
	}

	e.lock()
	defer e.unlock()
	if e.sm.currentState != StateAwaitingAttestation {
		return nil, e.invalidState(StateAwaitingAttestation.String())
	}
	e.phase = attestedPhase{inFlight: p.inFlight, signedVAA: vaaBytes, consumedKey: key}
	e.status.HasSignedVAA = true
	e.status.Message = StatusAwaitingRelayer
	return vaaBytes, nil
}

// SignedVAA returns the guardian-signed VAA once it has been fetched.
func (e *Executor) SignedVAA() ([]byte, error) {
	e.lock()
	defer e.unlock()
	switch p := e.phase.(type) {
	case attestedPhase:
		return p.signedVAA, nil
	case completePhase:
		return p.signedVAA, nil
	}
	return nil, e.invalidState("a signed VAA")
}

// FetchVaaAndSwap completes the destination side manually: it waits for the
// signed VAA and the Circle attestation, switches the wallet to the
// destination chain and submits the redemption.
func (e *Executor) FetchVaaAndSwap(ctx context.Context, wallet Wallet) (*types.Receipt, error) {
	e.lock()
	state := e.sm.currentState
	e.unlock()

	if state == StateSourceConfirmed {
		if _, err := e.DiscoverMessage(); err != nil {
			return nil, err
		}
		if _, err := e.AwaitSignedVAA(ctx); err != nil {
			return nil, err
		}
	}

	e.lock()
	p, ok := e.phase.(attestedPhase)
	state = e.sm.currentState
	if !ok || (state != StateAwaitingAttestation && state != StateManualRedeeming) {
		err := e.invalidState("a signed VAA awaiting redemption")
		e.unlock()
		return nil, err
	}
	dst := e.dstParams
	nativeOut := e.tokenOut.Native
	e.unlock()

	ctx, cancel := e.bind(ctx)
	defer cancel()

	circleAttestation, err := e.circle.Poll(ctx, p.message.Hash)
	if err != nil {
		if interrupted(err) {
			// The signed VAA is kept so redemption can be retried.
			return nil, err
		}
		return nil, e.fail(err)
	}

	if wallet.ActiveChain() != dst.Chain {
		if err := wallet.SwitchChain(ctx, dst.Chain); err != nil {
			return nil, e.fail(err)
		}
	}

	receipt, err := submitter.NewEVMSubmitter(e.logger, wallet).SubmitRedeem(ctx, dst.SwapContract, nativeOut, submitter.RedeemParameters{
		EncodedWormholeMessage: p.signedVAA,
		CircleBridgeMessage:    p.message.Message,
		CircleAttestation:      circleAttestation,
	})
	if err != nil {
		return nil, e.fail(err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, e.fail(fmt.Errorf("%w: %s", ErrTargetTxReverted, receipt.TxHash.Hex()))
	}

	e.lock()
	defer e.unlock()
	if s := e.sm.currentState; s != StateAwaitingAttestation && s != StateManualRedeeming {
		return nil, e.invalidState("a signed VAA awaiting redemption")
	}
	e.phase = completePhase{attestedPhase: p, targetReceipt: receipt}
	e.markCompleteLocked()
	if err := e.transition(StateComplete, "target transaction "+receipt.TxHash.Hex()); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (e *Executor) markCompleteLocked() {
	e.status.IsSwapping = false
	e.status.IsTargetSwapComplete = true
	e.status.Message = StatusComplete
}

// TargetReceipt returns the manual redemption receipt. It is nil when the
// relayer completed the swap.
func (e *Executor) TargetReceipt() (*types.Receipt, error) {
	e.lock()
	defer e.unlock()
	p, ok := e.phase.(completePhase)
	if !ok {
		return nil, e.invalidState(StateComplete.String())
	}
	return p.targetReceipt, nil
}

// Run executes the cached exact-in quote end to end. When the relayer does
// not redeem within the relay policy the redemption is submitted from wallet.
func (e *Executor) Run(ctx context.Context, wallet Wallet, recipient common.Address) error {
	if _, err := e.EvmApproveAndSwap(ctx, wallet, recipient); err != nil {
		return err
	}
	return e.complete(ctx, wallet, e.relay)
}

// Recover completes a swap from its confirmed source receipt. The
// destination is checked once for a relayed redemption before redeeming.
func (e *Executor) Recover(ctx context.Context, wallet Wallet, receipt *types.Receipt) error {
	if err := e.Resume(receipt); err != nil {
		return err
	}
	return e.complete(ctx, wallet, RelayPolicy{MaxAttempts: 1})
}

func (e *Executor) complete(ctx context.Context, wallet Wallet, policy RelayPolicy) error {
	if _, err := e.DiscoverMessage(); err != nil {
		return err
	}
	if _, err := e.AwaitSignedVAA(ctx); err != nil {
		return err
	}
	relayed, err := e.waitForRelay(ctx, policy)
	if err != nil || relayed {
		return err
	}
	_, err = e.FetchVaaAndSwap(ctx, wallet)
	return err
}

// Reset abandons the current attempt, cancelling any wait in progress.
func (e *Executor) Reset() {
	e.lock()
	defer e.unlock()
	e.resetLocked("reset")
}

func (e *Executor) State() State {
	e.lock()
	defer e.unlock()
	return e.sm.currentState
}

func (e *Executor) Status() Status {
	e.lock()
	defer e.unlock()
	s := e.status
	s.State = e.sm.currentState
	return s
}

func (e *Executor) Transitions() []StateTransition {
	e.lock()
	defer e.unlock()
	return e.sm.history()
}
