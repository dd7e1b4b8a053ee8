package quote

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/xswap/internal/chains"
)

// DefaultDeadline matches the five minute deadline offered by default to users.
const DefaultDeadline = 5 * time.Minute

type leg struct {
	chain    vaaLib.ChainID
	venue    Venue
	tokenIn  common.Address
	tokenOut common.Address
	verified bool
}

func (l *leg) path() [2]common.Address {
	return [2]common.Address{l.tokenIn, l.tokenOut}
}

// Quoter prices a swap across the source chain venue, the stablecoin
// transfer and the destination chain venue.
type Quoter struct {
	registry *chains.Registry
	venues   map[vaaLib.ChainID]Venue
	clock    clock.Clock
	logger   *zap.Logger

	tokenIn     chains.TokenInfo
	tokenOut    chains.TokenInfo
	initialized bool
	src         *leg
	dst         *leg
	srcVerified bool
	dstVerified bool

	slippage   *decimal.Decimal
	relayerFee *decimal.Decimal
	deadline   time.Duration
}

// NewQuoter creates a quoter over one venue per chain.
func NewQuoter(logger *zap.Logger, registry *chains.Registry, venues map[vaaLib.ChainID]Venue, clk clock.Clock) *Quoter {
	if clk == nil {
		clk = clock.New()
	}
	return &Quoter{
		registry: registry,
		venues:   venues,
		clock:    clk,
		logger:   logger.With(zap.String("component", "Quoter")),
		deadline: DefaultDeadline,
	}
}

// Initialize resolves both tokens and the venue legs between them. Any
// previous pair and pool verification is discarded, even when the new
// pair is rejected.
func (q *Quoter) Initialize(tokenInAddress, tokenOutAddress common.Address) error {
	q.initialized = false
	q.tokenIn, q.tokenOut = chains.TokenInfo{}, chains.TokenInfo{}
	q.src, q.dst = nil, nil
	q.srcVerified, q.dstVerified = false, false

	tokenIn, err := q.registry.Token(tokenInAddress)
	if err != nil {
		return err
	}
	tokenOut, err := q.registry.Token(tokenOutAddress)
	if err != nil {
		return err
	}
	if tokenIn.Chain == tokenOut.Chain {
		return fmt.Errorf("source and destination tokens are both on %s", tokenIn.Chain)
	}

	var src, dst *leg
	if !tokenIn.IsStablecoin() {
		venue, ok := q.venues[tokenIn.Chain]
		if !ok {
			return fmt.Errorf("%w: no venue for %s", chains.ErrUnsupportedChain, tokenIn.Chain)
		}
		src = &leg{chain: tokenIn.Chain, venue: venue, tokenIn: tokenIn.Address, tokenOut: tokenIn.StablecoinAddress}
	}
	if !tokenOut.IsStablecoin() {
		venue, ok := q.venues[tokenOut.Chain]
		if !ok {
			return fmt.Errorf("%w: no venue for %s", chains.ErrUnsupportedChain, tokenOut.Chain)
		}
		dst = &leg{chain: tokenOut.Chain, venue: venue, tokenIn: tokenOut.StablecoinAddress, tokenOut: tokenOut.Address}
	}

	q.src, q.dst = src, dst
	q.tokenIn = tokenIn
	q.tokenOut = tokenOut
	q.initialized = true

	q.logger.Debug("Quoter initialized",
		zap.String("tokenIn", tokenIn.Symbol),
		zap.Stringer("srcChain", tokenIn.Chain),
		zap.String("tokenOut", tokenOut.Symbol),
		zap.Stringer("dstChain", tokenOut.Chain),
		zap.Bool("hasSrcLeg", q.src != nil),
		zap.Bool("hasDstLeg", q.dst != nil))
	return nil
}

func (q *Quoter) TokenIn() chains.TokenInfo { return q.tokenIn }
func (q *Quoter) TokenOut() chains.TokenInfo { return q.tokenOut }
func (q *Quoter) SrcChainID() vaaLib.ChainID { return q.tokenIn.Chain }
func (q *Quoter) DstChainID() vaaLib.ChainID { return q.tokenOut.Chain }
func (q *Quoter) IsInitialized() bool { return q.initialized }
func (q *Quoter) SetDeadlines(deadline time.Duration) { q.deadline = deadline }

// Protocol returns the protocol of the venue configured for chain.
func (q *Quoter) Protocol(chain vaaLib.ChainID) (chains.Protocol, error) {
	venue, ok := q.venues[chain]
	if !ok {
		return "", fmt.Errorf("%w: no venue for %s", chains.ErrUnsupportedChain, chain)
	}
	return venue.Protocol(), nil
}

// SetSlippage sets the tolerated price movement as a fraction, e.g. 0.01 for 1%.
func (q *Quoter) SetSlippage(slippage decimal.Decimal) error {
	if slippage.IsNegative() || slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: %s", ErrInvalidSlippage, slippage)
	}
	q.slippage = &slippage
	return nil
}

// SetRelayerFee sets the relayer fee in human-readable stablecoin units.
func (q *Quoter) SetRelayerFee(fee decimal.Decimal) error {
	if fee.IsNegative() {
		return fmt.Errorf("relayer fee must not be negative: %s", fee)
	}
	q.relayerFee = &fee
	return nil
}

// AreSwapParametersUndefined reports whether slippage or relayer fee is missing.
func (q *Quoter) AreSwapParametersUndefined() bool {
	return q.slippage == nil || q.relayerFee == nil
}

// ComputeAndVerifySrcPoolAddress derives the source pool and checks that
// it has code deployed. Returns the zero address when there is no source leg.
func (q *Quoter) ComputeAndVerifySrcPoolAddress(ctx context.Context) (common.Address, error) {
	if !q.initialized {
		return common.Address{}, ErrNotInitialized
	}
	addr, err := q.verifyPool(ctx, q.src)
	if err != nil {
		return common.Address{}, err
	}
	q.srcVerified = true
	return addr, nil
}

// ComputeAndVerifyDstPoolAddress is the destination counterpart of
// ComputeAndVerifySrcPoolAddress.
func (q *Quoter) ComputeAndVerifyDstPoolAddress(ctx context.Context) (common.Address, error) {
	if !q.initialized {
		return common.Address{}, ErrNotInitialized
	}
	addr, err := q.verifyPool(ctx, q.dst)
	if err != nil {
		return common.Address{}, err
	}
	q.dstVerified = true
	return addr, nil
}

func (q *Quoter) verifyPool(ctx context.Context, l *leg) (common.Address, error) {
	if l == nil {
		return common.Address{}, nil
	}
	pool := l.venue.PoolAddress(l.tokenIn, l.tokenOut)
	ok, err := l.venue.HasCode(ctx, pool)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to look up pool %s on %s: %w", pool.Hex(), l.chain, err)
	}
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s on %s", ErrPoolNotFound, pool.Hex(), l.chain)
	}
	q.logger.Debug("Pool verified", zap.Stringer("chain", l.chain), zap.String("pool", pool.Hex()))
	return pool, nil
}

func (q *Quoter) checkReady() error {
	if !q.initialized {
		return ErrNotInitialized
	}
	if q.AreSwapParametersUndefined() {
		return ErrUndefinedSwapParameters
	}
	if !q.srcVerified || !q.dstVerified {
		return ErrPoolNotVerified
	}
	return nil
}

func (q *Quoter) deadlineTimestamp() *big.Int {
	return big.NewInt(q.clock.Now().Add(q.deadline).Unix())
}

// ComputeExactInParameters fixes amountIn (in tokenIn units) and solves for
// the minimum guaranteed output of both legs. The source leg's minimum output,
// less the relayer fee, is the destination leg's input.
func (q *Quoter) ComputeExactInParameters(ctx context.Context, amountIn decimal.Decimal) (*ExactInCrossParameters, error) {
	if err := q.checkReady(); err != nil {
		return nil, err
	}
	amount := ToBaseUnits(amountIn, q.tokenIn.Decimals)
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amountIn)
	}

	deadline := q.deadlineTimestamp()
	params := &ExactInCrossParameters{
		AmountIn:   amount,
		RelayerFee: ToBaseUnits(*q.relayerFee, q.tokenIn.StablecoinDecimals),
	}

	stable := amount
	if q.src != nil {
		expected, err := q.src.venue.QuoteExactIn(ctx, q.src.tokenIn, q.src.tokenOut, amount)
		if err != nil {
			return nil, fmt.Errorf("failed to quote source leg: %w", err)
		}
		params.Src = &ExactInLeg{
			Protocol:     q.src.venue.Protocol(),
			Path:         q.src.path(),
			AmountIn:     amount,
			MinAmountOut: minAmountOut(expected, *q.slippage),
			Deadline:     deadline,
			PoolFee:      q.src.venue.PoolFee(),
		}
		stable = params.Src.MinAmountOut
	}

	dstIn := new(big.Int).Sub(stable, params.RelayerFee)
	if dstIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: transfer %s, fee %s", ErrInsufficientAmount, stable, params.RelayerFee)
	}

	params.MinAmountOut = dstIn
	if q.dst != nil {
		expected, err := q.dst.venue.QuoteExactIn(ctx, q.dst.tokenIn, q.dst.tokenOut, dstIn)
		if err != nil {
			return nil, fmt.Errorf("failed to quote destination leg: %w", err)
		}
		params.Dst = &ExactInLeg{
			Protocol:     q.dst.venue.Protocol(),
			Path:         q.dst.path(),
			AmountIn:     dstIn,
			MinAmountOut: minAmountOut(expected, *q.slippage),
			Deadline:     deadline,
			PoolFee:      q.dst.venue.PoolFee(),
		}
		params.MinAmountOut = params.Dst.MinAmountOut
	}

	q.logger.Debug("Computed exact-in quote",
		zap.String("amountIn", params.AmountIn.String()),
		zap.String("minAmountOut", params.MinAmountOut.String()),
		zap.String("relayerFee", params.RelayerFee.String()))
	return params, nil
}

// ComputeExactOutParameters fixes amountOut (in tokenOut units) and solves
// backwards for the maximum input of each leg.
func (q *Quoter) ComputeExactOutParameters(ctx context.Context, amountOut decimal.Decimal) (*ExactOutCrossParameters, error) {
	if err := q.checkReady(); err != nil {
		return nil, err
	}
	amount := ToBaseUnits(amountOut, q.tokenOut.Decimals)
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amountOut)
	}

	deadline := q.deadlineTimestamp()
	params := &ExactOutCrossParameters{
		AmountOut:  amount,
		RelayerFee: ToBaseUnits(*q.relayerFee, q.tokenIn.StablecoinDecimals),
	}

	stableNeeded := amount
	if q.dst != nil {
		expected, err := q.dst.venue.QuoteExactOut(ctx, q.dst.tokenIn, q.dst.tokenOut, amount)
		if err != nil {
			return nil, fmt.Errorf("failed to quote destination leg: %w", err)
		}
		params.Dst = &ExactOutLeg{
			Protocol:    q.dst.venue.Protocol(),
			Path:        q.dst.path(),
			AmountOut:   amount,
			MaxAmountIn: maxAmountIn(expected, *q.slippage),
			Deadline:    deadline,
			PoolFee:     q.dst.venue.PoolFee(),
		}
		stableNeeded = params.Dst.MaxAmountIn
	}

	stableNeeded = new(big.Int).Add(stableNeeded, params.RelayerFee)
	params.MaxAmountIn = stableNeeded
	if q.src != nil {
		expected, err := q.src.venue.QuoteExactOut(ctx, q.src.tokenIn, q.src.tokenOut, stableNeeded)
		if err != nil {
			return nil, fmt.Errorf("failed to quote source leg: %w", err)
		}
		params.Src = &ExactOutLeg{
			Protocol:    q.src.venue.Protocol(),
			Path:        q.src.path(),
			AmountOut:   stableNeeded,
			MaxAmountIn: maxAmountIn(expected, *q.slippage),
			Deadline:    deadline,
			PoolFee:     q.src.venue.PoolFee(),
		}
		params.MaxAmountIn = params.Src.MaxAmountIn
	}

	q.logger.Debug("Computed exact-out quote",
		zap.String("amountOut", params.AmountOut.String()),
		zap.String("maxAmountIn", params.MaxAmountIn.String()),
		zap.String("relayerFee", params.RelayerFee.String()))
	return params, nil
}
