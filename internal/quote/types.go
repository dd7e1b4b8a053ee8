package quote

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wormhole-demo/xswap/internal/chains"
)

var (
	ErrPoolNotFound            = errors.New("pool not found")
	ErrPoolNotVerified         = errors.New("pool address has not been verified")
	ErrUndefinedSwapParameters = errors.New("undefined swap parameters")
	ErrInvalidSlippage         = errors.New("slippage must be within [0, 1)")
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrInsufficientAmount      = errors.New("amount does not cover the relayer fee")
	ErrNotInitialized          = errors.New("quoter not initialized")
)

// QuoteType selects whether the input or the output amount is fixed.
type QuoteType int

const (
	QuoteTypeExactIn QuoteType = iota
	QuoteTypeExactOut
)

func (t QuoteType) String() string {
	switch t {
	case QuoteTypeExactIn:
		return "exact-in"
	case QuoteTypeExactOut:
		return "exact-out"
	default:
		return "unknown"
	}
}

// Venue prices swaps against one chain's liquidity pools.
type Venue interface {
	Protocol() chains.Protocol
	PoolFee() uint32
	PoolAddress(tokenA, tokenB common.Address) common.Address
	HasCode(ctx context.Context, address common.Address) (bool, error)
	QuoteExactIn(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error)
	QuoteExactOut(ctx context.Context, tokenIn, tokenOut common.Address, amountOut *big.Int) (*big.Int, error)
}

// ExactInLeg is the priced swap on one side of an exact-in transfer.
type ExactInLeg struct {
	Protocol     chains.Protocol
	Path         [2]common.Address
	AmountIn     *big.Int
	MinAmountOut *big.Int
	Deadline     *big.Int
	PoolFee      uint32
}

// ExactOutLeg is the priced swap on one side of an exact-out transfer.
type ExactOutLeg struct {
	Protocol    chains.Protocol
	Path        [2]common.Address
	AmountOut   *big.Int
	MaxAmountIn *big.Int
	Deadline    *big.Int
	PoolFee     uint32
}

// CrossParameters is implemented by both quote kinds.
type CrossParameters interface {
	QuoteType() QuoteType
	// SrcPath and DstPath return nil when the leg is absent.
	SrcPath() []common.Address
	DstPath() []common.Address
}

// ExactInCrossParameters is a two-leg exact-in quote. Either leg may be nil
// when the token on that side is the stablecoin itself.
type ExactInCrossParameters struct {
	AmountIn     *big.Int
	MinAmountOut *big.Int
	Src          *ExactInLeg
	Dst          *ExactInLeg
	RelayerFee   *big.Int // in stablecoin base units
}

func (p *ExactInCrossParameters) QuoteType() QuoteType { return QuoteTypeExactIn }

func (p *ExactInCrossParameters) SrcPath() []common.Address {
	if p.Src == nil {
		return nil
	}
	return p.Src.Path[:]
}

func (p *ExactInCrossParameters) DstPath() []common.Address {
	if p.Dst == nil {
		return nil
	}
	return p.Dst.Path[:]
}

// ExactOutCrossParameters is a two-leg exact-out quote.
type ExactOutCrossParameters struct {
	AmountOut   *big.Int
	MaxAmountIn *big.Int
	Src         *ExactOutLeg
	Dst         *ExactOutLeg
	RelayerFee  *big.Int
}

func (p *ExactOutCrossParameters) QuoteType() QuoteType { return QuoteTypeExactOut }

func (p *ExactOutCrossParameters) SrcPath() []common.Address {
	if p.Src == nil {
		return nil
	}
	return p.Src.Path[:]
}

func (p *ExactOutCrossParameters) DstPath() []common.Address {
	if p.Dst == nil {
		return nil
	}
	return p.Dst.Path[:]
}
