package quote

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PathLength is the fixed number of addresses the swap contracts expect:
// one token pair per leg.
const PathLength = 4

// NullSwapPath is the placeholder pair used for an absent leg.
func NullSwapPath() []common.Address {
	return []common.Address{{}, {}}
}

// MakePathArray concatenates the source and destination pairs, substituting
// NullSwapPath for whichever leg is absent.
func MakePathArray(p CrossParameters) []common.Address {
	src := p.SrcPath()
	if src == nil {
		src = NullSwapPath()
	}
	dst := p.DstPath()
	if dst == nil {
		dst = NullSwapPath()
	}
	path := make([]common.Address, 0, PathLength)
	path = append(path, src...)
	return append(path, dst...)
}

// ToBaseUnits converts a human-readable amount into integer token units, truncating.
func ToBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Floor().BigInt()
}

// FromBaseUnits converts integer token units into a human-readable amount.
func FromBaseUnits(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// minAmountOut = floor(expected * (1 - slippage))
func minAmountOut(expected *big.Int, slippage decimal.Decimal) *big.Int {
	return decimal.NewFromBigInt(expected, 0).
		Mul(decimal.NewFromInt(1).Sub(slippage)).
		Floor().
		BigInt()
}

// maxAmountIn = ceil(expected * (1 + slippage))
func maxAmountIn(expected *big.Int, slippage decimal.Decimal) *big.Int {
	return decimal.NewFromBigInt(expected, 0).
		Mul(decimal.NewFromInt(1).Add(slippage)).
		Ceil().
		BigInt()
}
