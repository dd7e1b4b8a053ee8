package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wormhole-demo/xswap/internal/chains"
	"github.com/wormhole-demo/xswap/internal/quote"
)

const uniswapV2RouterABIJSON = `[
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"}
		],
		"name": "getAmountsOut",
		"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "uint256", "name": "amountOut", "type": "uint256"},
			{"internalType": "address[]", "name": "path", "type": "address[]"}
		],
		"name": "getAmountsIn",
		"outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

const uniswapV3QuoterABIJSON = `[
	{
		"inputs": [{
			"components": [
				{"internalType": "address", "name": "tokenIn", "type": "address"},
				{"internalType": "address", "name": "tokenOut", "type": "address"},
				{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
				{"internalType": "uint24", "name": "fee", "type": "uint24"},
				{"internalType": "uint160", "name": "sqrtPriceLimitX96", "type": "uint160"}
			],
			"internalType": "struct IQuoterV2.QuoteExactInputSingleParams",
			"name": "params",
			"type": "tuple"
		}],
		"name": "quoteExactInputSingle",
		"outputs": [
			{"internalType": "uint256", "name": "amountOut", "type": "uint256"},
			{"internalType": "uint160", "name": "sqrtPriceX96After", "type": "uint160"},
			{"internalType": "uint32", "name": "initializedTicksCrossed", "type": "uint32"},
			{"internalType": "uint256", "name": "gasEstimate", "type": "uint256"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{
			"components": [
				{"internalType": "address", "name": "tokenIn", "type": "address"},
				{"internalType": "address", "name": "tokenOut", "type": "address"},
				{"internalType": "uint256", "name": "amount", "type": "uint256"},
				{"internalType": "uint24", "name": "fee", "type": "uint24"},
				{"internalType": "uint160", "name": "sqrtPriceLimitX96", "type": "uint160"}
			],
			"internalType": "struct IQuoterV2.QuoteExactOutputSingleParams",
			"name": "params",
			"type": "tuple"
		}],
		"name": "quoteExactOutputSingle",
		"outputs": [
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "uint160", "name": "sqrtPriceX96After", "type": "uint160"},
			{"internalType": "uint32", "name": "initializedTicksCrossed", "type": "uint32"},
			{"internalType": "uint256", "name": "gasEstimate", "type": "uint256"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

var (
	uniswapV2RouterABI = mustParseABI(uniswapV2RouterABIJSON)
	uniswapV3QuoterABI = mustParseABI(uniswapV3QuoterABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("ABI parse error: %v", err))
	}
	return parsed
}

// NewVenue builds the venue described by cfg on top of caller.
func NewVenue(logger *zap.Logger, cfg chains.VenueConfig, caller bind.ContractCaller) (quote.Venue, error) {
	base := venueBase{cfg: cfg, caller: caller}
	switch cfg.Protocol {
	case chains.ProtocolUniswapV2:
		base.logger = logger.With(zap.String("component", "UniswapV2Venue"))
		return &UniswapV2Venue{venueBase: base}, nil
	case chains.ProtocolUniswapV3:
		base.logger = logger.With(zap.String("component", "UniswapV3Venue"))
		return &UniswapV3Venue{venueBase: base}, nil
	default:
		return nil, fmt.Errorf("unknown venue protocol %q", cfg.Protocol)
	}
}

type venueBase struct {
	cfg    chains.VenueConfig
	caller bind.ContractCaller
	logger *zap.Logger
}

func (v *venueBase) Protocol() chains.Protocol {
	return v.cfg.Protocol
}

func (v *venueBase) PoolFee() uint32 {
	return v.cfg.PoolFee
}

// HasCode reports whether a contract is deployed at address.
func (v *venueBase) HasCode(ctx context.Context, address common.Address) (bool, error) {
	code, err := v.caller.CodeAt(ctx, address, nil)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

func (v *venueBase) call(ctx context.Context, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("ABI pack error: %w", err)
	}
	to := v.cfg.Quoter
	out, err := v.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("ABI unpack error: %w", err)
	}
	return values, nil
}

// UniswapV2Venue prices through a V2 router's getAmountsOut and getAmountsIn.
type UniswapV2Venue struct {
	venueBase
}

func (v *UniswapV2Venue) PoolAddress(tokenA, tokenB common.Address) common.Address {
	return quote.ComputeV2PairAddress(v.cfg.Factory, v.cfg.InitCodeHash, tokenA, tokenB)
}

func (v *UniswapV2Venue) QuoteExactIn(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	amounts, err := v.amounts(ctx, "getAmountsOut", amountIn, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	return amounts[len(amounts)-1], nil
}

func (v *UniswapV2Venue) QuoteExactOut(ctx context.Context, tokenIn, tokenOut common.Address, amountOut *big.Int) (*big.Int, error) {
	amounts, err := v.amounts(ctx, "getAmountsIn", amountOut, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	return amounts[0], nil
}

func (v *UniswapV2Venue) amounts(ctx context.Context, method string, amount *big.Int, tokenIn, tokenOut common.Address) ([]*big.Int, error) {
	values, err := v.call(ctx, uniswapV2RouterABI, method, amount, []common.Address{tokenIn, tokenOut})
	if err != nil {
		return nil, err
	}
	amounts, ok := values[0].([]*big.Int)
	if !ok || len(amounts) != 2 {
		return nil, fmt.Errorf("unexpected %s result: %v", method, values)
	}
	v.logger.Debug("Router quote",
		zap.String("method", method),
		zap.String("amountIn", amounts[0].String()),
		zap.String("amountOut", amounts[1].String()))
	return amounts, nil
}

// UniswapV3Venue prices single-pool swaps through QuoterV2.
type UniswapV3Venue struct {
	venueBase
}

type quoteExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

type quoteExactOutputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Amount            *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

func (v *UniswapV3Venue) PoolAddress(tokenA, tokenB common.Address) common.Address {
	return quote.ComputeV3PoolAddress(v.cfg.Factory, v.cfg.InitCodeHash, tokenA, tokenB, v.cfg.PoolFee)
}

func (v *UniswapV3Venue) QuoteExactIn(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	values, err := v.call(ctx, uniswapV3QuoterABI, "quoteExactInputSingle", quoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               new(big.Int).SetUint64(uint64(v.cfg.PoolFee)),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, err
	}
	return firstBigInt("quoteExactInputSingle", values)
}

func (v *UniswapV3Venue) QuoteExactOut(ctx context.Context, tokenIn, tokenOut common.Address, amountOut *big.Int) (*big.Int, error) {
	values, err := v.call(ctx, uniswapV3QuoterABI, "quoteExactOutputSingle", quoteExactOutputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		Amount:            amountOut,
		Fee:               new(big.Int).SetUint64(uint64(v.cfg.PoolFee)),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, err
	}
	return firstBigInt("quoteExactOutputSingle", values)
}

func firstBigInt(method string, values []interface{}) (*big.Int, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", method, values[0])
	}
	return amount, nil
}
