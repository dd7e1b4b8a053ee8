package submitter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/wormhole-demo/xswap/internal/chains"
	"github.com/wormhole-demo/xswap/internal/quote"
)

const submitTimeout = 5 * time.Minute

// ErrMissingQuote is returned when a source swap has no exact-in quote.
var ErrMissingQuote = errors.New("source swap requires an exact-in quote")

const crossChainSwapV3ABIJSON = `[
	{
		"inputs": [
			{
				"components": [
					{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
					{"internalType": "uint256", "name": "amountOutMinimum", "type": "uint256"},
					{"internalType": "uint256", "name": "targetAmountOutMinimum", "type": "uint256"},
					{"internalType": "bytes32", "name": "targetChainRecipient", "type": "bytes32"},
					{"internalType": "uint256", "name": "deadline", "type": "uint256"},
					{"internalType": "uint24", "name": "poolFee", "type": "uint24"}
				],
				"internalType": "struct CrossChainSwapV3.ExactInParameters",
				"name": "swapParams",
				"type": "tuple"
			},
			{"internalType": "address[]", "name": "path", "type": "address[]"},
			{"internalType": "uint256", "name": "relayerFee", "type": "uint256"},
			{"internalType": "uint16", "name": "targetChainId", "type": "uint16"},
			{"internalType": "bytes32", "name": "targetContractAddress", "type": "bytes32"}
		],
		"name": "swapExactNativeInAndTransfer",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{
				"components": [
					{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
					{"internalType": "uint256", "name": "amountOutMinimum", "type": "uint256"},
					{"internalType": "uint256", "name": "targetAmountOutMinimum", "type": "uint256"},
					{"internalType": "bytes32", "name": "targetChainRecipient", "type": "bytes32"},
					{"internalType": "uint256", "name": "deadline", "type": "uint256"},
					{"internalType": "uint24", "name": "poolFee", "type": "uint24"}
				],
				"internalType": "struct CrossChainSwapV3.ExactInParameters",
				"name": "swapParams",
				"type": "tuple"
			},
			{"internalType": "address[]", "name": "path", "type": "address[]"},
			{"internalType": "uint256", "name": "relayerFee", "type": "uint256"},
			{"internalType": "uint16", "name": "targetChainId", "type": "uint16"},
			{"internalType": "bytes32", "name": "targetContractAddress", "type": "bytes32"}
		],
		"name": "swapExactInAndTransfer",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const crossChainSwapV2ABIJSON = `[
	{
		"inputs": [
			{
				"components": [
					{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
					{"internalType": "uint256", "name": "amountOutMinimum", "type": "uint256"},
					{"internalType": "uint256", "name": "targetAmountOutMinimum", "type": "uint256"},
					{"internalType": "bytes32", "name": "targetChainRecipient", "type": "bytes32"},
					{"internalType": "uint256", "name": "deadline", "type": "uint256"}
				],
				"internalType": "struct CrossChainSwapV2.ExactInParameters",
				"name": "swapParams",
				"type": "tuple"
			},
			{"internalType": "address[]", "name": "path", "type": "address[]"},
			{"internalType": "uint256", "name": "relayerFee", "type": "uint256"},
			{"internalType": "uint16", "name": "targetChainId", "type": "uint16"},
			{"internalType": "bytes32", "name": "targetContractAddress", "type": "bytes32"}
		],
		"name": "swapExactNativeInAndTransfer",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{
				"components": [
					{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
					{"internalType": "uint256", "name": "amountOutMinimum", "type": "uint256"},
					{"internalType": "uint256", "name": "targetAmountOutMinimum", "type": "uint256"},
					{"internalType": "bytes32", "name": "targetChainRecipient", "type": "bytes32"},
					{"internalType": "uint256", "name": "deadline", "type": "uint256"}
				],
				"internalType": "struct CrossChainSwapV2.ExactInParameters",
				"name": "swapParams",
				"type": "tuple"
			},
			{"internalType": "address[]", "name": "path", "type": "address[]"},
			{"internalType": "uint256", "name": "relayerFee", "type": "uint256"},
			{"internalType": "uint16", "name": "targetChainId", "type": "uint16"},
			{"internalType": "bytes32", "name": "targetContractAddress", "type": "bytes32"}
		],
		"name": "swapExactInAndTransfer",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// Both protocol variants share the redemption entry points.
const redeemABIJSON = `[
	{
		"inputs": [{
			"components": [
				{"internalType": "bytes", "name": "encodedWormholeMessage", "type": "bytes"},
				{"internalType": "bytes", "name": "circleBridgeMessage", "type": "bytes"},
				{"internalType": "bytes", "name": "circleAttestation", "type": "bytes"}
			],
			"internalType": "struct RedeemParameters",
			"name": "redeemParams",
			"type": "tuple"
		}],
		"name": "swapExactInFromVaaNative",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{
			"components": [
				{"internalType": "bytes", "name": "encodedWormholeMessage", "type": "bytes"},
				{"internalType": "bytes", "name": "circleBridgeMessage", "type": "bytes"},
				{"internalType": "bytes", "name": "circleAttestation", "type": "bytes"}
			],
			"internalType": "struct RedeemParameters",
			"name": "redeemParams",
			"type": "tuple"
		}],
		"name": "swapExactInFromVaa",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

var (
	crossChainSwapV3ABI = mustParseABI(crossChainSwapV3ABIJSON)
	crossChainSwapV2ABI = mustParseABI(crossChainSwapV2ABIJSON)
	redeemABI           = mustParseABI(redeemABIJSON)
)

type exactInParametersV3 struct {
	AmountIn               *big.Int
	AmountOutMinimum       *big.Int
	TargetAmountOutMinimum *big.Int
	TargetChainRecipient   [32]byte
	Deadline               *big.Int
	PoolFee                *big.Int
}

type exactInParametersV2 struct {
	AmountIn               *big.Int
	AmountOutMinimum       *big.Int
	TargetAmountOutMinimum *big.Int
	TargetChainRecipient   [32]byte
	Deadline               *big.Int
}

// RedeemParameters carries both attestations needed to complete a transfer.
type RedeemParameters struct {
	EncodedWormholeMessage []byte
	CircleBridgeMessage    []byte
	CircleAttestation      []byte
}

// SourceSwap describes the source chain leg of an exact-in cross-chain swap.
type SourceSwap struct {
	Protocol  chains.Protocol // protocol of the source chain swap contract
	Token     chains.TokenInfo
	Quote     *quote.ExactInCrossParameters
	Source    chains.ExecutionParameters
	Target    chains.ExecutionParameters
	Recipient common.Address
}

// EVMSubmitter builds calldata for the cross-chain swap contracts and
// submits it through a Sender.
type EVMSubmitter struct {
	sender Sender
	logger *zap.Logger
}

// NewEVMSubmitter creates a new EVM submitter instance
func NewEVMSubmitter(logger *zap.Logger, sender Sender) *EVMSubmitter {
	return &EVMSubmitter{
		sender: sender,
		logger: logger.With(zap.String("component", "EVMSubmitter")),
	}
}

// Allowance returns how much of token spender may move on behalf of the sender.
func (s *EVMSubmitter) Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("allowance", s.sender.Address(), spender)
	if err != nil {
		return nil, fmt.Errorf("ABI pack error: %w", err)
	}
	out, err := s.sender.CallContract(ctx, ethereum.CallMsg{From: s.sender.Address(), To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read allowance: %w", err)
	}
	values, err := erc20ABI.Unpack("allowance", out)
	if err != nil {
		return nil, fmt.Errorf("ABI unpack error: %w", err)
	}
	allowance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance type %T", values[0])
	}
	return allowance, nil
}

// ApproveIfNeeded sends an ERC-20 approve for amount unless the current
// allowance already covers it. Returns nil when no transaction was needed.
func (s *EVMSubmitter) ApproveIfNeeded(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	allowance, err := s.Allowance(ctx, token, spender)
	if err != nil {
		return nil, err
	}
	if allowance.Cmp(amount) >= 0 {
		s.logger.Debug("Allowance sufficient",
			zap.String("token", token.Hex()),
			zap.String("allowance", allowance.String()))
		return nil, nil
	}

	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("ABI pack error: %w", err)
	}
	s.logger.Info("Approving token",
		zap.String("token", token.Hex()),
		zap.String("spender", spender.Hex()),
		zap.String("amount", amount.String()))

	receipt, err := s.send(ctx, token, nil, data)
	if err != nil {
		return nil, fmt.Errorf("failed to approve: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("approve transaction %s reverted", receipt.TxHash.Hex())
	}
	return receipt, nil
}

// SubmitSourceSwap approves the swap contract when the input is an ERC-20,
// then calls the exact-in swap-and-transfer entry point.
func (s *EVMSubmitter) SubmitSourceSwap(ctx context.Context, swap SourceSwap) (*types.Receipt, error) {
	if swap.Quote == nil {
		return nil, ErrMissingQuote
	}
	data, err := PackSourceSwap(swap)
	if err != nil {
		return nil, err
	}

	value := big.NewInt(0)
	if swap.Token.Native {
		value = swap.Quote.AmountIn
	} else {
		if _, err := s.ApproveIfNeeded(ctx, swap.Token.Address, swap.Source.SwapContract, swap.Quote.AmountIn); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Submitting source swap",
		zap.String("swapContract", swap.Source.SwapContract.Hex()),
		zap.String("amountIn", swap.Quote.AmountIn.String()),
		zap.Bool("native", swap.Token.Native),
		zap.String("fromAddress", s.sender.Address().Hex()))

	return s.send(ctx, swap.Source.SwapContract, value, data)
}

// sourcePoolFee picks the fee tier sent with a V3 source swap: the
// destination leg's tier wins, then the source leg's, then zero.
func sourcePoolFee(q *quote.ExactInCrossParameters) uint32 {
	if q.Dst != nil && q.Dst.PoolFee != 0 {
		return q.Dst.PoolFee
	}
	if q.Src != nil {
		return q.Src.PoolFee
	}
	return 0
}

// PackSourceSwap encodes the source chain swap call for swap.
func PackSourceSwap(swap SourceSwap) ([]byte, error) {
	q := swap.Quote
	method := "swapExactInAndTransfer"
	if swap.Token.Native {
		method = "swapExactNativeInAndTransfer"
	}

	amountOutMinimum := q.AmountIn
	deadline := big.NewInt(0)
	if q.Src != nil {
		amountOutMinimum = q.Src.MinAmountOut
		deadline = q.Src.Deadline
	}
	targetAmountOutMinimum := q.MinAmountOut
	if q.Dst != nil && deadline.Sign() == 0 {
		deadline = q.Dst.Deadline
	}

	recipient := [32]byte(common.BytesToHash(swap.Recipient.Bytes()))
	targetContract := [32]byte(common.BytesToHash(swap.Target.SwapContract.Bytes()))
	path := quote.MakePathArray(q)
	targetChain := uint16(swap.Target.Chain)

	var (
		data []byte
		err  error
	)
	switch swap.Protocol {
	case chains.ProtocolUniswapV3:
		poolFee := sourcePoolFee(q)
		data, err = crossChainSwapV3ABI.Pack(method, exactInParametersV3{
			AmountIn:               q.AmountIn,
			AmountOutMinimum:       amountOutMinimum,
			TargetAmountOutMinimum: targetAmountOutMinimum,
			TargetChainRecipient:   recipient,
			Deadline:               deadline,
			PoolFee:                new(big.Int).SetUint64(uint64(poolFee)),
		}, path, q.RelayerFee, targetChain, targetContract)
	case chains.ProtocolUniswapV2:
		data, err = crossChainSwapV2ABI.Pack(method, exactInParametersV2{
			AmountIn:               q.AmountIn,
			AmountOutMinimum:       amountOutMinimum,
			TargetAmountOutMinimum: targetAmountOutMinimum,
			TargetChainRecipient:   recipient,
			Deadline:               deadline,
		}, path, q.RelayerFee, targetChain, targetContract)
	default:
		return nil, fmt.Errorf("unknown swap protocol %q", swap.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("ABI pack error: %w", err)
	}
	return data, nil
}

// SubmitRedeem completes a transfer on the destination chain with the signed
// VAA and the Circle message and attestation.
func (s *EVMSubmitter) SubmitRedeem(ctx context.Context, swapContract common.Address, nativeOut bool, params RedeemParameters) (*types.Receipt, error) {
	data, err := PackRedeem(nativeOut, params)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Submitting redemption",
		zap.String("swapContract", swapContract.Hex()),
		zap.Int("vaaLength", len(params.EncodedWormholeMessage)),
		zap.Bool("nativeOut", nativeOut),
		zap.String("fromAddress", s.sender.Address().Hex()))

	return s.send(ctx, swapContract, nil, data)
}

// PackRedeem encodes the destination chain redemption call.
func PackRedeem(nativeOut bool, params RedeemParameters) ([]byte, error) {
	method := "swapExactInFromVaa"
	if nativeOut {
		method = "swapExactInFromVaaNative"
	}
	data, err := redeemABI.Pack(method, params)
	if err != nil {
		return nil, fmt.Errorf("ABI pack error: %w", err)
	}
	return data, nil
}

func (s *EVMSubmitter) send(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()
	return s.sender.SendTransaction(ctx, to, value, data)
}
