package clients

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/wormhole-demo/xswap/internal/metrics"
)

const (
	fallbackGasLimit   uint64 = 3_000_000
	gasLimitBufferPct  uint64 = 20
	defaultPriorityFee int64  = 100_000_000 // 0.1 gwei
)

// ErrReadOnly is returned when a client without a key is asked to transact.
var ErrReadOnly = errors.New("client has no signing key")

// Backend is the subset of ethclient.Client used by EVMClient. It allows
// simulated or fake chains in tests.
type Backend interface {
	ethereum.ContractCaller
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// EVMClient reads from and, when given a key, transacts on one EVM chain.
type EVMClient struct {
	name       string
	backend    Backend
	privateKey *ecdsa.PrivateKey
	address    common.Address
	logger     *zap.Logger
}

// NewEVMClient dials rpcURL. privateKeyHex may be empty for a read-only client.
func NewEVMClient(logger *zap.Logger, name, rpcURL, privateKeyHex string) (*EVMClient, error) {
	logger.Info("Connecting to EVM chain", zap.String("chain", name), zap.String("rpcURL", rpcURL))
	ethClient, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM node: %w", err)
	}
	return NewEVMClientWithBackend(logger, name, ethClient, privateKeyHex)
}

// NewEVMClientWithBackend wraps an existing backend.
func NewEVMClientWithBackend(logger *zap.Logger, name string, backend Backend, privateKeyHex string) (*EVMClient, error) {
	client := &EVMClient{
		name:    name,
		backend: backend,
		logger:  logger.With(zap.String("component", "EVMClient"), zap.String("chain", name)),
	}
	if privateKeyHex == "" {
		return client, nil
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	client.privateKey = privateKey
	client.address = crypto.PubkeyToAddress(privateKey.PublicKey)
	return client, nil
}

// Name returns the configured chain name.
func (c *EVMClient) Name() string {
	return c.name
}

// Address returns the signing address, or the zero address for a read-only client.
func (c *EVMClient) Address() common.Address {
	return c.address
}

func (c *EVMClient) ChainID(ctx context.Context) (*big.Int, error) {
	return c.backend.ChainID(ctx)
}

func (c *EVMClient) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return c.backend.CodeAt(ctx, contract, blockNumber)
}

func (c *EVMClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.backend.CallContract(ctx, msg, blockNumber)
}

// TransactionReceipt fetches the receipt of a mined transaction.
func (c *EVMClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return c.backend.TransactionReceipt(ctx, txHash)
}

// SendTransaction signs an EIP-1559 transaction calling to with data and
// value, broadcasts it and waits until it is mined. A reverted transaction
// is returned with its receipt and no error; callers check the status.
func (c *EVMClient) SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Receipt, error) {
	if c.privateKey == nil {
		return nil, ErrReadOnly
	}
	if value == nil {
		value = big.NewInt(0)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	tipCap, feeCap, err := c.suggestFees(ctx)
	if err != nil {
		return nil, err
	}
	gasLimit := c.estimateGasLimit(ctx, to, value, data)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	})

	// London signer for EIP-1559 transactions
	signedTx, err := types.SignTx(tx, types.NewLondonSigner(chainID), c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.Info("Transaction sent",
		zap.String("txHash", signedTx.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gasLimit", gasLimit),
		zap.String("value", value.String()))

	receipt, err := bind.WaitMined(ctx, c.backend, signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transaction %s: %w", signedTx.Hash().Hex(), err)
	}

	status := "success"
	if receipt.Status != types.ReceiptStatusSuccessful {
		status = "reverted"
	}
	metrics.TransactionsSubmitted.WithLabelValues(c.name, status).Inc()

	c.logger.Info("Transaction mined",
		zap.String("txHash", receipt.TxHash.Hex()),
		zap.String("status", status),
		zap.Uint64("gasUsed", receipt.GasUsed))
	return receipt, nil
}

// estimateGasLimit adds a buffer to the node's estimate, or falls back to a
// fixed limit when estimation fails.
func (c *EVMClient) estimateGasLimit(ctx context.Context, to common.Address, value *big.Int, data []byte) uint64 {
	msg := ethereum.CallMsg{From: c.address, To: &to, Value: value, Data: data}
	est, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		c.logger.Warn("Gas estimation failed, using fallback",
			zap.Error(err),
			zap.Uint64("fallbackGasLimit", fallbackGasLimit))
		return fallbackGasLimit
	}
	return est + est*gasLimitBufferPct/100
}

// suggestFees uses 2x base fee plus tip as the fee cap to absorb base fee movement.
func (c *EVMClient) suggestFees(ctx context.Context) (*big.Int, *big.Int, error) {
	header, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get latest block header: %w", err)
	}

	tipCap, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil || tipCap == nil {
		tipCap = big.NewInt(defaultPriorityFee)
	}

	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)

	c.logger.Debug("Gas fees calculated",
		zap.String("baseFee", baseFee.String()),
		zap.String("maxFeePerGas", feeCap.String()),
		zap.String("maxPriorityFeePerGas", tipCap.String()))
	return tipCap, feeCap, nil
}
