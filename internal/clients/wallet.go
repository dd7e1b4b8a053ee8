package clients

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/xswap/internal/chains"
)

type walletChain struct {
	client     *EVMClient
	evmChainID uint64
}

// Wallet signs for one key across several chains, one of which is active at
// a time, the way a browser wallet is connected to a single network.
type Wallet struct {
	mu      sync.RWMutex
	chains  map[vaaLib.ChainID]walletChain
	active  vaaLib.ChainID
	address common.Address
	logger  *zap.Logger
}

// NewWallet groups per-chain clients that share the same key. The first
// chain added becomes active.
func NewWallet(logger *zap.Logger) *Wallet {
	return &Wallet{
		chains: make(map[vaaLib.ChainID]walletChain),
		logger: logger.With(zap.String("component", "Wallet")),
	}
}

// AddChain registers client as the wallet's connection to chain.
func (w *Wallet) AddChain(chain vaaLib.ChainID, evmChainID uint64, client *EVMClient) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.chains) == 0 {
		w.address = client.Address()
		w.active = chain
	} else if client.Address() != w.address {
		return fmt.Errorf("client for %s signs as %s, wallet is %s", chain, client.Address().Hex(), w.address.Hex())
	}
	w.chains[chain] = walletChain{client: client, evmChainID: evmChainID}
	return nil
}

// Address returns the wallet's signing address.
func (w *Wallet) Address() common.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.address
}

// ActiveChain returns the chain transactions are currently sent to.
func (w *Wallet) ActiveChain() vaaLib.ChainID {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.active
}

// SwitchChain makes chain the active network after checking that its node
// reports the expected EVM chain ID.
func (w *Wallet) SwitchChain(ctx context.Context, chain vaaLib.ChainID) error {
	w.mu.RLock()
	wc, ok := w.chains[chain]
	current := w.active
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: wallet is not connected to %s", chains.ErrUnsupportedChain, chain)
	}
	if current == chain {
		return nil
	}

	id, err := wc.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to query chain ID for %s: %w", chain, err)
	}
	if wc.evmChainID != 0 && id.Uint64() != wc.evmChainID {
		return fmt.Errorf("node for %s reports chain ID %d, expected %d", chain, id.Uint64(), wc.evmChainID)
	}

	w.mu.Lock()
	w.active = chain
	w.mu.Unlock()

	w.logger.Info("Switched active network", zap.Stringer("from", current), zap.Stringer("to", chain))
	return nil
}

// Client returns the client for chain regardless of which chain is active.
func (w *Wallet) Client(chain vaaLib.ChainID) (*EVMClient, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	wc, ok := w.chains[chain]
	if !ok {
		return nil, fmt.Errorf("%w: wallet is not connected to %s", chains.ErrUnsupportedChain, chain)
	}
	return wc.client, nil
}

func (w *Wallet) activeClient() (*EVMClient, error) {
	return w.Client(w.ActiveChain())
}

// CallContract executes a read-only call on the active chain.
func (w *Wallet) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	client, err := w.activeClient()
	if err != nil {
		return nil, err
	}
	return client.CallContract(ctx, msg, blockNumber)
}

// SendTransaction sends a transaction on the active chain and waits for its receipt.
func (w *Wallet) SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Receipt, error) {
	client, err := w.activeClient()
	if err != nil {
		return nil, err
	}
	return client.SendTransaction(ctx, to, value, data)
}
