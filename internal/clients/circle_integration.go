package clients

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

const circleIntegrationABIJSON = `[{
	"inputs": [{"internalType": "bytes32", "name": "hash", "type": "bytes32"}],
	"name": "isMessageConsumed",
	"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
	"stateMutability": "view",
	"type": "function"
}]`

var circleIntegrationABI = mustParseABI(circleIntegrationABIJSON)

// CircleIntegration reads the Wormhole Circle integration contract on one chain.
type CircleIntegration struct {
	address common.Address
	caller  ethereum.ContractCaller
}

func NewCircleIntegration(address common.Address, caller ethereum.ContractCaller) *CircleIntegration {
	return &CircleIntegration{address: address, caller: caller}
}

// IsMessageConsumed reports whether the VAA with the given consumption hash
// has already been redeemed on this chain.
func (c *CircleIntegration) IsMessageConsumed(ctx context.Context, hash common.Hash) (bool, error) {
	data, err := circleIntegrationABI.Pack("isMessageConsumed", hash)
	if err != nil {
		return false, fmt.Errorf("ABI pack error: %w", err)
	}
	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("isMessageConsumed call failed: %w", err)
	}
	values, err := circleIntegrationABI.Unpack("isMessageConsumed", out)
	if err != nil {
		return false, fmt.Errorf("ABI unpack error: %w", err)
	}
	consumed, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected isMessageConsumed result type %T", values[0])
	}
	return consumed, nil
}
