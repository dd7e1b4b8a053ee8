package wormhole

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

const eventsABIJSON = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
			{"indexed": false, "internalType": "uint64", "name": "sequence", "type": "uint64"},
			{"indexed": false, "internalType": "uint32", "name": "nonce", "type": "uint32"},
			{"indexed": false, "internalType": "bytes", "name": "payload", "type": "bytes"},
			{"indexed": false, "internalType": "uint8", "name": "consistencyLevel", "type": "uint8"}
		],
		"name": "LogMessagePublished",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "internalType": "bytes", "name": "message", "type": "bytes"}
		],
		"name": "MessageSent",
		"type": "event"
	}
]`

// EventsABI holds the core bridge and Circle transmitter events read from receipts.
var EventsABI = mustParseABI(eventsABIJSON)

var (
	LogMessagePublishedTopic = EventsABI.Events["LogMessagePublished"].ID
	MessageSentTopic         = EventsABI.Events["MessageSent"].ID
)

// ErrSequenceNotFound is returned when a receipt carries no core bridge message from the expected sender.
var ErrSequenceNotFound = errors.New("no LogMessagePublished event found")

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI: %v", err))
	}
	return parsed
}

// SearchParams are the coordinates of a message emitted through the core bridge.
type SearchParams struct {
	Sequence       uint64
	EmitterAddress vaaLib.Address
}

// EmitterAddress left-pads an EVM address to a 32-byte Wormhole emitter address.
func EmitterAddress(addr common.Address) vaaLib.Address {
	var out vaaLib.Address
	copy(out[12:], addr.Bytes())
	return out
}

// ParseSequenceFromLogs returns the sequence of the first message published
// by the core bridge on behalf of sender.
func ParseSequenceFromLogs(logs []*types.Log, coreBridge, sender common.Address) (uint64, error) {
	for _, lg := range logs {
		if lg.Address != coreBridge || len(lg.Topics) < 2 || lg.Topics[0] != LogMessagePublishedTopic {
			continue
		}
		if common.BytesToAddress(lg.Topics[1].Bytes()) != sender {
			continue
		}
		values, err := EventsABI.Unpack("LogMessagePublished", lg.Data)
		if err != nil {
			return 0, fmt.Errorf("failed to unpack LogMessagePublished: %w", err)
		}
		sequence, ok := values[0].(uint64)
		if !ok {
			return 0, fmt.Errorf("unexpected sequence type %T", values[0])
		}
		return sequence, nil
	}
	return 0, fmt.Errorf("%w: bridge %s, sender %s", ErrSequenceNotFound, coreBridge.Hex(), sender.Hex())
}

// SearchParamsFromReceipt derives the lookup coordinates of the message the
// integration contract published in receipt.
func SearchParamsFromReceipt(receipt *types.Receipt, coreBridge, integration common.Address) (SearchParams, error) {
	sequence, err := ParseSequenceFromLogs(receipt.Logs, coreBridge, integration)
	if err != nil {
		return SearchParams{}, err
	}
	return SearchParams{
		Sequence:       sequence,
		EmitterAddress: EmitterAddress(integration),
	}, nil
}

// CircleMessage is a burn message emitted by the Circle message transmitter.
type CircleMessage struct {
	Message []byte
	Hash    common.Hash
}

// FindCircleMessage returns the MessageSent payload emitted by emitter, or
// nil when the logs contain none.
func FindCircleMessage(logs []*types.Log, emitter common.Address) (*CircleMessage, error) {
	for _, lg := range logs {
		if lg.Address != emitter || len(lg.Topics) == 0 || lg.Topics[0] != MessageSentTopic {
			continue
		}
		values, err := EventsABI.Unpack("MessageSent", lg.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack MessageSent: %w", err)
		}
		message, ok := values[0].([]byte)
		if !ok {
			return nil, fmt.Errorf("unexpected message type %T", values[0])
		}
		return &CircleMessage{
			Message: message,
			Hash:    crypto.Keccak256Hash(message),
		}, nil
	}
	return nil, nil
}
