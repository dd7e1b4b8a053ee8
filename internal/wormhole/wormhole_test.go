package wormhole

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

var (
	coreBridge  = common.HexToAddress("0x706abc4E45D419950511e474C7B9Ed348A4a716c")
	integration = common.HexToAddress("0x0A69146716B3a21622287Efa1607424c663069a4")
	transmitter = common.HexToAddress("0x26413e8157CD32011E726065a5462e97dD4d03D9")
)

func testVAA(t *testing.T) (*vaaLib.VAA, []byte) {
	v := &vaaLib.VAA{
		Version:          1,
		GuardianSetIndex: 3,
		Signatures: []*vaaLib.Signature{
			{Index: 0, Signature: [65]byte{1, 2, 3}},
			{Index: 4, Signature: [65]byte{9}},
		},
		Timestamp:        time.Unix(1700000000, 0),
		Nonce:            7,
		Sequence:         42,
		ConsistencyLevel: 1,
		EmitterChain:     vaaLib.ChainIDEthereum,
		EmitterAddress:   EmitterAddress(integration),
		Payload:          []byte("payload"),
	}
	raw, err := v.Marshal()
	require.NoError(t, err)
	return v, raw
}

func TestParseVAAPermissive(t *testing.T) {
	want, raw := testVAA(t)

	got, err := ParseVAAPermissive(raw)
	require.NoError(t, err)
	require.Equal(t, want.GuardianSetIndex, got.GuardianSetIndex)
	require.Equal(t, want.Sequence, got.Sequence)
	require.Equal(t, want.EmitterChain, got.EmitterChain)
	require.Equal(t, want.EmitterAddress, got.EmitterAddress)
	require.Equal(t, want.Payload, got.Payload)
	require.Len(t, got.Signatures, 2)
	require.Equal(t, uint8(4), got.Signatures[1].Index)
	require.True(t, MatchesSearch(got, vaaLib.ChainIDEthereum, SearchParams{Sequence: 42, EmitterAddress: EmitterAddress(integration)}))
	require.False(t, MatchesSearch(got, vaaLib.ChainIDEthereum, SearchParams{Sequence: 43, EmitterAddress: EmitterAddress(integration)}))
}

func TestParseVAAPermissiveRejectsMalformed(t *testing.T) {
	_, raw := testVAA(t)

	_, err := ParseVAAPermissive(raw[:4])
	require.Error(t, err)

	bad := append([]byte(nil), raw...)
	bad[0] = 9
	_, err = ParseVAAPermissive(bad)
	require.Error(t, err)

	_, err = ParseVAAPermissive(raw[:6+2*66+10])
	require.Error(t, err)
}

func TestConsumedMessageHashIsDoubleKeccakOfBody(t *testing.T) {
	v, raw := testVAA(t)

	hash, err := ConsumedMessageHash(raw)
	require.NoError(t, err)
	require.Equal(t, v.SigningDigest(), hash)

	body := raw[6+2*66:]
	require.Equal(t, crypto.Keccak256Hash(crypto.Keccak256(body)), hash)
}

func TestEmitterAddressIsLeftPadded(t *testing.T) {
	emitter := EmitterAddress(integration)
	require.Equal(t, make([]byte, 12), emitter[:12])
	require.Equal(t, integration.Bytes(), emitter[12:])
}

func publishedLog(t *testing.T, bridge, sender common.Address, sequence uint64) *types.Log {
	data, err := EventsABI.Events["LogMessagePublished"].Inputs.NonIndexed().Pack(sequence, uint32(0), []byte{0xaa}, uint8(1))
	require.NoError(t, err)
	return &types.Log{
		Address: bridge,
		Topics:  []common.Hash{LogMessagePublishedTopic, common.BytesToHash(sender.Bytes())},
		Data:    data,
	}
}

func messageSentLog(t *testing.T, emitter common.Address, message []byte) *types.Log {
	data, err := EventsABI.Events["MessageSent"].Inputs.Pack(message)
	require.NoError(t, err)
	return &types.Log{
		Address: emitter,
		Topics:  []common.Hash{MessageSentTopic},
		Data:    data,
	}
}

func TestSearchParamsFromReceipt(t *testing.T) {
	other := common.HexToAddress("0x1111")
	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: common.HexToAddress("0x2222"), Topics: []common.Hash{{}}},
		publishedLog(t, coreBridge, other, 5),
		publishedLog(t, coreBridge, integration, 77),
	}}

	params, err := SearchParamsFromReceipt(receipt, coreBridge, integration)
	require.NoError(t, err)
	require.Equal(t, uint64(77), params.Sequence)
	require.Equal(t, EmitterAddress(integration), params.EmitterAddress)

	_, err = SearchParamsFromReceipt(&types.Receipt{}, coreBridge, integration)
	require.ErrorIs(t, err, ErrSequenceNotFound)
}

func TestFindCircleMessage(t *testing.T) {
	message := []byte("circle burn message body")
	logs := []*types.Log{
		publishedLog(t, coreBridge, integration, 1),
		messageSentLog(t, common.HexToAddress("0x3333"), []byte("other transmitter")),
		messageSentLog(t, transmitter, message),
	}

	found, err := FindCircleMessage(logs, transmitter)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, message, found.Message)
	require.Equal(t, crypto.Keccak256Hash(message), found.Hash)
}

func TestFindCircleMessageAbsent(t *testing.T) {
	found, err := FindCircleMessage([]*types.Log{publishedLog(t, coreBridge, integration, 1)}, transmitter)
	require.NoError(t, err)
	require.Nil(t, found)
}
