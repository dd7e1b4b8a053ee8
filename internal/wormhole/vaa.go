package wormhole

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"
)

const (
	vaaHeaderSize    = 6
	vaaSignatureSize = 66
	vaaMinBodySize   = 51
)

// ParseVAAPermissive parses a VAA without being strict about version.
// Both v1 and v2 share the header and body layout used here; the raw bytes
// are still what gets submitted on chain for verification.
func ParseVAAPermissive(data []byte) (*vaaLib.VAA, error) {
	body, err := vaaBody(data)
	if err != nil {
		return nil, err
	}

	// Body structure:
	// 0-3: timestamp
	// 4-7: nonce
	// 8-9: emitter chain
	// 10-41: emitter address
	// 42-49: sequence
	// 50: consistency level
	// 51+: payload
	var emitterAddress vaaLib.Address
	copy(emitterAddress[:], body[10:42])

	signatureCount := int(data[5])
	signatures := make([]*vaaLib.Signature, signatureCount)
	for i := 0; i < signatureCount; i++ {
		sigStart := vaaHeaderSize + i*vaaSignatureSize
		var sig [65]byte
		copy(sig[:], data[sigStart+1:sigStart+vaaSignatureSize])
		signatures[i] = &vaaLib.Signature{
			Index:     data[sigStart],
			Signature: sig,
		}
	}

	return &vaaLib.VAA{
		Version:          data[0],
		GuardianSetIndex: binary.BigEndian.Uint32(data[1:5]),
		Signatures:       signatures,
		Timestamp:        time.Unix(int64(binary.BigEndian.Uint32(body[0:4])), 0),
		Nonce:            binary.BigEndian.Uint32(body[4:8]),
		EmitterChain:     vaaLib.ChainID(binary.BigEndian.Uint16(body[8:10])),
		EmitterAddress:   emitterAddress,
		Sequence:         binary.BigEndian.Uint64(body[42:50]),
		ConsistencyLevel: body[50],
		Payload:          body[51:],
	}, nil
}

func vaaBody(data []byte) ([]byte, error) {
	if len(data) < vaaHeaderSize {
		return nil, fmt.Errorf("VAA too short: %d bytes", len(data))
	}
	if version := data[0]; version != 1 && version != 2 {
		return nil, fmt.Errorf("unsupported VAA version: %d", version)
	}
	signatureCount := int(data[5])
	signaturesEnd := vaaHeaderSize + signatureCount*vaaSignatureSize
	if len(data) < signaturesEnd {
		return nil, fmt.Errorf("VAA too short for %d signatures", signatureCount)
	}
	body := data[signaturesEnd:]
	if len(body) < vaaMinBodySize {
		return nil, fmt.Errorf("VAA body too short: %d bytes", len(body))
	}
	return body, nil
}

// ConsumedMessageHash returns the key under which the Circle integration
// contract records a redeemed VAA: keccak256 of the body hash, which is
// itself keccak256 of the body.
func ConsumedMessageHash(data []byte) (common.Hash, error) {
	body, err := vaaBody(data)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(crypto.Keccak256(body)), nil
}

// MatchesSearch reports whether v was emitted at the given coordinates.
func MatchesSearch(v *vaaLib.VAA, chain vaaLib.ChainID, search SearchParams) bool {
	return v.EmitterChain == chain &&
		v.EmitterAddress == search.EmitterAddress &&
		v.Sequence == search.Sequence
}

// LogVAA logs the fields of a VAA for debugging.
func LogVAA(logger *zap.Logger, vaa *vaaLib.VAA, rawBytes []byte) {
	logger.Debug("VAA details",
		zap.Uint8("version", vaa.Version),
		zap.Uint32("guardianSetIndex", vaa.GuardianSetIndex),
		zap.Int("signatureCount", len(vaa.Signatures)),
		zap.Time("timestamp", vaa.Timestamp),
		zap.Uint64("sequence", vaa.Sequence),
		zap.Stringer("emitterChain", vaa.EmitterChain),
		zap.String("emitterAddress", hex.EncodeToString(vaa.EmitterAddress[:])),
		zap.Int("payloadLength", len(vaa.Payload)),
		zap.Int("rawBytesLength", len(rawBytes)),
	)
}
