package quote

import (
	"bytes"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SortTokens orders a token pair the way Uniswap factories do.
func SortTokens(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return a, b
	}
	return b, a
}

// ComputeV2PairAddress derives a Uniswap V2 pair address:
// create2(factory, keccak256(token0 ++ token1), initCodeHash).
func ComputeV2PairAddress(factory common.Address, initCodeHash common.Hash, tokenA, tokenB common.Address) common.Address {
	token0, token1 := SortTokens(tokenA, tokenB)
	salt := crypto.Keccak256Hash(token0.Bytes(), token1.Bytes())
	return crypto.CreateAddress2(factory, salt, initCodeHash.Bytes())
}

// ComputeV3PoolAddress derives a Uniswap V3 pool address:
// create2(factory, keccak256(abi.encode(token0, token1, fee)), initCodeHash).
func ComputeV3PoolAddress(factory common.Address, initCodeHash common.Hash, tokenA, tokenB common.Address, fee uint32) common.Address {
	token0, token1 := SortTokens(tokenA, tokenB)
	var feeWord [32]byte
	binary.BigEndian.PutUint32(feeWord[28:], fee)
	salt := crypto.Keccak256Hash(
		common.LeftPadBytes(token0.Bytes(), 32),
		common.LeftPadBytes(token1.Bytes(), 32),
		feeWord[:],
	)
	return crypto.CreateAddress2(factory, salt, initCodeHash.Bytes())
}
