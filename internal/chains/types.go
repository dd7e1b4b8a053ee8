package chains

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

var (
	ErrUnsupportedChain  = errors.New("unsupported chain")
	ErrUnrecognizedToken = errors.New("unrecognized token")
)

// Protocol identifies the pricing and swap logic of a liquidity venue.
type Protocol string

const (
	ProtocolUniswapV2 Protocol = "UniswapV2"
	ProtocolUniswapV3 Protocol = "UniswapV3"
)

// TokenInfo describes a swappable token and the stablecoin it is paired with on its chain.
type TokenInfo struct {
	Name               string
	Symbol             string
	Chain              vaaLib.ChainID
	Address            common.Address
	Decimals           int32
	StablecoinAddress  common.Address
	StablecoinDecimals int32
	Native             bool // wraps the chain's gas token
}

// IsStablecoin reports whether the token is the stablecoin itself, in which
// case no venue swap is needed on its side of the transfer.
func (t TokenInfo) IsStablecoin() bool {
	return t.Address == t.StablecoinAddress
}

// ExecutionParameters is the static set of contract addresses needed to
// execute a cross-chain swap on one chain.
type ExecutionParameters struct {
	Chain             vaaLib.ChainID
	SwapContract      common.Address // cross-chain swap router
	CoreBridge        common.Address // Wormhole core bridge
	CircleEmitter     common.Address // Circle message transmitter emitting MessageSent
	CircleIntegration common.Address // Wormhole Circle integration contract
}

// VenueConfig locates the liquidity venue used for the leg on a chain.
type VenueConfig struct {
	Protocol     Protocol
	Factory      common.Address
	InitCodeHash common.Hash
	Quoter       common.Address // QuoterV2 for UniswapV3, router for UniswapV2
	PoolFee      uint32         // fee tier in hundredths of a bip, zero for UniswapV2
}

// ChainConfig holds everything known statically about a supported chain.
type ChainConfig struct {
	Name         string
	DisplayName  string
	Chain        vaaLib.ChainID
	EVMChainID   uint64
	RPCURL       string
	CircleDomain uint32
	Venue        VenueConfig
	Execution    ExecutionParameters
	Tokens       []TokenInfo
}
