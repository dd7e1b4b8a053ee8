package chains

import (
	"github.com/ethereum/go-ethereum/common"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// Testnet defaults. Swap router deployments are not public and must be
// supplied through configuration before a swap can be executed.
const (
	EthereumName  = "ethereum"
	AvalancheName = "avalanche"

	EthereumEVMChainID  uint64 = 5
	AvalancheEVMChainID uint64 = 43113
)

var (
	goerliUSDC = common.HexToAddress("0x07865c6E87B9F70255377e024ace6630C1Eaa37F")
	fujiUSDC   = common.HexToAddress("0x5425890298aed601595a70AB815c96711a31Bc65")
)

// DefaultChainConfigs returns a fresh copy of the built-in Goerli and Fuji tables.
func DefaultChainConfigs() []ChainConfig {
	return []ChainConfig{
		{
			Name:         EthereumName,
			DisplayName:  "Ethereum (Goerli)",
			Chain:        vaaLib.ChainIDEthereum,
			EVMChainID:   EthereumEVMChainID,
			RPCURL:       "https://rpc.ankr.com/eth_goerli",
			CircleDomain: 0,
			Venue: VenueConfig{
				Protocol:     ProtocolUniswapV3,
				Factory:      common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"),
				InitCodeHash: common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54"),
				Quoter:       common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e"),
				PoolFee:      3000,
			},
			Execution: ExecutionParameters{
				Chain:             vaaLib.ChainIDEthereum,
				CoreBridge:        common.HexToAddress("0x706abc4E45D419950511e474C7B9Ed348A4a716c"),
				CircleEmitter:     common.HexToAddress("0x26413e8157CD32011E726065a5462e97dD4d03D9"),
				CircleIntegration: common.HexToAddress("0x0A69146716B3a21622287Efa1607424c663069a4"),
			},
			Tokens: []TokenInfo{
				{
					Name:               "Ether",
					Symbol:             "ETH",
					Chain:              vaaLib.ChainIDEthereum,
					Address:            common.HexToAddress("0xB4FBF271143F4FBf7B91A5ded31805e42b2208d6"),
					Decimals:           18,
					StablecoinAddress:  goerliUSDC,
					StablecoinDecimals: 6,
					Native:             true,
				},
				{
					Name:               "USD Coin",
					Symbol:             "USDC",
					Chain:              vaaLib.ChainIDEthereum,
					Address:            goerliUSDC,
					Decimals:           6,
					StablecoinAddress:  goerliUSDC,
					StablecoinDecimals: 6,
				},
			},
		},
		{
			Name:         AvalancheName,
			DisplayName:  "Avalanche (Fuji)",
			Chain:        vaaLib.ChainIDAvalanche,
			EVMChainID:   AvalancheEVMChainID,
			RPCURL:       "https://api.avax-test.network/ext/bc/C/rpc",
			CircleDomain: 1,
			Venue: VenueConfig{
				Protocol:     ProtocolUniswapV2,
				Factory:      common.HexToAddress("0xF5c7d9733e5f53abCC1695820c4818C59B457C2C"),
				InitCodeHash: common.HexToHash("0x0bbca9af0511ad1a1da383135cf3a8d2ac620e549ef9f6ae3a4c33c2fed0af91"),
				Quoter:       common.HexToAddress("0xd7f655E3376cE2D7A2b08fF01Eb3B1023191A901"),
			},
			Execution: ExecutionParameters{
				Chain:             vaaLib.ChainIDAvalanche,
				CoreBridge:        common.HexToAddress("0x7bbcE28e64B3F8b84d876Ab298393c38ad7aac4C"),
				CircleEmitter:     common.HexToAddress("0xa9fB1b3009DCb79E2fe346c16a604B8Fa8aE0a79"),
				CircleIntegration: common.HexToAddress("0x58f4c17449c90665891c42e14d34aae7a26a472e"),
			},
			Tokens: []TokenInfo{
				{
					Name:               "Avalanche",
					Symbol:             "AVAX",
					Chain:              vaaLib.ChainIDAvalanche,
					Address:            common.HexToAddress("0xd00ae08403B9bbb9124bB305C09058E32C39A48c"),
					Decimals:           18,
					StablecoinAddress:  fujiUSDC,
					StablecoinDecimals: 6,
					Native:             true,
				},
				{
					Name:               "USD Coin",
					Symbol:             "USDC",
					Chain:              vaaLib.ChainIDAvalanche,
					Address:            fujiUSDC,
					Decimals:           6,
					StablecoinAddress:  fujiUSDC,
					StablecoinDecimals: 6,
				},
			},
		},
	}
}
