package cmd

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/wormhole-demo/xswap/internal/chains"
)

func TestLoadChainConfigsAppliesOverrides(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("chains.avalanche.rpc_url", "http://localhost:9650/ext/bc/C/rpc")
	viper.Set("chains.avalanche.swap_contract", "0x000000000000000000000000000000000000d5d5")
	viper.Set("chains.ethereum.venue.pool_fee", 500)

	configs, err := loadChainConfigs()
	require.NoError(t, err)

	registry, err := chains.NewRegistry(configs)
	require.NoError(t, err)

	avalanche, err := registry.ChainByName(chains.AvalancheName)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9650/ext/bc/C/rpc", avalanche.RPCURL)
	require.Equal(t, common.HexToAddress("0xd5d5"), avalanche.Execution.SwapContract)

	params, err := registry.Resolver().Resolve(avalanche.Chain)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xd5d5"), params.SwapContract)

	ethereum, err := registry.ChainByName(chains.EthereumName)
	require.NoError(t, err)
	require.Equal(t, uint32(500), ethereum.Venue.PoolFee)
	require.Equal(t, common.Address{}, ethereum.Execution.SwapContract)
}

func TestLoadChainConfigsRejectsBadAddress(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("chains.ethereum.core_bridge", "not-an-address")

	_, err := loadChainConfigs()
	require.ErrorContains(t, err, "chains.ethereum.core_bridge")
}

func TestParseToken(t *testing.T) {
	registry, err := chains.NewRegistry(chains.DefaultChainConfigs())
	require.NoError(t, err)

	eth, err := parseToken(registry, "ethereum:ETH")
	require.NoError(t, err)
	require.True(t, eth.Native)

	usdc, err := parseToken(registry, "0x5425890298aed601595a70AB815c96711a31Bc65")
	require.NoError(t, err)
	require.Equal(t, "USDC", usdc.Symbol)

	_, err = parseToken(registry, "avalanche:DOGE")
	require.ErrorIs(t, err, chains.ErrUnrecognizedToken)

	_, err = parseToken(registry, "solana:SOL")
	require.ErrorIs(t, err, chains.ErrUnsupportedChain)

	_, err = parseToken(registry, "ETH")
	require.Error(t, err)
}
