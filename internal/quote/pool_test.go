package quote

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	mainnetUSDC = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	mainnetWETH = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

func TestComputeV2PairAddress(t *testing.T) {
	factory := common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	initCodeHash := common.HexToHash("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f")

	got := ComputeV2PairAddress(factory, initCodeHash, mainnetWETH, mainnetUSDC)
	require.Equal(t, common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"), got)

	// order independent
	require.Equal(t, got, ComputeV2PairAddress(factory, initCodeHash, mainnetUSDC, mainnetWETH))
}

func TestComputeV3PoolAddress(t *testing.T) {
	factory := common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	initCodeHash := common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54")

	got := ComputeV3PoolAddress(factory, initCodeHash, mainnetWETH, mainnetUSDC, 500)
	require.Equal(t, common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"), got)
	require.Equal(t, got, ComputeV3PoolAddress(factory, initCodeHash, mainnetUSDC, mainnetWETH, 500))

	require.NotEqual(t, got, ComputeV3PoolAddress(factory, initCodeHash, mainnetWETH, mainnetUSDC, 3000))
}

func TestSortTokens(t *testing.T) {
	a, b := SortTokens(mainnetWETH, mainnetUSDC)
	require.Equal(t, mainnetUSDC, a)
	require.Equal(t, mainnetWETH, b)
}
