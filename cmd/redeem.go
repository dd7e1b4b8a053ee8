package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wormhole-demo/xswap/internal/swap"
)

// redeemCmd represents the command to finish a swap whose relayer never redeemed
var redeemCmd = &cobra.Command{
	Use:   "redeem",
	Short: "Complete a cross-chain swap from its source transaction",
	Long: `Rebuilds the Wormhole message coordinates from a confirmed source swap
transaction, fetches the signed VAA and Circle attestation and submits the
destination redemption, unless the relayer has already done so.

--from and --to must name the same token pair as the original swap.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
	},
	RunE: runRedeem,
}

func init() {
	rootCmd.AddCommand(redeemCmd)

	addPairFlags(redeemCmd)
	redeemCmd.Flags().String(
		"tx",
		"",
		"Source chain swap transaction hash (required)")

	redeemCmd.MarkFlagRequired("tx")
}

func runRedeem(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)
	serveMetrics(logger)

	txRaw, _ := cmd.Flags().GetString("tx")
	privateKey := viper.GetString("private_key")
	if privateKey == "" {
		return fmt.Errorf("private key is required to redeem")
	}
	txHash := common.HexToHash(txRaw)

	env, err := newEnvironment(logger, privateKey)
	if err != nil {
		return err
	}
	executor, err := env.newExecutor(swap.DefaultRelayPolicy(), nil)
	if err != nil {
		return err
	}
	if err := configureExecutor(cmd, env, executor); err != nil {
		return err
	}

	src := env.quoter.SrcChainID()
	client, err := env.wallet.Client(src)
	if err != nil {
		return err
	}
	receipt, err := client.TransactionReceipt(cmd.Context(), txHash)
	if err != nil {
		return fmt.Errorf("failed to fetch source receipt %s: %w", txHash.Hex(), err)
	}

	logger.Info("Recovering swap",
		zap.Stringer("chain", src),
		zap.String("sourceTx", txHash.Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()))

	if err := executor.Recover(cmd.Context(), env.wallet, receipt); err != nil {
		return fmt.Errorf("redeem failed: %w", err)
	}
	return reportCompletion(logger, executor)
}
