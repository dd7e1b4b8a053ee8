package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wormhole-demo/xswap/internal/swap"
)

// swapCmd represents the command to execute a cross-chain swap end to end
var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Swap tokens across chains",
	Long: `Quotes an exact-in swap, submits it on the source chain, waits for the
Wormhole and Circle attestations and then for the relayer to redeem on the
destination chain.

If the relayer has not redeemed after --relay-attempts checks spaced by
--relay-interval, the redemption is submitted from the same key.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
	},
	RunE: runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	addPairFlags(swapCmd)
	swapCmd.Flags().String(
		"amount",
		"",
		"Amount of the source token to sell, in human units (required)")
	swapCmd.Flags().String(
		"recipient",
		"",
		"Destination chain recipient (defaults to the signing address)")
	swapCmd.Flags().Int(
		"relay-attempts",
		swap.DefaultRelayAttempts,
		"Destination checks for a relayed redemption before redeeming manually")
	swapCmd.Flags().Duration(
		"relay-interval",
		swap.DefaultRelayInterval,
		"Delay between relayed redemption checks")

	swapCmd.MarkFlagRequired("amount")

	viper.BindPFlag("relay_attempts", swapCmd.Flags().Lookup("relay-attempts"))
	viper.BindPFlag("relay_interval", swapCmd.Flags().Lookup("relay-interval"))
}

type SwapConfig struct {
	PrivateKey string
	Amount     decimal.Decimal
	Recipient  string
	Relay      swap.RelayPolicy
}

func runSwap(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)
	logger.Info("Starting cross-chain swap")
	serveMetrics(logger)

	amountRaw, _ := cmd.Flags().GetString("amount")
	recipient, _ := cmd.Flags().GetString("recipient")
	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amountRaw, err)
	}

	config := SwapConfig{
		PrivateKey: viper.GetString("private_key"),
		Amount:     amount,
		Recipient:  recipient,
		Relay: swap.RelayPolicy{
			MaxAttempts: viper.GetInt("relay_attempts"),
			Interval:    viper.GetDuration("relay_interval"),
		},
	}

	// Validate private key is provided
	if config.PrivateKey == "" {
		return fmt.Errorf("private key is required to swap")
	}
	if config.Recipient != "" && !common.IsHexAddress(config.Recipient) {
		return fmt.Errorf("invalid recipient %q", config.Recipient)
	}

	env, err := newEnvironment(logger, config.PrivateKey)
	if err != nil {
		return err
	}
	to := env.wallet.Address()
	if config.Recipient != "" {
		to = common.HexToAddress(config.Recipient)
	}

	logger.Info("Configuration",
		zap.String("address", env.wallet.Address().Hex()),
		zap.String("recipient", to.Hex()),
		zap.String("amount", config.Amount.String()),
		zap.Int("relayAttempts", config.Relay.MaxAttempts),
		zap.Duration("relayInterval", config.Relay.Interval))

	var executor *swap.Executor
	executor, err = env.newExecutor(config.Relay, func(_, state swap.State, _ string) {
		if status := executor.Status(); status.Message != "" {
			fmt.Printf("[%s] %s\n", state, status.Message)
		}
	})
	if err != nil {
		return err
	}

	if err := configureExecutor(cmd, env, executor); err != nil {
		return err
	}
	if err := verifyPools(cmd, env, executor); err != nil {
		return err
	}
	params, err := executor.ComputeQuoteExactIn(cmd.Context(), config.Amount)
	if err != nil {
		return err
	}
	logger.Info("Quote ready",
		zap.String("amountIn", params.AmountIn.String()),
		zap.String("minAmountOut", params.MinAmountOut.String()),
		zap.String("relayerFee", params.RelayerFee.String()))

	if err := executor.Run(cmd.Context(), env.wallet, to); err != nil {
		return fmt.Errorf("swap failed: %w", err)
	}
	return reportCompletion(logger, executor)
}

func reportCompletion(logger *zap.Logger, executor *swap.Executor) error {
	source, err := executor.SourceReceipt()
	if err != nil {
		return err
	}
	target, err := executor.TargetReceipt()
	if err != nil {
		return err
	}

	fields := []zap.Field{zap.String("sourceTx", source.TxHash.Hex())}
	if target != nil {
		fields = append(fields, zap.String("targetTx", target.TxHash.Hex()))
	} else {
		fields = append(fields, zap.Bool("relayed", true))
	}
	logger.Info("Swap complete", fields...)
	fmt.Println(executor.Status().Message)
	return nil
}
