package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wormhole-demo/xswap/internal/quote"
	"github.com/wormhole-demo/xswap/internal/swap"
)

// quoteCmd represents the command to price a cross-chain swap
var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a cross-chain swap without executing it",
	Long: `Resolves the token pair, verifies that both Uniswap pools exist and prints
the amounts each leg would guarantee.

By default --amount is the input amount (exact-in). With --exact-out it is the
desired output amount and the maximum input is solved for instead.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
	},
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	addPairFlags(quoteCmd)
	quoteCmd.Flags().String(
		"amount",
		"",
		"Amount in human units (required)")
	quoteCmd.Flags().Bool(
		"exact-out",
		false,
		"Treat --amount as the desired output")

	quoteCmd.MarkFlagRequired("amount")
}

func runQuote(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)

	amountRaw, _ := cmd.Flags().GetString("amount")
	exactOut, _ := cmd.Flags().GetBool("exact-out")
	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amountRaw, err)
	}

	// Quoting only reads chain state, so no key is needed.
	env, err := newEnvironment(logger, "")
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
	if err := verifyPools(cmd, env, executor); err != nil {
		return err
	}

	tokenIn, tokenOut := env.quoter.TokenIn(), env.quoter.TokenOut()
	if exactOut {
		params, err := executor.ComputeQuoteExactOut(cmd.Context(), amount)
		if err != nil {
			return err
		}
		logger.Info("Exact-out quote",
			zap.String("amountOut", quote.FromBaseUnits(params.AmountOut, tokenOut.Decimals).String()+" "+tokenOut.Symbol),
			zap.String("maxAmountIn", quote.FromBaseUnits(params.MaxAmountIn, tokenIn.Decimals).String()+" "+tokenIn.Symbol),
			zap.String("relayerFee", quote.FromBaseUnits(params.RelayerFee, tokenIn.StablecoinDecimals).String()))
		fmt.Printf("Sell at most %s %s to receive %s %s\n",
			quote.FromBaseUnits(params.MaxAmountIn, tokenIn.Decimals), tokenIn.Symbol,
			quote.FromBaseUnits(params.AmountOut, tokenOut.Decimals), tokenOut.Symbol)
		return nil
	}

	params, err := executor.ComputeQuoteExactIn(cmd.Context(), amount)
	if err != nil {
		return err
	}
	logger.Info("Exact-in quote",
		zap.String("amountIn", quote.FromBaseUnits(params.AmountIn, tokenIn.Decimals).String()+" "+tokenIn.Symbol),
		zap.String("minAmountOut", quote.FromBaseUnits(params.MinAmountOut, tokenOut.Decimals).String()+" "+tokenOut.Symbol),
		zap.String("relayerFee", quote.FromBaseUnits(params.RelayerFee, tokenIn.StablecoinDecimals).String()),
		zap.Any("srcPath", params.SrcPath()),
		zap.Any("dstPath", params.DstPath()))
	fmt.Printf("Sell %s %s to receive at least %s %s\n",
		quote.FromBaseUnits(params.AmountIn, tokenIn.Decimals), tokenIn.Symbol,
		quote.FromBaseUnits(params.MinAmountOut, tokenOut.Decimals), tokenOut.Symbol)
	return nil
}
