package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	dotenv "github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wormhole-demo/xswap/internal/attestation"
	"github.com/wormhole-demo/xswap/internal/clients"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "xswap",
	Short: "Cross-chain token swaps over Circle CCTP and Wormhole",
}

func init() {
	// Tentatively load .env file
	_ = dotenv.Load()

	rootCmd.PersistentFlags().Bool(
		"debug",
		false,
		"Enables debug output.")

	rootCmd.PersistentFlags().Bool(
		"json",
		false,
		"Enables structured logging in JSON format.")

	rootCmd.PersistentFlags().String(
		"config",
		"",
		"Config file overriding the built-in chain tables (any format viper reads)")

	rootCmd.PersistentFlags().String(
		"metrics-addr",
		"",
		"Serve Prometheus metrics on this address, e.g. :9090")

	// Attestation sources (shared by swap and redeem)
	rootCmd.PersistentFlags().StringSlice(
		"guardian-hosts",
		clients.DefaultGuardianHosts,
		"Guardian REST endpoints queried for signed VAAs")

	rootCmd.PersistentFlags().Int(
		"guardian-attempts",
		attestation.DefaultGuardianAttempts,
		"Signed VAA lookups before giving up")

	rootCmd.PersistentFlags().Duration(
		"guardian-delay",
		attestation.DefaultGuardianDelay,
		"Delay between signed VAA lookups")

	rootCmd.PersistentFlags().String(
		"spy-rpc-host",
		"",
		"Wormhole spy service endpoint, watched before the guardian REST hosts when set")

	rootCmd.PersistentFlags().Duration(
		"spy-timeout",
		attestation.DefaultSpyTimeout,
		"How long to watch the spy before falling back to the guardian REST hosts")

	rootCmd.PersistentFlags().String(
		"circle-api-url",
		clients.DefaultCircleAPIURL,
		"Circle attestation service base URL")

	rootCmd.PersistentFlags().Duration(
		"circle-poll-interval",
		attestation.DefaultCirclePollInterval,
		"Delay between Circle attestation polls")

	rootCmd.PersistentFlags().String(
		"private-key",
		"",
		"Private key used on every configured chain")

	// Bind flags to viper for env variable support
	viper.BindPFlag("metrics_addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
	viper.BindPFlag("guardian_hosts", rootCmd.PersistentFlags().Lookup("guardian-hosts"))
	viper.BindPFlag("guardian_attempts", rootCmd.PersistentFlags().Lookup("guardian-attempts"))
	viper.BindPFlag("guardian_delay", rootCmd.PersistentFlags().Lookup("guardian-delay"))
	viper.BindPFlag("spy_rpc_host", rootCmd.PersistentFlags().Lookup("spy-rpc-host"))
	viper.BindPFlag("spy_timeout", rootCmd.PersistentFlags().Lookup("spy-timeout"))
	viper.BindPFlag("circle_api_url", rootCmd.PersistentFlags().Lookup("circle-api-url"))
	viper.BindPFlag("circle_poll_interval", rootCmd.PersistentFlags().Lookup("circle-poll-interval"))
	viper.BindPFlag("private_key", rootCmd.PersistentFlags().Lookup("private-key"))

	cobra.OnInitialize(initConfig)
}

func Execute() {
	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		zap.L().Info("Received shutdown signal")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		cancel()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("xswap")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	if file, _ := rootCmd.PersistentFlags().GetString("config"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to read config %s: %v\n", file, err)
			os.Exit(1)
		}
	}
}

func printBanner() {
	colours := []string{
		"\033[38;5;81m", // Cyan
		"\033[38;5;75m", // Light Blue
		"\033[38;5;69m", // Sky Blue
		"\033[38;5;63m", // Dodger Blue
		"\033[38;5;57m", // Deep Sky Blue
	}
	banner := `
___  ___  ______      ____ _____  ______
\  \/  / /  ___/ \/\/ /  _ \\__  \ \____ \
 >    <  \___ \ \     /  |_| |/ __ \|  |_> >
/__/\_ \/____  > \/\_/ \____/(____  /   __/
      \/     \/                   \/|__|
`
	lines := strings.Split(banner, "\n")

	// remove empty lines
	for i := 0; i < len(lines); i++ {
		if lines[i] == "" {
			lines = append(lines[:i], lines[i+1:]...)
			i--
		}
	}

	for i, line := range lines {
		fmt.Printf("%s%s\n", colours[i%len(colours)], line)
	}

	fmt.Println("\033[0m") // Reset
}

func configureLogging(cmd *cobra.Command, _ []string) *zap.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	json, _ := cmd.Flags().GetBool("json")

	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.Development = true
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Configure JSON output if requested
	if json {
		config.Encoding = "json"
	} else {
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to a basic logger if config fails
		logger, _ = zap.NewProduction()
	}

	// Replace the global logger
	zap.ReplaceGlobals(logger)

	return logger
}

// serveMetrics exposes the Prometheus registry when --metrics-addr is set.
func serveMetrics(logger *zap.Logger) {
	addr := viper.GetString("metrics_addr")
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()
}
