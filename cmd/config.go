package cmd

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/xswap/internal/attestation"
	"github.com/wormhole-demo/xswap/internal/chains"
	"github.com/wormhole-demo/xswap/internal/clients"
	"github.com/wormhole-demo/xswap/internal/quote"
	"github.com/wormhole-demo/xswap/internal/swap"
)

const (
	DefaultSlippage   = "0.01"
	DefaultRelayerFee = "0.00001"
)

// addressOverrides maps keys under chains.<name>. to the field they replace.
func addressOverrides(cfg *chains.ChainConfig) map[string]*common.Address {
	return map[string]*common.Address{
		"swap_contract":      &cfg.Execution.SwapContract,
		"core_bridge":        &cfg.Execution.CoreBridge,
		"circle_emitter":     &cfg.Execution.CircleEmitter,
		"circle_integration": &cfg.Execution.CircleIntegration,
		"venue.factory":      &cfg.Venue.Factory,
		"venue.quoter":       &cfg.Venue.Quoter,
	}
}

// loadChainConfigs starts from the built-in testnet tables and applies any
// chains.<name>.* overrides from the config file or XSWAP_CHAINS_* variables.
func loadChainConfigs() ([]chains.ChainConfig, error) {
	configs := chains.DefaultChainConfigs()
	for i := range configs {
		cfg := &configs[i]
		prefix := "chains." + cfg.Name + "."

		if v := viper.GetString(prefix + "rpc_url"); v != "" {
			cfg.RPCURL = v
		}
		if v := viper.GetUint64(prefix + "evm_chain_id"); v != 0 {
			cfg.EVMChainID = v
		}
		if v := viper.GetUint32(prefix + "venue.pool_fee"); v != 0 {
			cfg.Venue.PoolFee = v
		}
		if v := viper.GetString(prefix + "venue.init_code_hash"); v != "" {
			cfg.Venue.InitCodeHash = common.HexToHash(v)
		}
		for key, field := range addressOverrides(cfg) {
			v := viper.GetString(prefix + key)
			if v == "" {
				continue
			}
			if !common.IsHexAddress(v) {
				return nil, fmt.Errorf("%s%s: invalid address %q", prefix, key, v)
			}
			*field = common.HexToAddress(v)
		}
	}
	return configs, nil
}

// environment holds the chain connections shared by every command.
type environment struct {
	logger       *zap.Logger
	registry     *chains.Registry
	wallet       *clients.Wallet
	quoter       *quote.Quoter
	integrations map[vaaLib.ChainID]swap.ConsumptionChecker
}

// newEnvironment connects to every configured chain. An empty privateKey
// yields read-only clients, which is enough for quoting.
func newEnvironment(logger *zap.Logger, privateKey string) (*environment, error) {
	configs, err := loadChainConfigs()
	if err != nil {
		return nil, err
	}
	registry, err := chains.NewRegistry(configs)
	if err != nil {
		return nil, fmt.Errorf("invalid chain configuration: %w", err)
	}

	env := &environment{
		logger:       logger,
		registry:     registry,
		wallet:       clients.NewWallet(logger),
		integrations: make(map[vaaLib.ChainID]swap.ConsumptionChecker),
	}
	venues := make(map[vaaLib.ChainID]quote.Venue)

	for _, cfg := range registry.Chains() {
		client, err := clients.NewEVMClient(logger, cfg.Name, cfg.RPCURL, privateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create EVM client for %s: %w", cfg.Name, err)
		}
		if err := env.wallet.AddChain(cfg.Chain, cfg.EVMChainID, client); err != nil {
			return nil, err
		}
		venue, err := clients.NewVenue(logger, cfg.Venue, client)
		if err != nil {
			return nil, fmt.Errorf("failed to create venue for %s: %w", cfg.Name, err)
		}
		venues[cfg.Chain] = venue
		env.integrations[cfg.Chain] = clients.NewCircleIntegration(cfg.Execution.CircleIntegration, client)
	}

	env.quoter = quote.NewQuoter(logger, registry, venues, nil)
	return env, nil
}

// vaaFetcher prefers the spy stream when an endpoint is configured, falling
// back to the guardian REST hosts when the spy does not deliver in time.
func (env *environment) vaaFetcher() (attestation.VAAFetcher, error) {
	guardians, err := attestation.NewGuardianFetcher(env.logger,
		clients.NewGuardianClient(env.logger),
		viper.GetStringSlice("guardian_hosts"),
		attestation.GuardianRetryPolicy{
			Attempts: viper.GetInt("guardian_attempts"),
			Delay:    viper.GetDuration("guardian_delay"),
		},
		nil)
	if err != nil {
		return nil, err
	}
	if host := viper.GetString("spy_rpc_host"); host != "" {
		spy := clients.NewSpyClient(env.logger, host)
		return attestation.NewSpyFetcher(env.logger, spy, guardians, viper.GetDuration("spy_timeout"), nil), nil
	}
	return guardians, nil
}

func newCirclePoller(logger *zap.Logger) *attestation.CirclePoller {
	source := clients.NewCircleClient(logger, viper.GetString("circle_api_url"))
	return attestation.NewCirclePoller(logger, source, nil, viper.GetDuration("circle_poll_interval"))
}

func (env *environment) newExecutor(policy swap.RelayPolicy, onStateChange swap.StateChangeCallback) (*swap.Executor, error) {
	fetcher, err := env.vaaFetcher()
	if err != nil {
		return nil, err
	}
	return swap.NewExecutor(env.logger, swap.Config{
		Quoter:        env.quoter,
		Resolver:      env.registry.Resolver(),
		VAAFetcher:    fetcher,
		Circle:        newCirclePoller(env.logger),
		Integrations:  env.integrations,
		RelayPolicy:   policy,
		OnStateChange: onStateChange,
	})
}

// parseToken accepts either a token address or chain:SYMBOL, e.g. ethereum:ETH.
func parseToken(registry *chains.Registry, s string) (chains.TokenInfo, error) {
	if common.IsHexAddress(s) {
		return registry.Token(common.HexToAddress(s))
	}
	chainName, symbol, ok := strings.Cut(s, ":")
	if !ok {
		return chains.TokenInfo{}, fmt.Errorf("token %q must be an address or chain:SYMBOL", s)
	}
	return registry.TokenBySymbol(chainName, symbol)
}

// addPairFlags registers the token pair and quote inputs used by quote, swap and redeem.
func addPairFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "ethereum:ETH", "Token sold on the source chain (address or chain:SYMBOL)")
	cmd.Flags().String("to", "avalanche:AVAX", "Token bought on the destination chain (address or chain:SYMBOL)")
	cmd.Flags().String("slippage", DefaultSlippage, "Tolerated price movement per leg as a fraction")
	cmd.Flags().String("relayer-fee", DefaultRelayerFee, "Relayer fee in stablecoin units")
	cmd.Flags().Duration("deadline", quote.DefaultDeadline, "Swap deadline measured from quote time")
}

// configureExecutor applies the pair flags to executor and verifies both pools.
func configureExecutor(cmd *cobra.Command, env *environment, executor *swap.Executor) error {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	slippageRaw, _ := cmd.Flags().GetString("slippage")
	feeRaw, _ := cmd.Flags().GetString("relayer-fee")
	deadline, _ := cmd.Flags().GetDuration("deadline")

	tokenIn, err := parseToken(env.registry, from)
	if err != nil {
		return err
	}
	tokenOut, err := parseToken(env.registry, to)
	if err != nil {
		return err
	}
	slippage, err := decimal.NewFromString(slippageRaw)
	if err != nil {
		return fmt.Errorf("invalid slippage %q: %w", slippageRaw, err)
	}
	fee, err := decimal.NewFromString(feeRaw)
	if err != nil {
		return fmt.Errorf("invalid relayer fee %q: %w", feeRaw, err)
	}

	if err := executor.Initialize(tokenIn.Address, tokenOut.Address); err != nil {
		return err
	}
	if err := executor.SetSlippage(slippage); err != nil {
		return err
	}
	if err := executor.SetRelayerFee(fee); err != nil {
		return err
	}
	if err := executor.SetDeadlines(deadline); err != nil {
		return err
	}

	env.logger.Info("Token pair",
		zap.String("from", tokenIn.Symbol),
		zap.Stringer("srcChain", tokenIn.Chain),
		zap.String("to", tokenOut.Symbol),
		zap.Stringer("dstChain", tokenOut.Chain))
	return nil
}

func verifyPools(cmd *cobra.Command, env *environment, executor *swap.Executor) error {
	ctx := cmd.Context()
	srcPool, err := executor.ComputeAndVerifySrcPoolAddress(ctx)
	if err != nil {
		return err
	}
	dstPool, err := executor.ComputeAndVerifyDstPoolAddress(ctx)
	if err != nil {
		return err
	}
	env.logger.Info("Pools verified",
		zap.String("srcPool", srcPool.Hex()),
		zap.String("dstPool", dstPool.Hex()))
	return nil
}
