package chains

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// Resolver maps a Wormhole chain ID to the execution parameters for that chain.
type Resolver struct {
	params map[vaaLib.ChainID]ExecutionParameters
}

// NewResolver creates a resolver over a private copy of params.
func NewResolver(params map[vaaLib.ChainID]ExecutionParameters) *Resolver {
	copied := make(map[vaaLib.ChainID]ExecutionParameters, len(params))
	for id, p := range params {
		copied[id] = p
	}
	return &Resolver{params: copied}
}

// Resolve returns the execution parameters for chain or ErrUnsupportedChain.
func (r *Resolver) Resolve(chain vaaLib.ChainID) (ExecutionParameters, error) {
	p, ok := r.params[chain]
	if !ok {
		return ExecutionParameters{}, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}
	return p, nil
}

// Registry indexes the configured chains and their tokens.
type Registry struct {
	chains   map[vaaLib.ChainID]ChainConfig
	byName   map[string]vaaLib.ChainID
	tokens   map[common.Address]TokenInfo
	resolver *Resolver
}

// NewRegistry validates configs and builds the lookup tables. At least two
// chains are required for a cross-chain swap to be meaningful.
func NewRegistry(configs []ChainConfig) (*Registry, error) {
	if len(configs) < 2 {
		return nil, fmt.Errorf("at least two chains must be configured, got %d", len(configs))
	}

	r := &Registry{
		chains: make(map[vaaLib.ChainID]ChainConfig, len(configs)),
		byName: make(map[string]vaaLib.ChainID, len(configs)),
		tokens: make(map[common.Address]TokenInfo),
	}
	params := make(map[vaaLib.ChainID]ExecutionParameters, len(configs))

	for _, cfg := range configs {
		if _, dup := r.chains[cfg.Chain]; dup {
			return nil, fmt.Errorf("chain %s configured twice", cfg.Chain)
		}
		if cfg.Execution.Chain != cfg.Chain {
			return nil, fmt.Errorf("chain %s: execution parameters belong to %s", cfg.Chain, cfg.Execution.Chain)
		}
		for _, token := range cfg.Tokens {
			if token.Chain != cfg.Chain {
				return nil, fmt.Errorf("token %s listed under %s but belongs to %s", token.Symbol, cfg.Chain, token.Chain)
			}
			if _, dup := r.tokens[token.Address]; dup {
				return nil, fmt.Errorf("token address %s configured twice", token.Address.Hex())
			}
			r.tokens[token.Address] = token
		}
		cfg.Tokens = append([]TokenInfo(nil), cfg.Tokens...)
		r.chains[cfg.Chain] = cfg
		r.byName[strings.ToLower(cfg.Name)] = cfg.Chain
		params[cfg.Chain] = cfg.Execution
	}

	r.resolver = NewResolver(params)
	return r, nil
}

// Resolver returns the execution parameter resolver for the configured chains.
func (r *Registry) Resolver() *Resolver {
	return r.resolver
}

// Chain returns the configuration of chain or ErrUnsupportedChain.
func (r *Registry) Chain(chain vaaLib.ChainID) (ChainConfig, error) {
	cfg, ok := r.chains[chain]
	if !ok {
		return ChainConfig{}, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}
	return cfg, nil
}

// ChainByName looks a chain up by its configured name, case-insensitively.
func (r *Registry) ChainByName(name string) (ChainConfig, error) {
	id, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return ChainConfig{}, fmt.Errorf("%w: %q", ErrUnsupportedChain, name)
	}
	return r.chains[id], nil
}

// Chains returns all chain configurations ordered by Wormhole chain ID.
func (r *Registry) Chains() []ChainConfig {
	out := make([]ChainConfig, 0, len(r.chains))
	for _, cfg := range r.chains {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Chain < out[j].Chain })
	return out
}

// Token returns the token configured at address or ErrUnrecognizedToken.
func (r *Registry) Token(address common.Address) (TokenInfo, error) {
	token, ok := r.tokens[address]
	if !ok {
		return TokenInfo{}, fmt.Errorf("%w: %s", ErrUnrecognizedToken, address.Hex())
	}
	return token, nil
}

// TokenBySymbol finds a token by symbol on the named chain.
func (r *Registry) TokenBySymbol(chainName, symbol string) (TokenInfo, error) {
	cfg, err := r.ChainByName(chainName)
	if err != nil {
		return TokenInfo{}, err
	}
	for _, token := range cfg.Tokens {
		if strings.EqualFold(token.Symbol, symbol) {
			return token, nil
		}
	}
	return TokenInfo{}, fmt.Errorf("%w: %s on %s", ErrUnrecognizedToken, symbol, cfg.Name)
}
