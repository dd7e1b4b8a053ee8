package attestation

import (
	"context"
	"fmt"
	"time"

	"github.com/andres-erbsen/clock"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/xswap/internal/metrics"
	"github.com/wormhole-demo/xswap/internal/wormhole"
)

const (
	DefaultGuardianAttempts = 60
	DefaultGuardianDelay    = time.Second
)

// SignedVAAGetter looks a signed VAA up on one guardian host.
type SignedVAAGetter interface {
	GetSignedVAA(ctx context.Context, host string, chain vaaLib.ChainID, emitter vaaLib.Address, sequence uint64) ([]byte, error)
}

// GuardianRetryPolicy bounds the signed VAA lookup.
type GuardianRetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// GuardianFetcher queries guardian REST hosts in turn until one returns the
// VAA or the attempts run out.
type GuardianFetcher struct {
	getter SignedVAAGetter
	hosts  []string
	policy GuardianRetryPolicy
	clock  clock.Clock
	logger *zap.Logger
}

func NewGuardianFetcher(logger *zap.Logger, getter SignedVAAGetter, hosts []string, policy GuardianRetryPolicy, clk clock.Clock) (*GuardianFetcher, error) {
	if len(hosts) == 0 {
		return nil, fmt.Errorf("at least one guardian host is required")
	}
	if policy.Attempts <= 0 {
		policy.Attempts = DefaultGuardianAttempts
	}
	if policy.Delay <= 0 {
		policy.Delay = DefaultGuardianDelay
	}
	if clk == nil {
		clk = clock.New()
	}
	return &GuardianFetcher{
		getter: getter,
		hosts:  append([]string(nil), hosts...),
		policy: policy,
		clock:  clk,
		logger: logger.With(zap.String("component", "GuardianFetcher")),
	}, nil
}

func (f *GuardianFetcher) FetchSignedVAA(ctx context.Context, chain vaaLib.ChainID, search wormhole.SearchParams) ([]byte, error) {
	start := f.clock.Now()
	f.logger.Info("Waiting for Wormhole signatures",
		zap.Stringer("chain", chain),
		zap.String("emitter", search.EmitterAddress.String()),
		zap.Uint64("sequence", search.Sequence))

	var lastErr error
	for attempt := 0; attempt < f.policy.Attempts; attempt++ {
		host := f.hosts[attempt%len(f.hosts)]
		vaaBytes, err := f.getter.GetSignedVAA(ctx, host, chain, search.EmitterAddress, search.Sequence)
		if err == nil {
			metrics.GuardianFetches.WithLabelValues("rest", "found").Inc()
			metrics.AttestationWait.WithLabelValues("guardian").Observe(f.clock.Now().Sub(start).Seconds())
			f.logger.Info("Signed VAA retrieved", zap.String("host", host), zap.Int("attempt", attempt+1))
			return vaaBytes, nil
		}
		lastErr = err
		metrics.GuardianFetches.WithLabelValues("rest", "missing").Inc()
		f.logger.Debug("Signed VAA not available yet",
			zap.String("host", host),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt+1 < f.policy.Attempts {
			if err := sleep(ctx, f.clock, f.policy.Delay); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrAttestationTimeout, f.policy.Attempts, lastErr)
}
