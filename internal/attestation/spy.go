package attestation

import (
	"context"
	"fmt"
	"time"

	"github.com/andres-erbsen/clock"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/xswap/internal/clients"
	"github.com/wormhole-demo/xswap/internal/metrics"
	"github.com/wormhole-demo/xswap/internal/wormhole"
)

// DefaultSpyTimeout matches the guardian REST budget of 60 lookups a second apart.
const DefaultSpyTimeout = DefaultGuardianAttempts * DefaultGuardianDelay

// Subscriber opens a stream of every signed VAA observed by a spy.
type Subscriber interface {
	SubscribeSignedVAA(ctx context.Context) (clients.SignedVAAStream, error)
}

// SpyFetcher waits for a VAA on a guardian spy stream instead of polling REST
// hosts. A spy only forwards VAAs signed after the subscription opens, so a
// VAA signed earlier is never seen; after timeout the lookup is handed to
// fallback, or fails with ErrAttestationTimeout when there is none.
type SpyFetcher struct {
	subscriber Subscriber
	fallback   VAAFetcher
	timeout    time.Duration
	clock      clock.Clock
	logger     *zap.Logger
}

func NewSpyFetcher(logger *zap.Logger, subscriber Subscriber, fallback VAAFetcher, timeout time.Duration, clk clock.Clock) *SpyFetcher {
	if timeout <= 0 {
		timeout = DefaultSpyTimeout
	}
	if clk == nil {
		clk = clock.New()
	}
	return &SpyFetcher{
		subscriber: subscriber,
		fallback:   fallback,
		timeout:    timeout,
		clock:      clk,
		logger:     logger.With(zap.String("component", "SpyFetcher")),
	}
}

func (f *SpyFetcher) FetchSignedVAA(ctx context.Context, chain vaaLib.ChainID, search wormhole.SearchParams) ([]byte, error) {
	vaaBytes, err := f.watch(ctx, chain, search)
	if err == nil || f.fallback == nil || ctx.Err() != nil {
		return vaaBytes, err
	}

	f.logger.Warn("Spy did not deliver the VAA, falling back",
		zap.Uint64("sequence", search.Sequence),
		zap.Error(err))
	return f.fallback.FetchSignedVAA(ctx, chain, search)
}

func (f *SpyFetcher) watch(ctx context.Context, chain vaaLib.ChainID, search wormhole.SearchParams) ([]byte, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	timedOut := make(chan struct{})
	go func() {
		select {
		case <-f.clock.After(f.timeout):
			close(timedOut)
			cancel()
		case <-watchCtx.Done():
		}
	}()
	expired := func() bool {
		select {
		case <-timedOut:
			return true
		default:
			return false
		}
	}
	timeoutErr := fmt.Errorf("%w: spy saw no matching VAA within %s", ErrAttestationTimeout, f.timeout)

	stream, err := f.subscriber.SubscribeSignedVAA(watchCtx)
	if err != nil {
		if expired() {
			return nil, timeoutErr
		}
		return nil, err
	}
	defer stream.Close()

	f.logger.Info("Watching spy for signed VAA",
		zap.Stringer("chain", chain),
		zap.Uint64("sequence", search.Sequence),
		zap.Duration("timeout", f.timeout))

	for {
		if expired() {
			metrics.GuardianFetches.WithLabelValues("spy", "missing").Inc()
			return nil, timeoutErr
		}

		vaaBytes, err := stream.Recv()
		if err != nil {
			if expired() {
				metrics.GuardianFetches.WithLabelValues("spy", "missing").Inc()
				return nil, timeoutErr
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("spy stream failed: %w", err)
		}

		v, err := wormhole.ParseVAAPermissive(vaaBytes)
		if err != nil {
			f.logger.Debug("Skipping unparseable VAA", zap.Error(err))
			continue
		}
		if !wormhole.MatchesSearch(v, chain, search) {
			continue
		}

		metrics.GuardianFetches.WithLabelValues("spy", "found").Inc()
		wormhole.LogVAA(f.logger, v, vaaBytes)
		return vaaBytes, nil
	}
}
