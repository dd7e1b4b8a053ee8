package swap

import (
	"context"
	"time"

	"github.com/andres-erbsen/clock"
	"go.uber.org/zap"

	"github.com/wormhole-demo/xswap/internal/metrics"
)

const (
	DefaultRelayAttempts = 20
	DefaultRelayInterval = 5 * time.Second
)

// RelayPolicy bounds how long the executor waits for the relayer to redeem
// on the destination chain before falling back to manual redemption.
type RelayPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

func DefaultRelayPolicy() RelayPolicy {
	return RelayPolicy{MaxAttempts: DefaultRelayAttempts, Interval: DefaultRelayInterval}
}

// WaitForRelay polls the destination integration contract until the signed
// VAA is consumed. It reports true when the relayer completed the swap and
// false once the executor has moved to manual redemption.
func (e *Executor) WaitForRelay(ctx context.Context) (bool, error) {
	return e.waitForRelay(ctx, e.relay)
}

func (e *Executor) waitForRelay(ctx context.Context, policy RelayPolicy) (bool, error) {
	e.lock()
	p, ok := e.phase.(attestedPhase)
	if !ok || e.sm.currentState != StateAwaitingAttestation {
		err := e.invalidState("a signed VAA awaiting the relayer")
		e.unlock()
		return false, err
	}
	chain := e.dstParams.Chain
	checker := e.integrations[chain]
	e.unlock()

	ctx, cancel := e.bind(ctx)
	defer cancel()

	if checker == nil {
		e.logger.Warn("No integration contract to watch, skipping relayer", zap.Stringer("chain", chain))
		return false, e.timeoutRelay()
	}

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		consumed, err := checker.IsMessageConsumed(ctx, p.consumedKey)
		switch {
		case err != nil:
			metrics.RelayChecks.WithLabelValues("error").Inc()
			e.logger.Warn("Consumption check failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
		case consumed:
			metrics.RelayChecks.WithLabelValues("consumed").Inc()
			return true, e.completeRelayed(p)
		default:
			metrics.RelayChecks.WithLabelValues("pending").Inc()
			e.logger.Debug("VAA not yet redeemed by relayer", zap.Int("attempt", attempt))
		}

		if err := wait(ctx, e.clock, policy.Interval); err != nil {
			// The swap can still be redeemed manually after a cancelled wait.
			return false, err
		}
	}

	return false, e.timeoutRelay()
}

func (e *Executor) completeRelayed(p attestedPhase) error {
	e.lock()
	defer e.unlock()
	if e.sm.currentState != StateAwaitingAttestation {
		return e.invalidState(StateAwaitingAttestation.String())
	}
	if err := e.transition(StateRelayedComplete, "VAA consumed on destination"); err != nil {
		return err
	}
	e.phase = completePhase{attestedPhase: p, relayed: true}
	e.markCompleteLocked()
	return e.transition(StateComplete, "relayer redeemed")
}

func (e *Executor) timeoutRelay() error {
	e.lock()
	defer e.unlock()
	if e.sm.currentState != StateAwaitingAttestation {
		return e.invalidState(StateAwaitingAttestation.String())
	}
	metrics.RelayTimeouts.Inc()
	e.status.RelayerTimeoutString = StatusRelayerTimeout
	e.status.Message = StatusRelayerTimeout
	return e.transition(StateManualRedeeming, "relayer timed out")
}

func wait(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-clk.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
