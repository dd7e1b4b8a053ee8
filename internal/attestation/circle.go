package attestation

import (
	"context"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wormhole-demo/xswap/internal/clients"
	"github.com/wormhole-demo/xswap/internal/metrics"
)

// DefaultCirclePollInterval is the spacing between attestation requests.
const DefaultCirclePollInterval = 2 * time.Second

// AttestationSource returns the current attestation state of a Circle message.
type AttestationSource interface {
	GetAttestation(ctx context.Context, messageHash common.Hash) (*clients.AttestationResponse, error)
}

// CirclePoller waits for Circle to attest a burn message. It has no attempt
// ceiling and only stops when the attestation is complete or ctx is done.
type CirclePoller struct {
	source   AttestationSource
	clock    clock.Clock
	interval time.Duration
	logger   *zap.Logger
}

func NewCirclePoller(logger *zap.Logger, source AttestationSource, clk clock.Clock, interval time.Duration) *CirclePoller {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = DefaultCirclePollInterval
	}
	return &CirclePoller{
		source:   source,
		clock:    clk,
		interval: interval,
		logger:   logger.With(zap.String("component", "CirclePoller")),
	}
}

// Poll returns the attestation signature for messageHash. Transport errors
// and malformed responses count as not ready yet.
func (p *CirclePoller) Poll(ctx context.Context, messageHash common.Hash) ([]byte, error) {
	start := p.clock.Now()
	p.logger.Info("Waiting for Circle attestation", zap.String("messageHash", messageHash.Hex()))

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := p.source.GetAttestation(ctx, messageHash)
		switch {
		case err != nil:
			metrics.CirclePolls.WithLabelValues("error").Inc()
			p.logger.Debug("Attestation request failed", zap.Int("attempt", attempt), zap.Error(err))
		case !resp.Complete():
			metrics.CirclePolls.WithLabelValues("pending").Inc()
			p.logger.Debug("Attestation pending", zap.Int("attempt", attempt), zap.String("status", resp.Status))
		default:
			attestation, err := resp.Bytes()
			if err != nil {
				metrics.CirclePolls.WithLabelValues("error").Inc()
				p.logger.Warn("Malformed attestation", zap.Int("attempt", attempt), zap.Error(err))
				break
			}
			metrics.CirclePolls.WithLabelValues("complete").Inc()
			metrics.AttestationWait.WithLabelValues("circle").Observe(p.clock.Now().Sub(start).Seconds())
			p.logger.Info("Circle attestation complete",
				zap.String("messageHash", messageHash.Hex()),
				zap.Int("attempts", attempt))
			return attestation, nil
		}

		if err := sleep(ctx, p.clock, p.interval); err != nil {
			return nil, err
		}
	}
}
