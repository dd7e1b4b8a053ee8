package attestation

import (
	"context"
	"errors"
	"time"

	"github.com/andres-erbsen/clock"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/wormhole-demo/xswap/internal/wormhole"
)

// ErrAttestationTimeout is returned when a bounded VAA lookup runs out of attempts.
var ErrAttestationTimeout = errors.New("timed out waiting for signed VAA")

// VAAFetcher blocks until the guardian-signed VAA at the given coordinates is available.
type VAAFetcher interface {
	FetchSignedVAA(ctx context.Context, chain vaaLib.ChainID, search wormhole.SearchParams) ([]byte, error)
}

// sleep waits d on clk, returning early with the context's error.
func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	select {
	case <-clk.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
