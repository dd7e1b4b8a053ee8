package clients

import (
	"context"
	"fmt"
	"time"

	spyv1 "github.com/certusone/wormhole/node/pkg/proto/spy/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	spyMaxRetries = 5
	spyRetryDelay = 2 * time.Second
)

// SignedVAAStream yields raw signed VAAs until it fails or is closed.
type SignedVAAStream interface {
	Recv() ([]byte, error)
	Close()
}

// SpyClient handles connections to the Wormhole spy service
type SpyClient struct {
	endpoint string
	logger   *zap.Logger
}

// NewSpyClient creates a new client for the Wormhole spy service
func NewSpyClient(logger *zap.Logger, endpoint string) *SpyClient {
	return &SpyClient{
		endpoint: endpoint,
		logger:   logger.With(zap.String("component", "SpyClient")),
	}
}

type spyStream struct {
	conn   *grpc.ClientConn
	stream spyv1.SpyRPCService_SubscribeSignedVAAClient
}

func (s *spyStream) Recv() ([]byte, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return nil, err
	}
	return resp.VaaBytes, nil
}

func (s *spyStream) Close() {
	s.conn.Close()
}

// SubscribeSignedVAA subscribes to all signed VAAs with retry logic. The
// spy does not filter; callers match chain, emitter and sequence themselves.
func (c *SpyClient) SubscribeSignedVAA(ctx context.Context) (SignedVAAStream, error) {
	c.logger.Debug("Subscribing to signed VAAs", zap.String("endpoint", c.endpoint))

	var lastErr error
	for attempt := 1; attempt <= spyMaxRetries; attempt++ {
		stream, err := c.subscribe(ctx)
		if err == nil {
			return stream, nil
		}
		lastErr = err

		if attempt < spyMaxRetries {
			c.logger.Warn("Subscribe attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
				zap.Duration("retryIn", spyRetryDelay))

			select {
			case <-time.After(spyRetryDelay):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			}
		}
	}

	return nil, fmt.Errorf("failed to subscribe after %d attempts: %w", spyMaxRetries, lastErr)
}

func (c *SpyClient) subscribe(ctx context.Context) (*spyStream, error) {
	conn, err := grpc.NewClient(c.endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to spy: %w", err)
	}

	stream, err := spyv1.NewSpyRPCServiceClient(conn).SubscribeSignedVAA(ctx, &spyv1.SubscribeSignedVAARequest{})
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &spyStream{conn: conn, stream: stream}, nil
}
