package clients

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"
)

// DefaultGuardianHosts are the public testnet guardian REST endpoints.
var DefaultGuardianHosts = []string{"https://wormhole-v2-testnet-api.certus.one"}

type signedVAAResponse struct {
	VAABytes string `json:"vaaBytes"`
	Code     int    `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// GuardianClient fetches signed VAAs from a guardian's public REST API.
type GuardianClient struct {
	httpClient *http.Client
	logger     *zap.Logger
}

func NewGuardianClient(logger *zap.Logger) *GuardianClient {
	return &GuardianClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(zap.String("component", "GuardianClient")),
	}
}

// GetSignedVAA requests the VAA at chain/emitter/sequence from host. A VAA
// that has not reached quorum yet is reported as an error.
func (c *GuardianClient) GetSignedVAA(ctx context.Context, host string, chain vaaLib.ChainID, emitter vaaLib.Address, sequence uint64) ([]byte, error) {
	url := fmt.Sprintf("%s/v1/signed_vaa/%d/%s/%d",
		strings.TrimSuffix(host, "/"), uint16(chain), hex.EncodeToString(emitter[:]), sequence)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request signed VAA: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read signed VAA response: %w", err)
	}

	c.logger.Debug("Received response from guardian",
		zap.String("host", host),
		zap.Uint64("sequence", sequence),
		zap.Int("statusCode", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("guardian %s returned status %d: %s", host, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response signedVAAResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal signed VAA response: %w", err)
	}
	if response.VAABytes == "" {
		return nil, fmt.Errorf("guardian %s returned no VAA bytes", host)
	}

	vaaBytes, err := base64.StdEncoding.DecodeString(response.VAABytes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode VAA bytes: %w", err)
	}
	return vaaBytes, nil
}
