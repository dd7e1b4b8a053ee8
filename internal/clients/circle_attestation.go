package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// DefaultCircleAPIURL is Circle's sandbox attestation service.
const DefaultCircleAPIURL = "https://iris-api-sandbox.circle.com"

// AttestationStatusComplete is reported once Circle has signed the message.
const AttestationStatusComplete = "complete"

type AttestationResponse struct {
	Status      string `json:"status"`
	Attestation string `json:"attestation,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Complete reports whether the attestation is ready to be submitted.
func (r *AttestationResponse) Complete() bool {
	return r.Status == AttestationStatusComplete
}

// Bytes decodes the hex attestation signature.
func (r *AttestationResponse) Bytes() ([]byte, error) {
	return hexutil.Decode(r.Attestation)
}

// CircleClient queries Circle's attestation service.
type CircleClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewCircleClient(logger *zap.Logger, baseURL string) *CircleClient {
	return &CircleClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(zap.String("component", "CircleClient")),
	}
}

// GetAttestation fetches the attestation state of a Circle message hash.
func (c *CircleClient) GetAttestation(ctx context.Context, messageHash common.Hash) (*AttestationResponse, error) {
	url := fmt.Sprintf("%s/attestations/%s", c.baseURL, messageHash.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send attestation request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read attestation response: %w", err)
	}

	c.logger.Debug("Received response from attestation service",
		zap.String("messageHash", messageHash.Hex()),
		zap.Int("statusCode", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attestation service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response AttestationResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attestation response: %w", err)
	}
	return &response, nil
}
