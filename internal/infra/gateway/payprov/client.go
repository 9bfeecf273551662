package payprov

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/payrail/payrail/internal/payout"
	"github.com/payrail/payrail/pkg/logger"
)

const requestTimeout = 30 * time.Second

// Client is an HTTP client for the external payout provider. The provider
// deduplicates on the Idempotency-Key header, so re-sending the same request
// after a crash or timeout is safe.
//
// Failure classification: 4xx responses are permanent, 5xx / timeouts /
// connection errors are transient. Retry policy lives in the dispatcher,
// not here.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new provider client
func NewClient(baseURL, apiKey string, log *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: log.WithField("component", "payprov"),
	}
}

type createPayoutRequest struct {
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	RecipientAccount string `json:"recipient_account"`
	RecipientName    string `json:"recipient_name"`
	Description      string `json:"description,omitempty"`
}

type createPayoutResponse struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// CreatePayout submits a payout instruction to the provider.
func (c *Client) CreatePayout(ctx context.Context, req payout.ProviderRequest) (*payout.ProviderResult, error) {
	body, err := json.Marshal(createPayoutRequest{
		Amount:           req.Amount.String(),
		Currency:         req.Amount.Currency(),
		RecipientAccount: req.RecipientAccount,
		RecipientName:    req.RecipientName,
		Description:      req.Description,
	})
	if err != nil {
		return nil, &payout.PermanentError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payouts", bytes.NewReader(body))
	if err != nil {
		return nil, &payout.PermanentError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &payout.TransientError{Err: classifyNetErr(err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &payout.TransientError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	c.logger.Debug("provider response",
		"status_code", resp.StatusCode,
		"idempotency_key", req.IdempotencyKey,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var parsed createPayoutResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, &payout.TransientError{Err: fmt.Errorf("malformed provider response: %w", err)}
		}
		if parsed.ID == "" {
			return nil, &payout.TransientError{Err: errors.New("provider response missing payout id")}
		}
		return &payout.ProviderResult{ExternalID: parsed.ID, Reference: parsed.Reference}, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &payout.TransientError{
			Err: fmt.Errorf("provider returned status %d: %s", resp.StatusCode, providerMessage(respBody)),
		}

	default:
		return nil, &payout.PermanentError{
			Err: fmt.Errorf("provider rejected payout with status %d: %s", resp.StatusCode, providerMessage(respBody)),
		}
	}
}

func providerMessage(body []byte) string {
	var parsed createPayoutResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	if len(body) > 256 {
		body = body[:256]
	}
	return string(body)
}

func classifyNetErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("provider request timed out: %w", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("provider deadline exceeded: %w", err)
	}
	return fmt.Errorf("provider request failed: %w", err)
}
