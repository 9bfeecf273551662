package payprov

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/payrail/payrail/internal/payout"
	"github.com/payrail/payrail/pkg/logger"
)

// Sandbox is an in-process provider used when PROVIDER_URL is not set. It
// deduplicates on the idempotency key like the real provider and derives a
// stable external id from it, so repeated calls return identical results.
type Sandbox struct {
	logger *logger.Logger

	mu   sync.Mutex
	seen map[string]*payout.ProviderResult
}

// NewSandbox creates an in-process sandbox provider
func NewSandbox(log *logger.Logger) *Sandbox {
	return &Sandbox{
		logger: log.WithField("component", "payprov_sandbox"),
		seen:   make(map[string]*payout.ProviderResult),
	}
}

// CreatePayout accepts every well-formed payout.
func (s *Sandbox) CreatePayout(ctx context.Context, req payout.ProviderRequest) (*payout.ProviderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result, ok := s.seen[req.IdempotencyKey]; ok {
		s.logger.Debug("sandbox deduplicated payout", "idempotency_key", req.IdempotencyKey)
		return result, nil
	}

	sum := sha256.Sum256([]byte(req.IdempotencyKey))
	result := &payout.ProviderResult{
		ExternalID: "sbx_" + hex.EncodeToString(sum[:8]),
		Reference:  "sandbox",
	}
	s.seen[req.IdempotencyKey] = result

	s.logger.Info("sandbox payout accepted",
		"idempotency_key", req.IdempotencyKey,
		"external_id", result.ExternalID,
		"amount", req.Amount.String(),
	)
	return result, nil
}
