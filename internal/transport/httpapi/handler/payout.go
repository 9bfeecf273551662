package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/payrail/payrail/internal/payout"
	"github.com/payrail/payrail/pkg/money"
)

// PayoutServiceInterface defines the interface for payout operations
type PayoutServiceInterface interface {
	Intake(ctx context.Context, req *payout.Request) (*payout.Payout, bool, error)
	Get(ctx context.Context, id uuid.UUID) (*payout.Payout, error)
	Cancel(ctx context.Context, id uuid.UUID) (*payout.Payout, error)
	List(ctx context.Context, cursor *payout.Cursor, limit int) (*payout.Page, error)
}

// PayoutHandler handles payout-related HTTP requests
type PayoutHandler struct {
	service PayoutServiceInterface
}

// NewPayoutHandler creates a new payout handler
func NewPayoutHandler(service PayoutServiceInterface) *PayoutHandler {
	return &PayoutHandler{service: service}
}

// CreatePayoutRequest represents the payout creation request
type CreatePayoutRequest struct {
	IdempotencyKey   string                 `json:"idempotency_key"`
	Amount           string                 `json:"amount"`
	Currency         string                 `json:"currency"`
	RecipientAccount string                 `json:"recipient_account"`
	RecipientName    string                 `json:"recipient_name"`
	Description      string                 `json:"description"`
	Metadata         map[string]interface{} `json:"metadata"`
}

// PayoutResponse represents a payout response
type PayoutResponse struct {
	ID                  string                 `json:"id"`
	IdempotencyKey      string                 `json:"idempotency_key"`
	Amount              string                 `json:"amount"`
	Currency            string                 `json:"currency"`
	RecipientAccount    string                 `json:"recipient_account"`
	RecipientName       string                 `json:"recipient_name"`
	Description         string                 `json:"description,omitempty"`
	Metadata            map[string]interface{} `json:"metadata,omitempty"`
	Status              string                 `json:"status"`
	RetryCount          int                    `json:"retry_count"`
	ErrorMessage        string                 `json:"error_message,omitempty"`
	ExternalPayoutID    string                 `json:"external_payout_id,omitempty"`
	ExternalReference   string                 `json:"external_reference,omitempty"`
	LedgerTransactionID string                 `json:"ledger_transaction_id,omitempty"`
	CreatedAt           string                 `json:"created_at"`
	UpdatedAt           string                 `json:"updated_at"`
	ProcessedAt         *string                `json:"processed_at,omitempty"`
}

// PayoutListResponse represents a page of payouts
type PayoutListResponse struct {
	Payouts    []PayoutResponse `json:"payouts"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

func toPayoutResponse(p *payout.Payout) PayoutResponse {
	resp := PayoutResponse{
		ID:                  p.ID.String(),
		IdempotencyKey:      p.IdempotencyKey,
		Amount:              p.Amount.String(),
		Currency:            p.Amount.Currency(),
		RecipientAccount:    p.RecipientAccount,
		RecipientName:       p.RecipientName,
		Description:         p.Description,
		Metadata:            p.Metadata,
		Status:              string(p.Status),
		RetryCount:          p.RetryCount,
		ErrorMessage:        p.ErrorMessage,
		ExternalPayoutID:    p.ExternalPayoutID,
		ExternalReference:   p.ExternalReference,
		LedgerTransactionID: p.LinkedTransactionID,
		CreatedAt:           p.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:           p.UpdatedAt.Format(time.RFC3339Nano),
	}
	if p.ProcessedAt != nil {
		s := p.ProcessedAt.Format(time.RFC3339Nano)
		resp.ProcessedAt = &s
	}
	return resp
}

// CreatePayout handles POST /api/payouts
// 201 on a new payout, 200 on an idempotent replay, 409 on a key conflict.
func (h *PayoutHandler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	var req CreatePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := money.Parse(req.Amount, req.Currency)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, created, err := h.service.Intake(r.Context(), &payout.Request{
		IdempotencyKey:   req.IdempotencyKey,
		Amount:           amount,
		RecipientAccount: req.RecipientAccount,
		RecipientName:    req.RecipientName,
		Description:      req.Description,
		Metadata:         req.Metadata,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, toPayoutResponse(p))
}

// GetPayout handles GET /api/payouts/{id}
func (h *PayoutHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid payout id")
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPayoutResponse(p))
}

// CancelPayout handles POST /api/payouts/{id}/cancel
func (h *PayoutHandler) CancelPayout(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid payout id")
		return
	}

	p, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPayoutResponse(p))
}

// ListPayouts handles GET /api/payouts?cursor=&limit=
func (h *PayoutHandler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	var cursor *payout.Cursor
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		parsed, err := decodePayoutCursor(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		cursor = parsed
	}

	page, err := h.service.List(r.Context(), cursor, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := PayoutListResponse{Payouts: make([]PayoutResponse, 0, len(page.Payouts))}
	for _, p := range page.Payouts {
		resp.Payouts = append(resp.Payouts, toPayoutResponse(p))
	}
	if page.NextCursor != nil {
		resp.NextCursor = encodePayoutCursor(page.NextCursor)
	}
	respondJSON(w, http.StatusOK, resp)
}

// The cursor wire format is base64("<unix nanos>:<uuid>"); opaque to
// clients, stable across restarts.

func encodePayoutCursor(c *payout.Cursor) string {
	raw := fmt.Sprintf("%d:%s", c.CreatedAt.UnixNano(), c.ID)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodePayoutCursor(s string) (*payout.Cursor, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed cursor")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, err
	}
	return &payout.Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: id}, nil
}
