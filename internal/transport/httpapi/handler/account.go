package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/payrail/payrail/internal/ledger"
	"github.com/payrail/payrail/pkg/money"
)

// LedgerServiceInterface defines the interface for ledger reads
type LedgerServiceInterface interface {
	GetAccount(ctx context.Context, code string) (*ledger.Account, error)
	GetAccountBalance(ctx context.Context, accountID uuid.UUID, forceRefresh bool) (money.Amount, error)
	GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error)
	ReconcileBalance(ctx context.Context, accountID uuid.UUID) error
}

// AccountHandler handles ledger account HTTP requests
type AccountHandler struct {
	service LedgerServiceInterface
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(service LedgerServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// BalanceResponse represents an account balance response
type BalanceResponse struct {
	AccountCode string `json:"account_code"`
	AccountType string `json:"account_type"`
	Balance     string `json:"balance"`
	Currency    string `json:"currency"`
}

// GetBalance handles GET /api/accounts/{code}/balance
// With ?refresh=true the balance is recomputed from ledger entries instead
// of served from the read model.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	account, err := h.service.GetAccount(r.Context(), code)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	forceRefresh := r.URL.Query().Get("refresh") == "true"
	balance, err := h.service.GetAccountBalance(r.Context(), account.ID, forceRefresh)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	// An account with no entries yet has a zero-value balance carrying no
	// currency; report the system currency instead of an empty string.
	currency := balance.Currency()
	if currency == "" {
		currency = money.DefaultCurrency
	}

	respondJSON(w, http.StatusOK, BalanceResponse{
		AccountCode: account.Code,
		AccountType: string(account.Type),
		Balance:     balance.String(),
		Currency:    currency,
	})
}

// ReconcileBalance handles POST /api/accounts/{code}/reconcile
// Verifies the projected balance against the entry sum; 200 when they
// agree, 409 when they do not.
func (h *AccountHandler) ReconcileBalance(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	account, err := h.service.GetAccount(r.Context(), code)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if err := h.service.ReconcileBalance(r.Context(), account.ID); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reconciled"})
}

// EntryResponse represents one ledger entry on the wire
type EntryResponse struct {
	ID            string `json:"id"`
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Side          string `json:"side"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	CreatedAt     string `json:"created_at"`
}

// TransactionResponse represents a balanced ledger transaction
type TransactionResponse struct {
	ID          string          `json:"id"`
	Description string          `json:"description,omitempty"`
	CreatedAt   string          `json:"created_at"`
	Entries     []EntryResponse `json:"entries"`
}

// GetTransaction handles GET /api/transactions/{id}
func (h *AccountHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "transaction id is required")
		return
	}

	tx, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := TransactionResponse{
		ID:          tx.ID,
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt.Format(time.RFC3339Nano),
		Entries:     make([]EntryResponse, 0, len(tx.Entries)),
	}
	for _, e := range tx.Entries {
		resp.Entries = append(resp.Entries, EntryResponse{
			ID:            e.ID.String(),
			TransactionID: e.TransactionID,
			AccountID:     e.AccountID.String(),
			Side:          string(e.Side),
			Amount:        e.Amount.String(),
			Currency:      e.Amount.Currency(),
			CreatedAt:     e.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}
