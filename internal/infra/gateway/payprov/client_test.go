package payprov

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrail/payrail/internal/payout"
	"github.com/payrail/payrail/pkg/logger"
	"github.com/payrail/payrail/pkg/money"
)

func testLogger() *logger.Logger {
	return logger.New("test", io.Discard)
}

func sampleRequest() payout.ProviderRequest {
	return payout.ProviderRequest{
		IdempotencyKey:   "k1",
		Amount:           money.MustParse("100.00", "USD"),
		RecipientAccount: "DE89370400440532013000",
		RecipientName:    "Jane Doe",
		Description:      "invoice 42",
	}
}

func TestClientCreatePayoutSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payouts", r.URL.Path)
		assert.Equal(t, "k1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "100.00", body["amount"])
		assert.Equal(t, "USD", body["currency"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "ext_1", "reference": "ref_1", "status": "accepted"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", testLogger())
	result, err := client.CreatePayout(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "ext_1", result.ExternalID)
	assert.Equal(t, "ref_1", result.Reference)
}

func TestClientClassifiesServerErrorsTransient(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusTooManyRequests} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]string{"message": "try later"})
		}))

		client := NewClient(srv.URL, "", testLogger())
		_, err := client.CreatePayout(context.Background(), sampleRequest())
		require.Error(t, err, "status %d", status)

		var te *payout.TransientError
		assert.True(t, errors.As(err, &te), "status %d must be transient", status)
		assert.True(t, payout.IsTransient(err))
		srv.Close()
	}
}

func TestClientClassifiesClientErrorsPermanent(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]string{"message": "rejected"})
		}))

		client := NewClient(srv.URL, "", testLogger())
		_, err := client.CreatePayout(context.Background(), sampleRequest())
		require.Error(t, err, "status %d", status)

		var pe *payout.PermanentError
		assert.True(t, errors.As(err, &pe), "status %d must be permanent", status)
		assert.False(t, payout.IsTransient(err))
		assert.Contains(t, err.Error(), "rejected")
		srv.Close()
	}
}

func TestClientMissingExternalIDIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", testLogger())
	_, err := client.CreatePayout(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, payout.IsTransient(err), "an ambiguous response must be retried, not failed")
}

func TestClientTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client disconnect and
		// cancel the request context; otherwise Close deadlocks on this handler.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.CreatePayout(ctx, sampleRequest())
	require.Error(t, err)
	assert.True(t, payout.IsTransient(err))
}

func TestClientConnectionRefusedIsTransient(t *testing.T) {
	// Reserve a port, then close it so nothing listens there.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	client := NewClient(addr, "", testLogger())
	_, err := client.CreatePayout(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, payout.IsTransient(err))
}

func TestSandboxDeduplicatesOnKey(t *testing.T) {
	sandbox := NewSandbox(testLogger())
	ctx := context.Background()

	first, err := sandbox.CreatePayout(ctx, sampleRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, first.ExternalID)
	assert.Equal(t, "sandbox", first.Reference)

	replay, err := sandbox.CreatePayout(ctx, sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, first.ExternalID, replay.ExternalID)

	other := sampleRequest()
	other.IdempotencyKey = "k2"
	second, err := sandbox.CreatePayout(ctx, other)
	require.NoError(t, err)
	assert.NotEqual(t, first.ExternalID, second.ExternalID)
}
