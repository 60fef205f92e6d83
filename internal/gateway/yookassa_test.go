package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askhat/vpn-shop-bot/internal/models"
)

func newTestClient(baseURL string) *Client {
	return NewClient(baseURL, "shop-1", "secret-key",
		decimal.RequireFromString("199.00"), "RUB", "https://t.me/testbot")
}

func TestCreatePayment(t *testing.T) {
	var gotIdempotenceKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payments", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "shop-1", user)
		assert.Equal(t, "secret-key", pass)

		gotIdempotenceKey = r.Header.Get("Idempotence-Key")

		var req createPaymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "199.00", req.Amount.Value)
		assert.Equal(t, "RUB", req.Amount.Currency)
		assert.Equal(t, "redirect", req.Confirmation.Type)
		assert.True(t, req.Capture)
		assert.Equal(t, "42", req.Metadata["telegram_id"])

		json.NewEncoder(w).Encode(map[string]any{
			"id":     "pay-abc",
			"status": "pending",
			"amount": map[string]string{"value": "199.00", "currency": "RUB"},
			"confirmation": map[string]string{
				"type":             "redirect",
				"confirmation_url": "https://yookassa.example/confirm/pay-abc",
			},
		})
	}))
	defer srv.Close()

	payment, err := newTestClient(srv.URL).CreatePayment(context.Background(),
		"VPN access for 42", map[string]string{"telegram_id": "42"})
	require.NoError(t, err)

	assert.NotEmpty(t, gotIdempotenceKey)
	assert.Equal(t, "pay-abc", payment.ID)
	assert.Equal(t, models.StatusPending, payment.Status)
	assert.True(t, decimal.RequireFromString("199.00").Equal(payment.Amount))
	assert.Equal(t, "https://yookassa.example/confirm/pay-abc", payment.ConfirmationURL)
}

func TestCreatePaymentMissingConfirmationURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "pay-abc",
			"status": "pending",
			"amount": map[string]string{"value": "199.00", "currency": "RUB"},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreatePayment(context.Background(), "desc", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirmation URL")
}

func TestFetchPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/payments/pay-abc", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]any{
			"id":     "pay-abc",
			"status": "succeeded",
			"amount": map[string]string{"value": "199.00", "currency": "RUB"},
		})
	}))
	defer srv.Close()

	payment, err := newTestClient(srv.URL).FetchPayment(context.Background(), "pay-abc")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, payment.Status)
}

func TestFetchPaymentNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchPayment(context.Background(), "pay-abc")
	assert.ErrorIs(t, err, models.ErrPaymentNotFound)
}

func TestFetchPaymentServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchPayment(context.Background(), "pay-abc")
	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
}

func TestFetchPaymentUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv.URL).FetchPayment(context.Background(), "pay-abc")
	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)
}

func TestFetchPaymentUnrecognizedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "pay-abc",
			"status": "waiting_for_capture_v2",
			"amount": map[string]string{"value": "199.00", "currency": "RUB"},
		})
	}))
	defer srv.Close()

	payment, err := newTestClient(srv.URL).FetchPayment(context.Background(), "pay-abc")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnknown, payment.Status)
}
