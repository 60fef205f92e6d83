package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askhat/vpn-shop-bot/internal/models"
)

func newTestClient(baseURL string) *Client {
	return NewClient(baseURL, "api-key", 3, 30, 10)
}

func TestCreateAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/panel/api/inbounds/addClient", r.URL.Path)
		assert.Equal(t, "Bearer api-key", r.Header.Get("Authorization"))

		var req addClientRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.ID)
		require.Len(t, req.Settings.Clients, 1)

		client := req.Settings.Clients[0]
		assert.NotEmpty(t, client.ID)
		assert.Contains(t, client.Email, "tg-42-")
		assert.Equal(t, int64(10)*1024*1024*1024, client.TotalBytes)
		assert.True(t, client.Enable)
		assert.Equal(t, "42", client.TgID)
		assert.Greater(t, client.ExpiryTime, time.Now().Unix())

		json.NewEncoder(w).Encode(map[string]any{
			"obj": map[string]string{
				"email":        client.Email,
				"subscribeUrl": "vless://sub.example/abc",
			},
		})
	}))
	defer srv.Close()

	account, err := newTestClient(srv.URL).CreateAccount(context.Background(), 42)
	require.NoError(t, err)
	assert.Contains(t, account.Handle, "tg-42-")
	assert.Equal(t, "vless://sub.example/abc", account.ConnectionDescriptor)
}

func TestCreateAccountFlatResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"email": "tg-42-ab12cd",
			"url":   "vless://sub.example/flat",
		})
	}))
	defer srv.Close()

	account, err := newTestClient(srv.URL).CreateAccount(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "tg-42-ab12cd", account.Handle)
	assert.Equal(t, "vless://sub.example/flat", account.ConnectionDescriptor)
}

func TestCreateAccountBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("inbound is full"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateAccount(context.Background(), 42)
	var perr *models.ProvisioningError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Diagnostic, "inbound is full")
}

func TestCreateAccountMissingSubscriptionURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"obj": map[string]string{"email": "tg-42-ab12cd"},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateAccount(context.Background(), 42)
	var perr *models.ProvisioningError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Diagnostic, "subscription URL missing")
}

func TestCreateAccountMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateAccount(context.Background(), 42)
	var perr *models.ProvisioningError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Diagnostic, "malformed panel response")
}
