package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/askhat/vpn-shop-bot/internal/models"
)

const requestTimeout = 20 * time.Second

// Client talks to the YooKassa payments API. The plan amount and currency are
// fixed at construction; each CreatePayment call carries a fresh idempotence
// key so network-level retries of the creation request cannot double-charge.
type Client struct {
	httpClient *http.Client
	baseURL    string
	shopID     string
	secretKey  string
	amount     decimal.Decimal
	currency   string
	returnURL  string
}

func NewClient(baseURL, shopID, secretKey string, amount decimal.Decimal, currency, returnURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		shopID:     shopID,
		secretKey:  secretKey,
		amount:     amount,
		currency:   currency,
		returnURL:  returnURL,
	}
}

type amountPayload struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmationPayload struct {
	Type      string `json:"type"`
	ReturnURL string `json:"return_url,omitempty"`
	// ConfirmationURL is only present in responses.
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type createPaymentRequest struct {
	Amount       amountPayload       `json:"amount"`
	Confirmation confirmationPayload `json:"confirmation"`
	Capture      bool                `json:"capture"`
	Description  string              `json:"description"`
	Metadata     map[string]string   `json:"metadata,omitempty"`
}

type paymentResponse struct {
	ID           string               `json:"id"`
	Status       string               `json:"status"`
	Amount       amountPayload        `json:"amount"`
	Confirmation *confirmationPayload `json:"confirmation"`
}

func (c *Client) CreatePayment(ctx context.Context, description string, metadata map[string]string) (*models.Payment, error) {
	body := createPaymentRequest{
		Amount:       amountPayload{Value: c.amount.StringFixed(2), Currency: c.currency},
		Confirmation: confirmationPayload{Type: "redirect", ReturnURL: c.returnURL},
		Capture:      true,
		Description:  description,
		Metadata:     metadata,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode create payment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())
	req.SetBasicAuth(c.shopID, c.secretKey)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}

	payment, err := c.parsePayment(resp)
	if err != nil {
		return nil, err
	}
	if payment.ConfirmationURL == "" {
		return nil, fmt.Errorf("gateway response missing confirmation URL for payment %s", payment.ID)
	}
	return payment, nil
}

func (c *Client) FetchPayment(ctx context.Context, id string) (*models.Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.shopID, c.secretKey)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return c.parsePayment(resp)
}

// do executes the request and maps transport-level and server-side failures
// onto the error taxonomy: timeouts and 5xx are retryable unavailability,
// 404 means the gateway has no such payment.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, models.ErrPaymentNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: gateway returned %d", models.ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("gateway rejected request with %d: %s", resp.StatusCode, body)
	}

	return resp, nil
}

func (c *Client) parsePayment(resp *http.Response) (*models.Payment, error) {
	defer resp.Body.Close()

	var pr paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	if pr.ID == "" {
		return nil, fmt.Errorf("gateway response missing payment id")
	}

	amount, err := decimal.NewFromString(pr.Amount.Value)
	if err != nil {
		return nil, fmt.Errorf("gateway response has malformed amount %q: %w", pr.Amount.Value, err)
	}

	payment := &models.Payment{
		ID:       pr.ID,
		Status:   models.ParsePaymentStatus(pr.Status),
		Amount:   amount,
		Currency: pr.Amount.Currency,
	}
	if pr.Confirmation != nil {
		payment.ConfirmationURL = pr.Confirmation.ConfirmationURL
	}
	return payment, nil
}
