package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askhat/vpn-shop-bot/internal/models"
)

const requestTimeout = 20 * time.Second

// Client provisions time-boxed accounts on a 3x-ui panel. Every call creates
// a billable remote resource; nothing here deduplicates, the orchestrator
// owns the at-most-once guarantee.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	inboundID    int
	validFor     time.Duration
	trafficBytes int64
}

func NewClient(baseURL, apiKey string, inboundID, daysValid, trafficGB int) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: requestTimeout},
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		inboundID:    inboundID,
		validFor:     time.Duration(daysValid) * 24 * time.Hour,
		trafficBytes: int64(trafficGB) * 1024 * 1024 * 1024,
	}
}

type clientPayload struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	LimitIP    int    `json:"limitIp"`
	TotalBytes int64  `json:"totalGB"`
	ExpiryTime int64  `json:"expiryTime"`
	Enable     bool   `json:"enable"`
	Flow       string `json:"flow"`
	SubID      string `json:"subId"`
	TgID       string `json:"tgId"`
}

type addClientRequest struct {
	ID       int    `json:"id"`
	Settings struct {
		Clients []clientPayload `json:"clients"`
	} `json:"settings"`
	Remark string `json:"remark"`
}

type clientInfo struct {
	Email        string `json:"email"`
	SubscribeURL string `json:"subscribeUrl"`
	URL          string `json:"url"`
	Link         string `json:"link"`
}

type addClientResponse struct {
	Obj *clientInfo `json:"obj"`
	clientInfo
}

func (c *Client) CreateAccount(ctx context.Context, requesterID int64) (*models.ProvisionedAccount, error) {
	remark := fmt.Sprintf("tg-%d-%s", requesterID, strings.ReplaceAll(uuid.NewString(), "-", "")[:6])

	var body addClientRequest
	body.ID = c.inboundID
	body.Remark = remark
	body.Settings.Clients = []clientPayload{{
		ID:         strings.ReplaceAll(uuid.NewString(), "-", ""),
		Email:      remark,
		LimitIP:    0,
		TotalBytes: c.trafficBytes,
		ExpiryTime: time.Now().Add(c.validFor).Unix(),
		Enable:     true,
		Flow:       "xtls-rprx-vision",
		SubID:      strings.ReplaceAll(uuid.NewString(), "-", ""),
		TgID:       strconv.FormatInt(requesterID, 10),
	}}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode add client request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/panel/api/inbounds/addClient", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.ProvisioningError{Diagnostic: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		diag, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &models.ProvisioningError{
			Diagnostic: fmt.Sprintf("panel returned %d: %s", resp.StatusCode, diag),
		}
	}

	var ar addClientResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, &models.ProvisioningError{Diagnostic: "malformed panel response: " + err.Error()}
	}

	// Some panel builds wrap the client in "obj", others return it flat.
	info := ar.clientInfo
	if ar.Obj != nil {
		info = *ar.Obj
	}

	subscription := info.SubscribeURL
	if subscription == "" {
		subscription = info.URL
	}
	if subscription == "" {
		subscription = info.Link
	}
	if subscription == "" {
		return nil, &models.ProvisioningError{Diagnostic: "subscription URL missing in panel response"}
	}

	handle := info.Email
	if handle == "" {
		handle = remark
	}

	return &models.ProvisionedAccount{
		Handle:               handle,
		ConnectionDescriptor: subscription,
	}, nil
}
