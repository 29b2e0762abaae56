package uddoktapay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

const requestTimeout = 10 * time.Second

// Config carries the merchant API key and the hosted-checkout URLs.
type Config struct {
	APIKey      string
	BaseURL     string
	RedirectURL string
	CancelURL   string
	WebhookURL  string
}

// Client talks to the Uddoktapay hosted checkout API.
type Client struct {
	config     Config
	httpClient *http.Client
}

type ClientDependencies struct {
	Config     Config
	HTTPClient *http.Client
}

func NewClient(deps ClientDependencies) (*Client, error) {
	if deps.Config.APIKey == "" || deps.Config.BaseURL == "" {
		return nil, domain.ErrConfigurationMissing
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	return &Client{config: deps.Config, httpClient: httpClient}, nil
}

type createRequest struct {
	FullName    string            `json:"full_name"`
	Email       string            `json:"email"`
	Amount      string            `json:"amount"`
	Metadata    map[string]string `json:"metadata"`
	RedirectURL string            `json:"redirect_url"`
	CancelURL   string            `json:"cancel_url"`
	WebhookURL  string            `json:"webhook_url"`
}

type createResponse struct {
	Status     bool   `json:"status"`
	Message    string `json:"message"`
	PaymentURL string `json:"payment_url"`
}

// CreatePayment opens a hosted checkout session and returns the payment URL
// the customer must be redirected to. The order id travels in the session
// metadata and comes back on the webhook.
func (c *Client) CreatePayment(ctx context.Context, fullName, email string, amount decimal.Decimal, userID, orderID string) (string, error) {
	body := createRequest{
		FullName: fullName,
		Email:    email,
		Amount:   amount.StringFixed(2),
		Metadata: map[string]string{
			"user_id":  userID,
			"order_id": orderID,
		},
		RedirectURL: c.config.RedirectURL,
		CancelURL:   c.config.CancelURL,
		WebhookURL:  c.config.WebhookURL,
	}

	var resp createResponse
	if err := c.post(ctx, "/api/checkout-v2", body, &resp); err != nil {
		return "", err
	}

	if !resp.Status || resp.PaymentURL == "" {
		return "", domain.NewUpstreamError("uddoktapay", fmt.Errorf("checkout failed: %s", resp.Message))
	}

	return resp.PaymentURL, nil
}

// VerifyResult is the raw verify-payment response.
type VerifyResult struct {
	Status        string            `json:"status"`
	FullName      string            `json:"full_name"`
	Email         string            `json:"email"`
	Amount        string            `json:"amount"`
	InvoiceID     string            `json:"invoice_id"`
	PaymentMethod string            `json:"payment_method"`
	SenderNumber  string            `json:"sender_number"`
	TransactionID string            `json:"transaction_id"`
	Metadata      map[string]string `json:"metadata"`
	Date          string            `json:"date"`
}

// VerifyPayment checks an invoice's authoritative status server-side.
func (c *Client) VerifyPayment(ctx context.Context, invoiceID string) (VerifyResult, error) {
	var resp VerifyResult
	if err := c.post(ctx, "/api/verify-payment", map[string]string{"invoice_id": invoiceID}, &resp); err != nil {
		return VerifyResult{}, err
	}

	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("RT-UDDOKTAPAY-API-KEY", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewUpstreamError("uddoktapay", err)
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewUpstreamError("uddoktapay", fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.NewUpstreamError("uddoktapay", fmt.Errorf("%s returned status %d", path, resp.StatusCode))
	}

	if err := json.Unmarshal(respData, out); err != nil {
		return domain.NewUpstreamError("uddoktapay", fmt.Errorf("decoding response: %w", err))
	}

	return nil
}
