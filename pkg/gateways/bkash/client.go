package bkash

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

const (
	sandboxBaseURL = "https://tokenized.sandbox.bka.sh/v1.2.0-beta/tokenized/checkout"
	liveBaseURL    = "https://tokenized.pay.bka.sh/v1.2.0-beta/tokenized/checkout"

	requestTimeout = 30 * time.Second
)

// Config carries the tokenized-checkout merchant credentials.
type Config struct {
	AppKey      string
	AppSecret   string
	Username    string
	Password    string
	Sandbox     bool
	CallbackURL string
}

// Client talks to the bKash tokenized checkout API.
type Client struct {
	config     Config
	baseURL    string
	httpClient *http.Client
}

type ClientDependencies struct {
	Config     Config
	HTTPClient *http.Client
}

func NewClient(deps ClientDependencies) (*Client, error) {
	if deps.Config.AppKey == "" || deps.Config.AppSecret == "" || deps.Config.Username == "" || deps.Config.Password == "" {
		return nil, domain.ErrConfigurationMissing
	}

	baseURL := liveBaseURL
	if deps.Config.Sandbox {
		baseURL = sandboxBaseURL
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	return &Client{
		config:     deps.Config,
		baseURL:    baseURL,
		httpClient: httpClient,
	}, nil
}

// WithBaseURL overrides the gateway URL, for tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

type tokenResponse struct {
	IDToken    string `json:"id_token"`
	StatusCode string `json:"statusCode"`
	StatusMsg  string `json:"statusMessage"`
}

func (c *Client) Token(ctx context.Context) (string, error) {
	body := map[string]string{
		"app_key":    c.config.AppKey,
		"app_secret": c.config.AppSecret,
	}

	req, err := c.newRequest(ctx, "/token/grant", body)
	if err != nil {
		return "", err
	}

	req.Header.Set("username", c.config.Username)
	req.Header.Set("password", c.config.Password)

	var resp tokenResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}

	if resp.IDToken == "" {
		return "", domain.NewUpstreamError("bkash", fmt.Errorf("token grant failed: %s", resp.StatusMsg))
	}

	return resp.IDToken, nil
}

type createResponse struct {
	PaymentID     string `json:"paymentID"`
	BkashURL      string `json:"bkashURL"`
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
}

// CreatePayment opens a checkout session and returns the redirect URL and
// the gateway payment id.
func (c *Client) CreatePayment(ctx context.Context, amount decimal.Decimal, merchantInvoice string) (string, string, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return "", "", err
	}

	body := map[string]string{
		"mode":                  "0011",
		"callbackURL":           c.config.CallbackURL,
		"amount":                amount.StringFixed(2),
		"currency":              "BDT",
		"intent":                "sale",
		"merchantInvoiceNumber": merchantInvoice,
		"payerReference":        "bdmouza",
	}

	req, err := c.newRequest(ctx, "/create", body)
	if err != nil {
		return "", "", err
	}

	req.Header.Set("Authorization", token)
	req.Header.Set("X-APP-Key", c.config.AppKey)

	var resp createResponse
	if err := c.do(req, &resp); err != nil {
		return "", "", err
	}

	if resp.StatusCode != "0000" {
		return "", "", domain.NewUpstreamError("bkash", fmt.Errorf("create payment failed: %s (code %s)", resp.StatusMessage, resp.StatusCode))
	}

	return resp.BkashURL, resp.PaymentID, nil
}

// ExecuteResult is the raw outcome of finalizing a payment.
type ExecuteResult struct {
	PaymentID             string `json:"paymentID"`
	TrxID                 string `json:"trxID"`
	TransactionStatus     string `json:"transactionStatus"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency"`
	CustomerMsisdn        string `json:"customerMsisdn"`
	MerchantInvoiceNumber string `json:"merchantInvoiceNumber"`
	StatusCode            string `json:"statusCode"`
	StatusMessage         string `json:"statusMessage"`
}

// ExecutePayment finalizes a checkout session after the customer approved
// it.
func (c *Client) ExecutePayment(ctx context.Context, paymentID string) (ExecuteResult, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return ExecuteResult{}, err
	}

	req, err := c.newRequest(ctx, "/execute", map[string]string{"paymentID": paymentID})
	if err != nil {
		return ExecuteResult{}, err
	}

	req.Header.Set("Authorization", token)
	req.Header.Set("X-APP-Key", c.config.AppKey)

	var resp ExecuteResult
	if err := c.do(req, &resp); err != nil {
		return ExecuteResult{}, err
	}

	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewUpstreamError("bkash", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewUpstreamError("bkash", fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.NewUpstreamError("bkash", fmt.Errorf("%s returned status %d", req.URL.Path, resp.StatusCode))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return domain.NewUpstreamError("bkash", fmt.Errorf("decoding response: %w", err))
	}

	return nil
}
