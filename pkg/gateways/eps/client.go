package eps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

const (
	tokenCacheKey = "eps_token"

	tokenExpiryBuffer  = 5 * time.Minute
	minTokenCacheTTL   = 300 * time.Second
	defaultTokenExpiry = 3600 * time.Second

	requestTimeout = 30 * time.Second
)

// Config carries the merchant credentials and callback URLs for one EPS
// merchant account.
type Config struct {
	BaseURL    string
	Username   string
	Password   string
	HashKey    string
	StoreID    string
	SuccessURL string
	FailURL    string
	CancelURL  string
}

// Client talks to the EPS payment engine. It implements
// domain.PaymentGateway. Bearer tokens are cached in the shared cache under
// a single key; concurrent refreshes may race but duplicate tokens are
// harmless.
type Client struct {
	config     Config
	httpClient *http.Client
	cache      domain.Cache
	now        func() time.Time
}

type ClientDependencies struct {
	Config     Config
	HTTPClient *http.Client
	Cache      domain.Cache
	Now        func() time.Time
}

func NewClient(deps ClientDependencies) (*Client, error) {
	if deps.Config.BaseURL == "" || deps.Config.Username == "" || deps.Config.Password == "" || deps.Config.HashKey == "" {
		return nil, domain.ErrConfigurationMissing
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		config:     deps.Config,
		httpClient: httpClient,
		cache:      deps.Cache,
		now:        now,
	}, nil
}

type tokenResponse struct {
	Token        string `json:"token"`
	ExpireDate   string `json:"expireDate"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// Token returns a bearer token, reusing the cached one while it is fresh.
// The cached entry expires five minutes before the gateway's stated expiry,
// never sooner than five minutes from now.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.cache != nil {
		if cached, ok, err := c.cache.Get(ctx, tokenCacheKey); err == nil && ok {
			return string(cached), nil
		}
	}

	body := map[string]string{
		"userName": c.config.Username,
		"password": c.config.Password,
	}

	var resp tokenResponse
	if err := c.post(ctx, "/Auth/GetToken", GenerateHash(c.config.Username, c.config.HashKey), "", body, &resp); err != nil {
		return "", err
	}

	if resp.ErrorCode != "" || resp.ErrorMessage != "" {
		return "", domain.NewUpstreamError("eps", fmt.Errorf("token error: %s (code %s)", resp.ErrorMessage, resp.ErrorCode))
	}

	if resp.Token == "" {
		return "", domain.NewUpstreamError("eps", fmt.Errorf("no token in response"))
	}

	ttl := c.tokenCacheTTL(resp.ExpireDate)
	if c.cache != nil {
		if err := c.cache.Set(ctx, tokenCacheKey, []byte(resp.Token), ttl); err != nil {
			log.Warn().Err(err).Msg("failed to cache eps token")
		}
	}

	return resp.Token, nil
}

func (c *Client) tokenCacheTTL(expireDate string) time.Duration {
	if expireDate == "" {
		return defaultTokenExpiry
	}

	expiry, err := parseExpireDate(expireDate)
	if err != nil {
		log.Warn().Err(err).Str("expire_date", expireDate).Msg("unparsable eps token expiry, using default")

		return defaultTokenExpiry
	}

	ttl := expiry.Sub(c.now()) - tokenExpiryBuffer
	if ttl < minTokenCacheTTL {
		ttl = minTokenCacheTTL
	}

	return ttl
}

type initializeResponse struct {
	TransactionID string `json:"TransactionId"`
	RedirectURL   string `json:"RedirectURL"`
	ErrorCode     string `json:"ErrorCode"`
	ErrorMessage  string `json:"ErrorMessage"`
}

// Initialize opens a checkout session and returns the gateway transaction id
// plus the URL the customer must be redirected to.
func (c *Client) Initialize(ctx context.Context, p domain.InitializePaymentParams) (domain.PaymentSession, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return domain.PaymentSession{}, err
	}

	payload := c.initializePayload(p)

	var resp initializeResponse
	xHash := GenerateHash(p.MerchantTransactionID, c.config.HashKey)
	if err := c.post(ctx, "/EPSEngine/InitializeEPS", xHash, token, payload, &resp); err != nil {
		return domain.PaymentSession{}, err
	}

	if resp.ErrorCode != "" || resp.ErrorMessage != "" {
		return domain.PaymentSession{}, domain.NewUpstreamError("eps", fmt.Errorf("initialize error: %s (code %s)", resp.ErrorMessage, resp.ErrorCode))
	}

	if resp.TransactionID == "" || resp.RedirectURL == "" {
		return domain.PaymentSession{}, domain.NewUpstreamError("eps", fmt.Errorf("initialize response missing transaction id or redirect url"))
	}

	return domain.PaymentSession{
		MerchantTransactionID: p.MerchantTransactionID,
		GatewayTransactionID:  resp.TransactionID,
		RedirectURL:           resp.RedirectURL,
	}, nil
}

func (c *Client) initializePayload(p domain.InitializePaymentParams) map[string]any {
	customer := p.Customer
	if customer.Phone == "" {
		customer.Phone = "01700000000"
	}
	if customer.Address == "" {
		customer.Address = "Dhaka, Bangladesh"
	}
	if customer.City == "" {
		customer.City = "Dhaka"
	}
	if customer.State == "" {
		customer.State = "Dhaka"
	}
	if customer.Postcode == "" {
		customer.Postcode = "1000"
	}
	if customer.Country == "" {
		customer.Country = "BD"
	}

	productName := p.ProductName
	if productName == "" {
		productName = "Digital Product"
	}
	productCategory := p.ProductCategory
	if productCategory == "" {
		productCategory = "Digital"
	}

	ipAddress := p.IPAddress
	if ipAddress == "" {
		ipAddress = "103.12.45.69"
	}

	amount := p.Amount.StringFixed(2)

	return map[string]any{
		"storeId":               c.config.StoreID,
		"merchantTransactionId": p.MerchantTransactionID,
		"CustomerOrderId":       p.OrderID,
		"transactionTypeId":     1, // web checkout
		"financialEntityId":     0,
		"transitionStatusId":    0,
		"totalAmount":           amount,
		"ipAddress":             ipAddress,
		"version":               "1",
		"successUrl":            c.config.SuccessURL,
		"failUrl":               c.config.FailURL,
		"cancelUrl":             c.config.CancelURL,
		"customerName":          customer.Name,
		"customerEmail":         customer.Email,
		"customerAddress":       customer.Address,
		"customerAddress2":      "",
		"customerCity":          customer.City,
		"customerState":         customer.State,
		"customerPostcode":      customer.Postcode,
		"customerCountry":       customer.Country,
		"customerPhone":         customer.Phone,
		"shipmentName":          customer.Name,
		"shipmentAddress":       customer.Address,
		"shipmentAddress2":      "",
		"shipmentCity":          customer.City,
		"shipmentState":         customer.State,
		"shipmentPostcode":      customer.Postcode,
		"shipmentCountry":       customer.Country,
		"valueA":                "",
		"valueB":                "",
		"valueC":                "",
		"valueD":                "",
		"shippingMethod":        "NO",
		"noOfItem":              "1",
		"productName":           productName,
		"productProfile":        "general",
		"productCategory":       productCategory,
		"ProductList": []map[string]string{
			{
				"ProductName":     productName,
				"NoOfItem":        "1",
				"ProductProfile":  "general",
				"ProductCategory": productCategory,
				"ProductPrice":    amount,
			},
		},
	}
}

type statusResponse struct {
	Status                string `json:"Status"`
	MerchantTransactionID string `json:"MerchantTransactionId"`
	TransactionID         string `json:"TransactionId"`
	TotalAmount           string `json:"TotalAmount"`
	TransactionDate       string `json:"TransactionDate"`
	TransactionType       string `json:"TransactionType"`
	FinancialEntity       string `json:"FinancialEntity"`
	CustomerName          string `json:"CustomerName"`
	CustomerEmail         string `json:"CustomerEmail"`
	CustomerPhone         string `json:"CustomerPhone"`
	ErrorCode             string `json:"ErrorCode"`
	ErrorMessage          string `json:"ErrorMessage"`
}

// CheckStatus queries the authoritative transaction status from the gateway.
// Error fields in the payload are returned inside the status rather than as
// an error so callers can persist them.
func (c *Client) CheckStatus(ctx context.Context, merchantTransactionID string) (domain.GatewayStatus, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return domain.GatewayStatus{}, err
	}

	endpoint := fmt.Sprintf("%s/EPSEngine/CheckMerchantTransactionStatus?%s", c.config.BaseURL,
		url.Values{"merchantTransactionId": {merchantTransactionID}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.GatewayStatus{}, fmt.Errorf("building status request: %w", err)
	}

	req.Header.Set("x-hash", GenerateHash(merchantTransactionID, c.config.HashKey))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	var resp statusResponse
	if err := c.do(req, &resp); err != nil {
		return domain.GatewayStatus{}, err
	}

	return domain.GatewayStatus{
		Status:                resp.Status,
		MerchantTransactionID: resp.MerchantTransactionID,
		GatewayTransactionID:  resp.TransactionID,
		TotalAmount:           resp.TotalAmount,
		TransactionDate:       resp.TransactionDate,
		TransactionType:       resp.TransactionType,
		FinancialEntity:       resp.FinancialEntity,
		CustomerName:          resp.CustomerName,
		CustomerEmail:         resp.CustomerEmail,
		CustomerPhone:         resp.CustomerPhone,
		ErrorCode:             resp.ErrorCode,
		ErrorMessage:          resp.ErrorMessage,
	}, nil
}

func (c *Client) post(ctx context.Context, path, xHash, bearer string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("x-hash", xHash)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewUpstreamError("eps", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewUpstreamError("eps", fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.NewUpstreamError("eps", fmt.Errorf("%s returned status %d: %s", req.URL.Path, resp.StatusCode, truncate(data, 256)))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return domain.NewUpstreamError("eps", fmt.Errorf("decoding response: %w", err))
		}
	}

	return nil
}

// parseExpireDate handles the gateway's timestamp format, which can carry
// more than six fractional-second digits.
func parseExpireDate(s string) (time.Time, error) {
	normalized := normalizeFractionalSeconds(s)

	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	}

	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, normalized)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, lastErr
}

func normalizeFractionalSeconds(s string) string {
	dot := -1
	for i, r := range s {
		if r == '.' {
			dot = i
			break
		}
	}
	if dot == -1 {
		return s
	}

	end := dot + 1
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}

	frac := s[dot+1 : end]
	if len(frac) > 9 {
		frac = frac[:9]
	}

	return s[:dot+1] + frac + s[end:]
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
