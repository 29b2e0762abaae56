package bkash

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

type memoryCache struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.values[key]
	return value, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func newTestGateway(t *testing.T, handler http.Handler) (*Gateway, *memoryCache) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientDependencies{
		Config: Config{
			AppKey:      "app-key",
			AppSecret:   "app-secret",
			Username:    "merchant",
			Password:    "secret",
			Sandbox:     true,
			CallbackURL: "https://api.example.com/callback",
		},
		HTTPClient: server.Client(),
	})
	require.NoError(t, err)
	client.WithBaseURL(server.URL)

	cache := newMemoryCache()
	return NewGateway(GatewayDependencies{Client: client, Cache: cache}), cache
}

func bkashHandler(t *testing.T, executeStatus string) http.Handler {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token/grant", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "merchant", r.Header.Get("username"))
		json.NewEncoder(w).Encode(map[string]string{"id_token": "token-1", "statusCode": "0000"})
	})
	mux.HandleFunc("/create", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "0011", body["mode"])
		assert.Equal(t, "500.00", body["amount"])

		json.NewEncoder(w).Encode(map[string]string{
			"paymentID":  "TR0011abc",
			"bkashURL":   "https://sandbox.bka.sh/checkout/TR0011abc",
			"statusCode": "0000",
		})
	})
	mux.HandleFunc("/execute", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "TR0011abc", body["paymentID"])

		json.NewEncoder(w).Encode(map[string]string{
			"paymentID":         "TR0011abc",
			"trxID":             "8FJ2LK9A",
			"transactionStatus": executeStatus,
			"amount":            "500.00",
			"statusCode":        "0000",
		})
	})
	return mux
}

func TestGatewayInitializeStoresPaymentID(t *testing.T) {
	gateway, cache := newTestGateway(t, bkashHandler(t, "Completed"))

	session, err := gateway.Initialize(context.Background(), domain.InitializePaymentParams{
		MerchantTransactionID: "EPS-1-abc",
		Amount:                decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	assert.Equal(t, "https://sandbox.bka.sh/checkout/TR0011abc", session.RedirectURL)
	assert.Equal(t, "TR0011abc", session.GatewayTransactionID)

	stored, ok, err := cache.Get(context.Background(), "bkash_payment_EPS-1-abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "TR0011abc", string(stored))
}

func TestGatewayCheckStatusCompleted(t *testing.T) {
	gateway, _ := newTestGateway(t, bkashHandler(t, "Completed"))

	_, err := gateway.Initialize(context.Background(), domain.InitializePaymentParams{
		MerchantTransactionID: "EPS-1-abc",
		Amount:                decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	status, err := gateway.CheckStatus(context.Background(), "EPS-1-abc")
	require.NoError(t, err)

	assert.Equal(t, "success", status.Status)
	assert.Equal(t, "8FJ2LK9A", status.GatewayTransactionID)
	assert.Empty(t, status.ErrorCode)
}

func TestGatewayCheckStatusFailed(t *testing.T) {
	gateway, _ := newTestGateway(t, bkashHandler(t, "Failed"))

	_, err := gateway.Initialize(context.Background(), domain.InitializePaymentParams{
		MerchantTransactionID: "EPS-1-abc",
		Amount:                decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	status, err := gateway.CheckStatus(context.Background(), "EPS-1-abc")
	require.NoError(t, err)

	assert.Equal(t, "failed", status.Status)
}

func TestGatewayCheckStatusUnknownSession(t *testing.T) {
	gateway, _ := newTestGateway(t, bkashHandler(t, "Completed"))

	_, err := gateway.CheckStatus(context.Background(), "EPS-9-zzz")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}
