package bkash

import (
	"context"
	"fmt"
	"time"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

const (
	paymentIDCachePrefix = "bkash_payment_"
	paymentIDCacheTTL    = 24 * time.Hour
)

// Gateway adapts the tokenized checkout client to the generic
// initialize/check-status protocol. bKash identifies sessions by its own
// payment id, so the mapping from merchant transaction id is kept in the
// shared cache until the callback arrives.
type Gateway struct {
	client *Client
	cache  domain.Cache
}

type GatewayDependencies struct {
	Client *Client
	Cache  domain.Cache
}

func NewGateway(deps GatewayDependencies) *Gateway {
	return &Gateway{
		client: deps.Client,
		cache:  deps.Cache,
	}
}

func (g *Gateway) Initialize(ctx context.Context, p domain.InitializePaymentParams) (domain.PaymentSession, error) {
	redirectURL, paymentID, err := g.client.CreatePayment(ctx, p.Amount, p.MerchantTransactionID)
	if err != nil {
		return domain.PaymentSession{}, err
	}

	cacheKey := paymentIDCachePrefix + p.MerchantTransactionID
	if err := g.cache.Set(ctx, cacheKey, []byte(paymentID), paymentIDCacheTTL); err != nil {
		return domain.PaymentSession{}, fmt.Errorf("storing payment id: %w", err)
	}

	return domain.PaymentSession{
		MerchantTransactionID: p.MerchantTransactionID,
		GatewayTransactionID:  paymentID,
		RedirectURL:           redirectURL,
	}, nil
}

func (g *Gateway) CheckStatus(ctx context.Context, merchantTransactionID string) (domain.GatewayStatus, error) {
	cacheKey := paymentIDCachePrefix + merchantTransactionID

	paymentID, found, err := g.cache.Get(ctx, cacheKey)
	if err != nil {
		return domain.GatewayStatus{}, fmt.Errorf("loading payment id: %w", err)
	}
	if !found {
		return domain.GatewayStatus{}, domain.NewNotFoundError("payment session", merchantTransactionID)
	}

	result, err := g.client.ExecutePayment(ctx, string(paymentID))
	if err != nil {
		return domain.GatewayStatus{}, err
	}

	return domain.GatewayStatus{
		Status:                mapTransactionStatus(result.TransactionStatus),
		MerchantTransactionID: merchantTransactionID,
		GatewayTransactionID:  result.TrxID,
		TotalAmount:           result.Amount,
		CustomerPhone:         result.CustomerMsisdn,
		ErrorCode:             errorCode(result),
		ErrorMessage:          result.StatusMessage,
	}, nil
}

func mapTransactionStatus(status string) string {
	switch status {
	case "Completed":
		return "success"
	case "Initiated":
		return "pending"
	default:
		return "failed"
	}
}

func errorCode(result ExecuteResult) string {
	if result.StatusCode == "0000" {
		return ""
	}
	return result.StatusCode
}
