package uddoktapay

import (
	"context"
	"strings"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

// Gateway adapts the hosted checkout client to the generic
// initialize/check-status protocol. The merchant transaction id is used as
// the invoice id, so status checks need no extra state.
type Gateway struct {
	client *Client
}

func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client}
}

func (g *Gateway) Initialize(ctx context.Context, p domain.InitializePaymentParams) (domain.PaymentSession, error) {
	paymentURL, err := g.client.CreatePayment(ctx, p.Customer.Name, p.Customer.Email, p.Amount, p.Customer.Email, p.MerchantTransactionID)
	if err != nil {
		return domain.PaymentSession{}, err
	}

	return domain.PaymentSession{
		MerchantTransactionID: p.MerchantTransactionID,
		RedirectURL:           paymentURL,
	}, nil
}

func (g *Gateway) CheckStatus(ctx context.Context, merchantTransactionID string) (domain.GatewayStatus, error) {
	result, err := g.client.VerifyPayment(ctx, merchantTransactionID)
	if err != nil {
		return domain.GatewayStatus{}, err
	}

	return domain.GatewayStatus{
		Status:                mapInvoiceStatus(result.Status),
		MerchantTransactionID: merchantTransactionID,
		GatewayTransactionID:  result.TransactionID,
		TotalAmount:           result.Amount,
		TransactionDate:       result.Date,
		FinancialEntity:       result.PaymentMethod,
		CustomerName:          result.FullName,
		CustomerEmail:         result.Email,
		CustomerPhone:         result.SenderNumber,
	}, nil
}

func mapInvoiceStatus(status string) string {
	switch strings.ToUpper(status) {
	case "COMPLETED":
		return "success"
	case "PENDING":
		return "pending"
	default:
		return "failed"
	}
}
