package managers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/bdmouza/mouzadrive/internal/domain"
	"github.com/bdmouza/mouzadrive/pkg/gateways/eps"
)

// Checkout initiates file-purchase payments: it records the pending purchase
// and the pending transaction, then opens the gateway session.
type Checkout struct {
	purchases domain.PurchaseRepository
	ledger    *Ledger
	gateway   domain.PaymentGateway
	gateways  map[domain.PaymentMethod]domain.PaymentGateway
	now       func() time.Time
}

type CheckoutDependencies struct {
	Purchases domain.PurchaseRepository
	Ledger    *Ledger
	Gateway   domain.PaymentGateway
	// Gateways overrides the default gateway per payment method.
	Gateways map[domain.PaymentMethod]domain.PaymentGateway
	Now      func() time.Time
}

func NewCheckout(deps CheckoutDependencies) *Checkout {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Checkout{
		purchases: deps.Purchases,
		ledger:    deps.Ledger,
		gateway:   deps.Gateway,
		gateways:  deps.Gateways,
		now:       now,
	}
}

func (c *Checkout) gatewayFor(method domain.PaymentMethod) domain.PaymentGateway {
	if gateway, ok := c.gateways[method]; ok {
		return gateway
	}
	return c.gateway
}

type InitializeFilePaymentParams struct {
	Customer  domain.Customer
	FileNames []string
	Amount    decimal.Decimal
	Method    domain.PaymentMethod
	IPAddress string
	UserAgent string
}

// FilePaymentSession is handed back to the frontend to continue checkout.
type FilePaymentSession struct {
	PaymentURL            string
	MerchantTransactionID string
	PurchaseID            int64
}

// InitializeFilePayment opens a gateway checkout for a set of files. The
// purchase row is created pending and carries the merchant transaction id as
// its trx number, which is how the callback finds it again.
func (c *Checkout) InitializeFilePayment(ctx context.Context, p InitializeFilePaymentParams) (*FilePaymentSession, error) {
	if len(p.FileNames) == 0 {
		return nil, domain.NewValidationError("file_name", "at least one file name is required")
	}
	if p.Customer.Email == "" {
		return nil, domain.NewValidationError("customer_email", "customer email is required")
	}
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}

	now := c.now()
	merchantTransactionID := eps.NewMerchantTransactionID(now)

	purchase := &domain.FilePurchase{
		UserEmail:     p.Customer.Email,
		UserName:      p.Customer.Name,
		FileNames:     p.FileNames,
		PaymentMethod: p.Method,
		PaymentStatus: domain.PaymentPending,
		Amount:        p.Amount,
		TrxNumber:     merchantTransactionID,
		MobileNumber:  p.Customer.Phone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := c.purchases.Create(ctx, purchase); err != nil {
		return nil, fmt.Errorf("creating purchase: %w", err)
	}

	orderID := fmt.Sprintf("ORD-%d", purchase.ID)

	session, err := c.gatewayFor(p.Method).Initialize(ctx, domain.InitializePaymentParams{
		MerchantTransactionID: merchantTransactionID,
		OrderID:               orderID,
		Amount:                p.Amount,
		Customer:              p.Customer,
		ProductName:           fmt.Sprintf("Mouza Map Files (%d)", len(p.FileNames)),
		ProductCategory:       "Digital",
		IPAddress:             p.IPAddress,
	})
	if err != nil {
		purchase.PaymentStatus = domain.PaymentFailed
		purchase.UpdatedAt = c.now()
		if updateErr := c.purchases.Update(ctx, purchase); updateErr != nil {
			log.Error().Err(updateErr).Int64("purchase_id", purchase.ID).Msg("failed to mark purchase failed after gateway refusal")
		}

		return nil, err
	}

	if _, err := c.ledger.Create(ctx, CreateTransactionParams{
		MerchantTransactionID: merchantTransactionID,
		GatewayTransactionID:  session.GatewayTransactionID,
		OrderID:               orderID,
		OrderType:             domain.OrderTypeFile,
		Method:                p.Method,
		Amount:                p.Amount,
		Customer:              p.Customer,
		ProductName:           fmt.Sprintf("Mouza Map Files (%d)", len(p.FileNames)),
		RedirectURL:           session.RedirectURL,
		IPAddress:             p.IPAddress,
		UserAgent:             p.UserAgent,
	}); err != nil {
		log.Error().Err(err).Str("merchant_transaction_id", merchantTransactionID).Msg("failed to record transaction for file purchase")
	}

	return &FilePaymentSession{
		PaymentURL:            session.RedirectURL,
		MerchantTransactionID: merchantTransactionID,
		PurchaseID:            purchase.ID,
	}, nil
}

// UserPurchases lists a user's purchases, newest first.
func (c *Checkout) UserPurchases(ctx context.Context, email string) ([]*domain.FilePurchase, error) {
	purchases, err := c.purchases.ListByUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("listing purchases: %w", err)
	}

	return purchases, nil
}

// PurchasedFileNames collects the file names from the user's confirmed
// purchases, de-duplicated preserving first-seen order.
func (c *Checkout) PurchasedFileNames(ctx context.Context, email string) ([]string, error) {
	purchases, err := c.UserPurchases(ctx, email)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, p := range purchases {
		if p.PaymentStatus != domain.PaymentCompleted && p.PaymentStatus != domain.PaymentDelivered {
			continue
		}
		names = append(names, p.FileNames...)
	}

	return dedupe(names), nil
}
