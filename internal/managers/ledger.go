package managers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

// Ledger owns PaymentTransaction records: it creates them at checkout
// initiation and verifies them against the gateway's authoritative status.
type Ledger struct {
	transactions domain.TransactionRepository
	gateway      domain.PaymentGateway
	gateways     map[domain.PaymentMethod]domain.PaymentGateway
	now          func() time.Time
}

type LedgerDependencies struct {
	Transactions domain.TransactionRepository
	Gateway      domain.PaymentGateway
	// Gateways overrides the default gateway per payment method.
	Gateways map[domain.PaymentMethod]domain.PaymentGateway
	Now      func() time.Time
}

func NewLedger(deps LedgerDependencies) *Ledger {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Ledger{
		transactions: deps.Transactions,
		gateway:      deps.Gateway,
		gateways:     deps.Gateways,
		now:          now,
	}
}

func (l *Ledger) gatewayFor(method domain.PaymentMethod) domain.PaymentGateway {
	if gateway, ok := l.gateways[method]; ok {
		return gateway
	}
	return l.gateway
}

type CreateTransactionParams struct {
	MerchantTransactionID string
	GatewayTransactionID  string
	OrderID               string
	OrderType             domain.OrderType
	Method                domain.PaymentMethod
	Amount                decimal.Decimal
	Customer              domain.Customer
	ProductName           string
	RedirectURL           string
	IPAddress             string
	UserAgent             string
}

// Create records a fresh pending transaction. The merchant transaction id is
// minted once by the caller and never reused.
func (l *Ledger) Create(ctx context.Context, p CreateTransactionParams) (*domain.PaymentTransaction, error) {
	if p.MerchantTransactionID == "" {
		return nil, domain.NewValidationError("merchant_transaction_id", "merchant transaction id is required")
	}

	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}

	method := p.Method
	if method == "" {
		method = domain.PaymentMethodEPS
	}

	now := l.now()
	txn := &domain.PaymentTransaction{
		MerchantTransactionID: p.MerchantTransactionID,
		GatewayTransactionID:  p.GatewayTransactionID,
		OrderID:               p.OrderID,
		OrderType:             p.OrderType,
		PaymentMethod:         method,
		Amount:                p.Amount,
		Currency:              "BDT",
		Status:                domain.TransactionPending,
		PaymentStatus:         "PENDING",
		Customer:              p.Customer,
		ProductName:           p.ProductName,
		RedirectURL:           p.RedirectURL,
		IPAddress:             p.IPAddress,
		UserAgent:             p.UserAgent,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := l.transactions.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("creating transaction: %w", err)
	}

	return txn, nil
}

// Get returns a transaction by its merchant transaction id.
func (l *Ledger) Get(ctx context.Context, merchantTransactionID string) (*domain.PaymentTransaction, error) {
	txn, err := l.transactions.GetByMerchantTransactionID(ctx, merchantTransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNoRows) {
			return nil, domain.NewNotFoundError("transaction", merchantTransactionID)
		}

		return nil, fmt.Errorf("loading transaction: %w", err)
	}

	return txn, nil
}

// Verify fetches the gateway's authoritative status and applies it to the
// stored transaction. Every call bumps the attempt counter and the
// verification timestamp, whether or not the mapped status changed, so
// repeated verification is idempotent beyond those counters.
func (l *Ledger) Verify(ctx context.Context, merchantTransactionID string) (domain.VerificationResult, error) {
	txn, err := l.Get(ctx, merchantTransactionID)
	if err != nil {
		return domain.VerificationResult{}, err
	}

	gatewayStatus, err := l.gatewayFor(txn.PaymentMethod).CheckStatus(ctx, merchantTransactionID)

	now := l.now()
	txn.VerificationAttempts++
	txn.LastVerificationAt = &now
	txn.UpdatedAt = now

	if err != nil {
		if updateErr := l.transactions.Update(ctx, txn); updateErr != nil {
			log.Error().Err(updateErr).Str("merchant_transaction_id", merchantTransactionID).Msg("failed to persist verification attempt")
		}

		return domain.VerificationResult{}, err
	}

	if gatewayStatus.ErrorCode != "" || gatewayStatus.ErrorMessage != "" {
		txn.ErrorCode = gatewayStatus.ErrorCode
		txn.ErrorMessage = gatewayStatus.ErrorMessage
	}

	mapped := MapGatewayStatus(gatewayStatus.Status)
	changed := false

	if mapped != "" && mapped != txn.Status {
		txn.Status = mapped
		changed = true

		if mapped == domain.TransactionCompleted {
			completedAt := now
			txn.CompletedAt = &completedAt
		}
	}

	txn.PaymentStatus = gatewayStatus.Status
	txn.Verified = true
	if gatewayStatus.GatewayTransactionID != "" {
		txn.GatewayTransactionID = gatewayStatus.GatewayTransactionID
	}

	if err := l.transactions.Update(ctx, txn); err != nil {
		return domain.VerificationResult{}, fmt.Errorf("updating transaction: %w", err)
	}

	return domain.VerificationResult{
		Status:        txn.Status,
		RawStatus:     gatewayStatus.Status,
		Changed:       changed,
		Gateway:       gatewayStatus,
		AttemptNumber: txn.VerificationAttempts,
	}, nil
}

// MapGatewayStatus folds the gateway's free-text status into the transaction
// taxonomy. Unrecognized statuses map to the empty string, which leaves the
// stored status untouched.
func MapGatewayStatus(raw string) domain.TransactionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "completed":
		return domain.TransactionCompleted
	case "failed", "fail":
		return domain.TransactionFailed
	case "cancelled", "cancel":
		return domain.TransactionCancelled
	default:
		return ""
	}
}
