package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "pending"
	TransactionProcessing TransactionStatus = "processing"
	TransactionCompleted  TransactionStatus = "completed"
	TransactionFailed     TransactionStatus = "failed"
	TransactionCancelled  TransactionStatus = "cancelled"
	TransactionRefunded   TransactionStatus = "refunded"
)

// IsTerminal reports whether the status is a sink of the state machine.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionCompleted, TransactionFailed, TransactionCancelled, TransactionRefunded:
		return true
	}
	return false
}

type OrderType string

const (
	OrderTypeFile    OrderType = "file"
	OrderTypePackage OrderType = "package"
)

// Customer is the payer identity attached to a transaction.
type Customer struct {
	Name     string
	Email    string
	Phone    string
	Address  string
	City     string
	State    string
	Postcode string
	Country  string
}

// PaymentTransaction is one external payment attempt and its authoritative
// status, independent of which order type it funds.
type PaymentTransaction struct {
	ID                    string
	MerchantTransactionID string
	GatewayTransactionID  string
	OrderID               string
	OrderType             OrderType
	PaymentMethod         PaymentMethod
	Amount                decimal.Decimal
	Currency              string
	Status                TransactionStatus
	PaymentStatus         string
	Customer              Customer
	ProductName           string
	RedirectURL           string
	CallbackPayload       []byte
	ErrorCode             string
	ErrorMessage          string
	Verified              bool
	VerificationAttempts  int
	LastVerificationAt    *time.Time
	IPAddress             string
	UserAgent             string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	CompletedAt           *time.Time
}

// GatewayStatus is the raw result of a gateway status-check call.
type GatewayStatus struct {
	Status                string
	MerchantTransactionID string
	GatewayTransactionID  string
	TotalAmount           string
	TransactionDate       string
	TransactionType       string
	FinancialEntity       string
	CustomerName          string
	CustomerEmail         string
	CustomerPhone         string
	ErrorCode             string
	ErrorMessage          string
}

// PaymentSession is the result of initializing a payment with a gateway.
type PaymentSession struct {
	MerchantTransactionID string
	GatewayTransactionID  string
	RedirectURL           string
}

// InitializePaymentParams carries everything a gateway needs to open a
// checkout session.
type InitializePaymentParams struct {
	MerchantTransactionID string
	OrderID               string
	Amount                decimal.Decimal
	Customer              Customer
	ProductName           string
	ProductCategory       string
	IPAddress             string
}

// PaymentGateway abstracts the EPS-style initialize/check-status protocol.
type PaymentGateway interface {
	Initialize(ctx context.Context, p InitializePaymentParams) (PaymentSession, error)
	CheckStatus(ctx context.Context, merchantTransactionID string) (GatewayStatus, error)
}

// VerificationResult reports the outcome of one ledger verification pass.
type VerificationResult struct {
	Status        TransactionStatus
	RawStatus     string
	Changed       bool
	Gateway       GatewayStatus
	AttemptNumber int
}

// WebhookLog is the durable audit record written for every callback delivery
// before any processing happens.
type WebhookLog struct {
	ID               string
	Method           string
	URL              string
	Headers          map[string]string
	Body             string
	QueryParams      map[string]string
	IPAddress        string
	UserAgent        string
	ResponseStatus   int
	Processed        bool
	ProcessingErrors string
	TransactionID    string
	CreatedAt        time.Time
}
