package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoRows is returned by repositories when a lookup matches nothing.
var ErrNoRows = errors.New("no matching rows")

type TransactionRepository interface {
	Create(ctx context.Context, txn *PaymentTransaction) error
	GetByMerchantTransactionID(ctx context.Context, id string) (*PaymentTransaction, error)
	Update(ctx context.Context, txn *PaymentTransaction) error
}

type PurchaseRepository interface {
	Create(ctx context.Context, p *FilePurchase) error
	GetByID(ctx context.Context, id int64) (*FilePurchase, error)
	GetByTrxNumber(ctx context.Context, trx string) (*FilePurchase, error)
	Update(ctx context.Context, p *FilePurchase) error
	ListByUser(ctx context.Context, email string) ([]*FilePurchase, error)
	// FindPendingByAmountWindow supports the last-resort resolver: pending
	// purchases for the given user email and amount created within the
	// window around ts, newest first.
	FindPendingByAmountWindow(ctx context.Context, email string, amount decimal.Decimal, ts time.Time, window time.Duration) ([]*FilePurchase, error)
}

type PackageRepository interface {
	List(ctx context.Context) ([]*Package, error)
	GetByID(ctx context.Context, id int64) (*Package, error)
}

type SubscriptionRepository interface {
	Create(ctx context.Context, s *UserPackage) error
	GetByID(ctx context.Context, id int64) (*UserPackage, error)
	Update(ctx context.Context, s *UserPackage) error
	Delete(ctx context.Context, id int64) error
	// ActiveByUser returns the user's active subscription of the given
	// package type, or ErrNoRows.
	ActiveByUser(ctx context.Context, email string, packageType PackageType) (*UserPackage, error)
	ListByUser(ctx context.Context, email string) ([]*UserPackage, error)
	// DeleteStalePending removes pending subscriptions older than cutoff
	// and returns how many were removed.
	DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error)

	// Daily usage rows live with subscriptions: one row per day per subscription.
	GetUsage(ctx context.Context, userPackageID int64, day time.Time) (*DailyOrderUsage, error)
	IncrementUsage(ctx context.Context, userPackageID int64, day time.Time, n int) (*DailyOrderUsage, error)
	ListUsage(ctx context.Context, userPackageID int64, days int) ([]*DailyOrderUsage, error)
}

type WebhookLogRepository interface {
	Create(ctx context.Context, l *WebhookLog) error
	Update(ctx context.Context, l *WebhookLog) error
}

// Mailer sends transactional mail. Implementations must not block callers on
// delivery outcome beyond the request itself.
type Mailer interface {
	SendReceipt(ctx context.Context, to, subject, htmlBody string) error
}
