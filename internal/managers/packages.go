package managers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bdmouza/mouzadrive/internal/domain"
	"github.com/bdmouza/mouzadrive/pkg/gateways/eps"
)

const stalePendingAge = time.Hour

// PackageManager runs the subscription lifecycle: purchase initiation,
// daily-quota accounting and free-order processing against the quota.
type PackageManager struct {
	packages      domain.PackageRepository
	subscriptions domain.SubscriptionRepository
	purchases     domain.PurchaseRepository
	ledger        *Ledger
	gateway       domain.PaymentGateway
	gateways      map[domain.PaymentMethod]domain.PaymentGateway
	now           func() time.Time
}

type PackageManagerDependencies struct {
	Packages      domain.PackageRepository
	Subscriptions domain.SubscriptionRepository
	Purchases     domain.PurchaseRepository
	Ledger        *Ledger
	Gateway       domain.PaymentGateway
	// Gateways overrides the default gateway per payment method.
	Gateways map[domain.PaymentMethod]domain.PaymentGateway
	Now      func() time.Time
}

func NewPackageManager(deps PackageManagerDependencies) *PackageManager {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &PackageManager{
		packages:      deps.Packages,
		subscriptions: deps.Subscriptions,
		purchases:     deps.Purchases,
		ledger:        deps.Ledger,
		gateway:       deps.Gateway,
		gateways:      deps.Gateways,
		now:           now,
	}
}

func (m *PackageManager) gatewayFor(method domain.PaymentMethod) domain.PaymentGateway {
	if gateway, ok := m.gateways[method]; ok {
		return gateway
	}
	return m.gateway
}

// ListPackages returns the purchasable package definitions.
func (m *PackageManager) ListPackages(ctx context.Context) ([]*domain.Package, error) {
	packages, err := m.packages.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing packages: %w", err)
	}

	active := packages[:0]
	for _, p := range packages {
		if p.Active {
			active = append(active, p)
		}
	}

	return active, nil
}

// GetPackage returns one active package definition.
func (m *PackageManager) GetPackage(ctx context.Context, id int64) (*domain.Package, error) {
	pkg, err := m.packages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNoRows) {
			return nil, domain.NewNotFoundError("package", fmt.Sprintf("%d", id))
		}

		return nil, fmt.Errorf("loading package: %w", err)
	}

	if !pkg.Active {
		return nil, domain.NewNotFoundError("package", fmt.Sprintf("%d", id))
	}

	return pkg, nil
}

// PurchaseResult is returned by Purchase with everything the frontend needs
// to continue checkout.
type PurchaseResult struct {
	PaymentURL            string
	MerchantTransactionID string
	UserPackageID         int64
	Package               *domain.Package
}

// Purchase initiates a package checkout: a pending subscription row is
// created first, then the gateway session. If the gateway refuses, the
// pending row is rolled back so it cannot block a retry.
func (m *PackageManager) Purchase(ctx context.Context, user domain.Customer, packageID int64, method domain.PaymentMethod) (*PurchaseResult, error) {
	pkg, err := m.GetPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}

	existing, err := m.subscriptions.ActiveByUser(ctx, user.Email, pkg.PackageType)
	if err != nil && !errors.Is(err, domain.ErrNoRows) {
		return nil, fmt.Errorf("checking active subscription: %w", err)
	}
	if existing != nil && existing.Package.ID == pkg.ID && existing.IsActiveAt(m.now()) {
		return nil, domain.NewValidationError("package_id", fmt.Sprintf("you already have an active %s package", pkg.Name))
	}

	now := m.now()
	merchantTransactionID := eps.NewMerchantTransactionID(now)

	sub := &domain.UserPackage{
		UserEmail:     user.Email,
		Package:       *pkg,
		Status:        domain.SubscriptionPending,
		AmountPaid:    pkg.Price,
		PaymentMethod: method,
		TransactionID: merchantTransactionID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := m.subscriptions.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("creating pending subscription: %w", err)
	}

	orderID := fmt.Sprintf("PKG-%d", sub.ID)

	session, err := m.gatewayFor(method).Initialize(ctx, domain.InitializePaymentParams{
		MerchantTransactionID: merchantTransactionID,
		OrderID:               orderID,
		Amount:                pkg.Price,
		Customer:              user,
		ProductName:           fmt.Sprintf("%s Package Purchase", pkg.Name),
		ProductCategory:       "Digital",
	})
	if err != nil {
		// Roll back the pending row so a failed initiation cannot block
		// retries.
		if delErr := m.subscriptions.Delete(ctx, sub.ID); delErr != nil {
			log.Error().Err(delErr).Int64("user_package_id", sub.ID).Msg("failed to roll back pending subscription")
		}

		return nil, err
	}

	if _, err := m.ledger.Create(ctx, CreateTransactionParams{
		MerchantTransactionID: merchantTransactionID,
		GatewayTransactionID:  session.GatewayTransactionID,
		OrderID:               orderID,
		OrderType:             domain.OrderTypePackage,
		Method:                method,
		Amount:                pkg.Price,
		Customer:              user,
		ProductName:           fmt.Sprintf("%s Package Purchase", pkg.Name),
		RedirectURL:           session.RedirectURL,
	}); err != nil {
		log.Error().Err(err).Str("merchant_transaction_id", merchantTransactionID).Msg("failed to record transaction for package purchase")
	}

	return &PurchaseResult{
		PaymentURL:            session.RedirectURL,
		MerchantTransactionID: merchantTransactionID,
		UserPackageID:         sub.ID,
		Package:               pkg,
	}, nil
}

// ActiveSubscription returns the user's currently usable subscription, or a
// NotFoundError when none is active.
func (m *PackageManager) ActiveSubscription(ctx context.Context, email string) (*domain.UserPackage, error) {
	for _, pt := range []domain.PackageType{domain.PackageTypeRegular, domain.PackageTypeProSeller} {
		sub, err := m.subscriptions.ActiveByUser(ctx, email, pt)
		if err != nil {
			if errors.Is(err, domain.ErrNoRows) {
				continue
			}

			return nil, fmt.Errorf("loading subscription: %w", err)
		}

		if sub.IsActiveAt(m.now()) {
			return sub, nil
		}
	}

	return nil, domain.NewNotFoundError("subscription", email)
}

// Subscriptions returns the user's full subscription history.
func (m *PackageManager) Subscriptions(ctx context.Context, email string) ([]*domain.UserPackage, error) {
	subs, err := m.subscriptions.ListByUser(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}

	return subs, nil
}

// DailyStatus reports the quota snapshot for the user's active subscription.
func (m *PackageManager) DailyStatus(ctx context.Context, email string) (*domain.DailyOrderStatus, error) {
	sub, err := m.ActiveSubscription(ctx, email)
	if err != nil {
		return nil, err
	}

	return m.dailyStatus(ctx, sub)
}

func (m *PackageManager) dailyStatus(ctx context.Context, sub *domain.UserPackage) (*domain.DailyOrderStatus, error) {
	day := m.today()

	usage, err := m.subscriptions.GetUsage(ctx, sub.ID, day)
	if err != nil && !errors.Is(err, domain.ErrNoRows) {
		return nil, fmt.Errorf("loading daily usage: %w", err)
	}

	used := 0
	if usage != nil {
		used = usage.OrdersUsed
	}

	limit := sub.Package.DailyOrderLimit
	remaining := 0
	if limit > 0 && limit > used {
		remaining = limit - used
	}

	return &domain.DailyOrderStatus{
		Date:        day.Format("2006-01-02"),
		DailyLimit:  limit,
		OrdersUsed:  used,
		Remaining:   remaining,
		IsUnlimited: limit == 0,
		PackageName: sub.Package.Name,
		PackageType: string(sub.Package.PackageType),
	}, nil
}

// ValidationResult says whether fileCount more orders fit under today's
// quota, after reserving them when they do.
type ValidationResult struct {
	CanOrder    bool
	IsFreeOrder bool
	FileCount   int
	Status      *domain.DailyOrderStatus
}

// ValidateOrder checks the daily quota for fileCount files and reserves the
// slots when the quota allows. Usage is only ever incremented after a
// passing check in the same call.
func (m *PackageManager) ValidateOrder(ctx context.Context, email string, fileCount int) (*ValidationResult, error) {
	if fileCount < 1 {
		fileCount = 1
	}

	sub, err := m.ActiveSubscription(ctx, email)
	if err != nil {
		return nil, err
	}

	status, err := m.dailyStatus(ctx, sub)
	if err != nil {
		return nil, err
	}

	usage := domain.DailyOrderUsage{OrdersUsed: status.OrdersUsed}
	if !usage.CanOrder(fileCount, sub.Package.DailyOrderLimit) {
		return &ValidationResult{CanOrder: false, FileCount: fileCount, Status: status}, nil
	}

	if _, err := m.subscriptions.IncrementUsage(ctx, sub.ID, m.today(), fileCount); err != nil {
		return nil, fmt.Errorf("reserving order slots: %w", err)
	}

	updated, err := m.dailyStatus(ctx, sub)
	if err != nil {
		updated = status
	}

	return &ValidationResult{CanOrder: true, IsFreeOrder: true, FileCount: fileCount, Status: updated}, nil
}

// ProcessFreeOrder consumes quota for the named files and records a
// zero-amount completed purchase so the files show up with the user's paid
// ones.
func (m *PackageManager) ProcessFreeOrder(ctx context.Context, user domain.Customer, fileNames []string) (*domain.FilePurchase, *domain.DailyOrderStatus, error) {
	if len(fileNames) == 0 {
		return nil, nil, domain.NewValidationError("file_name", "at least one file name is required")
	}

	sub, err := m.ActiveSubscription(ctx, user.Email)
	if err != nil {
		return nil, nil, err
	}

	fileCount := len(fileNames)

	status, err := m.dailyStatus(ctx, sub)
	if err != nil {
		return nil, nil, err
	}

	usage := domain.DailyOrderUsage{OrdersUsed: status.OrdersUsed}
	if !usage.CanOrder(fileCount, sub.Package.DailyOrderLimit) {
		return nil, nil, domain.NewValidationError("file_count", "daily limit exceeded")
	}

	if _, err := m.subscriptions.IncrementUsage(ctx, sub.ID, m.today(), fileCount); err != nil {
		return nil, nil, fmt.Errorf("consuming order slots: %w", err)
	}

	now := m.now()
	purchase := &domain.FilePurchase{
		UserEmail:     user.Email,
		UserName:      user.Name,
		FileNames:     fileNames,
		PaymentMethod: domain.PaymentMethodFree,
		PaymentStatus: domain.PaymentCompleted,
		Active:        true,
		MobileNumber:  user.Phone,
		Note:          fmt.Sprintf("Free order processed on %s", now.Format("2006-01-02 15:04:05")),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := m.purchases.Create(ctx, purchase); err != nil {
		// The quota was already consumed; surface the record failure but do
		// not attempt to un-spend slots.
		return nil, nil, fmt.Errorf("recording free order: %w", err)
	}

	updated, err := m.dailyStatus(ctx, sub)
	if err != nil {
		updated = status
	}

	return purchase, updated, nil
}

// UsageHistory returns the last `days` of quota consumption for the user's
// active subscription, newest first.
func (m *PackageManager) UsageHistory(ctx context.Context, email string, days int) ([]*domain.DailyOrderUsage, *domain.UserPackage, error) {
	if days <= 0 {
		days = 30
	}

	sub, err := m.ActiveSubscription(ctx, email)
	if err != nil {
		return nil, nil, err
	}

	history, err := m.subscriptions.ListUsage(ctx, sub.ID, days)
	if err != nil {
		return nil, nil, fmt.Errorf("listing usage history: %w", err)
	}

	return history, sub, nil
}

// CleanupPending removes pending subscriptions older than an hour, left
// behind by checkouts the customer abandoned before paying.
func (m *PackageManager) CleanupPending(ctx context.Context) (int64, error) {
	cutoff := m.now().Add(-stalePendingAge)

	deleted, err := m.subscriptions.DeleteStalePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting stale pending subscriptions: %w", err)
	}

	return deleted, nil
}

func (m *PackageManager) today() time.Time {
	now := m.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
