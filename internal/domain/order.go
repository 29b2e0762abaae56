package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentDelivered PaymentStatus = "delivered"
)

type PaymentMethod string

const (
	PaymentMethodBkash      PaymentMethod = "bkash"
	PaymentMethodEPS        PaymentMethod = "eps"
	PaymentMethodUddoktapay PaymentMethod = "uddoktapay"
	PaymentMethodFree       PaymentMethod = "free"
)

// FilePurchase is a per-file order: access to a set of named mouza map files.
type FilePurchase struct {
	ID            int64
	UserEmail     string
	UserName      string
	FileNames     []string
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	Amount        decimal.Decimal
	TrxNumber     string
	MobileNumber  string
	Note          string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type PackageType string

const (
	PackageTypeRegular   PackageType = "regular"
	PackageTypeProSeller PackageType = "proseller"
)

type DurationType string

const (
	DurationMonthly  DurationType = "monthly"
	DurationYearly   DurationType = "yearly"
	DurationLifetime DurationType = "lifetime"
)

// Package is a purchasable subscription definition. DurationDays of zero
// means lifetime; DailyOrderLimit of zero means unlimited.
type Package struct {
	ID              int64
	Name            string
	PackageType     PackageType
	DurationType    DurationType
	Price           decimal.Decimal
	DurationDays    int
	DailyOrderLimit int
	Description     string
	Active          bool
	Popular         bool
	SortOrder       int
	CreatedAt       time.Time
}

type SubscriptionStatus string

const (
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionFailed    SubscriptionStatus = "failed"
)

// UserPackage ties a user to a Package with a validity window and daily
// usage counters.
type UserPackage struct {
	ID              int64
	UserEmail       string
	Package         Package
	Status          SubscriptionStatus
	StartDate       *time.Time
	EndDate         *time.Time
	AmountPaid      decimal.Decimal
	PaymentMethod   PaymentMethod
	TransactionID   string
	GatewayResponse []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsActiveAt reports whether the subscription is usable at the given instant.
// A subscription past its end date is no longer active even when its stored
// status has not been rolled over to expired yet.
func (u *UserPackage) IsActiveAt(now time.Time) bool {
	if u.Status != SubscriptionActive {
		return false
	}
	if u.EndDate != nil && now.After(*u.EndDate) {
		return false
	}
	return true
}

// Activate opens the validity window. Lifetime packages get no end date.
func (u *UserPackage) Activate(now time.Time) {
	u.Status = SubscriptionActive
	start := now
	u.StartDate = &start
	if u.Package.DurationDays > 0 {
		end := now.AddDate(0, 0, u.Package.DurationDays)
		u.EndDate = &end
	} else {
		u.EndDate = nil
	}
}

// DailyOrderUsage counts orders consumed by a subscription on one calendar
// day. Rows are unique per (subscription, date); date rollover creates a new
// row rather than resetting a counter.
type DailyOrderUsage struct {
	ID            int64
	UserPackageID int64
	Date          time.Time
	OrdersUsed    int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CanOrder reports whether n more orders fit under the daily limit. A zero
// limit means unlimited.
func (d *DailyOrderUsage) CanOrder(n, dailyLimit int) bool {
	if dailyLimit == 0 {
		return true
	}
	return d.OrdersUsed+n <= dailyLimit
}

// DailyOrderStatus is the quota snapshot returned to clients.
type DailyOrderStatus struct {
	Date        string `json:"date"`
	DailyLimit  int    `json:"daily_limit"`
	OrdersUsed  int    `json:"orders_used"`
	Remaining   int    `json:"remaining"`
	IsUnlimited bool   `json:"is_unlimited"`
	PackageName string `json:"package_name,omitempty"`
	PackageType string `json:"package_type,omitempty"`
}

// OrderRefKind tags the variant of a resolved order reference.
type OrderRefKind int

const (
	OrderRefUnresolved OrderRefKind = iota
	OrderRefFile
	OrderRefPackage
)

// OrderRef is the tagged result of decoding or resolving a transaction's
// order reference.
type OrderRef struct {
	Kind OrderRefKind
	ID   int64
}

func (r OrderRef) Resolved() bool { return r.Kind != OrderRefUnresolved }
