package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

const subscriptionColumns = `up.id, up.user_email, up.status, up.start_date, up.end_date,
	up.amount_paid, up.payment_method, up.transaction_id, up.gateway_response,
	up.created_at, up.updated_at,
	p.id, p.name, p.package_type, p.duration_type, p.price, p.duration_days,
	p.daily_order_limit, p.description, p.active, p.popular, p.sort_order, p.created_at`

const subscriptionFrom = `FROM user_packages up JOIN packages p ON p.id = up.package_id`

func (r *SubscriptionRepository) Create(ctx context.Context, s *domain.UserPackage) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO user_packages (user_email, package_id, status, start_date, end_date,
			amount_paid, payment_method, transaction_id, gateway_response, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		s.UserEmail, s.Package.ID, s.Status, s.StartDate, s.EndDate,
		s.AmountPaid, s.PaymentMethod, s.TransactionID, nullableBytes(s.GatewayResponse),
		s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("inserting subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id int64) (*domain.UserPackage, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+` `+subscriptionFrom+`
		WHERE up.id = $1`, id)

	return scanSubscription(row)
}

func (r *SubscriptionRepository) Update(ctx context.Context, s *domain.UserPackage) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_packages SET
			status = $2,
			start_date = $3,
			end_date = $4,
			payment_method = $5,
			transaction_id = $6,
			gateway_response = $7,
			updated_at = $8
		WHERE id = $1`,
		s.ID, s.Status, s.StartDate, s.EndDate,
		s.PaymentMethod, s.TransactionID, nullableBytes(s.GatewayResponse), s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoRows
	}
	return nil
}

func (r *SubscriptionRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_packages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoRows
	}
	return nil
}

func (r *SubscriptionRepository) ActiveByUser(ctx context.Context, email string, packageType domain.PackageType) (*domain.UserPackage, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+` `+subscriptionFrom+`
		WHERE up.user_email = $1
		  AND up.status = $2
		  AND p.package_type = $3
		ORDER BY up.created_at DESC
		LIMIT 1`,
		email, domain.SubscriptionActive, packageType)

	return scanSubscription(row)
}

func (r *SubscriptionRepository) ListByUser(ctx context.Context, email string) ([]*domain.UserPackage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+subscriptionColumns+` `+subscriptionFrom+`
		WHERE up.user_email = $1
		ORDER BY up.created_at DESC`, email)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.UserPackage
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *SubscriptionRepository) DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM user_packages
		WHERE status = $1 AND created_at < $2`,
		domain.SubscriptionPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting stale pending subscriptions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *SubscriptionRepository) GetUsage(ctx context.Context, userPackageID int64, day time.Time) (*domain.DailyOrderUsage, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_package_id, usage_date, orders_used, created_at, updated_at
		FROM daily_order_usages
		WHERE user_package_id = $1 AND usage_date = $2`,
		userPackageID, day)

	return scanUsage(row)
}

func (r *SubscriptionRepository) IncrementUsage(ctx context.Context, userPackageID int64, day time.Time, n int) (*domain.DailyOrderUsage, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO daily_order_usages (user_package_id, usage_date, orders_used)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_package_id, usage_date)
		DO UPDATE SET orders_used = daily_order_usages.orders_used + EXCLUDED.orders_used,
			updated_at = now()
		RETURNING id, user_package_id, usage_date, orders_used, created_at, updated_at`,
		userPackageID, day, n)

	return scanUsage(row)
}

func (r *SubscriptionRepository) ListUsage(ctx context.Context, userPackageID int64, days int) ([]*domain.DailyOrderUsage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_package_id, usage_date, orders_used, created_at, updated_at
		FROM daily_order_usages
		WHERE user_package_id = $1
		ORDER BY usage_date DESC
		LIMIT $2`,
		userPackageID, days)
	if err != nil {
		return nil, fmt.Errorf("querying daily usage: %w", err)
	}
	defer rows.Close()

	var usages []*domain.DailyOrderUsage
	for rows.Next() {
		u, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

func scanSubscription(row pgx.Row) (*domain.UserPackage, error) {
	var s domain.UserPackage

	err := row.Scan(
		&s.ID, &s.UserEmail, &s.Status, &s.StartDate, &s.EndDate,
		&s.AmountPaid, &s.PaymentMethod, &s.TransactionID, &s.GatewayResponse,
		&s.CreatedAt, &s.UpdatedAt,
		&s.Package.ID, &s.Package.Name, &s.Package.PackageType, &s.Package.DurationType,
		&s.Package.Price, &s.Package.DurationDays, &s.Package.DailyOrderLimit,
		&s.Package.Description, &s.Package.Active, &s.Package.Popular,
		&s.Package.SortOrder, &s.Package.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scanning subscription: %w", err)
	}
	return &s, nil
}

func scanUsage(row pgx.Row) (*domain.DailyOrderUsage, error) {
	var u domain.DailyOrderUsage

	err := row.Scan(&u.ID, &u.UserPackageID, &u.Date, &u.OrdersUsed, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scanning daily usage: %w", err)
	}
	return &u, nil
}
