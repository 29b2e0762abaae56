package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

type PurchaseRepository struct {
	pool *pgxpool.Pool
}

const purchaseColumns = `id, user_email, user_name, file_names, payment_method, payment_status,
	amount, trx_number, mobile_number, note, active, created_at, updated_at`

func (r *PurchaseRepository) Create(ctx context.Context, p *domain.FilePurchase) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO file_purchases (user_email, user_name, file_names, payment_method, payment_status,
			amount, trx_number, mobile_number, note, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		p.UserEmail, p.UserName, p.FileNames, p.PaymentMethod, p.PaymentStatus,
		p.Amount, p.TrxNumber, p.MobileNumber, p.Note, p.Active, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("inserting purchase: %w", err)
	}
	return nil
}

func (r *PurchaseRepository) GetByID(ctx context.Context, id int64) (*domain.FilePurchase, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+purchaseColumns+`
		FROM file_purchases
		WHERE id = $1`, id)

	return scanPurchase(row)
}

func (r *PurchaseRepository) GetByTrxNumber(ctx context.Context, trx string) (*domain.FilePurchase, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+purchaseColumns+`
		FROM file_purchases
		WHERE trx_number = $1
		ORDER BY created_at DESC
		LIMIT 1`, trx)

	return scanPurchase(row)
}

func (r *PurchaseRepository) Update(ctx context.Context, p *domain.FilePurchase) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE file_purchases SET
			payment_method = $2,
			payment_status = $3,
			trx_number = $4,
			note = $5,
			active = $6,
			updated_at = $7
		WHERE id = $1`,
		p.ID, p.PaymentMethod, p.PaymentStatus, p.TrxNumber, p.Note, p.Active, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating purchase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoRows
	}
	return nil
}

func (r *PurchaseRepository) ListByUser(ctx context.Context, email string) ([]*domain.FilePurchase, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+purchaseColumns+`
		FROM file_purchases
		WHERE user_email = $1
		ORDER BY created_at DESC`, email)
	if err != nil {
		return nil, fmt.Errorf("querying purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*domain.FilePurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func (r *PurchaseRepository) FindPendingByAmountWindow(ctx context.Context, email string, amount decimal.Decimal, ts time.Time, window time.Duration) ([]*domain.FilePurchase, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+purchaseColumns+`
		FROM file_purchases
		WHERE user_email = $1
		  AND amount = $2
		  AND payment_status = $3
		  AND created_at BETWEEN $4 AND $5
		ORDER BY created_at DESC`,
		email, amount, domain.PaymentPending, ts.Add(-window), ts.Add(window))
	if err != nil {
		return nil, fmt.Errorf("querying purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*domain.FilePurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func scanPurchase(row pgx.Row) (*domain.FilePurchase, error) {
	var p domain.FilePurchase

	err := row.Scan(
		&p.ID, &p.UserEmail, &p.UserName, &p.FileNames, &p.PaymentMethod, &p.PaymentStatus,
		&p.Amount, &p.TrxNumber, &p.MobileNumber, &p.Note, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scanning purchase: %w", err)
	}
	return &p, nil
}
