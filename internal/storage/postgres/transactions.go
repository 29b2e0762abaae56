package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

type TransactionRepository struct {
	pool *pgxpool.Pool
}

const transactionColumns = `id, merchant_transaction_id, gateway_transaction_id, order_id, order_type,
	payment_method, amount, currency, status, payment_status,
	customer_name, customer_email, customer_phone, customer_address,
	customer_city, customer_state, customer_postcode, customer_country,
	product_name, redirect_url, callback_payload, error_code, error_message,
	verified, verification_attempts, last_verification_at,
	ip_address, user_agent, created_at, updated_at, completed_at`

func (r *TransactionRepository) Create(ctx context.Context, txn *domain.PaymentTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO payment_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)`,
		txn.ID, txn.MerchantTransactionID, txn.GatewayTransactionID, txn.OrderID, txn.OrderType,
		txn.PaymentMethod, txn.Amount, txn.Currency, txn.Status, txn.PaymentStatus,
		txn.Customer.Name, txn.Customer.Email, txn.Customer.Phone, txn.Customer.Address,
		txn.Customer.City, txn.Customer.State, txn.Customer.Postcode, txn.Customer.Country,
		txn.ProductName, txn.RedirectURL, nullableBytes(txn.CallbackPayload), txn.ErrorCode, txn.ErrorMessage,
		txn.Verified, txn.VerificationAttempts, txn.LastVerificationAt,
		txn.IPAddress, txn.UserAgent, txn.CreatedAt, txn.UpdatedAt, txn.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByMerchantTransactionID(ctx context.Context, id string) (*domain.PaymentTransaction, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM payment_transactions
		WHERE merchant_transaction_id = $1`, id)

	return scanTransaction(row)
}

func (r *TransactionRepository) Update(ctx context.Context, txn *domain.PaymentTransaction) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payment_transactions SET
			gateway_transaction_id = $2,
			order_id = $3,
			order_type = $4,
			status = $5,
			payment_status = $6,
			callback_payload = $7,
			error_code = $8,
			error_message = $9,
			verified = $10,
			verification_attempts = $11,
			last_verification_at = $12,
			updated_at = $13,
			completed_at = $14
		WHERE merchant_transaction_id = $1`,
		txn.MerchantTransactionID, txn.GatewayTransactionID, txn.OrderID, txn.OrderType,
		txn.Status, txn.PaymentStatus, nullableBytes(txn.CallbackPayload),
		txn.ErrorCode, txn.ErrorMessage,
		txn.Verified, txn.VerificationAttempts, txn.LastVerificationAt,
		txn.UpdatedAt, txn.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoRows
	}
	return nil
}

func scanTransaction(row pgx.Row) (*domain.PaymentTransaction, error) {
	var txn domain.PaymentTransaction

	err := row.Scan(
		&txn.ID, &txn.MerchantTransactionID, &txn.GatewayTransactionID, &txn.OrderID, &txn.OrderType,
		&txn.PaymentMethod, &txn.Amount, &txn.Currency, &txn.Status, &txn.PaymentStatus,
		&txn.Customer.Name, &txn.Customer.Email, &txn.Customer.Phone, &txn.Customer.Address,
		&txn.Customer.City, &txn.Customer.State, &txn.Customer.Postcode, &txn.Customer.Country,
		&txn.ProductName, &txn.RedirectURL, &txn.CallbackPayload, &txn.ErrorCode, &txn.ErrorMessage,
		&txn.Verified, &txn.VerificationAttempts, &txn.LastVerificationAt,
		&txn.IPAddress, &txn.UserAgent, &txn.CreatedAt, &txn.UpdatedAt, &txn.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scanning transaction: %w", err)
	}
	return &txn, nil
}

// nullableBytes maps an empty payload to SQL NULL so jsonb columns never see
// invalid empty strings.
func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
