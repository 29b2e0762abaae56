package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

type WebhookLogRepository struct {
	pool *pgxpool.Pool
}

func (r *WebhookLogRepository) Create(ctx context.Context, l *domain.WebhookLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}

	headers, err := json.Marshal(l.Headers)
	if err != nil {
		return fmt.Errorf("marshaling headers: %w", err)
	}
	query, err := json.Marshal(l.QueryParams)
	if err != nil {
		return fmt.Errorf("marshaling query params: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO webhook_logs (id, method, url, headers, body, query_params,
			ip_address, user_agent, response_status, processed, processing_errors,
			transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		l.ID, l.Method, l.URL, headers, l.Body, query,
		l.IPAddress, l.UserAgent, l.ResponseStatus, l.Processed, l.ProcessingErrors,
		l.TransactionID, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting webhook log: %w", err)
	}
	return nil
}

func (r *WebhookLogRepository) Update(ctx context.Context, l *domain.WebhookLog) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE webhook_logs SET
			response_status = $2,
			processed = $3,
			processing_errors = $4,
			transaction_id = $5
		WHERE id = $1`,
		l.ID, l.ResponseStatus, l.Processed, l.ProcessingErrors, l.TransactionID,
	)
	if err != nil {
		return fmt.Errorf("updating webhook log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoRows
	}
	return nil
}
