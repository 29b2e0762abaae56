// Package postgres implements the persistence repositories on PostgreSQL
// via pgx.
package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Store owns the connection pool and hands out repositories bound to it.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// EnsureSchema applies the idempotent DDL. Safe to run on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Transactions() *TransactionRepository { return &TransactionRepository{pool: s.pool} }
func (s *Store) Purchases() *PurchaseRepository       { return &PurchaseRepository{pool: s.pool} }
func (s *Store) Packages() *PackageRepository         { return &PackageRepository{pool: s.pool} }
func (s *Store) Subscriptions() *SubscriptionRepository {
	return &SubscriptionRepository{pool: s.pool}
}
func (s *Store) WebhookLogs() *WebhookLogRepository { return &WebhookLogRepository{pool: s.pool} }
