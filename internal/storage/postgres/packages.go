package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

type PackageRepository struct {
	pool *pgxpool.Pool
}

const packageColumns = `id, name, package_type, duration_type, price, duration_days,
	daily_order_limit, description, active, popular, sort_order, created_at`

func (r *PackageRepository) List(ctx context.Context) ([]*domain.Package, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+packageColumns+`
		FROM packages
		ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("querying packages: %w", err)
	}
	defer rows.Close()

	var packages []*domain.Package
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}

func (r *PackageRepository) GetByID(ctx context.Context, id int64) (*domain.Package, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+packageColumns+`
		FROM packages
		WHERE id = $1`, id)

	return scanPackage(row)
}

func scanPackage(row pgx.Row) (*domain.Package, error) {
	var pkg domain.Package

	err := row.Scan(
		&pkg.ID, &pkg.Name, &pkg.PackageType, &pkg.DurationType, &pkg.Price, &pkg.DurationDays,
		&pkg.DailyOrderLimit, &pkg.Description, &pkg.Active, &pkg.Popular, &pkg.SortOrder, &pkg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("scanning package: %w", err)
	}
	return &pkg, nil
}
