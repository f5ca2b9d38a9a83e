package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"vetorial-dashboard/internal/domain"
)

// PostgresLocalitiesRepository localities 表的 PostgreSQL 实现
type PostgresLocalitiesRepository struct {
	db *sql.DB
}

// NewPostgresLocalitiesRepository 创建 localities Repository
func NewPostgresLocalitiesRepository(db *sql.DB) *PostgresLocalitiesRepository {
	return &PostgresLocalitiesRepository{db: db}
}

var _ LocalitiesRepository = (*PostgresLocalitiesRepository)(nil)

// GetLocalityByName 按名称查询
func (r *PostgresLocalitiesRepository) GetLocalityByName(ctx context.Context, name string) (*domain.Locality, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("locality name is empty: %w", ErrNotFound)
	}
	return r.getOne(ctx, `SELECT id::text, name, active FROM localities WHERE name = $1`, name)
}

// GetLocalityByID 按 id 查询
func (r *PostgresLocalitiesRepository) GetLocalityByID(ctx context.Context, id string) (*domain.Locality, error) {
	if id == "" {
		return nil, fmt.Errorf("locality id is empty: %w", ErrNotFound)
	}
	return r.getOne(ctx, `SELECT id::text, name, active FROM localities WHERE id::text = $1`, id)
}

func (r *PostgresLocalitiesRepository) getOne(ctx context.Context, query string, arg string) (*domain.Locality, error) {
	var l domain.Locality
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&l.ID, &l.Name, &l.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("locality %q: %w", arg, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get locality: %w", err)
	}
	return &l, nil
}

// ListLocalities 全部辖区（含停用）
func (r *PostgresLocalitiesRepository) ListLocalities(ctx context.Context) ([]domain.Locality, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id::text, name, active FROM localities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query localities: %w", err)
	}
	defer rows.Close()

	var out []domain.Locality
	for rows.Next() {
		var l domain.Locality
		if err := rows.Scan(&l.ID, &l.Name, &l.Active); err != nil {
			return nil, fmt.Errorf("failed to scan locality: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// EnsureLocality 不存在则创建；name 唯一约束保证并发下只有一行
func (r *PostgresLocalitiesRepository) EnsureLocality(ctx context.Context, name string) (*domain.Locality, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("locality name is required")
	}

	var l domain.Locality
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO localities (name, active)
		 VALUES ($1, TRUE)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id::text, name, active`,
		name,
	).Scan(&l.ID, &l.Name, &l.Active)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure locality: %w", err)
	}
	return &l, nil
}
