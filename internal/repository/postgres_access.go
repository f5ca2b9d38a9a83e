package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vetorial-dashboard/internal/domain"

	"github.com/lib/pq"
)

// PostgresUsersRepository users 表
type PostgresUsersRepository struct {
	db *sql.DB
}

func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

var _ UsersRepository = (*PostgresUsersRepository)(nil)

// GetUser 根据 id 获取用户
func (r *PostgresUsersRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is empty: %w", ErrNotFound)
	}

	var u domain.User
	var name, accessLevelID sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id::text, name, role, access_level_id::text, active
		 FROM users WHERE id::text = $1`,
		userID,
	).Scan(&u.ID, &name, &u.Role, &accessLevelID, &u.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Name = name.String
	u.AccessLevelID = accessLevelID.String
	return &u, nil
}

// PostgresAccessGrantsRepository access_grants 表
type PostgresAccessGrantsRepository struct {
	db *sql.DB
}

func NewPostgresAccessGrantsRepository(db *sql.DB) *PostgresAccessGrantsRepository {
	return &PostgresAccessGrantsRepository{db: db}
}

var _ AccessGrantsRepository = (*PostgresAccessGrantsRepository)(nil)

// ListGrantsByUser 查询用户的全部授权
func (r *PostgresAccessGrantsRepository) ListGrantsByUser(ctx context.Context, userID string) ([]domain.AccessGrant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id::text, locality_id::text FROM access_grants WHERE user_id::text = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query access grants: %w", err)
	}
	defer rows.Close()

	var out []domain.AccessGrant
	for rows.Next() {
		var g domain.AccessGrant
		if err := rows.Scan(&g.UserID, &g.LocalityID); err != nil {
			return nil, fmt.Errorf("failed to scan access grant: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GrantAccess 授权（已存在则忽略）
func (r *PostgresAccessGrantsRepository) GrantAccess(ctx context.Context, userID, localityID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_grants (user_id, locality_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, locality_id) DO NOTHING`,
		userID, localityID,
	)
	if err != nil {
		return fmt.Errorf("failed to grant access: %w", err)
	}
	return nil
}

// RevokeAccess 撤销授权
func (r *PostgresAccessGrantsRepository) RevokeAccess(ctx context.Context, userID, localityID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM access_grants WHERE user_id::text = $1 AND locality_id::text = $2`,
		userID, localityID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke access: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("grant %s/%s: %w", userID, localityID, ErrNotFound)
	}
	return nil
}

// PostgresAccessLevelsRepository access_levels 表（permissions 为 TEXT[]）
type PostgresAccessLevelsRepository struct {
	db *sql.DB
}

func NewPostgresAccessLevelsRepository(db *sql.DB) *PostgresAccessLevelsRepository {
	return &PostgresAccessLevelsRepository{db: db}
}

var _ AccessLevelsRepository = (*PostgresAccessLevelsRepository)(nil)

// ListAccessLevels 全部访问级别
func (r *PostgresAccessLevelsRepository) ListAccessLevels(ctx context.Context) ([]domain.AccessLevel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id::text, name, COALESCE(description, ''), permissions FROM access_levels ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query access levels: %w", err)
	}
	defer rows.Close()

	var out []domain.AccessLevel
	for rows.Next() {
		var l domain.AccessLevel
		var perms pq.StringArray
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &perms); err != nil {
			return nil, fmt.Errorf("failed to scan access level: %w", err)
		}
		l.Permissions = []string(perms)
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetAccessLevel 根据 id 获取访问级别
func (r *PostgresAccessLevelsRepository) GetAccessLevel(ctx context.Context, id string) (*domain.AccessLevel, error) {
	var l domain.AccessLevel
	var perms pq.StringArray
	err := r.db.QueryRowContext(ctx,
		`SELECT id::text, name, COALESCE(description, ''), permissions FROM access_levels WHERE id::text = $1`,
		id,
	).Scan(&l.ID, &l.Name, &l.Description, &perms)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("access level %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get access level: %w", err)
	}
	l.Permissions = []string(perms)
	return &l, nil
}

// NewPostgresStore 组装全部 PostgreSQL 仓储
func NewPostgresStore(db *sql.DB) *Store {
	return &Store{
		Records:      NewPostgresRecordsRepository(db),
		Localities:   NewPostgresLocalitiesRepository(db),
		Users:        NewPostgresUsersRepository(db),
		Grants:       NewPostgresAccessGrantsRepository(db),
		AccessLevels: NewPostgresAccessLevelsRepository(db),
	}
}
