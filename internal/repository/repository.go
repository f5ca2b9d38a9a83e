package repository

import (
	"context"
	"errors"
	"fmt"

	"vetorial-dashboard/internal/domain"
	"vetorial-dashboard/internal/normalizer"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("not found")

// RecordsRepository records 表
// ListRecordRows 返回存储原始行（只带 locality_id），由调用方归一化
type RecordsRepository interface {
	ListRecordRows(ctx context.Context) ([]normalizer.Row, error)
	// GetRecordRow 按 id 读取单行，不存在返回 ErrNotFound
	GetRecordRow(ctx context.Context, id string) (normalizer.Row, error)
	InsertRecord(ctx context.Context, rec domain.Record) (string, error)
	UpdateRecord(ctx context.Context, rec domain.Record) error
}

// LocalitiesRepository localities 表
type LocalitiesRepository interface {
	GetLocalityByName(ctx context.Context, name string) (*domain.Locality, error)
	GetLocalityByID(ctx context.Context, id string) (*domain.Locality, error)
	ListLocalities(ctx context.Context) ([]domain.Locality, error)
	// EnsureLocality 按名称查找，不存在则自动创建（首次引用即创建）
	EnsureLocality(ctx context.Context, name string) (*domain.Locality, error)
}

// UsersRepository users 表
type UsersRepository interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// AccessGrantsRepository access_grants 表
type AccessGrantsRepository interface {
	ListGrantsByUser(ctx context.Context, userID string) ([]domain.AccessGrant, error)
	// GrantAccess 幂等：重复授权不报错
	GrantAccess(ctx context.Context, userID, localityID string) error
	RevokeAccess(ctx context.Context, userID, localityID string) error
}

// AccessLevelsRepository access_levels 表
type AccessLevelsRepository interface {
	ListAccessLevels(ctx context.Context) ([]domain.AccessLevel, error)
	GetAccessLevel(ctx context.Context, id string) (*domain.AccessLevel, error)
}

// Store 一个后端提供的全部仓储
type Store struct {
	Records      RecordsRepository
	Localities   LocalitiesRepository
	Users        UsersRepository
	Grants       AccessGrantsRepository
	AccessLevels AccessLevelsRepository
}

// LocalityNameMap 一次性构建 id -> name 映射（批量，避免逐行查询）
func LocalityNameMap(ctx context.Context, repo LocalitiesRepository) (map[string]string, error) {
	localities, err := repo.ListLocalities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list localities: %w", err)
	}
	names := make(map[string]string, len(localities))
	for _, l := range localities {
		names[l.ID] = l.Name
	}
	return names, nil
}
