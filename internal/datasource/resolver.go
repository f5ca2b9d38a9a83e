// Package datasource 按 Record Store → Local Cache → 种子数据 的顺序解析记录来源
package datasource

import (
	"context"
	"errors"
	"fmt"

	"vetorial-dashboard/internal/cache"
	"vetorial-dashboard/internal/domain"
	"vetorial-dashboard/internal/normalizer"
	"vetorial-dashboard/internal/repository"

	"go.uber.org/zap"
)

// Source 本次结果来自哪一层
type Source string

const (
	SourceStore Source = "store"
	SourceCache Source = "cache"
	SourceSeed  Source = "seed"
)

// CacheReader 本地缓存读取（cache.RecordCache 实现）
type CacheReader interface {
	Load(ctx context.Context) ([]domain.Record, error)
}

// Result 一次解析的结果
// Notices 为非致命提示（某层不可用），展示给用户但不视为错误
type Result struct {
	Records []domain.Record `json:"records"`
	Source  Source          `json:"source"`
	Notices []string        `json:"notices,omitempty"`
}

// Resolver 数据源解析器
// records / localities 为 nil 表示未配置存储（DB_ENABLED=false），直接跳过该层
type Resolver struct {
	records    repository.RecordsRepository
	localities repository.LocalitiesRepository
	cache      CacheReader
	seed       func() []domain.Record
	logger     *zap.Logger
}

// NewResolver 创建解析器
func NewResolver(
	records repository.RecordsRepository,
	localities repository.LocalitiesRepository,
	cache CacheReader,
	seed func() []domain.Record,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		records:    records,
		localities: localities,
		cache:      cache,
		seed:       seed,
		logger:     logger,
	}
}

// LoadRecords 返回指定年份的记录，永不失败
func (r *Resolver) LoadRecords(ctx context.Context, year string) []domain.Record {
	return r.Resolve(ctx, year).Records
}

// Resolve 依次尝试各层，每层至多一次，不重试（重试由调用方的“刷新”负责）
// year 为空表示不过滤
func (r *Resolver) Resolve(ctx context.Context, year string) Result {
	var notices []string

	// 1. Record Store：至少 1 行才算成功
	records, err := r.fromStore(ctx, &notices)
	if err != nil {
		r.logger.Warn("Record store unavailable, falling back to local cache",
			zap.String("year", year),
			zap.Error(err),
		)
		notices = append(notices, "Servidor indisponível: exibindo dados locais")
	} else if len(records) > 0 {
		return Result{Records: FilterYear(records, year), Source: SourceStore, Notices: notices}
	}

	// 2. Local Cache：内容已归一化，非空才算成功
	if r.cache != nil {
		cached, err := r.cache.Load(ctx)
		switch {
		case errors.Is(err, cache.ErrCacheMiss):
			r.logger.Debug("Local cache is empty")
		case err != nil:
			r.logger.Warn("Local cache unavailable, falling back to seed data", zap.Error(err))
			notices = append(notices, "Cache local indisponível")
		case len(cached) > 0:
			return Result{Records: FilterYear(cached, year), Source: SourceCache, Notices: notices}
		}
	}

	// 3. 内置种子数据
	var seeded []domain.Record
	if r.seed != nil {
		seeded = r.seed()
	}
	r.logger.Info("Using built-in seed dataset",
		zap.String("year", year),
		zap.Int("record_count", len(seeded)),
	)
	notices = append(notices, "Exibindo dados de demonstração")
	return Result{Records: FilterYear(seeded, year), Source: SourceSeed, Notices: notices}
}

// fromStore 查询全部记录并归一化；0 行返回空列表、nil 错误
func (r *Resolver) fromStore(ctx context.Context, notices *[]string) ([]domain.Record, error) {
	if r.records == nil {
		return nil, nil
	}

	rows, err := r.records.ListRecordRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	if len(rows) == 0 {
		r.logger.Info("Record store returned no rows")
		return nil, nil
	}

	// 一次性构建 id -> name 映射；失败时仍使用存储行（行内可能已带名称）
	names := map[string]string{}
	if r.localities != nil {
		m, err := repository.LocalityNameMap(ctx, r.localities)
		if err != nil {
			r.logger.Warn("Failed to resolve locality names", zap.Error(err))
			*notices = append(*notices, "Nomes de localidades indisponíveis")
		} else {
			names = m
		}
	}

	out := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, normalizer.FromRow(row, names))
	}
	return out, nil
}

// FilterYear 按 startDate 的年份过滤，返回新切片
func FilterYear(records []domain.Record, year string) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if year == "" || rec.Year() == year {
			out = append(out, rec)
		}
	}
	return out
}
