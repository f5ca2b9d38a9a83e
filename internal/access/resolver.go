// Package access 计算用户可见的辖区集合
//
// 规则：
//   - 管理员角色最先判断，直接可见全部辖区，不查询授权
//   - 没有任何授权 = 什么都不可见（不是“全部可见”）
//   - 任一查询失败都按最严格处理（空集合），并标记 Degraded，由调用方展示受限视图
package access

import (
	"context"
	"errors"
	"sort"

	"vetorial-dashboard/internal/domain"
	"vetorial-dashboard/internal/repository"

	"go.uber.org/zap"
)

// Scope 一次解析得到的可见范围
type Scope struct {
	All        bool            `json:"all"`        // 管理员：全部辖区
	Localities map[string]bool `json:"-"`          // 辖区名集合
	Degraded   bool            `json:"restricted"` // 解析失败，已按最严格处理
}

// Contains 某个辖区是否可见
func (s Scope) Contains(localityName string) bool {
	return s.All || s.Localities[localityName]
}

// Names 排序后的辖区名列表
func (s Scope) Names() []string {
	names := make([]string, 0, len(s.Localities))
	for n := range s.Localities {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Filter 只保留可见辖区的记录，返回新切片
func (s Scope) Filter(records []domain.Record) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if s.Contains(r.LocalityName) {
			out = append(out, r)
		}
	}
	return out
}

func restricted() Scope {
	return Scope{Localities: map[string]bool{}, Degraded: true}
}

// Resolver 访问控制解析器
type Resolver struct {
	users      repository.UsersRepository
	grants     repository.AccessGrantsRepository
	localities repository.LocalitiesRepository
	levels     repository.AccessLevelsRepository
	logger     *zap.Logger
}

// NewResolver 创建解析器
func NewResolver(store *repository.Store, logger *zap.Logger) *Resolver {
	return &Resolver{
		users:      store.Users,
		grants:     store.Grants,
		localities: store.Localities,
		levels:     store.AccessLevels,
		logger:     logger,
	}
}

// ResolveAccessibleLocalities 用户可见的辖区集合
func (r *Resolver) ResolveAccessibleLocalities(ctx context.Context, userID string) Scope {
	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.logger.Info("Unknown user, no localities visible", zap.String("user_id", userID))
			return Scope{Localities: map[string]bool{}}
		}
		r.logger.Warn("Failed to load user, failing closed", zap.String("user_id", userID), zap.Error(err))
		return restricted()
	}

	// 1. 管理员绕过授权
	if user.IsAdmin() {
		return Scope{All: true, Localities: r.allLocalityNames(ctx)}
	}
	if !user.Active {
		return Scope{Localities: map[string]bool{}}
	}

	// 2. 授权行
	grants, err := r.grants.ListGrantsByUser(ctx, userID)
	if err != nil {
		r.logger.Warn("Failed to list access grants, failing closed", zap.String("user_id", userID), zap.Error(err))
		return restricted()
	}
	if len(grants) == 0 {
		return Scope{Localities: map[string]bool{}}
	}

	// 3. 一次性构建 id -> name 映射
	names, err := repository.LocalityNameMap(ctx, r.localities)
	if err != nil {
		r.logger.Warn("Failed to build locality name map, failing closed", zap.String("user_id", userID), zap.Error(err))
		return restricted()
	}

	scope := Scope{Localities: make(map[string]bool, len(grants))}
	for _, g := range grants {
		if name, ok := names[g.LocalityID]; ok {
			scope.Localities[name] = true
		}
	}
	return scope
}

// allLocalityNames 管理员的展示用集合；读取失败时为空（All 已保证可见性）
func (r *Resolver) allLocalityNames(ctx context.Context) map[string]bool {
	out := map[string]bool{}
	names, err := repository.LocalityNameMap(ctx, r.localities)
	if err != nil {
		r.logger.Debug("Failed to list localities for admin scope", zap.Error(err))
		return out
	}
	for _, n := range names {
		out[n] = true
	}
	return out
}

// HasAccess 单个辖区的可见性判断
func (r *Resolver) HasAccess(ctx context.Context, userID, localityName string) bool {
	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}

	// 未知辖区一律不可见
	if _, err := r.localities.GetLocalityByName(ctx, localityName); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			r.logger.Warn("Failed to look up locality, failing closed",
				zap.String("locality", localityName),
				zap.Error(err),
			)
		}
		return false
	}

	return r.ResolveAccessibleLocalities(ctx, userID).Contains(localityName)
}

// HasPermission 功能权限（dashboard / form / admin），来自用户的 AccessLevel
func (r *Resolver) HasPermission(ctx context.Context, userID, permission string) bool {
	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	if !user.Active || user.AccessLevelID == "" {
		return false
	}

	level, err := r.levels.GetAccessLevel(ctx, user.AccessLevelID)
	if err != nil {
		r.logger.Warn("Failed to load access level, denying",
			zap.String("user_id", userID),
			zap.String("access_level_id", user.AccessLevelID),
			zap.Error(err),
		)
		return false
	}
	return level.Has(permission)
}

// AssignedLocalities 返回带派生字段 AssignedLocalities 的用户
func (r *Resolver) AssignedLocalities(ctx context.Context, userID string) (*domain.User, Scope, error) {
	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return nil, restricted(), err
	}
	scope := r.ResolveAccessibleLocalities(ctx, userID)
	user.AssignedLocalities = scope.Names()
	return user, scope, nil
}
