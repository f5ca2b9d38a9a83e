package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"vetorial-dashboard/internal/access"
	"vetorial-dashboard/internal/cache"
	"vetorial-dashboard/internal/datasource"
	"vetorial-dashboard/internal/domain"
	"vetorial-dashboard/internal/metrics"
	"vetorial-dashboard/internal/realtime"
	"vetorial-dashboard/internal/repository"

	"go.uber.org/zap"
)

var (
	// ErrForbidden 缺少功能权限或辖区授权
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidRecord 提交的记录不完整
	ErrInvalidRecord = errors.New("invalid record")
	// ErrStoreUnavailable 未配置 Record Store，无法持久化
	ErrStoreUnavailable = errors.New("record store unavailable")
)

// Snapshotter 把最近一次成功加载的记录写入本地缓存（cache.RecordCache 实现）
type Snapshotter interface {
	Save(ctx context.Context, records []domain.Record) error
}

// DashboardDeps 看板依赖
// Store.Records 为 nil 表示不持久化（DB_ENABLED=false）
type DashboardDeps struct {
	Resolver  *datasource.Resolver
	Access    *access.Resolver
	Store     *repository.Store
	Snapshots Snapshotter
	Feed      realtime.Feed
	Publisher realtime.Publisher
	Year      string
	// OnChange 每次实时合并后调用（可为 nil）
	OnChange func(realtime.MergeResult)
	Logger   *zap.Logger
}

// Dashboard 一个看板实例：持有记录列表和唯一的实时订阅
type Dashboard struct {
	resolver   *datasource.Resolver
	access     *access.Resolver
	store      *repository.Store
	snapshots  Snapshotter
	publisher  realtime.Publisher
	reconciler *realtime.Reconciler
	list       *realtime.RecordList
	year       string
	onChange   func(realtime.MergeResult)
	logger     *zap.Logger

	mu      sync.Mutex
	sub     *realtime.Subscription
	source  datasource.Source
	notices []string
}

// NewDashboard 创建看板
func NewDashboard(deps DashboardDeps) *Dashboard {
	list := realtime.NewRecordList(nil)
	publisher := deps.Publisher
	if publisher == nil {
		publisher = realtime.NoopPublisher{}
	}

	var reconciler *realtime.Reconciler
	if deps.Feed != nil {
		var lookup realtime.LocalityLookup
		if deps.Store != nil && deps.Store.Localities != nil {
			lookup = deps.Store.Localities
		}
		reconciler = realtime.NewReconciler(deps.Feed, lookup, list, deps.Logger)
	}

	return &Dashboard{
		resolver:   deps.Resolver,
		access:     deps.Access,
		store:      deps.Store,
		snapshots:  deps.Snapshots,
		publisher:  publisher,
		reconciler: reconciler,
		list:       list,
		year:       deps.Year,
		onChange:   deps.OnChange,
		logger:     deps.Logger,
	}
}

// Load 重新解析数据源并替换记录列表
// 记录列表保存全部年份，年份过滤在 View 中进行
// 来自存储时写入本地缓存；缓存空间不足返回 cache.ErrStorageQuota（记录仍已加载）
func (d *Dashboard) Load(ctx context.Context) (datasource.Result, error) {
	res := d.resolver.Resolve(ctx, "")
	d.list.Replace(res.Records)

	d.mu.Lock()
	d.source = res.Source
	d.notices = res.Notices
	d.mu.Unlock()

	metrics.LoadsTotal.WithLabelValues(string(res.Source)).Inc()
	d.logger.Info("Dashboard records loaded",
		zap.String("source", string(res.Source)),
		zap.Int("record_count", len(res.Records)),
	)

	if res.Source != datasource.SourceStore || d.snapshots == nil {
		return res, nil
	}
	if err := d.snapshots.Save(ctx, res.Records); err != nil {
		if errors.Is(err, cache.ErrStorageQuota) {
			metrics.CacheQuotaErrorsTotal.Inc()
			d.logger.Error("Local cache quota exceeded", zap.Error(err))
			return res, err
		}
		d.logger.Warn("Failed to save records snapshot", zap.Error(err))
	}
	return res, nil
}

// StartLive 建立实时订阅（每个看板至多一个）
func (d *Dashboard) StartLive(ctx context.Context) error {
	if d.reconciler == nil {
		return fmt.Errorf("realtime updates are disabled")
	}

	sub, err := d.reconciler.Subscribe(ctx, func(res realtime.MergeResult) {
		metrics.MergesTotal.WithLabelValues(string(res.Outcome)).Inc()
		d.logger.Debug("Live record change applied",
			zap.String("record_id", res.Record.ID),
			zap.String("outcome", string(res.Outcome)),
		)
		if d.onChange != nil {
			d.onChange(res)
		}
	})
	if err != nil {
		if !errors.Is(err, realtime.ErrAlreadySubscribed) {
			metrics.RealtimeFailuresTotal.Inc()
		}
		return fmt.Errorf("failed to subscribe to record changes: %w", err)
	}

	d.mu.Lock()
	d.sub = sub
	metrics.RealtimeLive.Set(1)
	d.mu.Unlock()

	go func() {
		<-sub.Done()
		if sub.State() == realtime.StateFailed {
			metrics.RealtimeFailuresTotal.Inc()
		}
		// 已被重新订阅替换的旧订阅不能把指示清零
		d.mu.Lock()
		if d.sub == sub {
			metrics.RealtimeLive.Set(0)
		}
		d.mu.Unlock()
	}()
	return nil
}

// StopLive 取消实时订阅；幂等
func (d *Dashboard) StopLive() {
	d.mu.Lock()
	sub := d.sub
	d.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

// Live 实时指示
func (d *Dashboard) Live() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sub != nil && d.sub.Live()
}

// LiveState 实时订阅状态
func (d *Dashboard) LiveState() realtime.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sub == nil {
		return realtime.StateUnsubscribed
	}
	return d.sub.State()
}

// Records 当前记录列表的副本
func (d *Dashboard) Records() []domain.Record {
	return d.list.Snapshot()
}
