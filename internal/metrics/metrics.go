package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// LoadsTotal 每次数据源解析按命中层计数（store / cache / seed）
	LoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vetorial",
		Subsystem: "dashboard",
		Name:      "loads_total",
		Help:      "Total number of record loads, labeled by the tier that served them.",
	}, []string{"source"})

	// CacheQuotaErrorsTotal 本地缓存空间不足
	CacheQuotaErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vetorial",
		Subsystem: "dashboard",
		Name:      "cache_quota_errors_total",
		Help:      "Total number of snapshot writes rejected because the local cache is full.",
	})

	// RealtimeLive 1 表示实时订阅处于 Subscribed
	RealtimeLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vetorial",
		Subsystem: "realtime",
		Name:      "live",
		Help:      "Whether the dashboard realtime subscription is currently live.",
	})

	RealtimeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vetorial",
		Subsystem: "realtime",
		Name:      "failures_total",
		Help:      "Total number of realtime subscriptions that failed to open or were lost.",
	})

	// MergesTotal 按合并结果计数（replaced_by_id / replaced_by_key / appended）
	MergesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vetorial",
		Subsystem: "realtime",
		Name:      "merges_total",
		Help:      "Total number of change events merged into the record list, labeled by outcome.",
	}, []string{"outcome"})

	// SubmissionsTotal result: saved | draft | rejected | failed
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vetorial",
		Subsystem: "dashboard",
		Name:      "submissions_total",
		Help:      "Total number of record submissions, labeled by result.",
	}, []string{"result"})
)

// Register 注册到默认 registry，可重复调用
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			LoadsTotal,
			CacheQuotaErrorsTotal,
			RealtimeLive,
			RealtimeFailuresTotal,
			MergesTotal,
			SubmissionsTotal,
		)
	})
}
