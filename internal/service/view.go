package service

import (
	"context"
	"fmt"

	"vetorial-dashboard/internal/aggregator"
	"vetorial-dashboard/internal/datasource"
	"vetorial-dashboard/internal/domain"
)

// View 某个用户看到的看板
type View struct {
	Year       string                    `json:"year,omitempty"`
	Source     datasource.Source         `json:"source"`
	Notices    []string                  `json:"notices,omitempty"`
	Live       bool                      `json:"live"`
	AllAccess  bool                      `json:"allLocalities"`
	Restricted bool                      `json:"restricted"`
	Localities []string                  `json:"localities"`
	Records    []domain.Record           `json:"records"`
	Cycles     []aggregator.CycleSummary `json:"cycles"`
	Weeks      []aggregator.WeekSummary  `json:"weeks"`
	Totals     domain.Counters           `json:"totals"`
}

// View 按年份和用户可见辖区过滤并聚合；year 为空时使用默认年份
func (d *Dashboard) View(ctx context.Context, userID, year string) (*View, error) {
	if !d.access.HasPermission(ctx, userID, domain.PermissionDashboard) {
		return nil, fmt.Errorf("dashboard: %w", ErrForbidden)
	}
	if year == "" {
		year = d.year
	}

	scope := d.access.ResolveAccessibleLocalities(ctx, userID)
	records := scope.Filter(datasource.FilterYear(d.list.Snapshot(), year))

	d.mu.Lock()
	source, notices := d.source, append([]string(nil), d.notices...)
	d.mu.Unlock()

	return &View{
		Year:       year,
		Source:     source,
		Notices:    notices,
		Live:       d.Live(),
		AllAccess:  scope.All,
		Restricted: scope.Degraded,
		Localities: scope.Names(),
		Records:    records,
		Cycles:     aggregator.GroupByCycle(records),
		Weeks:      aggregator.GroupByWeek(records),
		Totals:     aggregator.Total(records),
	}, nil
}
