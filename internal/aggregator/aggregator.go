// Package aggregator 把扁平的巡查记录按周期 / 流行病学周分组并累加计数
package aggregator

import (
	"sort"
	"strconv"
	"strings"

	"vetorial-dashboard/internal/domain"
)

// CycleSummary 按 (作业模式, 周期) 的汇总
// Localities 保留完整成员记录（下钻用），Totals 为各计数字段之和
type CycleSummary struct {
	WorkModality string          `json:"workModality"`
	Cycle        string          `json:"cycle"`
	Localities   []domain.Record `json:"localities"`
	Totals       domain.Counters `json:"totals"`
}

// WeekSummary 按流行病学周的汇总
type WeekSummary struct {
	EpidemiologicalWeek string          `json:"epidemiologicalWeek"`
	Localities          []domain.Record `json:"localities"`
	Totals              domain.Counters `json:"totals"`
}

type cycleKey struct {
	modality string
	cycle    string
}

// GroupByCycle 按 (workModality, cycle) 分组
// 排序：workModality 字典序，cycle 按整数
// 组内成员保持输入顺序，因此对展开后的成员再次分组结果不变
func GroupByCycle(records []domain.Record) []CycleSummary {
	index := make(map[cycleKey]int)
	var out []CycleSummary
	for _, r := range records {
		k := cycleKey{modality: r.WorkModality, cycle: r.Cycle}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, CycleSummary{WorkModality: r.WorkModality, Cycle: r.Cycle})
		}
		out[i].Localities = append(out[i].Localities, r)
		out[i].Totals = out[i].Totals.Add(r.Counters)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WorkModality != out[j].WorkModality {
			return out[i].WorkModality < out[j].WorkModality
		}
		return lessNumeric(out[i].Cycle, out[j].Cycle)
	})
	return out
}

// GroupByWeek 按 epidemiologicalWeek 分组，按整数排序
func GroupByWeek(records []domain.Record) []WeekSummary {
	index := make(map[string]int)
	var out []WeekSummary
	for _, r := range records {
		i, ok := index[r.EpidemiologicalWeek]
		if !ok {
			i = len(out)
			index[r.EpidemiologicalWeek] = i
			out = append(out, WeekSummary{EpidemiologicalWeek: r.EpidemiologicalWeek})
		}
		out[i].Localities = append(out[i].Localities, r)
		out[i].Totals = out[i].Totals.Add(r.Counters)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return lessNumeric(out[i].EpidemiologicalWeek, out[j].EpidemiologicalWeek)
	})
	return out
}

// FlattenCycles 展开全部周期汇总的成员记录
func FlattenCycles(summaries []CycleSummary) []domain.Record {
	var out []domain.Record
	for _, s := range summaries {
		out = append(out, s.Localities...)
	}
	return out
}

// FlattenWeeks 展开全部周汇总的成员记录
func FlattenWeeks(summaries []WeekSummary) []domain.Record {
	var out []domain.Record
	for _, s := range summaries {
		out = append(out, s.Localities...)
	}
	return out
}

// Total 全部记录的计数合计
func Total(records []domain.Record) domain.Counters {
	var total domain.Counters
	for _, r := range records {
		total = total.Add(r.Counters)
	}
	return total
}

// lessNumeric 整数比较；非整数排在整数之后，彼此按字典序
// 数值相等但文本不同（"03" 与 "3"）时按字典序，保证排序确定
func lessNumeric(a, b string) bool {
	ai, aerr := strconv.Atoi(strings.TrimSpace(a))
	bi, berr := strconv.Atoi(strings.TrimSpace(b))
	switch {
	case aerr == nil && berr == nil:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aerr == nil:
		return true
	case berr == nil:
		return false
	default:
		return a < b
	}
}
