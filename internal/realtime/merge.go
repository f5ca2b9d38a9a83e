package realtime

import (
	"sync"

	"vetorial-dashboard/internal/domain"
)

// Outcome 一次合并的结果
type Outcome string

const (
	OutcomeReplacedByID  Outcome = "replaced_by_id"
	OutcomeReplacedByKey Outcome = "replaced_by_key"
	OutcomeAppended      Outcome = "appended"
)

// MergeResult 合并结果，Index 为记录在列表中的位置
type MergeResult struct {
	Record  domain.Record `json:"record"`
	Outcome Outcome       `json:"outcome"`
	Index   int           `json:"index"`
}

// Merge 把 incoming 合并进 records，返回新列表（不修改入参）
//
// 匹配顺序：
//  1. incoming 有 id 且已有记录 id 相同：原位替换
//  2. 复合键相同，且至少一方没有 id（本地草稿被存储回显）：原位替换
//  3. 否则追加
//
// 两条 id 不同的已持久化记录即使复合键相同也视为不同记录
func Merge(records []domain.Record, incoming domain.Record) ([]domain.Record, MergeResult) {
	next := make([]domain.Record, len(records), len(records)+1)
	copy(next, records)

	if incoming.ID != "" {
		for i, r := range next {
			if r.ID == incoming.ID {
				next[i] = incoming
				return next, MergeResult{Record: incoming, Outcome: OutcomeReplacedByID, Index: i}
			}
		}
	}

	key := incoming.Key()
	for i, r := range next {
		if r.Key() != key {
			continue
		}
		if r.ID == "" || incoming.ID == "" {
			next[i] = incoming
			return next, MergeResult{Record: incoming, Outcome: OutcomeReplacedByKey, Index: i}
		}
	}

	next = append(next, incoming)
	return next, MergeResult{Record: incoming, Outcome: OutcomeAppended, Index: len(next) - 1}
}

// RecordList 看板持有的记录列表
// 每次修改都是 读取最新 -> 计算新列表 -> 提交，不在原切片上修改
type RecordList struct {
	mu      sync.Mutex
	records []domain.Record
}

func NewRecordList(initial []domain.Record) *RecordList {
	l := &RecordList{}
	l.Replace(initial)
	return l
}

// Snapshot 当前列表的副本
func (l *RecordList) Snapshot() []domain.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Record, len(l.records))
	copy(out, l.records)
	return out
}

// Replace 整体替换（重新加载后）
func (l *RecordList) Replace(records []domain.Record) {
	next := make([]domain.Record, len(records))
	copy(next, records)

	l.mu.Lock()
	l.records = next
	l.mu.Unlock()
}

// Update 函数式更新；fn 不得修改传入的切片
func (l *RecordList) Update(fn func(current []domain.Record) []domain.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = fn(l.records)
}

// Apply 合并一条记录
func (l *RecordList) Apply(rec domain.Record) MergeResult {
	var res MergeResult
	l.Update(func(current []domain.Record) []domain.Record {
		var next []domain.Record
		next, res = Merge(current, rec)
		return next
	})
	return res
}

// Len 记录数
func (l *RecordList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
