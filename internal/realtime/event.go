// Package realtime 订阅 records 表的变更通知，并把变更合并进内存中的记录列表
package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"vetorial-dashboard/internal/normalizer"
)

// Op 变更类型
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// RecordsTable 只关心 records 表的变更
const RecordsTable = "records"

// ChangeEvent 一条变更通知
// Row 为存储侧的完整新行，只携带 locality_id，不携带辖区名
//
// 线上格式（NOTIFY payload / Redis Streams data 字段 / MQTT payload 相同）：
//
//	{"type":"INSERT","table":"records","record":{...}}
type ChangeEvent struct {
	Op    Op             `json:"type"`
	Table string         `json:"table"`
	Row   normalizer.Row `json:"record"`
}

// DecodeChangeEvent 解析变更通知；数字保留为 json.Number，交给归一化处理
func DecodeChangeEvent(data []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("failed to decode change event: %w", err)
	}
	ev.Op = Op(strings.ToUpper(string(ev.Op)))
	if ev.Row == nil {
		return ChangeEvent{}, fmt.Errorf("change event has no record")
	}
	return ev, nil
}

// EncodeChangeEvent 序列化变更通知
func EncodeChangeEvent(ev ChangeEvent) ([]byte, error) {
	if ev.Table == "" {
		ev.Table = RecordsTable
	}
	return json.Marshal(ev)
}

// relevant 是否需要合并：只处理 records 表的插入和更新（不做硬删除）
func (ev ChangeEvent) relevant() bool {
	if ev.Table != "" && ev.Table != RecordsTable {
		return false
	}
	return ev.Op == OpInsert || ev.Op == OpUpdate
}
