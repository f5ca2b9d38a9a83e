// Package seed 内置的兜底数据集：存储和本地缓存都不可用时使用
package seed

import (
	_ "embed"
	"encoding/json"

	"vetorial-dashboard/internal/domain"
	"vetorial-dashboard/internal/normalizer"
)

//go:embed seed_records.json
var rawSeed []byte

// Records 返回归一化后的种子记录（每次调用返回新切片）
// 种子行使用与存储相同的列名，经同一个 normalizer.FromRow 转换
func Records() []domain.Record {
	records, err := Parse(rawSeed)
	if err != nil {
		// 内置数据在编译期固定，解析失败视为空数据集
		return []domain.Record{}
	}
	return records
}

// Parse 解析种子 JSON（存储列名格式）
func Parse(data []byte) ([]domain.Record, error) {
	var rows []normalizer.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, normalizer.FromRow(row, nil))
	}
	return records, nil
}
