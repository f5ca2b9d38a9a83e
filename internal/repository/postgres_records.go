package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"vetorial-dashboard/internal/domain"
	"vetorial-dashboard/internal/normalizer"
)

// PostgresRecordsRepository records 表的 PostgreSQL 实现
type PostgresRecordsRepository struct {
	db *sql.DB
}

// NewPostgresRecordsRepository 创建 records Repository
func NewPostgresRecordsRepository(db *sql.DB) *PostgresRecordsRepository {
	return &PostgresRecordsRepository{db: db}
}

// 确保实现了接口
var _ RecordsRepository = (*PostgresRecordsRepository)(nil)

var dateColumns = map[string]bool{
	normalizer.ColStartDate: true,
	normalizer.ColEndDate:   true,
}

// selectColumns uuid 列按文本读出
func selectColumns() string {
	cols := make([]string, 0, len(normalizer.RecordColumns))
	for _, c := range normalizer.RecordColumns {
		switch c {
		case normalizer.ColID, normalizer.ColLocalityID:
			cols = append(cols, c+"::text")
		default:
			cols = append(cols, c)
		}
	}
	return strings.Join(cols, ", ")
}

// ListRecordRows 读取 records 全表，按列名返回原始行
func (r *PostgresRecordsRepository) ListRecordRows(ctx context.Context) ([]normalizer.Row, error) {
	query := `SELECT ` + selectColumns() + ` FROM records ORDER BY start_date, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}
	return out, nil
}

// GetRecordRow 按 id 读取单行
func (r *PostgresRecordsRepository) GetRecordRow(ctx context.Context, id string) (normalizer.Row, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns()+` FROM records WHERE id::text = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return out[0], nil
}

// InsertRecord 插入记录，返回存储分配的 id
func (r *PostgresRecordsRepository) InsertRecord(ctx context.Context, rec domain.Record) (string, error) {
	row := normalizer.ToRow(rec)
	cols := normalizer.RecordColumns[1:] // 去掉 id
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = columnArg(c, row[c])
	}

	query := `INSERT INTO records (` + strings.Join(cols, ", ") + `) VALUES (` +
		strings.Join(placeholders, ", ") + `) RETURNING id::text`

	var id string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to insert record: %w", err)
	}
	return id, nil
}

// UpdateRecord 按 id 更新全部字段
func (r *PostgresRecordsRepository) UpdateRecord(ctx context.Context, rec domain.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	row := normalizer.ToRow(rec)
	cols := normalizer.RecordColumns[1:]
	sets := make([]string, len(cols))
	args := []any{rec.ID}
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+2)
		args = append(args, columnArg(c, row[c]))
	}

	query := `UPDATE records SET ` + strings.Join(sets, ", ") + `, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record %s: %w", rec.ID, ErrNotFound)
	}
	return nil
}

// columnArg 空字符串的日期 / 外键列写 NULL
func columnArg(col string, v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if s == "" && (dateColumns[col] || col == normalizer.ColLocalityID) {
		return nil
	}
	return s
}

// scanRows 通用扫描：列名 -> 驱动返回的原始值
func scanRows(rows *sql.Rows) ([]normalizer.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []normalizer.Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(normalizer.Row, len(columns))
		for i, c := range columns {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
