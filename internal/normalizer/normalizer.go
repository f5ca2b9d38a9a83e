// Package normalizer 把三类数据源（存储行 / 本地缓存 / 内置种子）统一转换为 domain.Record
//
// 存储侧的行是按列名索引的松散结构（Postgres 扫描结果、REST JSON、变更通知 payload），
// 聚合器和实时合并只接触归一化之后的 Record。
package normalizer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"vetorial-dashboard/internal/domain"
)

// Row 存储侧的一行数据，key 为列名
type Row map[string]any

// 存储列名
const (
	ColID                  = "id"
	ColLocalityID          = "locality_id"
	ColLocalityName        = "locality_name"
	ColMunicipality        = "municipality"
	ColCycle               = "cycle"
	ColEpiWeek             = "epi_week"
	ColWorkModality        = "work_modality"
	ColStartDate           = "start_date"
	ColEndDate             = "end_date"
	ColPropertiesInspected = "properties_inspected"
	ColDepositsA1          = "deposits_a1"
	ColDepositsA2          = "deposits_a2"
	ColDepositsB           = "deposits_b"
	ColDepositsC           = "deposits_c"
	ColDepositsD1          = "deposits_d1"
	ColDepositsD2          = "deposits_d2"
	ColDepositsE           = "deposits_e"
	ColDepositsTreated     = "deposits_treated"
	ColDepositsEliminated  = "deposits_eliminated"
	ColPropertiesTreated   = "properties_treated"
	ColSamplesCollected    = "samples_collected"
	ColStaffDays           = "staff_days"
	ColSupervisor          = "supervisor"
	ColLarvicide           = "larvicide"
	ColAdulticide          = "adulticide"
)

// RecordColumns records 表的列顺序（写入与查询共用）
var RecordColumns = []string{
	ColID, ColLocalityID, ColMunicipality, ColCycle, ColEpiWeek, ColWorkModality,
	ColStartDate, ColEndDate,
	ColPropertiesInspected, ColDepositsA1, ColDepositsA2, ColDepositsB, ColDepositsC,
	ColDepositsD1, ColDepositsD2, ColDepositsE, ColDepositsTreated, ColDepositsEliminated,
	ColPropertiesTreated, ColSamplesCollected, ColStaffDays,
	ColSupervisor, ColLarvicide, ColAdulticide,
}

// aliases 旧版表单导出使用的葡语列名
var aliases = map[string][]string{
	ColLocalityName:        {"localidade", "localidade_nome"},
	ColLocalityID:          {"localidade_id"},
	ColMunicipality:        {"municipio"},
	ColCycle:               {"ciclo"},
	ColEpiWeek:             {"semana_epidemiologica"},
	ColWorkModality:        {"modalidade", "modalidade_trabalho"},
	ColStartDate:           {"data_inicio"},
	ColEndDate:             {"data_fim"},
	ColPropertiesInspected: {"imoveis_inspecionados"},
	ColDepositsTreated:     {"depositos_tratados"},
	ColDepositsEliminated:  {"depositos_eliminados"},
	ColPropertiesTreated:   {"imoveis_tratados"},
	ColSamplesCollected:    {"amostras_coletadas"},
	ColStaffDays:           {"agentes_dia", "dias_trabalhados"},
	ColSupervisor:          {"supervisor_nome"},
	ColLarvicide:           {"larvicida"},
	ColAdulticide:          {"adulticida"},
}

func (r Row) get(col string) any {
	if v, ok := r[col]; ok && v != nil {
		return v
	}
	for _, alias := range aliases[col] {
		if v, ok := r[alias]; ok && v != nil {
			return v
		}
	}
	return nil
}

// LocalityID 返回行中的辖区 ID（可能为空）
func (r Row) LocalityID() string {
	return Text(r.get(ColLocalityID))
}

// LocalityName 返回行中直接携带的辖区名（变更通知通常不携带）
func (r Row) LocalityName() string {
	return Text(r.get(ColLocalityName))
}

// FromRow 把存储行转换为 Record
// 行内没有 locality_name 时，通过 localityNames（id -> name）解析
func FromRow(row Row, localityNames map[string]string) domain.Record {
	rec := domain.Record{
		ID:                  Text(row.get(ColID)),
		LocalityID:          row.LocalityID(),
		LocalityName:        row.LocalityName(),
		Municipality:        Text(row.get(ColMunicipality)),
		Cycle:               Text(row.get(ColCycle)),
		EpidemiologicalWeek: Text(row.get(ColEpiWeek)),
		WorkModality:        Text(row.get(ColWorkModality)),
		StartDate:           CanonicalDate(row.get(ColStartDate)),
		EndDate:             CanonicalDate(row.get(ColEndDate)),
		Counters: domain.Counters{
			PropertiesInspected: ParseCounter(row.get(ColPropertiesInspected)),
			DepositsA1:          ParseCounter(row.get(ColDepositsA1)),
			DepositsA2:          ParseCounter(row.get(ColDepositsA2)),
			DepositsB:           ParseCounter(row.get(ColDepositsB)),
			DepositsC:           ParseCounter(row.get(ColDepositsC)),
			DepositsD1:          ParseCounter(row.get(ColDepositsD1)),
			DepositsD2:          ParseCounter(row.get(ColDepositsD2)),
			DepositsE:           ParseCounter(row.get(ColDepositsE)),
			DepositsTreated:     ParseCounter(row.get(ColDepositsTreated)),
			DepositsEliminated:  ParseCounter(row.get(ColDepositsEliminated)),
			PropertiesTreated:   ParseCounter(row.get(ColPropertiesTreated)),
			SamplesCollected:    ParseCounter(row.get(ColSamplesCollected)),
			StaffDays:           ParseCounter(row.get(ColStaffDays)),
		},
		Supervisor: Text(row.get(ColSupervisor)),
		Larvicide:  Text(row.get(ColLarvicide)),
		Adulticide: Text(row.get(ColAdulticide)),
	}
	if rec.LocalityName == "" && rec.LocalityID != "" {
		rec.LocalityName = localityNames[rec.LocalityID]
	}
	return rec
}

// ToRow 把 Record 转回存储行（插入、更新、发布变更时使用）
// 空 ID 不写入，由存储分配
func ToRow(rec domain.Record) Row {
	row := Row{
		ColLocalityID:          rec.LocalityID,
		ColMunicipality:        rec.Municipality,
		ColCycle:               rec.Cycle,
		ColEpiWeek:             rec.EpidemiologicalWeek,
		ColWorkModality:        rec.WorkModality,
		ColStartDate:           rec.StartDate,
		ColEndDate:             rec.EndDate,
		ColPropertiesInspected: rec.Counters.PropertiesInspected,
		ColDepositsA1:          rec.Counters.DepositsA1,
		ColDepositsA2:          rec.Counters.DepositsA2,
		ColDepositsB:           rec.Counters.DepositsB,
		ColDepositsC:           rec.Counters.DepositsC,
		ColDepositsD1:          rec.Counters.DepositsD1,
		ColDepositsD2:          rec.Counters.DepositsD2,
		ColDepositsE:           rec.Counters.DepositsE,
		ColDepositsTreated:     rec.Counters.DepositsTreated,
		ColDepositsEliminated:  rec.Counters.DepositsEliminated,
		ColPropertiesTreated:   rec.Counters.PropertiesTreated,
		ColSamplesCollected:    rec.Counters.SamplesCollected,
		ColStaffDays:           rec.Counters.StaffDays,
		ColSupervisor:          rec.Supervisor,
		ColLarvicide:           rec.Larvicide,
		ColAdulticide:          rec.Adulticide,
	}
	if rec.ID != "" {
		row[ColID] = rec.ID
	}
	return row
}

// Canonical 对已归一化的 Record（本地缓存内容）再做一次规范化
// 保证不同来源的日期/空白格式一致，复合键比较只需字符串相等
func Canonical(rec domain.Record) domain.Record {
	rec.ID = strings.TrimSpace(rec.ID)
	rec.LocalityID = strings.TrimSpace(rec.LocalityID)
	rec.LocalityName = strings.TrimSpace(rec.LocalityName)
	rec.Municipality = strings.TrimSpace(rec.Municipality)
	rec.Cycle = strings.TrimSpace(rec.Cycle)
	rec.EpidemiologicalWeek = strings.TrimSpace(rec.EpidemiologicalWeek)
	rec.WorkModality = strings.TrimSpace(rec.WorkModality)
	rec.StartDate = CanonicalDate(rec.StartDate)
	rec.EndDate = CanonicalDate(rec.EndDate)
	rec.Supervisor = strings.TrimSpace(rec.Supervisor)
	rec.Larvicide = strings.TrimSpace(rec.Larvicide)
	rec.Adulticide = strings.TrimSpace(rec.Adulticide)
	return rec
}

// CanonicalizeAll 对列表逐条 Canonical，返回新切片
func CanonicalizeAll(records []domain.Record) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	for _, r := range records {
		out = append(out, Canonical(r))
	}
	return out
}

const dateLayout = "2006-01-02"

var dateLayouts = []string{
	dateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"02/01/2006", // dd/mm/yyyy（巴西表单格式）
}

// CanonicalDate 统一为 YYYY-MM-DD；无法解析时返回去空白后的原文
func CanonicalDate(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format(dateLayout)
	case *time.Time:
		if val == nil || val.IsZero() {
			return ""
		}
		return val.Format(dateLayout)
	}

	s := Text(v)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout)
		}
	}
	return s
}

// ParseCounter 宽松解析计数字段：缺失或无法解析一律为 0
func ParseCounter(v any) int {
	switch val := v.(type) {
	case nil:
		return 0
	case int:
		return val
	case int32:
		return int(val)
	case int64:
		return int(val)
	case float32:
		return roundFloat(float64(val))
	case float64:
		return roundFloat(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
		if f, err := val.Float64(); err == nil {
			return roundFloat(f)
		}
		return 0
	case []byte:
		return parseCounterString(string(val))
	case string:
		return parseCounterString(val)
	default:
		return 0
	}
}

func parseCounterString(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	// 小数逗号 "1,5"
	if f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err == nil {
		return roundFloat(f)
	}
	return 0
}

func roundFloat(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Round(f))
}

// Text 把任意列值转为去空白字符串
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []byte:
		return strings.TrimSpace(string(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(dateLayout)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return strings.Trim(string(b), `"`)
	}
}
