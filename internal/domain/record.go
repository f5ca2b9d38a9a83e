package domain

// 作业模式（work modality），取值不做强校验，仅列出常用值
const (
	ModalityLIT      = "LI+T"     // levantamento de índice + tratamento
	ModalityLIRAa    = "LIRAa"    // levantamento rápido de índice
	ModalityPE       = "PE"       // pontos estratégicos
	ModalityBloqueio = "Bloqueio" // bloqueio de transmissão
)

// Record 一次辖区巡查提交（对应 records 表）
// ID 为空表示仅存在于本地的草稿；持久化后由存储分配 ID
// 所有日期字段在归一化边界统一为 YYYY-MM-DD
type Record struct {
	ID                  string   `json:"id,omitempty"`
	LocalityID          string   `json:"localityId,omitempty"`
	LocalityName        string   `json:"localityName"`
	Municipality        string   `json:"municipality,omitempty"`
	Cycle               string   `json:"cycle"`
	EpidemiologicalWeek string   `json:"epidemiologicalWeek"`
	WorkModality        string   `json:"workModality"`
	StartDate           string   `json:"startDate"`
	EndDate             string   `json:"endDate"`
	Counters            Counters `json:"counters"`

	// 可选自由文本
	Supervisor string `json:"supervisor,omitempty"`
	Larvicide  string `json:"larvicide,omitempty"`
	Adulticide string `json:"adulticide,omitempty"`
}

// Counters 固定的数值计数字段（累加，不求平均）
type Counters struct {
	PropertiesInspected int `json:"propertiesInspected"`
	DepositsA1          int `json:"depositsA1"`
	DepositsA2          int `json:"depositsA2"`
	DepositsB           int `json:"depositsB"`
	DepositsC           int `json:"depositsC"`
	DepositsD1          int `json:"depositsD1"`
	DepositsD2          int `json:"depositsD2"`
	DepositsE           int `json:"depositsE"`
	DepositsTreated     int `json:"depositsTreated"`
	DepositsEliminated  int `json:"depositsEliminated"`
	PropertiesTreated   int `json:"propertiesTreated"`
	SamplesCollected    int `json:"samplesCollected"`
	StaffDays           int `json:"staffDays"`
}

// Add 逐字段相加
func (c Counters) Add(o Counters) Counters {
	return Counters{
		PropertiesInspected: c.PropertiesInspected + o.PropertiesInspected,
		DepositsA1:          c.DepositsA1 + o.DepositsA1,
		DepositsA2:          c.DepositsA2 + o.DepositsA2,
		DepositsB:           c.DepositsB + o.DepositsB,
		DepositsC:           c.DepositsC + o.DepositsC,
		DepositsD1:          c.DepositsD1 + o.DepositsD1,
		DepositsD2:          c.DepositsD2 + o.DepositsD2,
		DepositsE:           c.DepositsE + o.DepositsE,
		DepositsTreated:     c.DepositsTreated + o.DepositsTreated,
		DepositsEliminated:  c.DepositsEliminated + o.DepositsEliminated,
		PropertiesTreated:   c.PropertiesTreated + o.PropertiesTreated,
		SamplesCollected:    c.SamplesCollected + o.SamplesCollected,
		StaffDays:           c.StaffDays + o.StaffDays,
	}
}

// Deposits 各类别积水容器合计（A1..E）
func (c Counters) Deposits() int {
	return c.DepositsA1 + c.DepositsA2 + c.DepositsB + c.DepositsC +
		c.DepositsD1 + c.DepositsD2 + c.DepositsE
}

// CompositeKey 无 ID 时的自然复合键
type CompositeKey struct {
	LocalityName        string
	Cycle               string
	EpidemiologicalWeek string
	StartDate           string
	EndDate             string
}

// Key 返回记录的复合键（即使已有 ID 也始终可计算）
func (r Record) Key() CompositeKey {
	return CompositeKey{
		LocalityName:        r.LocalityName,
		Cycle:               r.Cycle,
		EpidemiologicalWeek: r.EpidemiologicalWeek,
		StartDate:           r.StartDate,
		EndDate:             r.EndDate,
	}
}

// IsDraft 是否为尚未持久化的草稿
func (r Record) IsDraft() bool {
	return r.ID == ""
}

// Year 返回 startDate 的年份部分；日期非法时为空
func (r Record) Year() string {
	if len(r.StartDate) < 4 {
		return ""
	}
	return r.StartDate[:4]
}
