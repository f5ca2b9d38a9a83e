package normalizer

import (
	"encoding/json"
	"testing"
	"time"

	"vetorial-dashboard/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalDate(t *testing.T) {
	cases := map[string]any{
		"2024-03-04": "2024-03-04",
		"":           nil,
	}
	for want, in := range cases {
		assert.Equal(t, want, CanonicalDate(in))
	}

	assert.Equal(t, "2024-03-04", CanonicalDate("04/03/2024"))
	assert.Equal(t, "2024-03-04", CanonicalDate(" 2024-03-04T10:15:00Z "))
	assert.Equal(t, "2024-03-03", CanonicalDate("2024-03-03T23:30:00-03:00"))
	assert.Equal(t, "2024-03-04", CanonicalDate("2024-03-04 08:00:00"))
	assert.Equal(t, "2024-03-04", CanonicalDate(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "", CanonicalDate(time.Time{}))
	// 无法解析的保留原文
	assert.Equal(t, "sem data", CanonicalDate(" sem data "))
}

func TestParseCounter(t *testing.T) {
	assert.Equal(t, 0, ParseCounter(nil))
	assert.Equal(t, 12, ParseCounter(12))
	assert.Equal(t, 12, ParseCounter(int64(12)))
	assert.Equal(t, 3, ParseCounter(2.6))
	assert.Equal(t, 7, ParseCounter(" 7 "))
	assert.Equal(t, 2, ParseCounter("1,5"))
	assert.Equal(t, 0, ParseCounter("n/a"))
	assert.Equal(t, 9, ParseCounter([]byte("9")))
	assert.Equal(t, 4, ParseCounter(json.Number("4")))
	assert.Equal(t, 0, ParseCounter(true))
}

func TestFromRow_ResolvesLocalityByID(t *testing.T) {
	row := Row{
		"id":                   int64(42),
		"locality_id":          "loc-1",
		"cycle":                "03",
		"epi_week":             float64(10),
		"work_modality":        "LI+T",
		"start_date":           time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		"end_date":             "08/03/2024",
		"properties_inspected": "120",
		"deposits_a1":          float64(2),
		"staff_days":           "abc",
		"supervisor":           "  Maria ",
	}

	rec := FromRow(row, map[string]string{"loc-1": "Centro"})

	assert.Equal(t, "42", rec.ID)
	assert.Equal(t, "loc-1", rec.LocalityID)
	assert.Equal(t, "Centro", rec.LocalityName)
	assert.Equal(t, "10", rec.EpidemiologicalWeek)
	assert.Equal(t, "2024-03-04", rec.StartDate)
	assert.Equal(t, "2024-03-08", rec.EndDate)
	assert.Equal(t, 120, rec.Counters.PropertiesInspected)
	assert.Equal(t, 2, rec.Counters.DepositsA1)
	assert.Equal(t, 0, rec.Counters.StaffDays)
	assert.Equal(t, "Maria", rec.Supervisor)
}

func TestFromRow_PortugueseAliases(t *testing.T) {
	row := Row{
		"localidade":            "Mangabinha",
		"ciclo":                 "2",
		"semana_epidemiologica": "07",
		"modalidade":            "PE",
		"data_inicio":           "12/02/2024",
		"data_fim":              "16/02/2024",
		"imoveis_inspecionados": 30,
	}

	rec := FromRow(row, nil)

	assert.Equal(t, "Mangabinha", rec.LocalityName)
	assert.Equal(t, "2", rec.Cycle)
	assert.Equal(t, "07", rec.EpidemiologicalWeek)
	assert.Equal(t, "PE", rec.WorkModality)
	assert.Equal(t, "2024-02-12", rec.StartDate)
	assert.Equal(t, 30, rec.Counters.PropertiesInspected)
	assert.True(t, rec.IsDraft())
}

func TestFromRow_JoinedNameWinsOverMap(t *testing.T) {
	row := Row{"locality_id": "loc-1", "locality_name": "Centro"}
	rec := FromRow(row, map[string]string{"loc-1": "Outro"})
	assert.Equal(t, "Centro", rec.LocalityName)
}

func TestToRow_RoundTripThroughFromRow(t *testing.T) {
	rec := domain.Record{
		ID:                  "rec-1",
		LocalityID:          "loc-1",
		LocalityName:        "Centro",
		Cycle:               "03",
		EpidemiologicalWeek: "10",
		WorkModality:        domain.ModalityLIT,
		StartDate:           "2024-03-04",
		EndDate:             "2024-03-08",
		Counters:            domain.Counters{PropertiesInspected: 50, SamplesCollected: 4},
	}

	row := ToRow(rec)
	_, hasName := row[ColLocalityName]
	assert.False(t, hasName)

	back := FromRow(row, map[string]string{"loc-1": "Centro"})
	assert.Equal(t, rec, back)

	draft := ToRow(domain.Record{Cycle: "1"})
	_, hasID := draft[ColID]
	assert.False(t, hasID)
}

func TestCanonical_NormalizesCachedRecord(t *testing.T) {
	rec := Canonical(domain.Record{LocalityName: " Centro ", StartDate: "04/03/2024", EndDate: "2024-03-08T00:00:00Z", Cycle: " 03"})
	assert.Equal(t, "Centro", rec.LocalityName)
	assert.Equal(t, "2024-03-04", rec.StartDate)
	assert.Equal(t, "2024-03-08", rec.EndDate)
	assert.Equal(t, "03", rec.Cycle)
}
