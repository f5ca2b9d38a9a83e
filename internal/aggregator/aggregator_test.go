package aggregator

import (
	"testing"

	"vetorial-dashboard/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(modality, cycle, week, locality string, inspected int) domain.Record {
	return domain.Record{
		WorkModality:        modality,
		Cycle:               cycle,
		EpidemiologicalWeek: week,
		LocalityName:        locality,
		Counters:            domain.Counters{PropertiesInspected: inspected, StaffDays: 1},
	}
}

func TestGroupByCycle_NumericSort(t *testing.T) {
	records := []domain.Record{
		rec(domain.ModalityLIT, "2", "5", "Centro", 10),
		rec(domain.ModalityLIT, "10", "40", "Centro", 20),
		rec(domain.ModalityLIT, "1", "2", "Centro", 30),
	}

	summaries := GroupByCycle(records)
	require.Len(t, summaries, 3)

	var cycles []string
	for _, s := range summaries {
		cycles = append(cycles, s.Cycle)
	}
	assert.Equal(t, []string{"1", "2", "10"}, cycles)
}

func TestGroupByCycle_ModalityFirst(t *testing.T) {
	records := []domain.Record{
		rec(domain.ModalityPE, "1", "5", "Centro", 1),
		rec(domain.ModalityLIT, "3", "5", "Centro", 1),
		rec(domain.ModalityBloqueio, "9", "5", "Centro", 1),
	}

	summaries := GroupByCycle(records)
	require.Len(t, summaries, 3)
	assert.Equal(t, domain.ModalityBloqueio, summaries[0].WorkModality)
	assert.Equal(t, domain.ModalityLIT, summaries[1].WorkModality)
	assert.Equal(t, domain.ModalityPE, summaries[2].WorkModality)
}

func TestGroupByCycle_AdditiveTotals(t *testing.T) {
	records := []domain.Record{
		rec(domain.ModalityLIT, "1", "2", "Centro", 40),
		rec(domain.ModalityLIT, "1", "3", "Mangabinha", 25),
	}
	records[0].Counters.DepositsA1 = 3
	records[1].Counters.DepositsA1 = 4

	summaries := GroupByCycle(records)
	require.Len(t, summaries, 1)
	s := summaries[0]
	assert.Len(t, s.Localities, 2)
	assert.Equal(t, 65, s.Totals.PropertiesInspected)
	assert.Equal(t, 7, s.Totals.DepositsA1)
	assert.Equal(t, 2, s.Totals.StaffDays)
}

func TestGroupByCycle_Idempotent(t *testing.T) {
	records := []domain.Record{
		rec(domain.ModalityLIT, "10", "40", "Centro", 5),
		rec(domain.ModalityPE, "1", "2", "Centro", 7),
		rec(domain.ModalityLIT, "2", "5", "Mangabinha", 9),
		rec(domain.ModalityLIT, "10", "41", "Mangabinha", 11),
		rec(domain.ModalityLIT, "abc", "1", "Centro", 1),
	}

	first := GroupByCycle(records)
	second := GroupByCycle(FlattenCycles(first))
	assert.Equal(t, first, second)

	weeks := GroupByWeek(records)
	assert.Equal(t, weeks, GroupByWeek(FlattenWeeks(weeks)))
}

func TestGroupByWeek_NumericSort(t *testing.T) {
	records := []domain.Record{
		rec(domain.ModalityLIT, "1", "10", "Centro", 1),
		rec(domain.ModalityLIT, "1", "9", "Centro", 2),
		rec(domain.ModalityLIT, "1", "53", "Centro", 3),
		rec(domain.ModalityPE, "2", "9", "Mangabinha", 4),
	}

	weeks := GroupByWeek(records)
	require.Len(t, weeks, 3)
	assert.Equal(t, "9", weeks[0].EpidemiologicalWeek)
	assert.Equal(t, 6, weeks[0].Totals.PropertiesInspected)
	assert.Equal(t, "10", weeks[1].EpidemiologicalWeek)
	assert.Equal(t, "53", weeks[2].EpidemiologicalWeek)
}

func TestLessNumeric_NonNumericLast(t *testing.T) {
	assert.True(t, lessNumeric("2", "10"))
	assert.True(t, lessNumeric("99", "x"))
	assert.False(t, lessNumeric("x", "1"))
	assert.True(t, lessNumeric("03", "3"))
	assert.True(t, lessNumeric("a", "b"))
}

func TestTotal_Empty(t *testing.T) {
	assert.Equal(t, domain.Counters{}, Total(nil))
	assert.Empty(t, GroupByCycle(nil))
}
