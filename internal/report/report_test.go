package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectConditions(t *testing.T) {
	got := DetectConditions("Your fasting glucose and HbA1c are high. Also watch your LDL cholesterol.")
	assert.Equal(t, []string{"Diabetes", "High Cholesterol"}, got)

	assert.Equal(t, []string{GeneralHealth}, DetectConditions("Everything looks fine."))

	// "ast" inside "breakfast" and "bp" inside words must not match.
	assert.Equal(t, []string{GeneralHealth}, DetectConditions("Have a big breakfast before the subpoena."))

	assert.Equal(t, []string{"Hypertension"}, DetectConditions("BP 150/95"))

	assert.Equal(t, []string{"Kidney"}, DetectConditions("Your kidneys are filtering normally."))
	assert.Equal(t, []string{"Vitamin D Deficiency"}, DetectConditions("Vitamin D3 is low at 12 ng/mL."))
	assert.Equal(t, []string{"High Cholesterol"}, DetectConditions("Blood lipids are elevated."))
}

func TestNew(t *testing.T) {
	now := time.Date(2025, 12, 4, 10, 0, 0, 0, time.UTC)
	long := strings.Repeat("a", 600)
	r := New("s1", long, "Your thyroid TSH is high", "Eat iodine-rich foods", "Day 1", now)

	assert.Equal(t, now.UnixMilli(), r.ID)
	assert.Equal(t, 503, len(r.InputExcerpt))
	assert.True(t, strings.HasSuffix(r.InputExcerpt, "..."))
	assert.Equal(t, []string{"Thyroid"}, r.Conditions)

	short := New("s1", "short text", "", "", "", now)
	assert.Equal(t, "short text", short.InputExcerpt)
}

func TestComputeStats(t *testing.T) {
	empty := ComputeStats(nil)
	assert.Equal(t, 0, empty.TotalReports)
	assert.Equal(t, "None", empty.MostCommonCondition)
	assert.Nil(t, empty.FirstReportDate)

	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	t3 := t2.Add(24 * time.Hour)
	reports := []*Report{
		{CreatedAt: t3, Conditions: []string{"Hypertension", "Diabetes"}},
		{CreatedAt: t2, Conditions: []string{"Diabetes"}},
		{CreatedAt: t1, Conditions: []string{"Hypertension"}},
	}
	stats := ComputeStats(reports)
	assert.Equal(t, 3, stats.TotalReports)
	assert.Equal(t, map[string]int{"Hypertension": 2, "Diabetes": 2}, stats.ConditionCounts)
	assert.Equal(t, "Hypertension", stats.MostCommonCondition)
	assert.Equal(t, []string{"Hypertension", "Diabetes"}, stats.DistinctConditions)
	assert.Equal(t, t1, *stats.FirstReportDate)
	assert.Equal(t, t3, *stats.LastReportDate)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	a := New("s1", "first report", "glucose high", "", "", now)
	b := New("s1", "second report", "cholesterol high", "", "", now)
	c := New("s2", "other session", "", "", "", now)

	idA, err := s.Save(ctx, a)
	require.NoError(t, err)
	idB, err := s.Save(ctx, b)
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)
	_, err = s.Save(ctx, c)
	require.NoError(t, err)

	list, err := s.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second report", list[0].InputExcerpt)

	got, err := s.Get(ctx, idA)
	require.NoError(t, err)
	assert.Equal(t, "first report", got.InputExcerpt)

	require.NoError(t, s.Delete(ctx, idA))
	_, err = s.Get(ctx, idA)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, idA), ErrNotFound)

	list, _ = s.List(ctx, "s1")
	assert.Len(t, list, 1)
}
