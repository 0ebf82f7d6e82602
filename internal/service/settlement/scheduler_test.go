package settlement

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/daybook-sync/internal/domain/models"
)

func date(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse(models.DateLayout, value)
	require.NoError(t, err)
	return d
}

func intPtr(v int) *int { return &v }

func TestScheduleSettlement(t *testing.T) {
	tests := []struct {
		name      string
		entryDate string
		source    models.IncomeSource
		want      string
	}{
		{
			name:      "same day",
			entryDate: "2024-03-10",
			source:    models.IncomeSource{SettlementType: models.SettlementSameDay},
			want:      "2024-03-10",
		},
		{
			name:      "daily default delay",
			entryDate: "2024-03-10",
			source:    models.IncomeSource{SettlementType: models.SettlementDaily},
			want:      "2024-03-11",
		},
		{
			name:      "daily custom delay crosses month",
			entryDate: "2024-03-30",
			source:    models.IncomeSource{SettlementType: models.SettlementDaily, DelayDays: intPtr(3)},
			want:      "2024-04-02",
		},
		{
			name:      "weekly later in week",
			entryDate: "2024-03-11", // Monday
			source:    models.IncomeSource{SettlementType: models.SettlementWeekly, DayOfWeek: intPtr(5)},
			want:      "2024-03-15",
		},
		{
			name:      "weekly earlier weekday rolls forward",
			entryDate: "2024-03-15", // Friday
			source:    models.IncomeSource{SettlementType: models.SettlementWeekly, DayOfWeek: intPtr(2)},
			want:      "2024-03-19",
		},
		{
			name:      "weekly sunday on sunday settles next week",
			entryDate: "2024-03-10", // Sunday
			source:    models.IncomeSource{SettlementType: models.SettlementWeekly, DayOfWeek: intPtr(0)},
			want:      "2024-03-17",
		},
		{
			name:      "monthly default day",
			entryDate: "2024-03-10",
			source:    models.IncomeSource{SettlementType: models.SettlementMonthly},
			want:      "2024-04-01",
		},
		{
			name:      "monthly across year end",
			entryDate: "2024-12-20",
			source:    models.IncomeSource{SettlementType: models.SettlementMonthly, DayOfMonth: intPtr(10)},
			want:      "2025-01-10",
		},
		{
			name:      "monthly day clamps to month length",
			entryDate: "2024-01-15",
			source:    models.IncomeSource{SettlementType: models.SettlementMonthly, DayOfMonth: intPtr(31)},
			want:      "2024-02-29",
		},
		{
			name:      "bimonthly on cutoff",
			entryDate: "2024-05-14",
			source:    models.IncomeSource{SettlementType: models.SettlementBimonthly, BimonthlyCutoff: intPtr(14)},
			want:      "2024-06-02",
		},
		{
			name:      "bimonthly after cutoff",
			entryDate: "2024-05-15",
			source:    models.IncomeSource{SettlementType: models.SettlementBimonthly, BimonthlyCutoff: intPtr(14)},
			want:      "2024-06-08",
		},
		{
			name:      "bimonthly custom days",
			entryDate: "2024-05-20",
			source: models.IncomeSource{
				SettlementType:      models.SettlementBimonthly,
				BimonthlyCutoff:     intPtr(20),
				FirstSettlementDay:  intPtr(5),
				SecondSettlementDay: intPtr(25),
			},
			want: "2024-06-05",
		},
		{
			name:      "custom coupon default",
			entryDate: "2024-05-20",
			source:    models.IncomeSource{SettlementType: models.SettlementCustom},
			want:      "2024-06-01",
		},
		{
			name:      "custom coupon day",
			entryDate: "2024-05-20",
			source:    models.IncomeSource{SettlementType: models.SettlementCustom, CouponSettlementDay: intPtr(15)},
			want:      "2024-06-15",
		},
		{
			name:      "unknown type falls back to entry date",
			entryDate: "2024-05-20",
			source:    models.IncomeSource{SettlementType: "quarterly"},
			want:      "2024-05-20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScheduleSettlement(date(t, tt.entryDate), tt.source)
			assert.Equal(t, tt.want, got.Format(models.DateLayout))
		})
	}
}

func TestScheduleSettlement_IgnoresTimeOfDay(t *testing.T) {
	source := models.IncomeSource{SettlementType: models.SettlementDaily}
	entry := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)

	got := ScheduleSettlement(entry, source)

	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), got)
}

func TestScheduleSettlement_Deterministic(t *testing.T) {
	source := models.IncomeSource{SettlementType: models.SettlementBimonthly}
	entry := date(t, "2024-07-22")

	first := ScheduleSettlement(entry, source)
	second := ScheduleSettlement(entry, source)

	assert.True(t, first.Equal(second))
}

func TestCalculateSettledIncome_Example(t *testing.T) {
	sources := []models.IncomeSource{{
		ID:             "card",
		Name:           "Card terminal",
		SettlementType: models.SettlementMonthly,
		CommissionRate: decimal.NewFromInt(2),
		DayOfMonth:     intPtr(5),
	}}
	entries := []models.IncomeEntry{{
		IncomeSourceID: "card",
		EntryDate:      date(t, "2024-01-31"),
		GrossAmount:    decimal.NewFromInt(1000),
	}}

	buckets := CalculateSettledIncome(entries, sources)

	require.Len(t, buckets, 1)
	bucket := buckets["2024-02-05"]
	require.Len(t, bucket, 1)
	assert.Equal(t, "20.00", bucket[0].FeeAmount.StringFixed(2))
	assert.Equal(t, "980.00", bucket[0].NetAmount.StringFixed(2))
	assert.Equal(t, "Card terminal", bucket[0].SourceName)
	assert.Equal(t, "2024-01-31", bucket[0].OriginalEntryDate.Format(models.DateLayout))
}

func TestCalculateSettledIncome_EmptyInput(t *testing.T) {
	buckets := CalculateSettledIncome(nil, []models.IncomeSource{{ID: "cash"}})

	assert.NotNil(t, buckets)
	assert.Empty(t, buckets)
}

func TestCalculateSettledIncome_UnknownSourceSkipped(t *testing.T) {
	sources := []models.IncomeSource{{ID: "cash", SettlementType: models.SettlementSameDay}}
	entries := []models.IncomeEntry{
		{IncomeSourceID: "delivery-app", EntryDate: date(t, "2024-02-01"), GrossAmount: decimal.NewFromInt(300)},
		{IncomeSourceID: "cash", EntryDate: date(t, "2024-02-01"), GrossAmount: decimal.NewFromInt(120)},
	}

	buckets := CalculateSettledIncome(entries, sources)

	require.Len(t, buckets, 1)
	require.Len(t, buckets["2024-02-01"], 1)
	assert.Equal(t, "cash", buckets["2024-02-01"][0].SourceID)
	assert.True(t, buckets["2024-02-01"][0].FeeAmount.IsZero())
}

func TestCalculateSettledIncome_BucketKeepsInputOrder(t *testing.T) {
	sources := []models.IncomeSource{
		{ID: "a", Name: "A", SettlementType: models.SettlementMonthly},
		{ID: "b", Name: "B", SettlementType: models.SettlementCustom},
	}
	entries := []models.IncomeEntry{
		{IncomeSourceID: "b", EntryDate: date(t, "2024-02-03"), GrossAmount: decimal.NewFromInt(10)},
		{IncomeSourceID: "a", EntryDate: date(t, "2024-02-10"), GrossAmount: decimal.NewFromInt(20)},
		{IncomeSourceID: "b", EntryDate: date(t, "2024-02-28"), GrossAmount: decimal.NewFromInt(30)},
	}

	buckets := CalculateSettledIncome(entries, sources)

	bucket := buckets["2024-03-01"]
	require.Len(t, bucket, 3)
	assert.Equal(t, []string{"10", "20", "30"}, []string{
		bucket[0].GrossAmount.String(),
		bucket[1].GrossAmount.String(),
		bucket[2].GrossAmount.String(),
	})
}

func TestApplyCommission(t *testing.T) {
	tests := []struct {
		gross, rate, fee, net string
	}{
		{"1000", "2", "20.00", "980.00"},
		{"99.99", "0", "0.00", "99.99"},
		{"123.45", "2.5", "3.09", "120.36"},
		{"10", "33.333", "3.33", "6.67"},
	}

	for _, tt := range tests {
		gross := decimal.RequireFromString(tt.gross)
		fee, net := ApplyCommission(gross, decimal.RequireFromString(tt.rate))

		assert.Equal(t, tt.fee, fee.StringFixed(2), "fee for %s at %s%%", tt.gross, tt.rate)
		assert.Equal(t, tt.net, net.StringFixed(2), "net for %s at %s%%", tt.gross, tt.rate)
		assert.True(t, gross.Equal(fee.Add(net)))
	}
}

func TestSortedDatesAndTotals(t *testing.T) {
	buckets := map[string][]models.SettledIncome{
		"2024-03-02": {{GrossAmount: decimal.NewFromInt(5), FeeAmount: decimal.NewFromInt(1), NetAmount: decimal.NewFromInt(4)}},
		"2024-02-28": {
			{GrossAmount: decimal.NewFromInt(10), FeeAmount: decimal.Zero, NetAmount: decimal.NewFromInt(10)},
			{GrossAmount: decimal.NewFromInt(20), FeeAmount: decimal.NewFromInt(2), NetAmount: decimal.NewFromInt(18)},
		},
	}

	assert.Equal(t, []string{"2024-02-28", "2024-03-02"}, SortedDates(buckets))

	gross, fee, net := Totals(buckets["2024-02-28"])
	assert.Equal(t, "30", gross.String())
	assert.Equal(t, "2", fee.String())
	assert.Equal(t, "28", net.String())
}
