package settlement

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mamadbah2/daybook-sync/internal/domain/models"
)

const (
	defaultDelayDays           = 1
	defaultDayOfWeek           = int(time.Monday)
	defaultDayOfMonth          = 1
	defaultBimonthlyCutoff     = 14
	defaultFirstSettlementDay  = 2
	defaultSecondSettlementDay = 8
	defaultCouponSettlementDay = 1

	moneyPlaces = 2
)

var hundred = decimal.NewFromInt(100)

// ScheduleSettlement returns the calendar date on which income recorded on
// entryDate reaches the bank under the source's settlement policy. Unknown
// settlement types settle on the entry date.
func ScheduleSettlement(entryDate time.Time, source models.IncomeSource) time.Time {
	day := dateOnly(entryDate)

	switch source.SettlementType {
	case models.SettlementSameDay:
		return day
	case models.SettlementDaily:
		return day.AddDate(0, 0, intOr(source.DelayDays, defaultDelayDays))
	case models.SettlementWeekly:
		target := intOr(source.DayOfWeek, defaultDayOfWeek)
		offset := target - int(day.Weekday())
		if offset <= 0 {
			offset += 7
		}
		return day.AddDate(0, 0, offset)
	case models.SettlementMonthly:
		return dayOfNextMonth(day, intOr(source.DayOfMonth, defaultDayOfMonth))
	case models.SettlementBimonthly:
		if day.Day() <= intOr(source.BimonthlyCutoff, defaultBimonthlyCutoff) {
			return dayOfNextMonth(day, intOr(source.FirstSettlementDay, defaultFirstSettlementDay))
		}
		return dayOfNextMonth(day, intOr(source.SecondSettlementDay, defaultSecondSettlementDay))
	case models.SettlementCustom:
		return dayOfNextMonth(day, intOr(source.CouponSettlementDay, defaultCouponSettlementDay))
	default:
		return day
	}
}

// CalculateSettledIncome buckets income entries by settlement date, keyed by
// the YYYY-MM-DD form of the date. Entries whose source is unknown are skipped.
// Within a bucket, entries keep their input order.
func CalculateSettledIncome(entries []models.IncomeEntry, sources []models.IncomeSource) map[string][]models.SettledIncome {
	buckets := make(map[string][]models.SettledIncome)
	if len(entries) == 0 {
		return buckets
	}

	byID := make(map[string]models.IncomeSource, len(sources))
	for _, source := range sources {
		byID[source.ID] = source
	}

	for _, entry := range entries {
		source, ok := byID[entry.IncomeSourceID]
		if !ok {
			continue
		}

		settledOn := ScheduleSettlement(entry.EntryDate, source)
		fee, net := ApplyCommission(entry.GrossAmount, source.CommissionRate)

		key := settledOn.Format(models.DateLayout)
		buckets[key] = append(buckets[key], models.SettledIncome{
			SettlementDate:    settledOn,
			SourceID:          source.ID,
			SourceName:        source.Name,
			OriginalEntryDate: dateOnly(entry.EntryDate),
			GrossAmount:       entry.GrossAmount,
			FeeAmount:         fee,
			NetAmount:         net,
		})
	}

	return buckets
}

// ApplyCommission returns the fee and net amount for a gross amount at a
// percentage commission rate. The fee is rounded to cents and the net is
// derived from it so that gross = fee + net always holds.
func ApplyCommission(gross, ratePercent decimal.Decimal) (fee, net decimal.Decimal) {
	fee = gross.Mul(ratePercent).Div(hundred).Round(moneyPlaces)
	net = gross.Sub(fee)
	return fee, net
}

// SortedDates returns the bucket keys in chronological order.
func SortedDates(buckets map[string][]models.SettledIncome) []string {
	dates := make([]string, 0, len(buckets))
	for date := range buckets {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// Totals sums one bucket.
func Totals(bucket []models.SettledIncome) (gross, fee, net decimal.Decimal) {
	for _, item := range bucket {
		gross = gross.Add(item.GrossAmount)
		fee = fee.Add(item.FeeAmount)
		net = net.Add(item.NetAmount)
	}
	return gross, fee, net
}

func dayOfNextMonth(day time.Time, dayOfMonth int) time.Time {
	firstOfNext := time.Date(day.Year(), day.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstOfNext.AddDate(0, 1, -1).Day()

	switch {
	case dayOfMonth < 1:
		dayOfMonth = 1
	case dayOfMonth > lastDay:
		dayOfMonth = lastDay
	}

	return time.Date(firstOfNext.Year(), firstOfNext.Month(), dayOfMonth, 0, 0, 0, 0, time.UTC)
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func intOr(value *int, fallback int) int {
	if value == nil {
		return fallback
	}
	return *value
}
