package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementType enumerates how an income source pays out.
type SettlementType string

const (
	SettlementSameDay   SettlementType = "same_day"
	SettlementDaily     SettlementType = "daily"
	SettlementWeekly    SettlementType = "weekly"
	SettlementMonthly   SettlementType = "monthly"
	SettlementBimonthly SettlementType = "bimonthly"
	SettlementCustom    SettlementType = "custom"
)

// IncomeSource is externally owned reference data describing a sales channel
// and its settlement policy. Only the policy fields matching SettlementType are
// read; nil means "use the default".
type IncomeSource struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	SettlementType      SettlementType  `json:"settlement_type"`
	CommissionRate      decimal.Decimal `json:"commission_rate"`
	DelayDays           *int            `json:"delay_days,omitempty"`
	DayOfWeek           *int            `json:"day_of_week,omitempty"`
	DayOfMonth          *int            `json:"day_of_month,omitempty"`
	BimonthlyCutoff     *int            `json:"bimonthly_cutoff,omitempty"`
	FirstSettlementDay  *int            `json:"first_settlement_day,omitempty"`
	SecondSettlementDay *int            `json:"second_settlement_day,omitempty"`
	CouponSettlementDay *int            `json:"coupon_settlement_day,omitempty"`
}

// IncomeEntry is a raw income amount recorded against a source on a given day.
type IncomeEntry struct {
	IncomeSourceID string          `json:"income_source_id"`
	EntryDate      time.Time       `json:"entry_date"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
}

// SettledIncome projects an income amount onto the day it reaches the bank.
// It is derived and never persisted.
type SettledIncome struct {
	SettlementDate    time.Time       `json:"settlement_date"`
	SourceID          string          `json:"source_id"`
	SourceName        string          `json:"source_name"`
	OriginalEntryDate time.Time       `json:"original_entry_date"`
	GrossAmount       decimal.Decimal `json:"gross_amount"`
	FeeAmount         decimal.Decimal `json:"fee_amount"`
	NetAmount         decimal.Decimal `json:"net_amount"`
}
