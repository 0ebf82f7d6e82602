package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used for entry and settlement dates.
const DateLayout = "2006-01-02"

// IncomeLine captures the takings of one income source for the day.
type IncomeLine struct {
	Amount     decimal.Decimal `json:"amount"`
	OrderCount int             `json:"order_count"`
}

// ProductUsage captures stock movement of one product for the day.
type ProductUsage struct {
	OpeningStock     decimal.Decimal `json:"opening_stock"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	ClosingStock     decimal.Decimal `json:"closing_stock"`
}

// QuantityUsed is opening + received - closing.
func (p ProductUsage) QuantityUsed() decimal.Decimal {
	return p.OpeningStock.Add(p.ReceivedQuantity).Sub(p.ClosingStock)
}

// IsZero reports whether the row carries no stock information at all.
func (p ProductUsage) IsZero() bool {
	return p.OpeningStock.IsZero() && p.ReceivedQuantity.IsZero() && p.ClosingStock.IsZero()
}

// PendingEntry is one business day captured while offline and waiting to be
// submitted. It is never mutated after creation; the queue only adds and
// removes whole entries.
type PendingEntry struct {
	ID               string                     `json:"id"`
	BusinessID       string                     `json:"business_id"`
	EntryDate        string                     `json:"entry_date"`
	Timestamp        int64                      `json:"timestamp"`
	CoreFields       map[string]any             `json:"core_fields"`
	IncomeBreakdown  map[string]IncomeLine      `json:"income_breakdown,omitempty"`
	Receipts         map[string]decimal.Decimal `json:"receipts,omitempty"`
	CustomParameters map[string]decimal.Decimal `json:"custom_parameters,omitempty"`
	ProductUsage     map[string]ProductUsage    `json:"product_usage,omitempty"`
	UserID           string                     `json:"user_id,omitempty"`
}

// NewPendingEntry stamps a captured entry with a fresh identifier and the
// capture time.
func NewPendingEntry(entry PendingEntry, capturedAt time.Time) PendingEntry {
	entry.ID = uuid.NewString()
	entry.Timestamp = capturedAt.UnixNano()
	return entry
}

// CapturedAt returns the capture timestamp as a time value.
func (e PendingEntry) CapturedAt() time.Time {
	return time.Unix(0, e.Timestamp).UTC()
}

// Validate checks the fields without which the remote store can never accept
// the entry.
func (e PendingEntry) Validate() error {
	switch {
	case e.ID == "":
		return invalidEntry("id is required")
	case e.BusinessID == "":
		return invalidEntry("business_id is required")
	case e.EntryDate == "":
		return invalidEntry("entry_date is required")
	}

	if _, err := time.Parse(DateLayout, e.EntryDate); err != nil {
		return invalidEntry("entry_date must use YYYY-MM-DD")
	}

	return nil
}

// DailyRecord is the primary remote row created for an entry.
type DailyRecord struct {
	BusinessID string         `json:"business_id"`
	EntryDate  string         `json:"entry_date"`
	Fields     map[string]any `json:"fields"`
	UserID     string         `json:"user_id,omitempty"`
	CapturedAt time.Time      `json:"captured_at"`
}

// IncomeRecord is a nested income row referencing a DailyRecord.
type IncomeRecord struct {
	DailyRecordID  string          `json:"daily_entry_id"`
	IncomeSourceID string          `json:"income_source_id"`
	Amount         decimal.Decimal `json:"amount"`
	OrderCount     int             `json:"order_count"`
}

// ReceiptRecord is a nested receipt-type row referencing a DailyRecord.
type ReceiptRecord struct {
	DailyRecordID string          `json:"daily_entry_id"`
	ReceiptTypeID string          `json:"receipt_type_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// ParameterValue is a nested custom parameter row referencing a DailyRecord.
type ParameterValue struct {
	DailyRecordID string          `json:"daily_entry_id"`
	ParameterID   string          `json:"parameter_id"`
	Value         decimal.Decimal `json:"value"`
}

// ProductUsageRecord is a nested stock movement row referencing a DailyRecord.
type ProductUsageRecord struct {
	DailyRecordID    string          `json:"daily_entry_id"`
	ProductID        string          `json:"product_id"`
	OpeningStock     decimal.Decimal `json:"opening_stock"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	ClosingStock     decimal.Decimal `json:"closing_stock"`
	QuantityUsed     decimal.Decimal `json:"quantity_used"`
}
