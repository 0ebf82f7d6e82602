package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingEntryValidate(t *testing.T) {
	valid := PendingEntry{ID: "e1", BusinessID: "biz-1", EntryDate: "2024-05-01"}
	require.NoError(t, valid.Validate())

	cases := map[string]PendingEntry{
		"missing id":       {BusinessID: "biz-1", EntryDate: "2024-05-01"},
		"missing business": {ID: "e1", EntryDate: "2024-05-01"},
		"missing date":     {ID: "e1", BusinessID: "biz-1"},
		"bad date":         {ID: "e1", BusinessID: "biz-1", EntryDate: "2024-13-01"},
	}
	for name, entry := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, entry.Validate(), ErrInvalidEntry)
		})
	}
}

func TestNewPendingEntry(t *testing.T) {
	at := time.Date(2024, 5, 1, 21, 0, 0, 0, time.UTC)

	a := NewPendingEntry(PendingEntry{BusinessID: "biz-1"}, at)
	b := NewPendingEntry(PendingEntry{BusinessID: "biz-1"}, at)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, at, a.CapturedAt())
	assert.Equal(t, "biz-1", a.BusinessID)
}

func TestProductUsage(t *testing.T) {
	u := ProductUsage{
		OpeningStock:     decimal.NewFromInt(20),
		ReceivedQuantity: decimal.RequireFromString("5.5"),
		ClosingStock:     decimal.NewFromInt(11),
	}

	assert.Equal(t, "14.5", u.QuantityUsed().String())
	assert.False(t, u.IsZero())
	assert.True(t, ProductUsage{}.IsZero())
}

func TestClassifyOutcome(t *testing.T) {
	assert.Equal(t, SyncNone, ClassifyOutcome(0, 0))
	assert.Equal(t, SyncSuccess, ClassifyOutcome(3, 3))
	assert.Equal(t, SyncPartial, ClassifyOutcome(3, 2))
	assert.Equal(t, SyncError, ClassifyOutcome(3, 0))
}
