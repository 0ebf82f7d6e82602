package models

import "time"

// SyncStatus classifies a finished drain cycle.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "success"
	SyncPartial SyncStatus = "partial"
	SyncError   SyncStatus = "error"
	SyncNone    SyncStatus = "none"
)

// SyncOutcome is the result of one drain cycle.
type SyncOutcome struct {
	Status     SyncStatus `json:"status"`
	Attempted  int        `json:"attempted"`
	Committed  int        `json:"committed"`
	Pending    int        `json:"pending"`
	Rejected   int        `json:"rejected"`
	FinishedAt time.Time  `json:"finished_at"`
}

// ClassifyOutcome derives the status from per-cycle counters.
func ClassifyOutcome(attempted, committed int) SyncStatus {
	switch {
	case attempted == 0:
		return SyncNone
	case committed == attempted:
		return SyncSuccess
	case committed > 0:
		return SyncPartial
	default:
		return SyncError
	}
}

// SyncState is the observable engine state exposed to callers.
type SyncState struct {
	Syncing      bool         `json:"syncing"`
	Online       bool         `json:"online"`
	PendingCount int          `json:"pending_count"`
	LastResult   *SyncOutcome `json:"last_result,omitempty"`
}
