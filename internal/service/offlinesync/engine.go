// Package offlinesync drains the on-device queue of day entries into the
// remote store. Entries are submitted strictly one at a time in capture order;
// a failed entry stays queued and never blocks the ones after it.
package offlinesync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/daybook-sync/internal/domain/models"
)

// DefaultStatusWindow is how long a finished cycle's result stays visible.
const DefaultStatusWindow = 5 * time.Second

// QueueStore is the durable queue the engine drains.
type QueueStore interface {
	Enqueue(ctx context.Context, entry models.PendingEntry) error
	ListPending(ctx context.Context) ([]models.PendingEntry, error)
	Count(ctx context.Context) (int, error)
	Remove(ctx context.Context, id string) error
}

// RemoteStore is the remote data collaborator. CreateDailyRecord must report
// an existing (business, date) row as models.ErrDuplicateRemoteRecord.
type RemoteStore interface {
	CreateDailyRecord(ctx context.Context, record models.DailyRecord) (string, error)
	CreateIncomeRecords(ctx context.Context, rows []models.IncomeRecord) error
	CreateReceiptRecords(ctx context.Context, rows []models.ReceiptRecord) error
	CreateParameterValues(ctx context.Context, rows []models.ParameterValue) error
	CreateProductUsage(ctx context.Context, rows []models.ProductUsageRecord) error
	UpdateProductStock(ctx context.Context, productID string, stock decimal.Decimal) error
}

// Connectivity reports whether the device is currently online.
type Connectivity interface {
	IsOnline() bool
}

// Engine runs drain cycles and the capture path.
type Engine struct {
	store        QueueStore
	remote       RemoteStore
	connectivity Connectivity
	logger       *zap.Logger
	now          func() time.Time
	window       time.Duration

	draining atomic.Bool

	mu         sync.Mutex
	lastResult *models.SyncOutcome
	clearTimer *time.Timer
}

// Option customises an Engine.
type Option func(*Engine)

// WithStatusWindow overrides how long the last outcome stays visible.
func WithStatusWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.window = d
		}
	}
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine wires an engine. A nil store puts the engine in queue-less mode:
// captured entries are submitted immediately and lost if that fails.
func NewEngine(store QueueStore, remote RemoteStore, connectivity Connectivity, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		store:        store,
		remote:       remote,
		connectivity: connectivity,
		logger:       logger,
		now:          time.Now,
		window:       DefaultStatusWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Drain runs one drain cycle. It returns false without doing anything when a
// cycle is already running or the device is offline. A cycle over an empty
// queue returns a SyncNone outcome and publishes no status.
func (e *Engine) Drain(ctx context.Context) (models.SyncOutcome, bool) {
	if !e.draining.CompareAndSwap(false, true) {
		e.logger.Debug("drain skipped, another cycle is running")
		return models.SyncOutcome{}, false
	}
	defer e.draining.Store(false)

	if !e.online() {
		e.logger.Debug("drain skipped, device offline")
		return models.SyncOutcome{}, false
	}

	if e.store == nil {
		return models.SyncOutcome{Status: models.SyncNone, FinishedAt: e.now()}, true
	}

	// Submissions are never cancelled half way: a cancelled but applied write
	// would only surface later as a duplicate.
	ctx = context.WithoutCancel(ctx)

	pending, err := e.store.ListPending(ctx)
	if err != nil {
		e.logger.Error("failed to list pending entries", zap.Error(err))
		outcome := models.SyncOutcome{Status: models.SyncError, Pending: e.count(ctx), FinishedAt: e.now()}
		drainsTotal.WithLabelValues(string(outcome.Status)).Inc()
		e.publish(outcome)
		return outcome, true
	}

	if len(pending) == 0 {
		pendingEntries.Set(0)
		return models.SyncOutcome{Status: models.SyncNone, FinishedAt: e.now()}, true
	}

	e.logger.Info("drain started", zap.Int("pending", len(pending)))

	outcome := models.SyncOutcome{Attempted: len(pending)}
	for _, entry := range pending {
		switch e.drainEntry(ctx, entry) {
		case resultCommitted, resultDuplicate:
			outcome.Committed++
		case resultRejected:
			outcome.Rejected++
		}
	}

	outcome.Status = models.ClassifyOutcome(outcome.Attempted, outcome.Committed)
	outcome.Pending = e.count(ctx)
	outcome.FinishedAt = e.now()

	drainsTotal.WithLabelValues(string(outcome.Status)).Inc()
	e.publish(outcome)

	e.logger.Info("drain finished",
		zap.String("status", string(outcome.Status)),
		zap.Int("attempted", outcome.Attempted),
		zap.Int("committed", outcome.Committed),
		zap.Int("rejected", outcome.Rejected),
		zap.Int("pending", outcome.Pending))

	return outcome, true
}

type entryResult string

const (
	resultCommitted entryResult = "committed"
	resultDuplicate entryResult = "duplicate"
	resultRejected  entryResult = "rejected"
	resultRetained  entryResult = "retained"
)

func (e *Engine) drainEntry(ctx context.Context, entry models.PendingEntry) entryResult {
	log := e.logger.With(zap.String("entry_id", entry.ID), zap.String("business_id", entry.BusinessID), zap.String("entry_date", entry.EntryDate))

	res, err := e.submit(ctx, entry)
	if res == resultRetained {
		log.Warn("entry kept for next drain", zap.Error(err))
		entriesTotal.WithLabelValues(string(res)).Inc()
		return res
	}
	if res == resultRejected {
		log.Error("entry rejected and dropped from queue", zap.Error(err))
	}

	if err := e.store.Remove(ctx, entry.ID); err != nil {
		// The remote already holds the day; the next cycle sees a duplicate.
		log.Error("failed to remove submitted entry", zap.Error(err))
	}

	entriesTotal.WithLabelValues(string(res)).Inc()
	log.Debug("entry drained", zap.String("result", string(res)))
	return res
}

// submit sends one entry and classifies the result. The nested rows are only
// sent when the primary record was created by this call.
func (e *Engine) submit(ctx context.Context, entry models.PendingEntry) (entryResult, error) {
	if err := entry.Validate(); err != nil {
		return resultRejected, err
	}

	recordID, err := e.remote.CreateDailyRecord(ctx, models.DailyRecord{
		BusinessID: entry.BusinessID,
		EntryDate:  entry.EntryDate,
		Fields:     entry.CoreFields,
		UserID:     entry.UserID,
		CapturedAt: entry.CapturedAt(),
	})
	if errors.Is(err, models.ErrDuplicateRemoteRecord) {
		return resultDuplicate, nil
	}
	if err != nil {
		return resultRetained, transient("create daily record", err)
	}

	if err := e.submitNested(ctx, recordID, entry); err != nil {
		return resultRetained, transient("submit nested records", err)
	}

	return resultCommitted, nil
}

func (e *Engine) submitNested(ctx context.Context, recordID string, entry models.PendingEntry) error {
	if rows := incomeRows(recordID, entry.IncomeBreakdown); len(rows) > 0 {
		if err := e.remote.CreateIncomeRecords(ctx, rows); err != nil {
			return fmt.Errorf("income records: %w", err)
		}
	}

	if rows := receiptRows(recordID, entry.Receipts); len(rows) > 0 {
		if err := e.remote.CreateReceiptRecords(ctx, rows); err != nil {
			return fmt.Errorf("receipt records: %w", err)
		}
	}

	if rows := parameterRows(recordID, entry.CustomParameters); len(rows) > 0 {
		if err := e.remote.CreateParameterValues(ctx, rows); err != nil {
			return fmt.Errorf("parameter values: %w", err)
		}
	}

	if rows := productUsageRows(recordID, entry.ProductUsage); len(rows) > 0 {
		if err := e.remote.CreateProductUsage(ctx, rows); err != nil {
			return fmt.Errorf("product usage: %w", err)
		}
		for _, row := range rows {
			if err := e.remote.UpdateProductStock(ctx, row.ProductID, row.ClosingStock); err != nil {
				return fmt.Errorf("stock of %s: %w", row.ProductID, err)
			}
		}
	}

	return nil
}

// Capture is the entry capture path. The entry is stamped with an id and
// capture time. It is submitted straight away only when online, no drain is
// running and nothing older is queued; otherwise, or when that submission
// fails, it is queued for the next drain. Without a queue store a failed
// submission is returned to the caller and the entry is lost.
func (e *Engine) Capture(ctx context.Context, entry models.PendingEntry) (models.PendingEntry, bool, error) {
	entry = models.NewPendingEntry(entry, e.now())
	if err := entry.Validate(); err != nil {
		return entry, false, err
	}

	res, tried, err := e.submitDirect(ctx, entry)
	if tried {
		switch res {
		case resultCommitted, resultDuplicate:
			entriesTotal.WithLabelValues(string(res)).Inc()
			return entry, true, nil
		case resultRejected:
			return entry, false, err
		}
		e.logger.Warn("immediate submission failed, queueing entry", zap.String("entry_id", entry.ID), zap.Error(err))
		if e.store == nil {
			return entry, false, err
		}
	} else if e.store == nil {
		return entry, false, fmt.Errorf("capture %s: %w", entry.ID, models.ErrStorageUnavailable)
	}

	if err := e.store.Enqueue(ctx, entry); err != nil {
		return entry, false, fmt.Errorf("queue entry %s: %w", entry.ID, err)
	}
	pendingEntries.Set(float64(e.count(ctx)))

	return entry, false, nil
}

// submitDirect submits entry while holding the drain guard. tried is false
// when the entry must go through the queue instead: offline, a drain is
// running, or older entries are still queued.
func (e *Engine) submitDirect(ctx context.Context, entry models.PendingEntry) (entryResult, bool, error) {
	if !e.online() || !e.draining.CompareAndSwap(false, true) {
		return "", false, nil
	}
	defer e.draining.Store(false)

	if e.store != nil {
		n, err := e.store.Count(ctx)
		if err != nil {
			e.logger.Warn("failed to count pending entries, queueing entry", zap.Error(err))
			return "", false, nil
		}
		if n > 0 {
			return "", false, nil
		}
	}

	res, err := e.submit(context.WithoutCancel(ctx), entry)
	return res, true, err
}

// Status reports the observable engine state. LastResult is nil once the
// display window of the last cycle has elapsed.
func (e *Engine) Status(ctx context.Context) models.SyncState {
	e.mu.Lock()
	var last *models.SyncOutcome
	if e.lastResult != nil {
		copied := *e.lastResult
		last = &copied
	}
	e.mu.Unlock()

	return models.SyncState{
		Syncing:      e.draining.Load(),
		Online:       e.online(),
		PendingCount: e.count(ctx),
		LastResult:   last,
	}
}

// IsDraining reports whether a cycle is running.
func (e *Engine) IsDraining() bool {
	return e.draining.Load()
}

func (e *Engine) publish(outcome models.SyncOutcome) {
	pendingEntries.Set(float64(outcome.Pending))

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.clearTimer != nil {
		e.clearTimer.Stop()
	}
	result := outcome
	e.lastResult = &result
	e.clearTimer = time.AfterFunc(e.window, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.lastResult == &result {
			e.lastResult = nil
		}
	})
}

func (e *Engine) count(ctx context.Context) int {
	if e.store == nil {
		return 0
	}
	n, err := e.store.Count(ctx)
	if err != nil {
		e.logger.Warn("failed to count pending entries", zap.Error(err))
		return 0
	}
	return n
}

func (e *Engine) online() bool {
	return e.connectivity == nil || e.connectivity.IsOnline()
}

func transient(step string, err error) error {
	if errors.Is(err, models.ErrTransientSubmission) {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%s: %w: %v", step, models.ErrTransientSubmission, err)
}

func incomeRows(recordID string, lines map[string]models.IncomeLine) []models.IncomeRecord {
	var rows []models.IncomeRecord
	for _, id := range sortedKeys(lines) {
		line := lines[id]
		if line.Amount.IsZero() {
			continue
		}
		rows = append(rows, models.IncomeRecord{
			DailyRecordID:  recordID,
			IncomeSourceID: id,
			Amount:         line.Amount,
			OrderCount:     line.OrderCount,
		})
	}
	return rows
}

func receiptRows(recordID string, receipts map[string]decimal.Decimal) []models.ReceiptRecord {
	var rows []models.ReceiptRecord
	for _, id := range sortedKeys(receipts) {
		if receipts[id].IsZero() {
			continue
		}
		rows = append(rows, models.ReceiptRecord{DailyRecordID: recordID, ReceiptTypeID: id, Amount: receipts[id]})
	}
	return rows
}

func parameterRows(recordID string, params map[string]decimal.Decimal) []models.ParameterValue {
	var rows []models.ParameterValue
	for _, id := range sortedKeys(params) {
		if params[id].IsZero() {
			continue
		}
		rows = append(rows, models.ParameterValue{DailyRecordID: recordID, ParameterID: id, Value: params[id]})
	}
	return rows
}

func productUsageRows(recordID string, usage map[string]models.ProductUsage) []models.ProductUsageRecord {
	var rows []models.ProductUsageRecord
	for _, id := range sortedKeys(usage) {
		u := usage[id]
		if u.IsZero() {
			continue
		}
		rows = append(rows, models.ProductUsageRecord{
			DailyRecordID:    recordID,
			ProductID:        id,
			OpeningStock:     u.OpeningStock,
			ReceivedQuantity: u.ReceivedQuantity,
			ClosingStock:     u.ClosingStock,
			QuantityUsed:     u.QuantityUsed(),
		})
	}
	return rows
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
