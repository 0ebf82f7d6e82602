// Package sqlite keeps the on-device queue of pending day entries and the
// cached reference configuration in a single SQLite file. WAL journaling makes
// every committed enqueue survive a crash or restart.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mamadbah2/daybook-sync/internal/domain/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending_entries (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	business_id TEXT NOT NULL,
	captured_at INTEGER NOT NULL,
	payload     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pending_entries_fifo ON pending_entries (captured_at, seq);

CREATE TABLE IF NOT EXISTS reference_config (
	business_id TEXT PRIMARY KEY,
	payload     TEXT NOT NULL,
	saved_at    INTEGER NOT NULL
);
`

// QueueStore is the durable queue of pending entries plus the reference
// config cache.
type QueueStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens the queue database at path and migrates the schema.
// Any failure is reported as models.ErrStorageUnavailable so callers can fall
// back to queue-less operation.
func Open(ctx context.Context, path string, logger *zap.Logger) (*QueueStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", models.ErrStorageUnavailable, path, err)
	}
	// A single connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate %s: %v", models.ErrStorageUnavailable, path, err)
	}

	logger.Debug("queue store opened", zap.String("path", path))

	return &QueueStore{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *QueueStore) Close() error {
	return s.db.Close()
}

// Enqueue persists the entry keyed by its id. Enqueueing an id that is already
// queued keeps the original row.
func (s *QueueStore) Enqueue(ctx context.Context, entry models.PendingEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("enqueue: %w: id is required", models.ErrInvalidEntry)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", entry.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_entries (id, business_id, captured_at, payload) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		entry.ID, entry.BusinessID, entry.Timestamp, string(payload))
	if err != nil {
		return fmt.Errorf("enqueue entry %s: %w", entry.ID, err)
	}

	s.logger.Debug("entry queued", zap.String("entry_id", entry.ID), zap.String("business_id", entry.BusinessID))
	return nil
}

// ListPending returns every queued entry, oldest capture first. Rows with the
// same timestamp keep insertion order.
func (s *QueueStore) ListPending(ctx context.Context) ([]models.PendingEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM pending_entries ORDER BY captured_at ASC, seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending entries: %w", err)
	}
	defer rows.Close()

	var entries []models.PendingEntry
	for rows.Next() {
		var (
			id      string
			payload string
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}

		var entry models.PendingEntry
		if err := decodeEntry(payload, &entry); err != nil {
			// Keep the id so the engine can still reject and remove the row.
			s.logger.Warn("undecodable queued entry", zap.String("entry_id", id), zap.Error(err))
			entry = models.PendingEntry{ID: id}
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending entries: %w", err)
	}

	return entries, nil
}

// decodeEntry keeps numeric core fields as json.Number so large integers and
// exact amounts survive the round trip.
func decodeEntry(payload string, entry *models.PendingEntry) error {
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	return dec.Decode(entry)
}

// Count returns the number of queued entries.
func (s *QueueStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending entries: %w", err)
	}
	return n, nil
}

// Remove deletes the entry. Removing an id that is not queued is a no-op.
func (s *QueueStore) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove entry %s: %w", id, err)
	}
	return nil
}

// SaveReferenceConfig caches the configuration for its business, replacing
// whatever was cached before.
func (s *QueueStore) SaveReferenceConfig(ctx context.Context, cfg models.ReferenceConfig) error {
	if cfg.BusinessID == "" {
		return errors.New("save reference config: business id is required")
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode reference config %s: %w", cfg.BusinessID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reference_config (business_id, payload, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(business_id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		cfg.BusinessID, string(payload), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("save reference config %s: %w", cfg.BusinessID, err)
	}

	return nil
}

// LoadReferenceConfig returns the cached configuration for a business or
// models.ErrReferenceConfigNotFound.
func (s *QueueStore) LoadReferenceConfig(ctx context.Context, businessID string) (models.ReferenceConfig, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM reference_config WHERE business_id = ?`, businessID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ReferenceConfig{}, fmt.Errorf("%w: %s", models.ErrReferenceConfigNotFound, businessID)
	}
	if err != nil {
		return models.ReferenceConfig{}, fmt.Errorf("load reference config %s: %w", businessID, err)
	}

	var cfg models.ReferenceConfig
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return models.ReferenceConfig{}, fmt.Errorf("decode reference config %s: %w", businessID, err)
	}

	return cfg, nil
}
