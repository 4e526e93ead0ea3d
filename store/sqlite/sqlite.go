/*
Package sqlite provides the SQLite-backed cache store.

PURPOSE:
  Durable persistence for every cache artifact the engine maintains:
  the dataset snapshot, the sync timestamp, the job-rate table, the
  per-project financial-aggregate cache and its recalculation timestamp.
  Each artifact loads and saves independently - a corrupt or missing one
  must never prevent the others from loading.

KEY TABLES:
  collections:    One row per snapshot collection, records as a JSON array
  sync_meta:      Timestamps keyed by name (last_sync, last_recalc)
  job_rates:      job_title -> cost/revenue strings, user-edited
  project_financials: project -> aggregate payload JSON

ATOMICITY:
  SaveSnapshot replaces all six collection rows inside one transaction, so
  a merge is either fully persisted or the prior snapshot is retained.

DATE HANDLING:
  Sync and recalc instants are stored as RFC 3339 (staleness thresholds
  need sub-day precision). Dates inside aggregate payloads serialize
  through dataset.Day as "2006-01-02" and reconstruct exactly.

CONCURRENCY:
  WAL mode plus a process-local mutex. There is no cross-process locking;
  a single active session per database file is assumed.

USAGE:
  store, err := sqlite.New("./data/insight.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - syncer: Snapshot and sync-state consumer
  - revenue: Aggregate and recalc-state consumer
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/meridian/insight-engine/dataset"
	"github.com/meridian/insight-engine/revenue"
)

// sync_meta keys.
const (
	metaLastSync   = "last_sync"
	metaLastRecalc = "last_recalc"
)

// Store implements the syncer.Store and revenue.CacheStore contracts on
// SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the cache database. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Snapshot collections, one JSON array per source model
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		records_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Engine timestamps (last_sync, last_recalc)
	CREATE TABLE IF NOT EXISTS sync_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- User-edited job rate table
	CREATE TABLE IF NOT EXISTS job_rates (
		job_title TEXT PRIMARY KEY,
		cost TEXT NOT NULL DEFAULT '',
		revenue TEXT NOT NULL DEFAULT ''
	);

	-- Derived per-project financial aggregates
	CREATE TABLE IF NOT EXISTS project_financials (
		project TEXT PRIMARY KEY,
		payload_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// LoadSnapshot returns the cached snapshot, or nil when none was ever
// saved. Unreadable collection payloads surface as errors; the caller
// decides whether to refetch.
func (s *Store) LoadSnapshot(ctx context.Context) (*dataset.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT name, records_json FROM collections`)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer rows.Close()

	snap := dataset.Empty()
	found := false
	for rows.Next() {
		var name, payload string
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		col := snap.ByName(name)
		if col == nil {
			continue // an unknown collection row is ignored, not fatal
		}
		var records []dataset.Record
		if err := json.Unmarshal([]byte(payload), &records); err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", name, err)
		}
		col.Records = records
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &snap, nil
}

// SaveSnapshot replaces all six collections atomically.
func (s *Store) SaveSnapshot(ctx context.Context, snap dataset.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, col := range snap.Collections() {
		payload, err := json.Marshal(col.Records)
		if err != nil {
			return fmt.Errorf("save snapshot %s: %w", col.Name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO collections (name, records_json, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				records_json = excluded.records_json,
				updated_at = excluded.updated_at`,
			col.Name, string(payload), now)
		if err != nil {
			return fmt.Errorf("save snapshot %s: %w", col.Name, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// TIMESTAMPS
// =============================================================================

func (s *Store) LoadSyncState(ctx context.Context) (*time.Time, error) {
	return s.loadMetaTime(ctx, metaLastSync)
}

func (s *Store) SaveSyncState(ctx context.Context, at time.Time) error {
	return s.saveMetaTime(ctx, metaLastSync, at)
}

func (s *Store) LoadRecalcState(ctx context.Context) (*time.Time, error) {
	return s.loadMetaTime(ctx, metaLastRecalc)
}

func (s *Store) SaveRecalcState(ctx context.Context, at time.Time) error {
	return s.saveMetaTime(ctx, metaLastRecalc, at)
}

func (s *Store) loadMetaTime(ctx context.Context, key string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM sync_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return &at, nil
}

func (s *Store) saveMetaTime(ctx context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// =============================================================================
// JOB RATES
// =============================================================================

func (s *Store) LoadJobRates(ctx context.Context) (revenue.RateTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT job_title, cost, revenue FROM job_rates`)
	if err != nil {
		return nil, fmt.Errorf("load job rates: %w", err)
	}
	defer rows.Close()

	rates := make(revenue.RateTable)
	for rows.Next() {
		var title, cost, rev string
		if err := rows.Scan(&title, &cost, &rev); err != nil {
			return nil, fmt.Errorf("load job rates: %w", err)
		}
		rates[title] = revenue.Rate{Cost: cost, Revenue: rev}
	}
	return rates, rows.Err()
}

// SaveJobRates replaces the whole table with the user's edit.
func (s *Store) SaveJobRates(ctx context.Context, rates revenue.RateTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save job rates: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM job_rates`); err != nil {
		return fmt.Errorf("save job rates: %w", err)
	}
	for title, rate := range rates {
		if title == "" {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO job_rates (job_title, cost, revenue) VALUES (?, ?, ?)`,
			title, rate.Cost, rate.Revenue)
		if err != nil {
			return fmt.Errorf("save job rates: %w", err)
		}
	}
	return tx.Commit()
}

// MergeJobTitles adds newly observed titles with empty rates. Existing
// entries are never overwritten by this path.
func (s *Store) MergeJobTitles(ctx context.Context, titles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, title := range titles {
		if title == "" {
			continue
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO job_rates (job_title, cost, revenue) VALUES (?, '', '')`,
			title)
		if err != nil {
			return fmt.Errorf("merge job titles: %w", err)
		}
	}
	return nil
}

// =============================================================================
// AGGREGATE CACHE
// =============================================================================

func (s *Store) LoadAggregates(ctx context.Context) (revenue.Aggregates, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT project, payload_json FROM project_financials`)
	if err != nil {
		return nil, fmt.Errorf("load aggregates: %w", err)
	}
	defer rows.Close()

	aggs := make(revenue.Aggregates)
	for rows.Next() {
		var project, payload string
		if err := rows.Scan(&project, &payload); err != nil {
			return nil, fmt.Errorf("load aggregates: %w", err)
		}
		var p revenue.ProjectFinancials
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("load aggregates %s: %w", project, err)
		}
		aggs[project] = p
	}
	return aggs, rows.Err()
}

// LoadAggregatesRange filters each project's daily data by [from, to] and
// recomputes totals over the filtered subset. A range that excludes every
// stored day falls back to the unfiltered cache rather than an empty
// result.
func (s *Store) LoadAggregatesRange(ctx context.Context, from, to dataset.Day) (revenue.Aggregates, error) {
	all, err := s.LoadAggregates(ctx)
	if err != nil {
		return nil, err
	}
	if from.IsZero() && to.IsZero() {
		return all, nil
	}
	filtered := revenue.FilterByRange(all, from, to)
	if len(filtered) == 0 {
		return all, nil
	}
	return filtered, nil
}

// SaveAggregates replaces the aggregate cache atomically.
func (s *Store) SaveAggregates(ctx context.Context, aggs revenue.Aggregates) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save aggregates: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM project_financials`); err != nil {
		return fmt.Errorf("save aggregates: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for project, p := range aggs {
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("save aggregates %s: %w", project, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO project_financials (project, payload_json, updated_at)
			VALUES (?, ?, ?)`,
			project, string(payload), now)
		if err != nil {
			return fmt.Errorf("save aggregates %s: %w", project, err)
		}
	}
	return tx.Commit()
}
