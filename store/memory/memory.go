// Package memory provides an in-memory cache store (for testing/dev).
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/meridian/insight-engine/dataset"
	"github.com/meridian/insight-engine/revenue"
)

// =============================================================================
// MEMORY STORE - In-memory implementation of the cache store contracts
// =============================================================================

// Store keeps every cache artifact in process memory. Snapshots and
// aggregates round-trip through JSON on save so that tests observe the same
// value shapes (float64 numbers, string composites) the durable store
// produces.
type Store struct {
	mu          sync.RWMutex
	snapshot    *dataset.Snapshot
	syncState   *time.Time
	recalcState *time.Time
	rates       revenue.RateTable
	aggregates  revenue.Aggregates
}

func New() *Store {
	return &Store{rates: make(revenue.RateTable)}
}

// -----------------------------------------------------------------------------
// Snapshot + sync state
// -----------------------------------------------------------------------------

func (s *Store) LoadSnapshot(_ context.Context) (*dataset.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil, nil
	}
	snap := *s.snapshot
	return &snap, nil
}

func (s *Store) SaveSnapshot(_ context.Context, snap dataset.Snapshot) error {
	stored := dataset.Empty()
	in := snap.Collections()
	for i, out := range stored.Collections() {
		records, err := roundTripRecords(in[i].Records)
		if err != nil {
			return err
		}
		out.Records = records
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = &stored
	return nil
}

func (s *Store) LoadSyncState(_ context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTime(s.syncState), nil
}

func (s *Store) SaveSyncState(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncState = &at
	return nil
}

// -----------------------------------------------------------------------------
// Job rates
// -----------------------------------------------------------------------------

func (s *Store) LoadJobRates(_ context.Context) (revenue.RateTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(revenue.RateTable, len(s.rates))
	for k, v := range s.rates {
		out[k] = v
	}
	return out, nil
}

func (s *Store) SaveJobRates(_ context.Context, rates revenue.RateTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates = make(revenue.RateTable, len(rates))
	for k, v := range rates {
		s.rates[k] = v
	}
	return nil
}

// MergeJobTitles adds titles with empty rates; existing entries are kept.
func (s *Store) MergeJobTitles(_ context.Context, titles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates.AddTitles(titles)
	return nil
}

// -----------------------------------------------------------------------------
// Aggregates + recalc state
// -----------------------------------------------------------------------------

func (s *Store) LoadAggregates(_ context.Context) (revenue.Aggregates, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(revenue.Aggregates, len(s.aggregates))
	for k, v := range s.aggregates {
		out[k] = v
	}
	return out, nil
}

// LoadAggregatesRange filters by date range. A range that excludes every
// stored day falls back to the unfiltered cache (degrade gracefully rather
// than render an empty dashboard).
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

func (s *Store) SaveAggregates(_ context.Context, aggs revenue.Aggregates) error {
	buf, err := json.Marshal(aggs)
	if err != nil {
		return err
	}
	var stored revenue.Aggregates
	if err := json.Unmarshal(buf, &stored); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregates = stored
	return nil
}

func (s *Store) LoadRecalcState(_ context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTime(s.recalcState), nil
}

func (s *Store) SaveRecalcState(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recalcState = &at
	return nil
}

func roundTripRecords(records []dataset.Record) ([]dataset.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	buf, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	var out []dataset.Record
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}
