/*
recalc.go - Incremental recalculation policy

PURPOSE:
  Owns the decision between a full recompute and an incremental one. The
  recalculation timestamp (RecalcState) is tracked separately from the sync
  timestamp: syncing tells us what data we have, recalculation tells us how
  much of it the aggregate cache has already absorbed.

POLICY:
  - RecalcState unset, or the data was synced after the last
    recalculation -> full recompute
  - Otherwise -> incremental recompute bounded by RecalcState, merged
    into the cached aggregates
  RecalcState advances to now after every successful recompute and the
  resulting aggregates are persisted.
*/
package revenue

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian/insight-engine/dataset"
)

// CacheStore is the slice of the cache store the Recalculator needs.
// Loads return nil (state) or an empty map (aggregates) when never written.
type CacheStore interface {
	LoadAggregates(ctx context.Context) (Aggregates, error)
	SaveAggregates(ctx context.Context, aggs Aggregates) error
	LoadRecalcState(ctx context.Context) (*time.Time, error)
	SaveRecalcState(ctx context.Context, at time.Time) error
}

// Recalculator applies the full-versus-incremental policy and keeps the
// aggregate cache persisted.
type Recalculator struct {
	store CacheStore
	now   func() time.Time
}

func NewRecalculator(store CacheStore) *Recalculator {
	return &Recalculator{store: store, now: time.Now}
}

// Recalculate brings the aggregate cache up to date with the snapshot and
// returns it. lastSync is the snapshot's sync instant (nil when unknown,
// which forces a full recompute).
//
// A persistence failure is returned alongside the computed aggregates: the
// in-memory result is still served for the current session.
func (r *Recalculator) Recalculate(ctx context.Context, snap dataset.Snapshot, rates RateTable, lastSync *time.Time) (Aggregates, error) {
	lastRecalc, err := r.store.LoadRecalcState(ctx)
	if err != nil {
		lastRecalc = nil // unreadable state just costs a full recompute
	}

	var aggs Aggregates
	if lastRecalc == nil || lastSync == nil || lastSync.After(*lastRecalc) {
		aggs, err = Compute(snap, rates, nil)
		if err != nil {
			return nil, err
		}
	} else {
		delta, err := ComputeIncremental(snap, rates, dataset.DayFrom(*lastRecalc))
		if err != nil {
			return nil, err
		}
		cached, err := r.store.LoadAggregates(ctx)
		if err != nil {
			// Unreadable cache degrades to a full recompute.
			aggs, err = Compute(snap, rates, nil)
			if err != nil {
				return nil, err
			}
		} else {
			aggs = MergeDelta(cached, delta)
		}
	}

	if err := r.persist(ctx, aggs); err != nil {
		return aggs, err
	}
	return aggs, nil
}

func (r *Recalculator) persist(ctx context.Context, aggs Aggregates) error {
	if err := r.store.SaveAggregates(ctx, aggs); err != nil {
		return fmt.Errorf("save aggregates: %w: %v", dataset.ErrPersistence, err)
	}
	if err := r.store.SaveRecalcState(ctx, r.now()); err != nil {
		return fmt.Errorf("save recalc state: %w: %v", dataset.ErrPersistence, err)
	}
	return nil
}
