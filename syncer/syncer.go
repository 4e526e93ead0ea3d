/*
Package syncer decides when to fetch fresh data from the remote source
versus reuse the local cache, and folds incremental fetches into the
cached snapshot.

PURPOSE:
  The Manager is the only component that talks to the remote source and the
  only writer of the snapshot and sync-state cache entries. Presentation
  code calls EnsureFresh and renders whatever comes back.

POLICY:
  - No cache yet               -> full fetch
  - Cache younger than the
    staleness threshold        -> serve cache, zero remote I/O
  - Stale, or force requested  -> incremental fetch since
                                  lastSync - overlap window, then merge
  - Fetch or merge failure     -> previous snapshot unchanged, sync state
                                  not advanced (stale-but-available)

  The overlap window re-fetches a fixed lookback before the last sync so
  clock skew and late-arriving rows at the source cannot open a gap; the
  merge's identity dedup makes the overlap harmless.

CONCURRENCY:
  Single active session per cache-file set. The Manager performs blocking
  I/O inline and provides no cross-process locking; concurrent writers to
  the same cache can race. Known limitation, not silently handled.

SEE ALSO:
  - dataset/snapshot.go: Merge semantics
  - store/sqlite: The durable cache behind Store
*/
package syncer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/meridian/insight-engine/dataset"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Fetcher is the remote ERP boundary. A nil since means "everything";
// otherwise only records changed at or after since are returned.
type Fetcher interface {
	Fetch(ctx context.Context, since *time.Time) (dataset.Snapshot, error)
}

// Store is the slice of the cache store the Manager needs. Loads return nil
// when the entry has never been written.
type Store interface {
	LoadSnapshot(ctx context.Context) (*dataset.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap dataset.Snapshot) error
	LoadSyncState(ctx context.Context) (*time.Time, error)
	SaveSyncState(ctx context.Context, at time.Time) error
}

// =============================================================================
// CONFIG
// =============================================================================

// Config carries the staleness policy. Both values are deployment choices;
// the Manager never hard-codes them.
type Config struct {
	// StalenessThreshold is how old the cache may get before an
	// EnsureFresh(false) triggers an incremental fetch.
	StalenessThreshold time.Duration

	// OverlapWindow is the fixed lookback subtracted from the last sync
	// instant when building the incremental "since" bound.
	OverlapWindow time.Duration
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns snapshot freshness.
type Manager struct {
	fetcher Fetcher
	store   Store
	cfg     Config

	now func() time.Time // test seam
}

func New(fetcher Fetcher, store Store, cfg Config) *Manager {
	return &Manager{
		fetcher: fetcher,
		store:   store,
		cfg:     cfg,
		now:     time.Now,
	}
}

// EnsureFresh returns a usable snapshot and the instant it represents.
//
// The returned snapshot is valid even when err is non-nil: a source or
// persistence failure degrades to the best data available and err carries
// the status to surface. Callers distinguish cases with errors.Is against
// dataset.ErrSourceUnreachable and dataset.ErrPersistence.
func (m *Manager) EnsureFresh(ctx context.Context, force bool) (dataset.Snapshot, time.Time, error) {
	cached := m.loadSnapshot(ctx)
	lastSync := m.loadSyncState(ctx)
	now := m.now()

	// First run: nothing cached yet.
	if cached == nil || lastSync == nil {
		full, err := m.fetcher.Fetch(ctx, nil)
		if err != nil {
			return dataset.Empty(), now, fmt.Errorf("full fetch: %w: %v", dataset.ErrSourceUnreachable, err)
		}
		if err := m.persist(ctx, full, now); err != nil {
			return full, now, err
		}
		return full, now, nil
	}

	// Fresh enough: serve the cache with zero remote I/O.
	if !force && now.Sub(*lastSync) < m.cfg.StalenessThreshold {
		return *cached, *lastSync, nil
	}

	// Stale or forced: incremental fetch with the overlap lookback.
	since := lastSync.Add(-m.cfg.OverlapWindow)
	delta, err := m.fetcher.Fetch(ctx, &since)
	if err != nil {
		// Stale-but-available: never block the UI on source failures.
		return *cached, *lastSync, fmt.Errorf("incremental fetch: %w: %v", dataset.ErrSourceUnreachable, err)
	}

	merged, err := dataset.Merge(*cached, delta)
	if err != nil {
		return *cached, *lastSync, fmt.Errorf("merge delta: %w", err)
	}

	if err := m.persist(ctx, merged, now); err != nil {
		return merged, now, err
	}
	return merged, now, nil
}

// persist writes the snapshot and only then advances the sync state, so a
// failed snapshot write never claims a sync that did not happen.
func (m *Manager) persist(ctx context.Context, snap dataset.Snapshot, at time.Time) error {
	if err := m.store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w: %v", dataset.ErrPersistence, err)
	}
	if err := m.store.SaveSyncState(ctx, at); err != nil {
		return fmt.Errorf("save sync state: %w: %v", dataset.ErrPersistence, err)
	}
	return nil
}

// loadSnapshot treats an unreadable snapshot entry as absent: a corrupt
// cache artifact must not take the whole system down, it just costs a full
// re-fetch.
func (m *Manager) loadSnapshot(ctx context.Context) *dataset.Snapshot {
	snap, err := m.store.LoadSnapshot(ctx)
	if err != nil {
		log.Printf("syncer: cached snapshot unreadable, refetching: %v", err)
		return nil
	}
	return snap
}

func (m *Manager) loadSyncState(ctx context.Context) *time.Time {
	at, err := m.store.LoadSyncState(ctx)
	if err != nil {
		log.Printf("syncer: sync state unreadable, refetching: %v", err)
		return nil
	}
	return at
}
