package store

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/ag3dash/server/internal/data/vobs"
)

// SnapshotAccessor serves the release from the local snapshot, populating it
// from the upstream accessor the first time it is needed.
type SnapshotAccessor struct {
	store    *Store
	upstream vobs.Accessor

	mu    sync.Mutex
	ready bool
}

// NewSnapshotAccessor wraps upstream with a snapshot kept in st.
func NewSnapshotAccessor(st *Store, upstream vobs.Accessor) *SnapshotAccessor {
	return &SnapshotAccessor{store: st, upstream: upstream}
}

func (a *SnapshotAccessor) ensure(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ready {
		return nil
	}
	_, ok, err := a.store.SavedAt(ctx)
	if err != nil {
		return err
	}
	if !ok {
		if err := a.refreshLocked(ctx); err != nil {
			return err
		}
	}
	a.ready = true
	return nil
}

// Refresh reloads the snapshot from upstream unconditionally.
func (a *SnapshotAccessor) Refresh(ctx context.Context) (sets, samples int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.refreshLocked(ctx); err != nil {
		return 0, 0, err
	}
	a.ready = true
	s, err := a.store.SampleSets(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("snapshot: failed to read back sample sets: %w", err)
	}
	r, err := a.store.Samples(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("snapshot: failed to read back samples: %w", err)
	}
	return len(s), len(r), nil
}

func (a *SnapshotAccessor) refreshLocked(ctx context.Context) error {
	sets, err := a.upstream.SampleSets(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: failed to load sample sets: %w", err)
	}
	records, err := a.upstream.SampleMetadata(ctx, nil)
	if err != nil {
		return fmt.Errorf("snapshot: failed to load sample metadata: %w", err)
	}
	if err := a.store.SaveSnapshot(ctx, sets, records); err != nil {
		return fmt.Errorf("snapshot: failed to save: %w", err)
	}
	log.Printf("[Snapshot] stored %d sample sets, %d samples", len(sets), len(records))
	return nil
}

func (a *SnapshotAccessor) SampleSets(ctx context.Context) ([]vobs.SampleSet, error) {
	if err := a.ensure(ctx); err != nil {
		return nil, err
	}
	return a.store.SampleSets(ctx)
}

func (a *SnapshotAccessor) SampleMetadata(ctx context.Context, sampleSets []string) ([]vobs.SampleRecord, error) {
	if err := a.ensure(ctx); err != nil {
		return nil, err
	}
	return a.store.Samples(ctx, sampleSets)
}

func (a *SnapshotAccessor) CountSamples(ctx context.Context, sampleSets []string) ([]vobs.CountRow, error) {
	recs, err := a.SampleMetadata(ctx, sampleSets)
	if err != nil {
		return nil, err
	}
	return vobs.CountRecords(recs), nil
}

func (a *SnapshotAccessor) Describe() string {
	return a.upstream.Describe() + " (snapshot)"
}
