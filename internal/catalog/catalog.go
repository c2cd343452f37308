// Package catalog holds the release reference tables as process-wide
// singletons shared read-only by every session.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ag3dash/server/internal/data/vobs"
)

// LoadObserver is told about every upstream load.
type LoadObserver func(table string, took time.Duration, err error)

// Options are the values offered by the query builder's multiselects.
type Options struct {
	Countries []string `json:"countries"`
	Taxa      []string `json:"taxa"`
	Years     []int    `json:"years"`
}

// Catalog memoizes the sample-set and sample metadata tables. Successful
// loads are kept for the life of the process; failed loads are not, so the
// next request retries.
type Catalog struct {
	accessor vobs.Accessor
	observe  LoadObserver
	group    singleflight.Group

	mu      sync.RWMutex
	sets    []vobs.SampleSet
	records []vobs.SampleRecord
	options *Options
}

// New creates a catalog over accessor. observe may be nil.
func New(accessor vobs.Accessor, observe LoadObserver) *Catalog {
	if observe == nil {
		observe = func(string, time.Duration, error) {}
	}
	return &Catalog{accessor: accessor, observe: observe}
}

// Accessor returns the underlying data accessor.
func (c *Catalog) Accessor() vobs.Accessor {
	return c.accessor
}

// SampleSets returns the sample-set table. The slice must not be modified.
func (c *Catalog) SampleSets(ctx context.Context) ([]vobs.SampleSet, error) {
	c.mu.RLock()
	sets := c.sets
	c.mu.RUnlock()
	if sets != nil {
		return sets, nil
	}

	v, err, _ := c.group.Do("sample_sets", func() (interface{}, error) {
		c.mu.RLock()
		cached := c.sets
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		start := time.Now()
		// The load outlives the first caller's request.
		loaded, err := c.accessor.SampleSets(context.WithoutCancel(ctx))
		c.observe("sample_sets", time.Since(start), err)
		if err != nil {
			return nil, fmt.Errorf("failed to load sample sets: %w", err)
		}
		if loaded == nil {
			loaded = []vobs.SampleSet{}
		}
		c.mu.Lock()
		c.sets = loaded
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]vobs.SampleSet), nil
}

// SampleMetadata returns the full sample metadata table. The slice must not
// be modified.
func (c *Catalog) SampleMetadata(ctx context.Context) ([]vobs.SampleRecord, error) {
	c.mu.RLock()
	recs := c.records
	c.mu.RUnlock()
	if recs != nil {
		return recs, nil
	}

	v, err, _ := c.group.Do("sample_metadata", func() (interface{}, error) {
		c.mu.RLock()
		cached := c.records
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		start := time.Now()
		loaded, err := c.accessor.SampleMetadata(context.WithoutCancel(ctx), nil)
		c.observe("sample_metadata", time.Since(start), err)
		if err != nil {
			return nil, fmt.Errorf("failed to load sample metadata: %w", err)
		}
		if loaded == nil {
			loaded = []vobs.SampleRecord{}
		}
		c.mu.Lock()
		c.records = loaded
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]vobs.SampleRecord), nil
}

// Options returns the distinct, sorted filter values of the metadata table.
// Non-positive years are never offered.
func (c *Catalog) Options(ctx context.Context) (Options, error) {
	c.mu.RLock()
	opts := c.options
	c.mu.RUnlock()
	if opts != nil {
		return *opts, nil
	}

	recs, err := c.SampleMetadata(ctx)
	if err != nil {
		return Options{}, err
	}
	derived := DeriveOptions(recs)

	c.mu.Lock()
	c.options = &derived
	c.mu.Unlock()
	return derived, nil
}

// Loaded reports which tables are already cached.
func (c *Catalog) Loaded() (sampleSets, sampleMetadata bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sets != nil, c.records != nil
}

// DeriveOptions computes multiselect options from records.
func DeriveOptions(records []vobs.SampleRecord) Options {
	countries := make(map[string]struct{})
	taxa := make(map[string]struct{})
	years := make(map[int]struct{})
	for _, r := range records {
		if r.Country != "" {
			countries[r.Country] = struct{}{}
		}
		if r.Taxon != "" {
			taxa[r.Taxon] = struct{}{}
		}
		if r.Year > 0 {
			years[r.Year] = struct{}{}
		}
	}

	opts := Options{
		Countries: sortedKeys(countries),
		Taxa:      sortedKeys(taxa),
		Years:     make([]int, 0, len(years)),
	}
	for y := range years {
		opts.Years = append(opts.Years, y)
	}
	sort.Ints(opts.Years)
	return opts
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
