// Package service provides the dashboard's derived views: selection
// summaries, sampling locations, location maps and query results.
package service

import (
	"context"
	"fmt"
	"log"

	"github.com/ag3dash/server/internal/cache"
	"github.com/ag3dash/server/internal/catalog"
	"github.com/ag3dash/server/internal/data/vobs"
	"github.com/ag3dash/server/internal/query"
	"github.com/ag3dash/server/internal/render"
)

// Scope selects which samples a location view covers.
type Scope string

const (
	ScopeSelected Scope = "selected"
	ScopeAll      Scope = "all"
)

// ParseScope validates a scope query parameter. Empty means selected.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeSelected:
		return ScopeSelected, nil
	case ScopeAll:
		return ScopeAll, nil
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// DashboardServiceConfig contains dashboard service configuration.
type DashboardServiceConfig struct {
	Catalog  *catalog.Catalog
	Cache    *cache.Manager
	Renderer *render.MapRenderer
}

// DashboardService derives summaries and maps from the shared catalog.
type DashboardService struct {
	catalog  *catalog.Catalog
	cache    *cache.Manager
	renderer *render.MapRenderer
}

// NewDashboardService creates a new dashboard service.
func NewDashboardService(cfg DashboardServiceConfig) *DashboardService {
	return &DashboardService{
		catalog:  cfg.Catalog,
		cache:    cfg.Cache,
		renderer: cfg.Renderer,
	}
}

// Summary describes the currently selected sample sets.
type Summary struct {
	SampleSets []string        `json:"sample_sets"`
	Counts     []vobs.CountRow `json:"counts"`
	Total      int             `json:"total"`
	Locations  []Location      `json:"locations"`
}

// Summary computes sample counts and the location table for the selection.
// An empty selection yields an empty summary without touching the accessor.
func (s *DashboardService) Summary(ctx context.Context, selected []string) (Summary, error) {
	out := Summary{SampleSets: selected, Counts: []vobs.CountRow{}, Locations: []Location{}}
	if len(selected) == 0 {
		return out, nil
	}

	counts, err := s.catalog.Accessor().CountSamples(ctx, selected)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to count samples: %w", err)
	}
	out.Counts = counts
	for _, c := range counts {
		out.Total += c.Count
	}

	locs, err := s.SelectedLocations(ctx, selected)
	if err != nil {
		return Summary{}, err
	}
	out.Locations = locs
	return out, nil
}

// SelectedLocations returns the distinct sampling locations of the given
// sample sets. No selection means no locations.
func (s *DashboardService) SelectedLocations(ctx context.Context, selected []string) ([]Location, error) {
	if len(selected) == 0 {
		return []Location{}, nil
	}
	recs, err := s.catalog.SampleMetadata(ctx)
	if err != nil {
		return nil, err
	}
	return Locations(vobs.FilterBySampleSet(recs, selected)), nil
}

// AllLocations returns every distinct sampling location in the release.
func (s *DashboardService) AllLocations(ctx context.Context) ([]Location, error) {
	recs, err := s.catalog.SampleMetadata(ctx)
	if err != nil {
		return nil, err
	}
	return Locations(recs), nil
}

// ScopedLocations dispatches on scope.
func (s *DashboardService) ScopedLocations(ctx context.Context, scope Scope, selected []string) ([]Location, error) {
	if scope == ScopeAll {
		return s.AllLocations(ctx)
	}
	return s.SelectedLocations(ctx, selected)
}

// MapPNG renders the locations of scope as a PNG. Rendered images are cached
// by scope and selection.
func (s *DashboardService) MapPNG(ctx context.Context, scope Scope, selected []string) ([]byte, error) {
	var key string
	if scope == ScopeAll {
		key = cache.MapKey(string(scope), nil)
	} else {
		if selected == nil {
			selected = []string{}
		}
		key = cache.MapKey(string(scope), selected)
	}

	if data, ok := s.cache.GetMap(key); ok {
		return data, nil
	}

	locs, err := s.ScopedLocations(ctx, scope, selected)
	if err != nil {
		return nil, err
	}
	data, err := s.renderer.RenderPoints(toPoints(locs))
	if err != nil {
		return nil, fmt.Errorf("failed to render map: %w", err)
	}
	if err := s.cache.SetMap(key, data); err != nil {
		log.Printf("[Dashboard] Warning: failed to cache map %s: %v", key, err)
	}
	return data, nil
}

// QueryResult is the query builder's output for one filter state.
type QueryResult struct {
	Expr    string `json:"expr"`
	Snippet string `json:"snippet"`
	Count   int    `json:"count"`
	Total   int    `json:"total"`
}

// Query evaluates pred against the full metadata table. Counts are cached by
// the predicate's display text.
func (s *DashboardService) Query(ctx context.Context, pred query.Predicate) (QueryResult, error) {
	recs, err := s.catalog.SampleMetadata(ctx)
	if err != nil {
		return QueryResult{}, err
	}

	expr := pred.Expr()
	res := QueryResult{Expr: expr, Snippet: pred.Snippet(), Total: len(recs)}

	key := cache.QueryKey(expr)
	if n, ok := s.cache.GetCount(key); ok {
		res.Count = n
		return res, nil
	}
	res.Count = pred.Count(recs)
	s.cache.SetCount(key, res.Count)
	return res, nil
}

// Samples returns the records pred matches, in table order.
func (s *DashboardService) Samples(ctx context.Context, pred query.Predicate) ([]vobs.SampleRecord, error) {
	recs, err := s.catalog.SampleMetadata(ctx)
	if err != nil {
		return nil, err
	}
	return pred.Apply(recs), nil
}
