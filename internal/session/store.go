package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/ag3dash/server/internal/catalog"
	"github.com/ag3dash/server/internal/query"
)

// Session is one user's state. Access is serialized so concurrent requests
// from the same browser cannot interleave read-modify-write cycles.
type Session struct {
	ID      string
	Created time.Time

	mu    sync.Mutex
	state State
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Update replaces the state with fn's result. On error the state is left
// untouched.
func (s *Session) Update(fn func(State) (State, error)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.state.Clone())
	if err != nil {
		return s.state.Clone(), err
	}
	s.state = next
	return next.Clone(), nil
}

// Store keeps sessions in memory, expiring them after a period of inactivity.
type Store struct {
	sessions *cache.Cache
	catalog  *catalog.Catalog
	ttl      time.Duration
}

// NewStore creates a session store over the shared catalog.
func NewStore(cat *catalog.Catalog, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Store{
		sessions: cache.New(ttl, ttl/2),
		catalog:  cat,
		ttl:      ttl,
	}
}

// Catalog returns the shared reference tables.
func (st *Store) Catalog() *catalog.Catalog {
	return st.catalog
}

// Get returns a live session and refreshes its expiry.
func (st *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	v, ok := st.sessions.Get(id)
	if !ok {
		return nil, false
	}
	sess := v.(*Session)
	st.sessions.Set(id, sess, cache.DefaultExpiration)
	return sess, true
}

// GetOrCreate returns the session for id, creating a fresh one (with a new
// identifier) when id is unknown or expired. created reports the latter.
func (st *Store) GetOrCreate(id string) (sess *Session, created bool) {
	if sess, ok := st.Get(id); ok {
		return sess, false
	}
	for {
		sess = &Session{ID: uuid.NewString(), Created: time.Now()}
		if err := st.sessions.Add(sess.ID, sess, cache.DefaultExpiration); err == nil {
			return sess, true
		}
	}
}

// Delete ends a session.
func (st *Store) Delete(id string) {
	st.sessions.Delete(id)
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	return st.sessions.ItemCount()
}

// Initialize fills in every absent piece of state with its default: empty
// filter values, the loaded sample-set table with nothing selected. It is safe
// to call on every request; reference tables come from the shared catalog,
// so only the first call in the process reaches the data accessor.
func (st *Store) Initialize(ctx context.Context, sess *Session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state.SampleSets == nil {
		sets, err := st.catalog.SampleSets(ctx)
		if err != nil {
			return err
		}
		sess.state.SampleSets = newTable(sets)
		sess.state.SelectedSets = []string{}
	}
	if sess.state.SelectedSets == nil {
		sess.state.SelectedSets = selectedIDs(sess.state.SampleSets)
	}
	if sess.state.Filter.Countries == nil {
		sess.state.Filter.Countries = []string{}
	}
	if sess.state.Filter.Taxa == nil {
		sess.state.Filter.Taxa = []string{}
	}
	if sess.state.Filter.Years == nil {
		sess.state.Filter.Years = []int{}
	}

	if _, err := st.catalog.SampleMetadata(ctx); err != nil {
		return err
	}
	return nil
}

// Predicate compiles the session's current filters.
func (s *Session) Predicate() query.Predicate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return query.Compile(s.state.Filter)
}
