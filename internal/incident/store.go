package incident

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the process-wide, serialized registry of incidents keyed by
// incident id. A global lock guards create/list only; per-incident mutation
// takes the incident's own lock (see Incident.Apply), never the store lock.
type Store struct {
	mu        sync.RWMutex
	incidents map[string]*Incident
}

// NewStore creates an empty, process-wide incident store.
func NewStore() *Store {
	return &Store{incidents: make(map[string]*Incident)}
}

// Create opens a new incident. If id is empty a fresh opaque id is minted.
// If id is non-empty and already exists, the existing incident is returned
// unchanged (Create is idempotent on a supplied id).
func (s *Store) Create(id string, now time.Time) *Incident {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		id = uuid.NewString()
	}
	if existing, ok := s.incidents[id]; ok {
		return existing
	}
	inc := New(id, now)
	s.incidents[id] = inc
	return inc
}

// Get returns the incident for id, or ok=false if unknown.
func (s *Store) Get(id string) (*Incident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[id]
	return inc, ok
}

// GetOrCreate resolves id to an incident, creating one if absent.
func (s *Store) GetOrCreate(id string, now time.Time) *Incident {
	if id != "" {
		if inc, ok := s.Get(id); ok {
			return inc
		}
	}
	return s.Create(id, now)
}

// List returns every incident, ordered by last_updated descending.
func (s *Store) List() []*Incident {
	s.mu.RLock()
	out := make([]*Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		out = append(out, inc)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdated().After(out[j].LastUpdated())
	})
	return out
}
