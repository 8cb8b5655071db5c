// README: Per-tenant geofence collections with wholesale replace semantics.
package geofence

import (
	"sync"

	"fleettrack/internal/types"
)

type orgFences struct {
	fences []*Geofence
	index  *index
}

// Store holds every tenant's geofences. Tenants are loaded or replaced
// wholesale (boot seed, Postgres load, or the bulk-set admin hook); no
// partial mutation happens on the hot path.
type Store struct {
	mu         sync.RWMutex
	byOrg      map[string]*orgFences
	cellSizeKm float64
}

func NewStore(cellSizeKm float64) *Store {
	return &Store{byOrg: map[string]*orgFences{}, cellSizeKm: cellSizeKm}
}

// ReplaceOrg swaps the tenant's full geofence set and rebuilds its index.
// Invalid shapes are rejected wholesale so a tenant never half-loads.
func (s *Store) ReplaceOrg(orgID string, fences []Geofence) error {
	ptrs := make([]*Geofence, 0, len(fences))
	for i := range fences {
		g := fences[i]
		if err := g.Validate(); err != nil {
			return err
		}
		g.OrgID = orgID
		ptrs = append(ptrs, &g)
	}
	of := &orgFences{fences: ptrs, index: buildIndex(ptrs, s.cellSizeKm)}
	s.mu.Lock()
	s.byOrg[orgID] = of
	s.mu.Unlock()
	return nil
}

// Candidates returns the tenant's plausible geofences for a point, using
// the grid index when present and a linear scan otherwise.
func (s *Store) Candidates(orgID string, p types.Point, radiusKm, epsilonM float64, max int) []*Geofence {
	s.mu.RLock()
	of := s.byOrg[orgID]
	s.mu.RUnlock()
	if of == nil {
		return nil
	}
	if of.index != nil {
		return of.index.candidates(p, radiusKm, epsilonM, max)
	}
	return linearScan(of.fences, p, radiusKm, epsilonM, max)
}

// Org returns the tenant's geofence list (read-only, admin surface).
func (s *Store) Org(orgID string) []*Geofence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if of := s.byOrg[orgID]; of != nil {
		return of.fences
	}
	return nil
}

// Reset drops every tenant (test hook).
func (s *Store) Reset() {
	s.mu.Lock()
	s.byOrg = map[string]*orgFences{}
	s.mu.Unlock()
}
