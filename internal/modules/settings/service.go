// README: Settings service; TTL-cached resolution of per-tenant tunables.
package settings

import (
	"context"
	"log"
	"sync"
	"time"

	"fleettrack/internal/cache"
	"fleettrack/internal/metrics"
)

// Source provides stored per-tenant overrides, typically Postgres-backed.
// A nil row (all fields nil) is valid and means "use defaults".
type Source interface {
	Load(ctx context.Context, orgID string) (Override, error)
}

type Service struct {
	defaults Defaults
	ttl      time.Duration
	source   Source // optional
	cached   *cache.Map[string, OrgSettings]
	metrics  *metrics.Metrics

	mu        sync.Mutex
	overrides map[string]Override
}

func NewService(defaults Defaults, ttl time.Duration, source Source, m *metrics.Metrics) *Service {
	return &Service{
		defaults:  defaults,
		ttl:       ttl,
		source:    source,
		cached:    cache.NewMap[string, OrgSettings]("org_settings"),
		metrics:   m,
		overrides: map[string]Override{},
	}
}

// Cache exposes the settings map for sweeper registration.
func (s *Service) Cache() *cache.Map[string, OrgSettings] { return s.cached }

// Resolve returns the effective settings for a tenant, refreshing lazily
// when the cached entry's TTL has expired. Precedence: defaults, then the
// stored row, then the admin override.
func (s *Service) Resolve(ctx context.Context, orgID string, now time.Time) OrgSettings {
	if cur, ok := s.cached.Get(orgID); ok && now.Before(cur.ExpiresAt) {
		return cur
	}

	out := OrgSettings{
		OrgID:             orgID,
		EpsilonM:          s.defaults.EpsilonM,
		CandidateRadiusKm: s.defaults.CandidateRadiusKm,
		DwellSeconds:      s.defaults.DwellSeconds,
		DailyEventCap:     s.defaults.DailyEventCap,
	}
	if s.source != nil {
		row, err := s.source.Load(ctx, orgID)
		if err != nil {
			log.Printf("settings: load org %s: %v", orgID, err)
		} else {
			row.apply(&out)
		}
	}
	s.mu.Lock()
	ov, hasOv := s.overrides[orgID]
	s.mu.Unlock()
	if hasOv {
		ov.apply(&out)
	}

	out.AppliedAt = now
	out.ExpiresAt = now.Add(s.ttl)
	s.cached.PutAt(orgID, out, now)
	if s.metrics != nil {
		s.metrics.SettingsAppliedAt.WithLabelValues(orgID).Set(float64(now.Unix()))
	}
	return out
}

// SetOverride installs an admin/test override and invalidates the cached
// entry so the next Resolve picks it up immediately.
func (s *Service) SetOverride(orgID string, ov Override) {
	s.mu.Lock()
	s.overrides[orgID] = ov
	s.mu.Unlock()
	s.cached.Delete(orgID)
}

// Reset drops all overrides and cached entries (test hook).
func (s *Service) Reset() {
	s.mu.Lock()
	s.overrides = map[string]Override{}
	s.mu.Unlock()
	s.cached.Clear()
}
