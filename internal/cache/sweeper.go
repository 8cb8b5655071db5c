// README: Periodic sweeper driving TTL expiry and size trims across caches.
package cache

import (
	"context"
	"time"

	"fleettrack/internal/metrics"
)

// Sweepable is the non-generic face of Map that the sweeper works against.
type Sweepable interface {
	Name() string
	Len() int
	Sweep(now time.Time, ttl time.Duration, maxSize int) (expired, trimmed int)
}

type target struct {
	m       Sweepable
	ttl     time.Duration
	maxSize int
}

type Sweeper struct {
	targets []target
	metrics *metrics.Metrics
}

func NewSweeper(m *metrics.Metrics) *Sweeper {
	return &Sweeper{metrics: m}
}

// Register adds a cache with its own TTL and size cap.
func (s *Sweeper) Register(m Sweepable, ttl time.Duration, maxSize int) {
	s.targets = append(s.targets, target{m: m, ttl: ttl, maxSize: maxSize})
}

// SweepOnce runs a single pass over every registered cache.
func (s *Sweeper) SweepOnce(now time.Time) {
	for _, t := range s.targets {
		expired, trimmed := t.m.Sweep(now, t.ttl, t.maxSize)
		if s.metrics != nil {
			if expired > 0 {
				s.metrics.CacheEvictions.WithLabelValues(t.m.Name(), "ttl").Add(float64(expired))
			}
			if trimmed > 0 {
				s.metrics.CacheEvictions.WithLabelValues(t.m.Name(), "size").Add(float64(trimmed))
			}
			s.metrics.CacheSize.WithLabelValues(t.m.Name()).Set(float64(t.m.Len()))
		}
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.SweepOnce(now)
		}
	}
}
