// README: Crash-resilient snapshot of geofence transition state.
package geofence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	atomicfile "github.com/natefinch/atomic"

	"fleettrack/internal/metrics"
)

const snapshotVersion = 1

var (
	ErrSnapshotCorrupt  = errors.New("geofence: snapshot corrupt")
	ErrSnapshotTooLarge = errors.New("geofence: snapshot too large")
)

// snapState is the persisted view of State. Dwell timers are deliberately
// not persisted: a restart mid-dwell restarts the window.
type snapState struct {
	Inside           bool  `json:"inside"`
	LastTransitionAt int64 `json:"last_transition_at"`
	LastSeenAt       int64 `json:"last_seen_at"`
}

type snapEnvelope struct {
	Version  int             `json:"version"`
	SavedAt  int64           `json:"saved_at"`
	Checksum string          `json:"checksum"`
	Payload  json.RawMessage `json:"payload"`
}

// exportStates returns the persistable state keyed "device|geofence".
func (e *Evaluator) exportStates() map[string]snapState {
	out := map[string]snapState{}
	e.states.Range(func(k stateKey, v State) {
		out[k.DeviceID+"|"+k.GeofenceID] = snapState{
			Inside:           v.Inside,
			LastTransitionAt: v.LastTransitionAt.Unix(),
			LastSeenAt:       v.LastSeenAt.Unix(),
		}
	})
	return out
}

// importStates replaces in-memory transition state from a loaded snapshot.
func (e *Evaluator) importStates(states map[string]snapState) {
	now := time.Now()
	for k, s := range states {
		dev, fence, ok := strings.Cut(k, "|")
		if !ok {
			continue
		}
		e.states.PutAt(stateKey{DeviceID: dev, GeofenceID: fence}, State{
			Inside:           s.Inside,
			LastTransitionAt: time.Unix(s.LastTransitionAt, 0).UTC(),
			LastSeenAt:       time.Unix(s.LastSeenAt, 0).UTC(),
		}, now)
	}
}

// Snapshotter periodically flushes evaluator state to disk. The request
// path only marks dirty; disk I/O happens on this goroutine.
type Snapshotter struct {
	evaluator  *Evaluator
	path       string
	maxBytes   int64
	minSpacing time.Duration
	metrics    *metrics.Metrics

	dirty     atomic.Bool
	lastWrite time.Time
}

func NewSnapshotter(e *Evaluator, path string, maxBytes int64, minSpacing time.Duration, m *metrics.Metrics) *Snapshotter {
	if maxBytes <= 0 {
		maxBytes = 16 << 20
	}
	s := &Snapshotter{evaluator: e, path: path, maxBytes: maxBytes, minSpacing: minSpacing, metrics: m}
	e.OnDirty(func() { s.dirty.Store(true) })
	return s
}

// Load restores state from disk. Best-effort: a missing, corrupt, or
// oversized file leaves the service running with empty state.
func (s *Snapshotter) Load() error {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() > s.maxBytes {
		s.countFailure()
		return ErrSnapshotTooLarge
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		s.countFailure()
		return err
	}
	var env snapEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.countFailure()
		return fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	if env.Version != snapshotVersion {
		s.countFailure()
		return fmt.Errorf("%w: version %d", ErrSnapshotCorrupt, env.Version)
	}
	if fmt.Sprintf("%016x", xxhash.Sum64(env.Payload)) != env.Checksum {
		s.countFailure()
		return fmt.Errorf("%w: checksum mismatch", ErrSnapshotCorrupt)
	}
	var states map[string]snapState
	if err := json.Unmarshal(env.Payload, &states); err != nil {
		s.countFailure()
		return fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	s.evaluator.importStates(states)
	return nil
}

// Write flushes current state atomically (write temp, then rename).
func (s *Snapshotter) Write(now time.Time) error {
	payload, err := json.Marshal(s.evaluator.exportStates())
	if err != nil {
		return err
	}
	env := snapEnvelope{
		Version:  snapshotVersion,
		SavedAt:  now.Unix(),
		Checksum: fmt.Sprintf("%016x", xxhash.Sum64(payload)),
		Payload:  payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := atomicfile.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		s.countFailure()
		return err
	}
	s.lastWrite = now
	if s.metrics != nil {
		s.metrics.SnapshotWrites.Inc()
	}
	return nil
}

// Run flushes on an interval whenever state is dirty, spacing writes at
// least minSpacing apart to avoid thrashing under rapid churn. A final
// flush happens on shutdown.
func (s *Snapshotter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.dirty.Load() {
				if err := s.Write(time.Now()); err != nil {
					log.Printf("snapshot: final write: %v", err)
				}
			}
			return
		case now := <-ticker.C:
			if !s.dirty.Load() || now.Sub(s.lastWrite) < s.minSpacing {
				continue
			}
			s.dirty.Store(false)
			if err := s.Write(now); err != nil {
				log.Printf("snapshot: write: %v", err)
				s.dirty.Store(true)
			}
		}
	}
}

func (s *Snapshotter) countFailure() {
	if s.metrics != nil {
		s.metrics.SnapshotFailures.Inc()
	}
}
