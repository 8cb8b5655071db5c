// README: Per-device monotonic sequence tracking.
package ingest

import (
	"time"

	"fleettrack/internal/cache"
)

type seqState struct {
	lastSeq int64
}

// Sequencer accepts a point only when its seq strictly exceeds the last
// accepted seq for that device.
type Sequencer struct {
	states *cache.Map[string, seqState]
}

func NewSequencer() *Sequencer {
	return &Sequencer{states: cache.NewMap[string, seqState]("device_seq")}
}

func (s *Sequencer) Cache() *cache.Map[string, seqState] { return s.states }

// Accept advances the device's sequence on success. A rejected replay does
// not touch the entry; only accepted points count as device activity.
func (s *Sequencer) Accept(deviceID string, seq int64, now time.Time) bool {
	return s.states.UpdateIf(deviceID, now, func(st seqState, ok bool) (seqState, bool) {
		if ok && seq <= st.lastSeq {
			return st, false
		}
		return seqState{lastSeq: seq}, true
	})
}

// Reset drops all sequence state (test hook).
func (s *Sequencer) Reset() { s.states.Clear() }
