// README: Geofence transition state machine: hysteresis, dwell, quota.
package geofence

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"fleettrack/internal/cache"
	"fleettrack/internal/events"
	"fleettrack/internal/metrics"
	"fleettrack/internal/modules/settings"
	"fleettrack/internal/types"
)

type stateKey struct {
	DeviceID   string
	GeofenceID string
}

// State tracks one (device, geofence) pair. Inside only changes via a
// committed transition, never mid-dwell.
type State struct {
	Inside           bool
	LastTransitionAt time.Time
	LastSeenAt       time.Time
	DwellStartIn     time.Time
	DwellStartOut    time.Time
}

type eventKey struct {
	DeviceID   string
	GeofenceID string
	Type       events.TransitionType
	Second     int64
}

type Evaluator struct {
	store     *Store
	settings  *settings.Service
	meter     settings.Meter
	publisher events.Publisher
	metrics   *metrics.Metrics

	states        *cache.Map[stateKey, State]
	eventSeen     *cache.Map[eventKey, struct{}]
	markDirty     func()
	maxCandidates int
}

func NewEvaluator(store *Store, st *settings.Service, meter settings.Meter, pub events.Publisher, m *metrics.Metrics, maxCandidates int) *Evaluator {
	if maxCandidates <= 0 {
		maxCandidates = 256
	}
	return &Evaluator{
		store:         store,
		settings:      st,
		meter:         meter,
		publisher:     pub,
		metrics:       m,
		states:        cache.NewMap[stateKey, State]("geofence_state"),
		eventSeen:     cache.NewMap[eventKey, struct{}]("event_idempotency"),
		markDirty:     func() {},
		maxCandidates: maxCandidates,
	}
}

// OnDirty installs the snapshot trigger called after each committed
// transition.
func (e *Evaluator) OnDirty(fn func()) { e.markDirty = fn }

func (e *Evaluator) States() *cache.Map[stateKey, State] { return e.states }

func (e *Evaluator) EventCache() *cache.Map[eventKey, struct{}] { return e.eventSeen }

// Evaluate runs every candidate geofence for one accepted point and
// returns the transitions committed by it.
func (e *Evaluator) Evaluate(ctx context.Context, orgID, deviceID string, p types.Point, at time.Time) []events.Transition {
	cfg := e.settings.Resolve(ctx, orgID, time.Now())
	candidates := e.store.Candidates(orgID, p, cfg.CandidateRadiusKm, cfg.EpsilonM, e.maxCandidates)
	if e.metrics != nil {
		e.metrics.CandidateCount.WithLabelValues(orgID).Set(float64(len(candidates)))
	}

	var out []events.Transition
	for _, g := range candidates {
		started := time.Now()
		t, committed := e.evaluateOne(ctx, g, cfg, deviceID, p, at)
		if e.metrics != nil {
			e.metrics.EvalDuration.WithLabelValues(orgID, string(g.Kind)).Observe(time.Since(started).Seconds())
		}
		if committed {
			out = append(out, t)
		}
	}
	return out
}

func (e *Evaluator) evaluateOne(ctx context.Context, g *Geofence, cfg settings.OrgSettings, deviceID string, p types.Point, at time.Time) (events.Transition, bool) {
	key := stateKey{DeviceID: deviceID, GeofenceID: g.ID}
	st, _ := e.states.Get(key)
	st.LastSeenAt = at

	cond := g.Contains(p, cfg.EpsilonM)
	dwell := time.Duration(cfg.DwellSeconds) * time.Second

	var (
		evType    events.TransitionType
		qualifies bool
	)
	if st.Inside {
		// Exit needs confirmed-outside: past the hysteresis band.
		if cond == Outside {
			if dwell <= 0 || e.dwellMet(&st.DwellStartOut, at, dwell) {
				evType, qualifies = events.TransitionExit, true
			}
		} else if !st.DwellStartOut.IsZero() {
			st.DwellStartOut = time.Time{}
			e.countDwellSuppressed()
		}
	} else {
		if cond == Inside {
			if dwell <= 0 || e.dwellMet(&st.DwellStartIn, at, dwell) {
				evType, qualifies = events.TransitionEnter, true
			}
		} else if !st.DwellStartIn.IsZero() {
			st.DwellStartIn = time.Time{}
			e.countDwellSuppressed()
		}
	}

	if !qualifies {
		e.states.PutAt(key, st, time.Now())
		return events.Transition{}, false
	}

	ek := eventKey{DeviceID: deviceID, GeofenceID: g.ID, Type: evType, Second: at.Unix()}
	if _, dup := e.eventSeen.Get(ek); dup {
		// Same logical transition re-evaluated; converge state silently.
		e.commitState(key, &st, evType, at)
		return events.Transition{}, false
	}

	allowed, err := e.meter.Allow(ctx, g.OrgID, at.UTC().Format("2006-01-02"), cfg.DailyEventCap)
	if err != nil {
		log.Printf("geofence: quota check org %s: %v", g.OrgID, err)
		allowed = false
	}
	if !allowed {
		// Prior committed state stays intact; the dwell timer is kept so
		// the transition retries on the next qualifying point.
		if e.metrics != nil {
			e.metrics.QuotaBlocked.WithLabelValues(g.OrgID).Inc()
		}
		e.states.PutAt(key, st, time.Now())
		return events.Transition{}, false
	}

	e.eventSeen.PutAt(ek, struct{}{}, time.Now())
	e.commitState(key, &st, evType, at)

	t := events.Transition{
		ID:         uuid.NewString(),
		OrgID:      g.OrgID,
		DeviceID:   deviceID,
		GeofenceID: g.ID,
		Type:       evType,
		OccurredAt: at,
		Lat:        p.Lat,
		Lng:        p.Lng,
	}
	if e.metrics != nil {
		e.metrics.GeofenceEvents.WithLabelValues(g.OrgID, string(evType)).Inc()
		e.metrics.EventsPublished.Inc()
	}
	if err := e.publisher.Publish(ctx, t); err != nil {
		log.Printf("geofence: publish transition %s: %v", t.ID, err)
	}
	return t, true
}

// dwellMet starts the per-direction timer on the first qualifying point and
// reports whether the condition has held for the full dwell window. Any
// condition flip before that fully resets the timer (see evaluateOne).
func (e *Evaluator) dwellMet(start *time.Time, at time.Time, dwell time.Duration) bool {
	if start.IsZero() {
		*start = at
		return false
	}
	return at.Sub(*start) >= dwell
}

func (e *Evaluator) commitState(key stateKey, st *State, evType events.TransitionType, at time.Time) {
	st.Inside = evType == events.TransitionEnter
	st.LastTransitionAt = at
	st.DwellStartIn = time.Time{}
	st.DwellStartOut = time.Time{}
	e.states.PutAt(key, *st, time.Now())
	e.markDirty()
}

func (e *Evaluator) countDwellSuppressed() {
	if e.metrics != nil {
		e.metrics.DwellSuppressed.Inc()
	}
}

// Reset drops all transition and idempotency state (test hook).
func (e *Evaluator) Reset() {
	e.states.Clear()
	e.eventSeen.Clear()
}
