// README: Jitter/outlier filter with EMA speed and heading smoothing.
package ingest

import (
	"time"

	"fleettrack/internal/cache"
	"fleettrack/internal/types"
)

// FilterConfig holds the process-wide filter thresholds; these are not
// per-tenant tunables.
type FilterConfig struct {
	JitterMeters  float64
	JitterSeconds float64
	MaxSpeedMPS   float64
	EMAAlpha      float64
}

type pointState struct {
	at       time.Time
	pos      types.Point
	emaSpeed float64
	heading  float64
	hasEMA   bool
}

// Derived carries the deltas computed against the previous accepted point,
// consumed by the mini-aggregator and exposed back to callers.
type Derived struct {
	HasPrev      bool
	Dt           time.Duration
	DistanceKm   float64
	InstSpeedMPS float64
	EMASpeedMPS  float64
	HeadingDeg   float64
}

type Filter struct {
	cfg    FilterConfig
	states *cache.Map[string, pointState]
}

func NewFilter(cfg FilterConfig) *Filter {
	return &Filter{cfg: cfg, states: cache.NewMap[string, pointState]("device_point")}
}

func (f *Filter) Cache() *cache.Map[string, pointState] { return f.states }

// Check classifies a candidate point against the device's previous accepted
// point. On acceptance the device state advances: timestamp, position, EMA
// speed, and heading from the bearing between the two points.
func (f *Filter) Check(p DevicePoint, now time.Time) (Derived, DropReason) {
	at := p.Time()
	pos := types.Point{Lat: p.Lat, Lng: p.Lng}

	prev, hasPrev := f.states.Get(p.DeviceID)
	if !hasPrev {
		st := pointState{at: at, pos: pos}
		if p.Speed != nil {
			st.emaSpeed = *p.Speed
			st.hasEMA = true
		}
		if p.Heading != nil {
			st.heading = *p.Heading
		}
		f.states.PutAt(p.DeviceID, st, now)
		return Derived{EMASpeedMPS: st.emaSpeed, HeadingDeg: st.heading}, ""
	}

	dt := at.Sub(prev.at)
	distKm := types.HaversineKm(prev.pos, pos)
	distM := distKm * 1000.0

	if dt >= 0 && dt.Seconds() < f.cfg.JitterSeconds && distM < f.cfg.JitterMeters {
		return Derived{}, DropJitter
	}

	instSpeed := 0.0
	if dt > 0 {
		instSpeed = distM / dt.Seconds()
		if instSpeed > f.cfg.MaxSpeedMPS {
			return Derived{}, DropTeleport
		}
	}

	ema := instSpeed
	if prev.hasEMA {
		ema = f.cfg.EMAAlpha*instSpeed + (1-f.cfg.EMAAlpha)*prev.emaSpeed
	}
	heading := prev.heading
	if distM > 0 {
		heading = types.BearingDegrees(prev.pos, pos)
	}

	f.states.PutAt(p.DeviceID, pointState{at: at, pos: pos, emaSpeed: ema, heading: heading, hasEMA: true}, now)
	return Derived{
		HasPrev:      true,
		Dt:           dt,
		DistanceKm:   distKm,
		InstSpeedMPS: instSpeed,
		EMASpeedMPS:  ema,
		HeadingDeg:   heading,
	}, ""
}

// Reset drops all previous-point state (test hook).
func (f *Filter) Reset() { f.states.Clear() }
