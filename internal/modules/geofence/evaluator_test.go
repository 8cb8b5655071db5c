package geofence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleettrack/internal/events"
	"fleettrack/internal/modules/settings"
	"fleettrack/internal/types"
)

var fenceCenter = types.Point{Lat: 25.0, Lng: 121.5}

func testEvaluator(t *testing.T, defaults settings.Defaults) (*Evaluator, *settings.MemoryMeter) {
	t.Helper()
	store := NewStore(2.0)
	err := store.ReplaceOrg("org", []Geofence{
		{ID: "c1", Kind: KindCircle, Active: true, Center: fenceCenter, RadiusM: 100},
	})
	require.NoError(t, err)

	svc := settings.NewService(defaults, time.Minute, nil, nil)
	meter := settings.NewMemoryMeter()
	return NewEvaluator(store, svc, meter, events.NopPublisher{}, nil, 0), meter
}

func at(p types.Point, offsetM float64) types.Point {
	return types.Point{Lat: p.Lat + offsetM/(types.KmPerDegreeLat*1000.0), Lng: p.Lng}
}

func TestEnterExitWithHysteresis(t *testing.T) {
	e, _ := testEvaluator(t, settings.Defaults{EpsilonM: 20, CandidateRadiusKm: 5})
	ctx := context.Background()
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	// seq=1: 50m from center, inside -> enter.
	got := e.Evaluate(ctx, "org", "d1", at(fenceCenter, 50), t0)
	require.Len(t, got, 1)
	require.Equal(t, events.TransitionEnter, got[0].Type)

	// seq=2: 110m, within the 20m hysteresis band -> still inside.
	got = e.Evaluate(ctx, "org", "d1", at(fenceCenter, 110), t0.Add(5*time.Second))
	require.Empty(t, got)

	// seq=3: 150m, confirmed outside -> exit committed exactly once.
	got = e.Evaluate(ctx, "org", "d1", at(fenceCenter, 150), t0.Add(10*time.Second))
	require.Len(t, got, 1)
	require.Equal(t, events.TransitionExit, got[0].Type)

	// Retry of the same logical transition (same second) is idempotent.
	got = e.Evaluate(ctx, "org", "d1", at(fenceCenter, 150), t0.Add(10*time.Second))
	require.Empty(t, got)
}

func TestHysteresisBandNeverFlaps(t *testing.T) {
	e, _ := testEvaluator(t, settings.Defaults{EpsilonM: 20, CandidateRadiusKm: 5})
	ctx := context.Background()
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	e.Evaluate(ctx, "org", "d1", at(fenceCenter, 50), t0)

	// Bouncing between radius and radius+epsilon commits nothing.
	for i := 1; i <= 6; i++ {
		off := 105.0
		if i%2 == 0 {
			off = 115.0
		}
		got := e.Evaluate(ctx, "org", "d1", at(fenceCenter, off), t0.Add(time.Duration(i)*5*time.Second))
		require.Empty(t, got, "band bounce %d committed a transition", i)
	}
}

func TestDwellGatesTransitions(t *testing.T) {
	e, _ := testEvaluator(t, settings.Defaults{EpsilonM: 20, CandidateRadiusKm: 5, DwellSeconds: 10})
	ctx := context.Background()
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	inside := at(fenceCenter, 50)
	outside := at(fenceCenter, 300)

	// Transient crossing shorter than dwell never commits.
	require.Empty(t, e.Evaluate(ctx, "org", "d1", inside, t0))
	require.Empty(t, e.Evaluate(ctx, "org", "d1", inside, t0.Add(5*time.Second)))
	require.Empty(t, e.Evaluate(ctx, "org", "d1", outside, t0.Add(8*time.Second)))

	// The flip fully reset the timer: a new crossing needs its own window.
	require.Empty(t, e.Evaluate(ctx, "org", "d1", inside, t0.Add(30*time.Second)))
	require.Empty(t, e.Evaluate(ctx, "org", "d1", inside, t0.Add(35*time.Second)))

	// Held for the full window -> exactly one enter.
	got := e.Evaluate(ctx, "org", "d1", inside, t0.Add(40*time.Second))
	require.Len(t, got, 1)
	require.Equal(t, events.TransitionEnter, got[0].Type)

	// Holding further does not re-emit.
	require.Empty(t, e.Evaluate(ctx, "org", "d1", inside, t0.Add(50*time.Second)))
}

func TestQuotaBlocksAndResumesNextDay(t *testing.T) {
	e, meter := testEvaluator(t, settings.Defaults{EpsilonM: 20, CandidateRadiusKm: 5, DailyEventCap: 1})
	ctx := context.Background()
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	inside := at(fenceCenter, 50)
	outside := at(fenceCenter, 300)

	// First transition of the day fits under cap=1.
	got := e.Evaluate(ctx, "org", "d1", inside, t0)
	require.Len(t, got, 1)
	require.EqualValues(t, 1, meter.Used("org", "2026-08-30"))

	// Second qualifying transition is blocked and state is not corrupted:
	// the device still reads as inside.
	got = e.Evaluate(ctx, "org", "d1", outside, t0.Add(time.Minute))
	require.Empty(t, got)
	st, ok := e.States().Get(stateKey{DeviceID: "d1", GeofenceID: "c1"})
	require.True(t, ok)
	require.True(t, st.Inside, "blocked transition must not flip state")

	// Next UTC day the exit goes through.
	got = e.Evaluate(ctx, "org", "d1", outside, t0.Add(24*time.Hour))
	require.Len(t, got, 1)
	require.Equal(t, events.TransitionExit, got[0].Type)
}

func TestEvaluateUnknownOrgNoCandidates(t *testing.T) {
	e, _ := testEvaluator(t, settings.Defaults{EpsilonM: 20, CandidateRadiusKm: 5})
	got := e.Evaluate(context.Background(), "ghost", "d1", fenceCenter, time.Now())
	require.Empty(t, got)
}
