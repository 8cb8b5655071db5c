package geofence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleettrack/internal/modules/settings"
)

func TestSnapshotRoundTrip(t *testing.T) {
	e, _ := testEvaluator(t, settings.Defaults{EpsilonM: 20, CandidateRadiusKm: 5})
	ctx := context.Background()
	t0 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	e.Evaluate(ctx, "org", "d1", at(fenceCenter, 50), t0)
	e.Evaluate(ctx, "org", "d2", at(fenceCenter, 300), t0)

	path := filepath.Join(t.TempDir(), "state.snap")
	snap := NewSnapshotter(e, path, 0, 0, nil)
	require.NoError(t, snap.Write(t0.Add(time.Minute)))

	restored, _ := testEvaluator(t, settings.Defaults{EpsilonM: 20, CandidateRadiusKm: 5})
	snap2 := NewSnapshotter(restored, path, 0, 0, nil)
	require.NoError(t, snap2.Load())

	require.Equal(t, e.exportStates(), restored.exportStates())

	st, ok := restored.States().Get(stateKey{DeviceID: "d1", GeofenceID: "c1"})
	require.True(t, ok)
	require.True(t, st.Inside)
	require.Equal(t, t0.Unix(), st.LastTransitionAt.Unix())
}

func TestSnapshotCorruptRejected(t *testing.T) {
	e, _ := testEvaluator(t, settings.Defaults{EpsilonM: 20, CandidateRadiusKm: 5})
	path := filepath.Join(t.TempDir(), "state.snap")
	snap := NewSnapshotter(e, path, 0, 0, nil)
	require.NoError(t, snap.Write(time.Now()))

	// Flip a payload byte: checksum must catch it.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-10] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	fresh, _ := testEvaluator(t, settings.Defaults{EpsilonM: 20, CandidateRadiusKm: 5})
	snap2 := NewSnapshotter(fresh, path, 0, 0, nil)
	err = snap2.Load()
	require.Error(t, err)
	require.Equal(t, 0, fresh.States().Len(), "corrupt snapshot must leave state empty")
}

func TestSnapshotOversizedRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.snap")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o644))

	e, _ := testEvaluator(t, settings.Defaults{EpsilonM: 20, CandidateRadiusKm: 5})
	snap := NewSnapshotter(e, path, 1024, 0, nil)
	err := snap.Load()
	require.True(t, errors.Is(err, ErrSnapshotTooLarge))
}

func TestSnapshotMissingFileIsFine(t *testing.T) {
	e, _ := testEvaluator(t, settings.Defaults{EpsilonM: 20, CandidateRadiusKm: 5})
	snap := NewSnapshotter(e, filepath.Join(t.TempDir(), "absent.snap"), 0, 0, nil)
	require.NoError(t, snap.Load())
}
