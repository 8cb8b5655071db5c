package geofence

import (
	"fmt"
	"testing"

	"fleettrack/internal/types"
)

func testFences(n int, center types.Point) []Geofence {
	out := make([]Geofence, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Geofence{
			ID:      fmt.Sprintf("f%d", i),
			Kind:    KindCircle,
			Active:  true,
			Center:  types.Point{Lat: center.Lat + float64(i)*0.001, Lng: center.Lng},
			RadiusM: 100,
		})
	}
	return out
}

func TestStoreCandidatesNearby(t *testing.T) {
	store := NewStore(2.0)
	center := types.Point{Lat: 25.0, Lng: 121.5}
	if err := store.ReplaceOrg("org", testFences(5, center)); err != nil {
		t.Fatal(err)
	}
	// A geofence ~100km away must not appear.
	far := []Geofence{{ID: "far", Kind: KindCircle, Active: true, Center: types.Point{Lat: 26.0, Lng: 121.5}, RadiusM: 100}}
	if err := store.ReplaceOrg("org", append(testFences(5, center), far...)); err != nil {
		t.Fatal(err)
	}

	got := store.Candidates("org", center, 5.0, 20, 0)
	if len(got) != 5 {
		t.Fatalf("candidates = %d, want 5", len(got))
	}
	for _, g := range got {
		if g.ID == "far" {
			t.Fatal("distant geofence leaked into candidates")
		}
	}
}

func TestStoreCandidatesSkipInactive(t *testing.T) {
	store := NewStore(2.0)
	center := types.Point{Lat: 25.0, Lng: 121.5}
	fences := testFences(3, center)
	fences[1].Active = false
	if err := store.ReplaceOrg("org", fences); err != nil {
		t.Fatal(err)
	}
	got := store.Candidates("org", center, 5.0, 20, 0)
	if len(got) != 2 {
		t.Fatalf("candidates = %d, want 2 (inactive excluded)", len(got))
	}
}

func TestStoreCandidatesCap(t *testing.T) {
	store := NewStore(2.0)
	center := types.Point{Lat: 25.0, Lng: 121.5}
	if err := store.ReplaceOrg("org", testFences(10, center)); err != nil {
		t.Fatal(err)
	}
	got := store.Candidates("org", center, 5.0, 20, 3)
	if len(got) != 3 {
		t.Fatalf("candidates = %d, want cap of 3", len(got))
	}
}

func TestStoreLinearScanFallback(t *testing.T) {
	// Cell size zero disables the grid; lookup degrades to a full scan.
	store := NewStore(0)
	center := types.Point{Lat: 25.0, Lng: 121.5}
	if err := store.ReplaceOrg("org", testFences(4, center)); err != nil {
		t.Fatal(err)
	}
	got := store.Candidates("org", center, 5.0, 20, 0)
	if len(got) != 4 {
		t.Fatalf("fallback candidates = %d, want 4", len(got))
	}
}

func TestIndexMatchesLinearScanHighLatitude(t *testing.T) {
	// Device at 60N near the antimeridian, inside a 30km fence whose
	// center sits ~25km further north. Cell keys must not depend on
	// whose latitude the longitude width is derived from, or the grid
	// buckets the fence in columns the lookup never scans.
	fences := []Geofence{{
		ID:      "polar",
		Kind:    KindCircle,
		Active:  true,
		Center:  types.Point{Lat: 60.0 + 25.0/types.KmPerDegreeLat, Lng: 179.0},
		RadiusM: 30000,
	}}
	indexed := NewStore(2.0)
	linear := NewStore(0)
	for _, s := range []*Store{indexed, linear} {
		if err := s.ReplaceOrg("org", fences); err != nil {
			t.Fatal(err)
		}
	}

	p := types.Point{Lat: 60.0, Lng: 179.0}
	fromIndex := indexed.Candidates("org", p, 50.0, 20, 0)
	fromScan := linear.Candidates("org", p, 50.0, 20, 0)
	if len(fromScan) != 1 {
		t.Fatalf("linear scan found %d candidates, want 1", len(fromScan))
	}
	if len(fromIndex) != 1 {
		t.Fatalf("grid index found %d candidates, linear scan found %d", len(fromIndex), len(fromScan))
	}
}

func TestIndexMatchesLinearScanScatter(t *testing.T) {
	center := types.Point{Lat: 25.0, Lng: 121.5}
	var fences []Geofence
	for i := 0; i < 8; i++ {
		fences = append(fences, Geofence{
			ID:     fmt.Sprintf("s%d", i),
			Kind:   KindCircle,
			Active: true,
			Center: types.Point{
				Lat: center.Lat + float64(i-4)*0.02,
				Lng: center.Lng + float64(i%3)*0.03,
			},
			RadiusM: 200 + float64(i)*400,
		})
	}
	indexed := NewStore(2.0)
	linear := NewStore(0)
	for _, s := range []*Store{indexed, linear} {
		if err := s.ReplaceOrg("org", fences); err != nil {
			t.Fatal(err)
		}
	}

	ids := func(gs []*Geofence) map[string]bool {
		out := map[string]bool{}
		for _, g := range gs {
			out[g.ID] = true
		}
		return out
	}
	probes := []types.Point{
		center,
		{Lat: center.Lat + 0.05, Lng: center.Lng},
		{Lat: center.Lat - 0.05, Lng: center.Lng + 0.05},
	}
	for _, p := range probes {
		fromIndex := ids(indexed.Candidates("org", p, 5.0, 20, 0))
		fromScan := ids(linear.Candidates("org", p, 5.0, 20, 0))
		if len(fromIndex) != len(fromScan) {
			t.Fatalf("probe %+v: index %v, scan %v", p, fromIndex, fromScan)
		}
		for id := range fromScan {
			if !fromIndex[id] {
				t.Fatalf("probe %+v: index missed %s", p, id)
			}
		}
	}
}

func TestStoreUnknownOrg(t *testing.T) {
	store := NewStore(2.0)
	if got := store.Candidates("nobody", types.Point{}, 5.0, 20, 0); got != nil {
		t.Fatalf("unknown org returned %d candidates", len(got))
	}
}

func TestReplaceOrgRejectsInvalid(t *testing.T) {
	store := NewStore(2.0)
	bad := []Geofence{{ID: "x", Kind: KindCircle, Active: true}}
	if err := store.ReplaceOrg("org", bad); err == nil {
		t.Fatal("invalid shape accepted")
	}
	if store.Org("org") != nil {
		t.Fatal("tenant half-loaded after rejected replace")
	}
}
