package geofence

import (
	"testing"

	"fleettrack/internal/types"
)

// metersNorth offsets a point by roughly n metres of latitude.
func metersNorth(p types.Point, n float64) types.Point {
	return types.Point{Lat: p.Lat + n/(types.KmPerDegreeLat*1000.0), Lng: p.Lng}
}

func TestCircleContainmentHysteresis(t *testing.T) {
	center := types.Point{Lat: 25.0, Lng: 121.5}
	c := &Geofence{ID: "c1", OrgID: "org", Kind: KindCircle, Active: true, Center: center, RadiusM: 100}

	tests := []struct {
		name    string
		offsetM float64
		want    Containment
	}{
		{"well inside", 50, Inside},
		{"just inside radius", 99, Inside},
		{"in hysteresis band", 110, Boundary},
		{"at band edge", 119, Boundary},
		{"confirmed outside", 121, Outside},
		{"far outside", 500, Outside},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Contains(metersNorth(center, tt.offsetM), 20)
			if got != tt.want {
				t.Fatalf("offset %.0fm: got %v, want %v", tt.offsetM, got, tt.want)
			}
		})
	}
}

func TestPolygonContainment(t *testing.T) {
	// ~1km square around the origin point.
	sq := &Geofence{
		ID: "p1", OrgID: "org", Kind: KindPolygon, Active: true,
		Vertices: []types.Point{
			{Lat: 25.000, Lng: 121.500},
			{Lat: 25.009, Lng: 121.500},
			{Lat: 25.009, Lng: 121.510},
			{Lat: 25.000, Lng: 121.510},
		},
	}

	inside := types.Point{Lat: 25.0045, Lng: 121.505}
	if got := sq.Contains(inside, 20); got != Inside {
		t.Fatalf("center point: got %v, want Inside", got)
	}

	// ~10m south of the bottom edge: within the 20m epsilon band.
	nearEdge := types.Point{Lat: 25.000 - 10.0/(types.KmPerDegreeLat*1000.0), Lng: 121.505}
	if got := sq.Contains(nearEdge, 20); got != Boundary {
		t.Fatalf("near edge: got %v, want Boundary", got)
	}

	// ~100m south: confirmed outside.
	farOut := types.Point{Lat: 25.000 - 100.0/(types.KmPerDegreeLat*1000.0), Lng: 121.505}
	if got := sq.Contains(farOut, 20); got != Outside {
		t.Fatalf("far out: got %v, want Outside", got)
	}
}

func TestGeofenceValidate(t *testing.T) {
	tests := []struct {
		name    string
		g       Geofence
		wantErr bool
	}{
		{"valid circle", Geofence{Kind: KindCircle, RadiusM: 10}, false},
		{"zero radius", Geofence{Kind: KindCircle}, true},
		{"valid polygon", Geofence{Kind: KindPolygon, Vertices: make([]types.Point, 3)}, false},
		{"two vertices", Geofence{Kind: KindPolygon, Vertices: make([]types.Point, 2)}, true},
		{"unknown kind", Geofence{Kind: "blob"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.g.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
