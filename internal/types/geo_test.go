package types

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	// Taipei Main Station to Taipei 101 is roughly 4 km.
	a := Point{Lat: 25.0478, Lng: 121.5170}
	b := Point{Lat: 25.0330, Lng: 121.5654}
	d := HaversineKm(a, b)
	if d < 4.0 || d > 5.5 {
		t.Fatalf("distance %.2f km out of expected range", d)
	}
	if HaversineKm(a, a) != 0 {
		t.Fatal("zero distance expected for identical points")
	}
}

func TestBearingDegrees(t *testing.T) {
	origin := Point{Lat: 0, Lng: 0}
	tests := []struct {
		name string
		to   Point
		want float64
	}{
		{"north", Point{Lat: 1, Lng: 0}, 0},
		{"east", Point{Lat: 0, Lng: 1}, 90},
		{"south", Point{Lat: -1, Lng: 0}, 180},
		{"west", Point{Lat: 0, Lng: -1}, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BearingDegrees(origin, tt.to)
			if math.Abs(got-tt.want) > 0.5 {
				t.Fatalf("bearing %.1f, want %.1f", got, tt.want)
			}
		})
	}
}
