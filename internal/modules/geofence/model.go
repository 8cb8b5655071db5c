// README: Geofence shapes and exact containment math.
package geofence

import (
	"errors"
	"math"

	"fleettrack/internal/types"
)

type Kind string

const (
	KindCircle  Kind = "circle"
	KindPolygon Kind = "polygon"
)

var (
	ErrBadShape = errors.New("geofence: invalid shape")
	ErrNotFound = errors.New("geofence: not found")
)

type Geofence struct {
	ID       string        `json:"id" yaml:"id" validate:"required"`
	OrgID    string        `json:"org_id" yaml:"org_id" validate:"required"`
	Kind     Kind          `json:"kind" yaml:"kind" validate:"required,oneof=circle polygon"`
	Active   bool          `json:"active" yaml:"active"`
	Center   types.Point   `json:"center" yaml:"center"`
	RadiusM  float64       `json:"radius_m" yaml:"radius_m"`
	Vertices []types.Point `json:"vertices,omitempty" yaml:"vertices,omitempty"`
}

func (g *Geofence) Validate() error {
	switch g.Kind {
	case KindCircle:
		if g.RadiusM <= 0 {
			return ErrBadShape
		}
	case KindPolygon:
		if len(g.Vertices) < 3 {
			return ErrBadShape
		}
	default:
		return ErrBadShape
	}
	return nil
}

// refPoint is the anchor used for coarse distance checks: circle center, or
// the polygon vertex-bbox center.
func (g *Geofence) refPoint() types.Point {
	if g.Kind == KindCircle {
		return g.Center
	}
	minLat, maxLat, minLng, maxLng := g.bounds(0)
	return types.Point{Lat: (minLat + maxLat) / 2, Lng: (minLng + maxLng) / 2}
}

// bounds returns the shape's bounding box in degrees, inflated by marginM
// metres (longitude scaled by cos of the shape's latitude).
func (g *Geofence) bounds(marginM float64) (minLat, maxLat, minLng, maxLng float64) {
	if g.Kind == KindCircle {
		r := (g.RadiusM + marginM) / 1000.0
		dLat := r / types.KmPerDegreeLat
		dLng := r / lngKmPerDegree(g.Center.Lat)
		return g.Center.Lat - dLat, g.Center.Lat + dLat, g.Center.Lng - dLng, g.Center.Lng + dLng
	}
	minLat, minLng = math.Inf(1), math.Inf(1)
	maxLat, maxLng = math.Inf(-1), math.Inf(-1)
	for _, v := range g.Vertices {
		minLat = math.Min(minLat, v.Lat)
		maxLat = math.Max(maxLat, v.Lat)
		minLng = math.Min(minLng, v.Lng)
		maxLng = math.Max(maxLng, v.Lng)
	}
	if marginM > 0 {
		mKm := marginM / 1000.0
		dLat := mKm / types.KmPerDegreeLat
		dLng := mKm / lngKmPerDegree((minLat+maxLat)/2)
		minLat, maxLat = minLat-dLat, maxLat+dLat
		minLng, maxLng = minLng-dLng, maxLng+dLng
	}
	return minLat, maxLat, minLng, maxLng
}

// Containment classifies a point against a shape with a hysteresis margin:
// Inside means strictly within; Boundary means outside but within epsilonM
// of the edge; Outside means confirmed outside.
type Containment int

const (
	Outside Containment = iota
	Boundary
	Inside
)

func (g *Geofence) Contains(p types.Point, epsilonM float64) Containment {
	switch g.Kind {
	case KindCircle:
		d := types.HaversineMeters(p, g.Center)
		if d <= g.RadiusM {
			return Inside
		}
		if d <= g.RadiusM+epsilonM {
			return Boundary
		}
		return Outside
	case KindPolygon:
		if pointInPolygon(p, g.Vertices) {
			return Inside
		}
		if minEdgeDistanceM(p, g.Vertices) <= epsilonM {
			return Boundary
		}
		return Outside
	}
	return Outside
}

// pointInPolygon is the even-odd ray-casting test over lat/lng treated as a
// plane, which is fine at geofence scale.
func pointInPolygon(p types.Point, verts []types.Point) bool {
	inside := false
	n := len(verts)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := verts[i], verts[j]
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) {
			x := (vj.Lng-vi.Lng)*(p.Lat-vi.Lat)/(vj.Lat-vi.Lat) + vi.Lng
			if p.Lng < x {
				inside = !inside
			}
		}
	}
	return inside
}

// minEdgeDistanceM approximates the minimum point-to-edge distance by
// projecting onto a local flat frame scaled to metres around the point.
func minEdgeDistanceM(p types.Point, verts []types.Point) float64 {
	latScale := types.KmPerDegreeLat * 1000.0
	lngScale := lngKmPerDegree(p.Lat) * 1000.0

	px, py := 0.0, 0.0
	min := math.Inf(1)
	n := len(verts)
	for i := 0; i < n; i++ {
		a, b := verts[i], verts[(i+1)%n]
		ax := (a.Lng - p.Lng) * lngScale
		ay := (a.Lat - p.Lat) * latScale
		bx := (b.Lng - p.Lng) * lngScale
		by := (b.Lat - p.Lat) * latScale
		min = math.Min(min, pointToSegment(px, py, ax, ay, bx, by))
	}
	return min
}

func pointToSegment(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	t := 0.0
	if lenSq > 0 {
		t = ((px-ax)*dx + (py-ay)*dy) / lenSq
		t = math.Max(0, math.Min(1, t))
	}
	cx, cy := ax+t*dx, ay+t*dy
	return math.Hypot(px-cx, py-cy)
}

// lngKmPerDegree is the east-west span of one degree of longitude at the
// given latitude, floored near the poles to keep divisions sane.
func lngKmPerDegree(lat float64) float64 {
	c := math.Cos(lat * math.Pi / 180.0)
	if c < 0.01 {
		c = 0.01
	}
	return types.KmPerDegreeLat * c
}
