// README: Coarse uniform-grid spatial index for candidate geofence lookup.
package geofence

import (
	"math"

	"fleettrack/internal/types"
)

type cellKey struct {
	X, Y int
}

// index buckets geofences into a uniform grid. Cell size is configured in
// kilometres and converted once to a fixed angular size used on both axes,
// so inserting and querying always derive the same keys for the same
// coordinates. Rebuilt wholesale on every tenant replace; there is no
// incremental insert or delete in the hot path.
type index struct {
	cellSizeKm float64
	cells      map[cellKey][]*Geofence
}

func buildIndex(fences []*Geofence, cellSizeKm float64) *index {
	if cellSizeKm <= 0 {
		return nil
	}
	ix := &index{cellSizeKm: cellSizeKm, cells: map[cellKey][]*Geofence{}}
	for _, g := range fences {
		minLat, maxLat, minLng, maxLng := g.bounds(0)
		ix.eachCell(minLat, maxLat, minLng, maxLng, func(k cellKey) {
			ix.cells[k] = append(ix.cells[k], g)
		})
	}
	return ix
}

// cellDegrees is the fixed angular cell size shared by both axes. Keeping
// it latitude-independent means a longitude always lands in the same cell
// column no matter whose bbox is being discretized; cells cover less
// east-west ground near the poles, which the radius check in
// candidateMatch corrects for.
func (ix *index) cellDegrees() float64 {
	return ix.cellSizeKm / types.KmPerDegreeLat
}

func (ix *index) eachCell(minLat, maxLat, minLng, maxLng float64, fn func(cellKey)) {
	d := ix.cellDegrees()
	x0 := int(math.Floor(minLat / d))
	x1 := int(math.Floor(maxLat / d))
	y0 := int(math.Floor(minLng / d))
	y1 := int(math.Floor(maxLng / d))
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			fn(cellKey{X: x, Y: y})
		}
	}
}

// candidates collects active geofences from the cells covering a disc of
// radiusKm around p, then applies a correcting global-radius check and a
// per-shape bounding check (inflated by the hysteresis margin) to bound
// false positives before exact evaluation. Result size is capped at max.
func (ix *index) candidates(p types.Point, radiusKm, epsilonM float64, max int) []*Geofence {
	dLat := radiusKm / types.KmPerDegreeLat
	dLng := radiusKm / lngKmPerDegree(p.Lat)

	seen := map[string]struct{}{}
	var out []*Geofence
	ix.eachCell(p.Lat-dLat, p.Lat+dLat, p.Lng-dLng, p.Lng+dLng, func(k cellKey) {
		for _, g := range ix.cells[k] {
			if _, dup := seen[g.ID]; dup {
				continue
			}
			seen[g.ID] = struct{}{}
			if !candidateMatch(g, p, radiusKm, epsilonM) {
				continue
			}
			if max > 0 && len(out) >= max {
				return
			}
			out = append(out, g)
		}
	})
	return out
}

// linearScan is the no-index fallback: same filtering, full tenant scan.
func linearScan(fences []*Geofence, p types.Point, radiusKm, epsilonM float64, max int) []*Geofence {
	var out []*Geofence
	for _, g := range fences {
		if !candidateMatch(g, p, radiusKm, epsilonM) {
			continue
		}
		if max > 0 && len(out) >= max {
			break
		}
		out = append(out, g)
	}
	return out
}

func candidateMatch(g *Geofence, p types.Point, radiusKm, epsilonM float64) bool {
	if !g.Active {
		return false
	}
	// Correcting global-radius check: grid cells overshoot the disc.
	if types.HaversineKm(p, g.refPoint()) > radiusKm+g.extentKm() {
		return false
	}
	minLat, maxLat, minLng, maxLng := g.bounds(epsilonM)
	return p.Lat >= minLat && p.Lat <= maxLat && p.Lng >= minLng && p.Lng <= maxLng
}

// extentKm is how far the shape can reach beyond its reference point.
func (g *Geofence) extentKm() float64 {
	if g.Kind == KindCircle {
		return g.RadiusM / 1000.0
	}
	ref := g.refPoint()
	max := 0.0
	for _, v := range g.Vertices {
		max = math.Max(max, types.HaversineKm(ref, v))
	}
	return max
}
