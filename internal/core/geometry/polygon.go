package geometry

import (
	"math"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
)

const epsilon = 1e-9

// PointInRing is an even-odd ray cast. Points on an edge (collinear within
// epsilon and inside the edge's bounding box) count as inside.
func PointInRing(p domain.Point, ring domain.Ring) bool {
	inside := false
	n := len(ring)

	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[(i+1)%n]

		cross := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
		if math.Abs(cross) < epsilon &&
			math.Min(a.X, b.X)-epsilon <= p.X && p.X <= math.Max(a.X, b.X)+epsilon &&
			math.Min(a.Y, b.Y)-epsilon <= p.Y && p.Y <= math.Max(a.Y, b.Y)+epsilon {
			return true
		}

		if (a.Y > p.Y) != (b.Y > p.Y) {
			xIntersect := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X <= xIntersect {
				inside = !inside
			}
		}
	}

	return inside
}

// PointInPolygon treats rings[0] as the outer boundary and the rest as holes.
// A point on a hole boundary is inside the hole, hence outside the polygon.
func PointInPolygon(p domain.Point, rings []domain.Ring) bool {
	if len(rings) == 0 {
		return false
	}
	if !PointInRing(p, rings[0]) {
		return false
	}
	for _, hole := range rings[1:] {
		if PointInRing(p, hole) {
			return false
		}
	}
	return true
}

// RingsFromCoordinates converts GeoJSON polygon coordinates, keeping the first
// two ordinates of each position. Positions with fewer than two ordinates are dropped.
func RingsFromCoordinates(coords [][][]float64) []domain.Ring {
	rings := make([]domain.Ring, 0, len(coords))
	for _, rawRing := range coords {
		ring := make(domain.Ring, 0, len(rawRing))
		for _, pos := range rawRing {
			if len(pos) < 2 {
				continue
			}
			ring = append(ring, domain.Vertex{X: pos[0], Y: pos[1]})
		}
		rings = append(rings, ring)
	}
	return rings
}
