package geometry

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
)

func squareWithHole() []domain.Ring {
	return RingsFromCoordinates([][][]float64{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
		{{4, 4}, {6, 4}, {6, 6}, {4, 6}},
	})
}

func TestParseWKTPointMultiPointZ(t *testing.T) {
	p, ok := ParseWKTPoint("MULTIPOINT Z (585123.45 325678.9 0)")
	if !ok {
		t.Fatalf("expected point")
	}
	if p.X != 585123.45 || p.Y != 325678.9 {
		t.Fatalf("unexpected point: %+v", p)
	}
}

func TestParseWKTPointPlainPoint(t *testing.T) {
	p, ok := ParseWKTPoint("POINT (-12.5 44)")
	if !ok {
		t.Fatalf("expected point")
	}
	if p.X != -12.5 || p.Y != 44 {
		t.Fatalf("unexpected point: %+v", p)
	}
}

func TestParseWKTPointReturnsFalseForUnknownShapes(t *testing.T) {
	for _, wkt := range []string{"", "LINESTRING (1 2, 3 4)", "POINT(1 2)", "POINT (a b)"} {
		if _, ok := ParseWKTPoint(wkt); ok {
			t.Fatalf("expected no point for %q", wkt)
		}
	}
}

func TestParseWKTPointReadsLeadingNumber(t *testing.T) {
	p, ok := ParseWKTPoint("POINT (1.2.3 4)")
	if !ok || p.X != 1.2 || p.Y != 4 {
		t.Fatalf("expected x=1.2 y=4, got %+v ok=%v", p, ok)
	}
	if _, ok := ParseWKTPoint("POINT (- 4)"); ok {
		t.Fatalf("expected no point when a coordinate has no digits")
	}
}

func TestFormatWKTPointRoundTripsThroughParser(t *testing.T) {
	p, ok := ParseWKTPoint(FormatWKTPoint(26.1025, 44.4268))
	if !ok || p.X != 26.1025 || p.Y != 44.4268 {
		t.Fatalf("unexpected parse result: %+v ok=%v", p, ok)
	}
}

func TestCalculateBBox(t *testing.T) {
	got := CalculateBBox(domain.Point{X: 100, Y: 200}, 50, "EPSG:3844")
	if got != "50,150,150,250,EPSG:3844" {
		t.Fatalf("unexpected bbox: %s", got)
	}
}

func TestCalculateBBoxDefaults(t *testing.T) {
	got := CalculateBBox(domain.Point{X: 1000, Y: 1000}, 0, "")
	if got != "300,300,1700,1700,EPSG:3844" {
		t.Fatalf("unexpected bbox: %s", got)
	}
}

func TestCalculateBBoxIsSymmetric(t *testing.T) {
	points := []domain.Point{{X: 0, Y: 0}, {X: 585123.45, Y: 325678.9}, {X: -17.25, Y: 3.5}}
	buffers := []float64{1, 250, 700.5}

	for _, p := range points {
		for _, b := range buffers {
			parts := strings.Split(CalculateBBox(p, b, "EPSG:3844"), ",")
			if len(parts) != 5 {
				t.Fatalf("expected 5 parts, got %v", parts)
			}
			vals := make([]float64, 4)
			for i := range vals {
				v, err := strconv.ParseFloat(parts[i], 64)
				if err != nil {
					t.Fatalf("parse bbox part %q: %v", parts[i], err)
				}
				vals[i] = v
			}
			width := vals[2] - vals[0]
			height := vals[3] - vals[1]
			if math.Abs(width-2*b) > 1e-6 || math.Abs(height-2*b) > 1e-6 {
				t.Fatalf("bbox for %+v buffer %v not symmetric: w=%v h=%v", p, b, width, height)
			}
		}
	}
}

func TestPointInRingBoundaryCountsAsInside(t *testing.T) {
	ring := squareWithHole()[0]
	for _, p := range []domain.Point{{X: 5, Y: 0}, {X: 10, Y: 5}, {X: 0, Y: 0}, {X: 0, Y: 7.5}} {
		if !PointInRing(p, ring) {
			t.Fatalf("expected boundary point %+v inside", p)
		}
	}
}

func TestPointInRingCollinearButBeyondEdgeIsOutside(t *testing.T) {
	ring := squareWithHole()[0]
	if PointInRing(domain.Point{X: 15, Y: 0}, ring) {
		t.Fatalf("expected point on the edge's extension to be outside")
	}
	if PointInRing(domain.Point{X: 11, Y: 5}, ring) {
		t.Fatalf("expected point right of the ring to be outside")
	}
}

func TestPointInPolygonWithHole(t *testing.T) {
	rings := squareWithHole()
	if PointInPolygon(domain.Point{X: 5, Y: 5}, rings) {
		t.Fatalf("expected point inside hole to be outside polygon")
	}
	if !PointInPolygon(domain.Point{X: 1, Y: 1}, rings) {
		t.Fatalf("expected point between outer ring and hole to be inside polygon")
	}
}

func TestPointInPolygonOuterEdgeInsideHoleEdgeOutside(t *testing.T) {
	rings := squareWithHole()
	if !PointInPolygon(domain.Point{X: 5, Y: 0}, rings) {
		t.Fatalf("expected outer edge point inside polygon")
	}
	if PointInPolygon(domain.Point{X: 5, Y: 4}, rings) {
		t.Fatalf("expected hole edge point outside polygon")
	}
}

func TestPointInPolygonConcaveRing(t *testing.T) {
	// U shape open at the top between x=3 and x=7.
	rings := RingsFromCoordinates([][][]float64{
		{{0, 0}, {10, 0}, {10, 10}, {7, 10}, {7, 3}, {3, 3}, {3, 10}, {0, 10}},
	})
	if PointInPolygon(domain.Point{X: 5, Y: 6}, rings) {
		t.Fatalf("expected point in the notch to be outside")
	}
	if !PointInPolygon(domain.Point{X: 1.5, Y: 8}, rings) {
		t.Fatalf("expected point in the left arm to be inside")
	}
}

func TestPointInPolygonEmptyRings(t *testing.T) {
	if PointInPolygon(domain.Point{X: 1, Y: 1}, nil) {
		t.Fatalf("expected no containment without rings")
	}
}

func TestRingsFromCoordinatesDropsShortPositionsAndExtraOrdinates(t *testing.T) {
	rings := RingsFromCoordinates([][][]float64{{{1, 2, 99}, {3}, {4, 5}}})
	if len(rings) != 1 || len(rings[0]) != 2 {
		t.Fatalf("unexpected rings: %+v", rings)
	}
	if rings[0][0] != (domain.Vertex{X: 1, Y: 2}) || rings[0][1] != (domain.Vertex{X: 4, Y: 5}) {
		t.Fatalf("unexpected vertices: %+v", rings[0])
	}
}

func TestFormatWKTMultiPoint(t *testing.T) {
	got := FormatWKTMultiPoint([]domain.Point{{X: 1, Y: 2}, {X: 3.5, Y: -4}})
	if got != "MULTIPOINT ((1 2),(3.5 -4))" {
		t.Fatalf("unexpected wkt: %s", got)
	}
}
