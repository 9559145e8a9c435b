package geometry

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
)

var (
	multiPointZPattern = regexp.MustCompile(`MULTIPOINT Z \(([-\d.]+)\s+([-\d.]+)\s+[\d.]+\)`)
	pointPattern       = regexp.MustCompile(`POINT \(([-\d.]+)\s+([-\d.]+)\)`)
)

// ParseWKTPoint extracts x and y from "MULTIPOINT Z (x y z)" or "POINT (x y)".
// The boolean is false when no coordinate is available; that is not an error.
func ParseWKTPoint(wkt string) (domain.Point, bool) {
	match := multiPointZPattern.FindStringSubmatch(wkt)
	if match == nil {
		match = pointPattern.FindStringSubmatch(wkt)
	}
	if match == nil {
		return domain.Point{}, false
	}

	x, ok := parseNumberPrefix(match[1])
	if !ok {
		return domain.Point{}, false
	}
	y, ok := parseNumberPrefix(match[2])
	if !ok {
		return domain.Point{}, false
	}
	return domain.Point{X: x, Y: y}, true
}

// parseNumberPrefix reads the longest leading decimal number, so a malformed
// token such as "1.2.3" yields 1.2 instead of failing.
func parseNumberPrefix(token string) (float64, bool) {
	for end := len(token); end > 0; end-- {
		if v, err := strconv.ParseFloat(token[:end], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// FormatWKTPoint renders a point the way portals return plain points.
func FormatWKTPoint(x, y float64) string {
	return "POINT (" + formatCoordinate(x) + " " + formatCoordinate(y) + ")"
}

func FormatWKTMultiPoint(points []domain.Point) string {
	parts := make([]string, 0, len(points))
	for _, p := range points {
		parts = append(parts, "("+formatCoordinate(p.X)+" "+formatCoordinate(p.Y)+")")
	}
	return "MULTIPOINT (" + strings.Join(parts, ",") + ")"
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
