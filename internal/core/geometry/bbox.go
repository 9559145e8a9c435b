package geometry

import (
	"strings"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
)

const (
	DefaultBuffer = 700.0
	DefaultCRS    = "EPSG:3844"
)

// CalculateBBox returns "minX,minY,maxX,maxY,<crs>" for a square of half-side buffer around p.
func CalculateBBox(p domain.Point, buffer float64, crs string) string {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	crs = strings.TrimSpace(crs)
	if crs == "" {
		crs = DefaultCRS
	}

	return strings.Join([]string{
		formatCoordinate(p.X - buffer),
		formatCoordinate(p.Y - buffer),
		formatCoordinate(p.X + buffer),
		formatCoordinate(p.Y + buffer),
		crs,
	}, ",")
}
