package portal

import (
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/core/geometry"
)

const defaultIconClass = "default"

// NormalizeSearchResults accepts the shapes portals answer with: a plain array,
// {"results": [...]}, or a GeoJSON FeatureCollection of points.
func NormalizeSearchResults(data any, cityID string) []domain.AddressSearchResult {
	switch v := data.(type) {
	case []any:
		out := make([]domain.AddressSearchResult, 0, len(v))
		for _, raw := range v {
			item, _ := raw.(map[string]any)
			out = append(out, domain.AddressSearchResult{
				IDMapSearch:    firstValue(item, "", "IdMapSearch", "id", "Id"),
				Name:           firstValue(item, "", "Name", "name", "displayName"),
				IconClass:      firstValue(item, defaultIconClass, "IconClass", "icon"),
				WKT:            firstValue(item, "", "Wkt", "geometry", "wkt"),
				DataSourceName: firstValue(item, cityID, "DataSourceName", "source"),
			})
		}
		return out
	case map[string]any:
		if results, ok := v["results"].([]any); ok {
			return NormalizeSearchResults(results, cityID)
		}
		if features, ok := v["features"].([]any); ok {
			return normalizeFeatures(features, cityID)
		}
	}
	slog.Warn("portal_search_unknown_format", "city_id", cityID)
	return []domain.AddressSearchResult{}
}

func normalizeFeatures(features []any, cityID string) []domain.AddressSearchResult {
	out := make([]domain.AddressSearchResult, 0, len(features))
	for _, raw := range features {
		feature, _ := raw.(map[string]any)
		props, _ := feature["properties"].(map[string]any)
		id, _ := scalarString(feature["id"])
		out = append(out, domain.AddressSearchResult{
			IDMapSearch:    id,
			Name:           firstValue(props, "Unknown", "name", "Name", "displayName"),
			IconClass:      firstValue(props, defaultIconClass, "icon"),
			WKT:            geometryToWKT(feature["geometry"]),
			DataSourceName: cityID,
		})
	}
	return out
}

func geometryToWKT(raw any) string {
	geom, ok := raw.(map[string]any)
	if !ok {
		return ""
	}
	coords, err := json.Marshal(geom["coordinates"])
	if err != nil {
		return ""
	}
	switch geom["type"] {
	case "Point":
		var xy []float64
		if json.Unmarshal(coords, &xy) != nil || len(xy) < 2 {
			return ""
		}
		return geometry.FormatWKTPoint(xy[0], xy[1])
	case "MultiPoint":
		var positions [][]float64
		if json.Unmarshal(coords, &positions) != nil {
			return ""
		}
		points := make([]domain.Point, 0, len(positions))
		for _, pos := range positions {
			if len(pos) >= 2 {
				points = append(points, domain.Point{X: pos[0], Y: pos[1]})
			}
		}
		return geometry.FormatWKTMultiPoint(points)
	}
	return ""
}

// firstValue returns the first alias holding a non-empty value, else def.
func firstValue(item map[string]any, def string, keys ...string) string {
	for _, key := range keys {
		if s, ok := scalarString(item[key]); ok {
			return s
		}
	}
	return def
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		if t == 0 {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), t
	default:
		return "", false
	}
}
