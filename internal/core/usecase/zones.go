package usecase

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/core/geometry"
)

const geometryTypePolygon = "Polygon"

// zoneAttribute maps the property names portals use to one ZoneInfo field.
// Aliases are tried in order and the first non-empty value wins.
type zoneAttribute struct {
	aliases []string
	field   func(*domain.ZoneInfo) **string
}

var zoneAttributes = []zoneAttribute{
	{aliases: []string{"zona", "zone", "ZONA"}, field: func(z *domain.ZoneInfo) **string { return &z.Zona }},
	{aliases: []string{"subzona", "subzone", "SUBZONA"}, field: func(z *domain.ZoneInfo) **string { return &z.Subzona }},
	{aliases: []string{"cod_zona", "zoneCode", "COD_ZONA"}, field: func(z *domain.ZoneInfo) **string { return &z.CodZona }},
	{aliases: []string{"definitie", "definition", "DEFINITIE"}, field: func(z *domain.ZoneInfo) **string { return &z.Definitie }},
	{aliases: []string{"pot", "POT"}, field: func(z *domain.ZoneInfo) **string { return &z.POT }},
	{aliases: []string{"cut", "CUT"}, field: func(z *domain.ZoneInfo) **string { return &z.CUT }},
	{aliases: []string{"hmax", "HMAX"}, field: func(z *domain.ZoneInfo) **string { return &z.HMax }},
	{aliases: []string{"hrmax", "HRMAX"}, field: func(z *domain.ZoneInfo) **string { return &z.HRMax }},
	{aliases: []string{"regulament", "regulation", "REGULAMENT"}, field: func(z *domain.ZoneInfo) **string { return &z.Regulament }},
}

// FindZonesForPoint returns every Polygon feature containing p, in feature
// order. Other geometry types (MultiPolygon included) are skipped.
func FindZonesForPoint(p domain.Point, fc *domain.FeatureCollection) []domain.ZoneInfo {
	zones := []domain.ZoneInfo{}
	if fc == nil {
		return zones
	}

	for _, feature := range fc.Features {
		geom := feature.Geometry
		if geom == nil || geom.Type != geometryTypePolygon {
			continue
		}

		var coords [][][]float64
		if err := json.Unmarshal(geom.Coordinates, &coords); err != nil {
			slog.Debug("zone_feature_skipped", "feature_id", featureID(feature.ID), "error", err)
			continue
		}
		if !geometry.PointInPolygon(p, geometry.RingsFromCoordinates(coords)) {
			continue
		}
		zones = append(zones, zoneFromProperties(featureID(feature.ID), feature.Properties))
	}
	return zones
}

func zoneFromProperties(id string, props map[string]any) domain.ZoneInfo {
	zone := domain.ZoneInfo{FeatureID: id}
	for _, attr := range zoneAttributes {
		for _, alias := range attr.aliases {
			if v, ok := propertyString(props[alias]); ok {
				*attr.field(&zone) = &v
				break
			}
		}
	}
	return zone
}

// propertyString mirrors truthiness: nil, "", 0 and false count as absent.
func propertyString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case float64:
		if val == 0 {
			return "", false
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case json.Number:
		return val.String(), val.String() != "0"
	case bool:
		if !val {
			return "", false
		}
		return "true", true
	default:
		return fmt.Sprintf("%v", val), true
	}
}

func featureID(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
