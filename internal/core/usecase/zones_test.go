package usecase

import (
	"encoding/json"
	"testing"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
)

const zonesFixture = `{
  "type": "FeatureCollection",
  "features": [
    {
      "id": 17,
      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[10,0],[10,10],[0,10]],[[4,4],[6,4],[6,6],[4,6]]]},
      "properties": {"zona": "L", "subzona": "L1", "cod_zona": "L1a", "POT": 40, "CUT": 0.8, "hmax": "", "HMAX": "10m", "regulation": "https://portal/reg/L1a.pdf"}
    },
    {
      "id": "mp-1",
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[0,0],[10,0],[10,10],[0,10]]]]},
      "properties": {"ZONA": "M"}
    },
    {
      "id": "no-geom",
      "geometry": null,
      "properties": {"zona": "X"}
    },
    {
      "id": "overlap",
      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[3,0],[3,3],[0,3]]]},
      "properties": {"ZONA": "V", "zoneCode": "V1", "DEFINITIE": "spatii verzi"}
    }
  ]
}`

func decodeFixture(t *testing.T) *domain.FeatureCollection {
	t.Helper()
	var fc domain.FeatureCollection
	if err := json.Unmarshal([]byte(zonesFixture), &fc); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return &fc
}

func TestFindZonesForPointReturnsOverlappingZonesInOrder(t *testing.T) {
	zones := FindZonesForPoint(domain.Point{X: 1, Y: 1}, decodeFixture(t))
	if len(zones) != 2 {
		t.Fatalf("expected 2 zones, got %d: %+v", len(zones), zones)
	}
	if zones[0].FeatureID != "17" || zones[1].FeatureID != "overlap" {
		t.Fatalf("unexpected order: %s, %s", zones[0].FeatureID, zones[1].FeatureID)
	}
}

func TestFindZonesForPointAppliesAliases(t *testing.T) {
	zones := FindZonesForPoint(domain.Point{X: 1, Y: 1}, decodeFixture(t))

	first := zones[0]
	if first.ZoneCode() != "L1a" || *first.Zona != "L" || *first.Subzona != "L1" {
		t.Fatalf("unexpected identity fields: %+v", first)
	}
	if *first.POT != "40" || *first.CUT != "0.8" {
		t.Fatalf("expected numeric POT/CUT rendered as strings, got %v %v", *first.POT, *first.CUT)
	}
	if first.HMax == nil || *first.HMax != "10m" {
		t.Fatalf("expected empty hmax to fall back to HMAX")
	}
	if first.RegulationURL() != "https://portal/reg/L1a.pdf" {
		t.Fatalf("expected regulation alias, got %q", first.RegulationURL())
	}
	if first.HRMax != nil || first.Definitie != nil {
		t.Fatalf("expected missing fields to stay nil")
	}

	second := zones[1]
	if *second.Zona != "V" || second.ZoneCode() != "V1" || *second.Definitie != "spatii verzi" {
		t.Fatalf("unexpected alias mapping: %+v", second)
	}
}

func TestFindZonesForPointExcludesHoles(t *testing.T) {
	zones := FindZonesForPoint(domain.Point{X: 5, Y: 5}, decodeFixture(t))
	if len(zones) != 0 {
		t.Fatalf("expected point inside hole to match nothing, got %+v", zones)
	}
}

func TestFindZonesForPointHandlesNilCollection(t *testing.T) {
	zones := FindZonesForPoint(domain.Point{X: 1, Y: 1}, nil)
	if zones == nil || len(zones) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", zones)
	}
}

func TestFindZonesForPointSkipsMalformedCoordinates(t *testing.T) {
	fc := &domain.FeatureCollection{Features: []domain.Feature{{
		ID:       "bad",
		Geometry: &domain.Geometry{Type: "Polygon", Coordinates: json.RawMessage(`"oops"`)},
	}}}
	if zones := FindZonesForPoint(domain.Point{}, fc); len(zones) != 0 {
		t.Fatalf("expected malformed feature skipped, got %+v", zones)
	}
}
