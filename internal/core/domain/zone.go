package domain

import "encoding/json"

// Point is a planar coordinate in the portal's projected reference system.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Vertex struct {
	X float64
	Y float64
}

// Ring is implicitly closed: the last vertex connects back to the first.
type Ring []Vertex

type ZoneInfo struct {
	FeatureID     string   `json:"feature_id"`
	Zona          *string  `json:"zona"`
	Subzona       *string  `json:"subzona"`
	CodZona       *string  `json:"cod_zona"`
	Definitie     *string  `json:"definitie"`
	POT           *string  `json:"pot"`
	CUT           *string  `json:"cut"`
	HMax          *string  `json:"hmax"`
	HRMax         *string  `json:"hrmax"`
	Regulament    *string  `json:"regulament"`
	BuildingTypes []string `json:"buildingTypes,omitempty"`
}

func (z ZoneInfo) ZoneCode() string {
	if z.CodZona == nil {
		return ""
	}
	return *z.CodZona
}

func (z ZoneInfo) RegulationURL() string {
	if z.Regulament == nil {
		return ""
	}
	return *z.Regulament
}

type AddressSearchResult struct {
	IDMapSearch    string `json:"IdMapSearch"`
	Name           string `json:"Name"`
	IconClass      string `json:"IconClass"`
	WKT            string `json:"Wkt"`
	DataSourceName string `json:"DataSourceName"`
}

type LookupResult struct {
	Address         string                `json:"address"`
	CityID          string                `json:"cityId"`
	SearchResults   []AddressSearchResult `json:"searchResults"`
	SelectedAddress *AddressSearchResult  `json:"selectedAddress"`
	Point           *Point                `json:"point"`
	Zones           []ZoneInfo            `json:"zones"`
}

// UnknownValue marks a regulation field that could not be determined.
const UnknownValue = "??"

type BuildingDetails struct {
	POT              string `json:"pot"`
	CUT              string `json:"cut"`
	SuprafataMinima  string `json:"suprafataMinima"`
	DistantaLimite   string `json:"distantaLimite"`
	DeschidereStrada string `json:"deschidereStrada"`
}

func UnknownBuildingDetails() BuildingDetails {
	return BuildingDetails{
		POT:              UnknownValue,
		CUT:              UnknownValue,
		SuprafataMinima:  UnknownValue,
		DistantaLimite:   UnknownValue,
		DeschidereStrada: UnknownValue,
	}
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	ID         any            `json:"id"`
	Geometry   *Geometry      `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry keeps coordinates raw so that each geometry type decodes its own shape.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type BuildingDetailsRequest struct {
	CityID       string `json:"cityId"`
	Address      string `json:"address"`
	ZoneCode     string `json:"zoneCode"`
	BuildingType string `json:"buildingType"`
}
