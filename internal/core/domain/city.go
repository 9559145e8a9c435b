package domain

type City struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	County      string           `json:"county"`
	Portal      PortalConfig     `json:"-"`
	Coordinates CoordinateConfig `json:"coordinates"`
}

// PortalConfig describes a municipal GIS portal. SearchURL and FeaturesURL are
// relative to BaseURL and carry {address} and {bbox} placeholders.
type PortalConfig struct {
	BaseURL       string
	SearchURL     string
	FeaturesURL   string
	RequiresAuth  bool
	CustomHeaders map[string]string
}

type CoordinateConfig struct {
	EPSG          string  `json:"epsg"`
	DefaultBuffer float64 `json:"defaultBuffer"`
}

type County struct {
	Name   string     `json:"name"`
	Cities []CityInfo `json:"cities"`
}

// CityInfo is the public projection of a City without portal credentials or headers.
type CityInfo struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	County       string           `json:"county"`
	Coordinates  CoordinateConfig `json:"coordinates"`
	RequiresAuth bool             `json:"requiresAuth"`
}

func (c City) Info() CityInfo {
	return CityInfo{
		ID:           c.ID,
		Name:         c.Name,
		County:       c.County,
		Coordinates:  c.Coordinates,
		RequiresAuth: c.Portal.RequiresAuth,
	}
}
