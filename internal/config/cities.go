package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
)

const defaultEPSG = "EPSG:3844"

//go:embed cities.yaml
var builtinCities []byte

type citiesFile struct {
	Cities []cityEntry `yaml:"cities"`
}

type cityEntry struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	County string `yaml:"county"`
	Portal struct {
		BaseURL       string            `yaml:"base_url"`
		SearchURL     string            `yaml:"search_url"`
		FeaturesURL   string            `yaml:"features_url"`
		RequiresAuth  bool              `yaml:"requires_auth"`
		CustomHeaders map[string]string `yaml:"custom_headers"`
	} `yaml:"portal"`
	Coordinates struct {
		EPSG          string  `yaml:"epsg"`
		DefaultBuffer float64 `yaml:"default_buffer"`
	} `yaml:"coordinates"`
}

// CityCatalog is the immutable list of configured cities, in file order.
type CityCatalog struct {
	cities []domain.City
	byID   map[string]int
}

// LoadCities reads the catalogue from path. An empty path or a missing file
// falls back to the built-in catalogue.
func LoadCities(path string) (*CityCatalog, error) {
	if strings.TrimSpace(path) == "" {
		return ParseCities(builtinCities)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ParseCities(builtinCities)
	}
	if err != nil {
		return nil, fmt.Errorf("read cities file: %w", err)
	}
	return ParseCities(data)
}

func ParseCities(data []byte) (*CityCatalog, error) {
	var file citiesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode cities: %w", err)
	}
	if len(file.Cities) == 0 {
		return nil, errors.New("decode cities: catalogue is empty")
	}

	catalog := &CityCatalog{byID: make(map[string]int, len(file.Cities))}
	for i, entry := range file.Cities {
		city, err := entry.toDomain()
		if err != nil {
			return nil, fmt.Errorf("city #%d: %w", i+1, err)
		}
		if _, dup := catalog.byID[city.ID]; dup {
			return nil, fmt.Errorf("city #%d: duplicate id %q", i+1, city.ID)
		}
		catalog.byID[city.ID] = len(catalog.cities)
		catalog.cities = append(catalog.cities, city)
	}
	return catalog, nil
}

func (e cityEntry) toDomain() (domain.City, error) {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		return domain.City{}, errors.New("id is required")
	}
	if e.Portal.BaseURL == "" || e.Portal.SearchURL == "" || e.Portal.FeaturesURL == "" {
		return domain.City{}, fmt.Errorf("%s: portal base_url, search_url and features_url are required", id)
	}
	epsg := strings.TrimSpace(e.Coordinates.EPSG)
	if epsg == "" {
		epsg = defaultEPSG
	}
	headers := make(map[string]string, len(e.Portal.CustomHeaders))
	for k, v := range e.Portal.CustomHeaders {
		headers[k] = v
	}
	return domain.City{
		ID:     id,
		Name:   e.Name,
		County: e.County,
		Portal: domain.PortalConfig{
			BaseURL:       strings.TrimRight(e.Portal.BaseURL, "/"),
			SearchURL:     e.Portal.SearchURL,
			FeaturesURL:   e.Portal.FeaturesURL,
			RequiresAuth:  e.Portal.RequiresAuth,
			CustomHeaders: headers,
		},
		Coordinates: domain.CoordinateConfig{
			EPSG:          epsg,
			DefaultBuffer: e.Coordinates.DefaultBuffer,
		},
	}, nil
}

func (c *CityCatalog) Cities() []domain.City {
	out := make([]domain.City, len(c.cities))
	copy(out, c.cities)
	return out
}

func (c *CityCatalog) CityByID(id string) (domain.City, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return domain.City{}, false
	}
	return c.cities[idx], true
}
