package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/core/ports"
)

type CityDirectoryService struct {
	catalog ports.CityCatalog
}

func NewCityDirectoryService(catalog ports.CityCatalog) *CityDirectoryService {
	return &CityDirectoryService{catalog: catalog}
}

// Counties groups cities by county in catalogue order.
func (s *CityDirectoryService) Counties() []domain.County {
	counties := []domain.County{}
	index := make(map[string]int)
	for _, city := range s.catalog.Cities() {
		i, ok := index[city.County]
		if !ok {
			i = len(counties)
			index[city.County] = i
			counties = append(counties, domain.County{Name: city.County, Cities: []domain.CityInfo{}})
		}
		counties[i].Cities = append(counties[i].Cities, city.Info())
	}
	return counties
}

func (s *CityDirectoryService) CitiesByCounty(county string) []domain.CityInfo {
	county = strings.TrimSpace(county)
	out := []domain.CityInfo{}
	for _, city := range s.catalog.Cities() {
		if strings.EqualFold(city.County, county) {
			out = append(out, city.Info())
		}
	}
	return out
}

func (s *CityDirectoryService) City(id string) (domain.CityInfo, error) {
	city, ok := s.catalog.CityByID(strings.TrimSpace(id))
	if !ok {
		return domain.CityInfo{}, domain.WrapError(domain.ErrCityNotFound, "get city", fmt.Errorf("id=%s", id))
	}
	return city.Info(), nil
}
