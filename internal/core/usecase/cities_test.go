package usecase

import (
	"testing"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
)

func directoryCatalog() *cityCatalogFake {
	return &cityCatalogFake{cities: []domain.City{
		{ID: "bucuresti-ilfov", Name: "București", County: "Ilfov", Portal: domain.PortalConfig{RequiresAuth: true}},
		{ID: "cluj-napoca", Name: "Cluj-Napoca", County: "Cluj"},
		{ID: "otopeni", Name: "Otopeni", County: "Ilfov"},
	}}
}

func TestCountiesKeepCatalogueOrder(t *testing.T) {
	counties := NewCityDirectoryService(directoryCatalog()).Counties()
	if len(counties) != 2 || counties[0].Name != "Ilfov" || counties[1].Name != "Cluj" {
		t.Fatalf("unexpected counties: %+v", counties)
	}
	if len(counties[0].Cities) != 2 || counties[0].Cities[1].ID != "otopeni" {
		t.Fatalf("unexpected Ilfov cities: %+v", counties[0].Cities)
	}
	if !counties[0].Cities[0].RequiresAuth {
		t.Fatalf("expected requiresAuth carried into city info")
	}
}

func TestCitiesByCountyIsCaseInsensitive(t *testing.T) {
	svc := NewCityDirectoryService(directoryCatalog())
	if got := svc.CitiesByCounty(" ilfov "); len(got) != 2 {
		t.Fatalf("expected 2 cities, got %+v", got)
	}
	if got := svc.CitiesByCounty("Timiș"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}
}

func TestCityByID(t *testing.T) {
	svc := NewCityDirectoryService(directoryCatalog())
	info, err := svc.City("cluj-napoca")
	if err != nil || info.Name != "Cluj-Napoca" {
		t.Fatalf("unexpected city: %+v, %v", info, err)
	}
	if _, err := svc.City("sibiu"); !domain.IsKind(err, domain.ErrCityNotFound) {
		t.Fatalf("expected city not found, got %v", err)
	}
}
