package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/core/geometry"
	"github.com/kirillkom/urbanism-zoning/internal/core/ports"
)

// ZoningOptions carries the optional collaborators. Nil members disable the
// features depending on them: analysis needs Texts and Generator, retrieval
// needs Retriever, background indexing needs IndexQueue.
type ZoningOptions struct {
	DefaultCityID string
	// ContextCandidates caps the chunks retrieved per analysis. Zero keeps the default.
	ContextCandidates int

	Texts      ports.RegulationTextSource
	Generator  ports.AnswerGenerator
	Retriever  ports.RegulationRetriever
	IndexQueue ports.IndexJobQueue
}

type ZoningService struct {
	cities  ports.CityCatalog
	portals ports.PortalDirectory

	texts         ports.RegulationTextSource
	generator     ports.AnswerGenerator
	regulations   *RegulationContextBuilder
	indexQueue    ports.IndexJobQueue
	defaultCityID string
}

func NewZoningService(cities ports.CityCatalog, portals ports.PortalDirectory, opts ZoningOptions) *ZoningService {
	regulations := NewRegulationContextBuilder(opts.Retriever)
	if opts.ContextCandidates > 0 {
		regulations.candidates = opts.ContextCandidates
	}
	return &ZoningService{
		cities:        cities,
		portals:       portals,
		texts:         opts.Texts,
		generator:     opts.Generator,
		regulations:   regulations,
		indexQueue:    opts.IndexQueue,
		defaultCityID: opts.DefaultCityID,
	}
}

func (s *ZoningService) Lookup(ctx context.Context, cityID, address string, includeAnalysis bool) (*domain.LookupResult, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "lookup address", errors.New("address is required"))
	}
	city, err := s.resolveCity(cityID)
	if err != nil {
		return nil, err
	}

	portal := s.portals.ForCity(city)
	if city.Portal.RequiresAuth {
		if err := portal.InitializeSession(ctx); err != nil {
			slog.Warn("portal_session_init_failed", "city_id", city.ID, "error", err)
		}
	}

	results, err := portal.SearchAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("search address: %w", err)
	}

	result := &domain.LookupResult{
		Address:       address,
		CityID:        city.ID,
		SearchResults: results,
		Zones:         []domain.ZoneInfo{},
	}
	if len(results) == 0 {
		result.SearchResults = []domain.AddressSearchResult{}
		return result, nil
	}

	selected := results[0]
	result.SelectedAddress = &selected

	point, ok := geometry.ParseWKTPoint(selected.WKT)
	if !ok {
		slog.Info("address_point_unavailable", "city_id", city.ID, "wkt", selected.WKT)
		return result, nil
	}
	result.Point = &point

	bbox := geometry.CalculateBBox(point, city.Coordinates.DefaultBuffer, city.Coordinates.EPSG)
	features, err := portal.GetFeatures(ctx, bbox)
	if err != nil {
		return nil, fmt.Errorf("get features: %w", err)
	}

	result.Zones = FindZonesForPoint(point, features)
	slog.Info("zone_lookup",
		"city_id", city.ID,
		"bbox", bbox,
		"features", featureCount(features),
		"zones", len(result.Zones),
	)

	if includeAnalysis {
		s.analyzeZones(ctx, result.Zones)
	}
	return result, nil
}

func (s *ZoningService) AnalyzeBuildingDetails(ctx context.Context, req domain.BuildingDetailsRequest) (*domain.BuildingDetails, error) {
	if strings.TrimSpace(req.ZoneCode) == "" || strings.TrimSpace(req.BuildingType) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze building details", errors.New("zone code and building type are required"))
	}
	if !s.analysisEnabled() {
		slog.Warn("building_analysis_disabled", "zone_code", req.ZoneCode)
		details := domain.UnknownBuildingDetails()
		return &details, nil
	}

	lookup, err := s.Lookup(ctx, req.CityID, req.Address, false)
	if err != nil {
		return nil, err
	}

	var zone *domain.ZoneInfo
	for i := range lookup.Zones {
		if lookup.Zones[i].ZoneCode() == req.ZoneCode {
			zone = &lookup.Zones[i]
			break
		}
	}
	if zone == nil || zone.RegulationURL() == "" {
		return nil, domain.WrapError(domain.ErrZoneNotFound, "analyze building details", fmt.Errorf("zone %q or its regulation not found", req.ZoneCode))
	}

	text, err := s.texts.FetchText(ctx, zone.RegulationURL())
	if err != nil {
		return nil, fmt.Errorf("fetch regulation text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "fetch regulation text", errors.New("regulation text is empty"))
	}
	s.enqueueIndex(ctx, req.ZoneCode, zone.RegulationURL())

	regulationContext := s.regulations.Build(ctx, req.ZoneCode, req.BuildingType, text)
	raw, err := s.generator.GenerateJSONFromPrompt(ctx, regulationSystemPrompt, buildBuildingDetailsPrompt(req.ZoneCode, req.BuildingType, regulationContext))
	if err != nil {
		return nil, fmt.Errorf("generate building details: %w", err)
	}

	details := parseBuildingDetails(raw)
	return &details, nil
}

func (s *ZoningService) analysisEnabled() bool {
	return s.texts != nil && s.generator != nil
}

// analyzeZones fills BuildingTypes for zones with a regulation. Failures
// degrade to an empty list for that zone.
func (s *ZoningService) analyzeZones(ctx context.Context, zones []domain.ZoneInfo) {
	if !s.analysisEnabled() {
		return
	}
	for i := range zones {
		code, url := zones[i].ZoneCode(), zones[i].RegulationURL()
		if code == "" || url == "" {
			continue
		}

		text, err := s.texts.FetchText(ctx, url)
		if err != nil {
			slog.Warn("zone_analysis_failed", "zone_code", code, "error", err)
			zones[i].BuildingTypes = []string{}
			continue
		}
		if text == "" {
			continue
		}
		zones[i].BuildingTypes = s.extractBuildingTypes(ctx, code, text)
		s.enqueueIndex(ctx, code, url)
	}
}

func (s *ZoningService) extractBuildingTypes(ctx context.Context, zoneCode, text string) []string {
	raw, err := s.generator.GenerateJSONFromPrompt(ctx, regulationSystemPrompt, buildBuildingTypesPrompt(zoneCode, text))
	if err != nil {
		slog.Warn("building_types_generation_failed", "zone_code", zoneCode, "error", err)
		return []string{}
	}
	return parseBuildingTypes(raw)
}

func (s *ZoningService) enqueueIndex(ctx context.Context, zoneCode, sourceURL string) {
	if s.indexQueue == nil {
		return
	}
	job := domain.IndexJob{ZoneCode: zoneCode, SourceURL: sourceURL, EnqueuedAt: time.Now().UTC()}
	if err := s.indexQueue.PublishIndexJob(ctx, job); err != nil {
		slog.Warn("index_job_publish_failed", "zone_code", zoneCode, "source_url", sourceURL, "error", err)
	}
}

func (s *ZoningService) resolveCity(cityID string) (domain.City, error) {
	id := strings.TrimSpace(cityID)
	if id == "" {
		id = s.defaultCityID
	}
	city, ok := s.cities.CityByID(id)
	if !ok {
		return domain.City{}, domain.WrapError(domain.ErrCityNotFound, "resolve city", fmt.Errorf("city configuration not found for %q", id))
	}
	return city, nil
}

func parseBuildingTypes(raw string) []string {
	var items []any
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &items); err != nil {
		slog.Warn("building_types_parse_failed", "error", err)
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseBuildingDetails(raw string) domain.BuildingDetails {
	details := domain.UnknownBuildingDetails()

	var parsed map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		slog.Warn("building_details_parse_failed", "error", err)
		return details
	}

	set := func(dst *string, key string) {
		if v, ok := propertyString(parsed[key]); ok {
			*dst = v
		}
	}
	set(&details.POT, "pot")
	set(&details.CUT, "cut")
	set(&details.SuprafataMinima, "suprafataMinima")
	set(&details.DistantaLimite, "distantaLimite")
	set(&details.DeschidereStrada, "deschidereStrada")
	return details
}

func featureCount(fc *domain.FeatureCollection) int {
	if fc == nil {
		return 0
	}
	return len(fc.Features)
}
