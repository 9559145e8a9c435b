package ports

import (
	"context"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
)

// ZoningLookupService resolves addresses to zoning regulations.
type ZoningLookupService interface {
	Lookup(ctx context.Context, cityID, address string, includeAnalysis bool) (*domain.LookupResult, error)
	AnalyzeBuildingDetails(ctx context.Context, req domain.BuildingDetailsRequest) (*domain.BuildingDetails, error)
}

// CityDirectory is the inbound read model for configured cities.
type CityDirectory interface {
	Counties() []domain.County
	CitiesByCounty(county string) []domain.CityInfo
	City(id string) (domain.CityInfo, error)
}

// RegulationRetriever is the retrieval half of the RAG service. It is optional:
// callers receive nil when no embedding provider is configured.
type RegulationRetriever interface {
	RetrieveContext(ctx context.Context, in domain.RetrieveContextInput) ([]domain.RetrievedChunk, error)
}

// RegulationIndexer is the inbound contract for asynchronous regulation indexing.
type RegulationIndexer interface {
	IndexRegulation(ctx context.Context, job domain.IndexJob) error
}
