package ports

import (
	"context"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
)

// Chunker splits regulation text into overlapping character windows.
type Chunker interface {
	Chunk(text string) []domain.TextChunk
}

// Embedder builds vectors for chunk batches and query text. Output order matches input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingsRepository persists chunk vectors keyed by record id and searches them per zone.
type EmbeddingsRepository interface {
	UpsertEmbeddings(ctx context.Context, records []domain.EmbeddingRecord) error
	SearchSimilar(ctx context.Context, queryEmbedding []float32, zoneCode string, limit int) ([]domain.RetrievedChunk, error)
}

// RegulationDocumentStore tracks indexing state per (zone code, source url).
type RegulationDocumentStore interface {
	MarkProcessing(ctx context.Context, zoneCode, sourceURL string) error
	MarkReady(ctx context.Context, zoneCode, sourceURL string, chunkCount int) error
	MarkFailed(ctx context.Context, zoneCode, sourceURL, errMessage string) error
	Get(ctx context.Context, zoneCode, sourceURL string) (*domain.RegulationDocument, error)
}

// IndexJobQueue publishes/consumes regulation indexing jobs.
type IndexJobQueue interface {
	PublishIndexJob(ctx context.Context, job domain.IndexJob) error
	SubscribeIndexJobs(ctx context.Context, handler func(context.Context, domain.IndexJob) error) error
}

// GISPortal talks to one municipal urbanism portal.
type GISPortal interface {
	InitializeSession(ctx context.Context) error
	SearchAddress(ctx context.Context, address string) ([]domain.AddressSearchResult, error)
	GetFeatures(ctx context.Context, bbox string) (*domain.FeatureCollection, error)
}

// PortalDirectory hands out one long-lived portal client per city so sessions survive between lookups.
type PortalDirectory interface {
	ForCity(city domain.City) GISPortal
}

// RegulationTextSource downloads a regulation document and returns its plain text.
type RegulationTextSource interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// AnswerGenerator runs a completion that is expected to answer with JSON only.
type AnswerGenerator interface {
	GenerateJSONFromPrompt(ctx context.Context, system, prompt string) (string, error)
}

// CityCatalog is the read-only set of configured cities.
type CityCatalog interface {
	Cities() []domain.City
	CityByID(id string) (domain.City, bool)
}

// DocumentIndexer chunks, embeds and stores one regulation document.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, in domain.IndexDocumentInput) (int, error)
}
