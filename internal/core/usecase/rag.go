package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/core/ports"
)

const defaultRetrieveLimit = 8

// RagService indexes regulation text per zone and retrieves the closest chunks back.
type RagService struct {
	chunker      ports.Chunker
	embedder     ports.Embedder
	repo         ports.EmbeddingsRepository
	defaultLimit int
}

func NewRagService(
	chunker ports.Chunker,
	embedder ports.Embedder,
	repo ports.EmbeddingsRepository,
) *RagService {
	return &RagService{
		chunker:      chunker,
		embedder:     embedder,
		repo:         repo,
		defaultLimit: defaultRetrieveLimit,
	}
}

// WithDefaultLimit sets the chunk count used when a retrieval asks for none.
func (s *RagService) WithDefaultLimit(limit int) *RagService {
	if limit > 0 {
		s.defaultLimit = limit
	}
	return s
}

// IndexDocument chunks, embeds and upserts a regulation document in a single
// batch. It returns the number of records written.
func (s *RagService) IndexDocument(ctx context.Context, in domain.IndexDocumentInput) (int, error) {
	if in.ZoneCode == "" || in.SourceURL == "" || in.FullText == "" {
		return 0, nil
	}

	chunks := s.chunker.Chunk(in.FullText)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	records := make([]domain.EmbeddingRecord, len(chunks))
	for i, c := range chunks {
		vector := []float32{}
		if i < len(vectors) && vectors[i] != nil {
			vector = vectors[i]
		}
		records[i] = domain.EmbeddingRecord{
			ID:        domain.EmbeddingRecordID(in.ZoneCode, c.Start, c.End),
			ZoneCode:  in.ZoneCode,
			SourceURL: in.SourceURL,
			Chunk:     c.Text,
			Embedding: vector,
			Start:     c.Start,
			End:       c.End,
		}
	}

	if err := s.repo.UpsertEmbeddings(ctx, records); err != nil {
		return 0, fmt.Errorf("upsert embeddings: %w", err)
	}
	return len(records), nil
}

// RetrieveContext returns the repository's ranking verbatim. An empty query
// embedding means embeddings are unavailable and yields no chunks.
func (s *RagService) RetrieveContext(ctx context.Context, in domain.RetrieveContextInput) ([]domain.RetrievedChunk, error) {
	if in.ZoneCode == "" || in.Query == "" {
		return []domain.RetrievedChunk{}, nil
	}
	limit := in.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, in.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVector) == 0 {
		return []domain.RetrievedChunk{}, nil
	}

	chunks, err := s.repo.SearchSimilar(ctx, queryVector, in.ZoneCode, limit)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	return chunks, nil
}
