package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pgvector/pgvector-go"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
)

// EmbeddingsRepository stores chunk vectors in a pgvector column and ranks by cosine distance.
type EmbeddingsRepository struct {
	db         *sql.DB
	dimensions int
}

func NewEmbeddingsRepository(db *sql.DB, dimensions int) *EmbeddingsRepository {
	return &EmbeddingsRepository{db: db, dimensions: dimensions}
}

func (r *EmbeddingsRepository) EnsureSchema(ctx context.Context) error {
	column := "vector"
	if r.dimensions > 0 {
		column = fmt.Sprintf("vector(%d)", r.dimensions)
	}
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS regulation_embeddings (
	id TEXT PRIMARY KEY,
	zone_code TEXT NOT NULL,
	source_url TEXT NOT NULL,
	chunk TEXT NOT NULL,
	embedding %s NOT NULL,
	start_offset INTEGER NOT NULL,
	end_offset INTEGER NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_regulation_embeddings_zone ON regulation_embeddings(zone_code);
`, column)
	if r.dimensions > 0 {
		ddl += `
CREATE INDEX IF NOT EXISTS idx_regulation_embeddings_hnsw ON regulation_embeddings USING hnsw (embedding vector_cosine_ops);
`
	}
	return applyMigration(ctx, r.db, fmt.Sprintf("regulation_embeddings_v1_dim%d", r.dimensions), ddl)
}

// UpsertEmbeddings skips records without a vector; pgvector rejects empty
// vectors and one bad chunk must not roll back the rest of the document.
func (r *EmbeddingsRepository) UpsertEmbeddings(ctx context.Context, records []domain.EmbeddingRecord) error {
	writable := make([]domain.EmbeddingRecord, 0, len(records))
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			slog.Warn("embedding_record_skipped", "id", rec.ID, "zone_code", rec.ZoneCode, "reason", "empty_vector")
			continue
		}
		writable = append(writable, rec)
	}
	if len(writable) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrRepository, "upsert embeddings", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, rec := range writable {
		_, err := tx.ExecContext(ctx, `
INSERT INTO regulation_embeddings (id, zone_code, source_url, chunk, embedding, start_offset, end_offset, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (id) DO UPDATE SET
	zone_code = EXCLUDED.zone_code,
	source_url = EXCLUDED.source_url,
	chunk = EXCLUDED.chunk,
	embedding = EXCLUDED.embedding,
	start_offset = EXCLUDED.start_offset,
	end_offset = EXCLUDED.end_offset,
	updated_at = now()
`, rec.ID, rec.ZoneCode, rec.SourceURL, rec.Chunk, pgvector.NewVector(rec.Embedding), rec.Start, rec.End)
		if err != nil {
			return domain.WrapError(domain.ErrRepository, "upsert embeddings", fmt.Errorf("id=%s: %w", rec.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrRepository, "upsert embeddings", err)
	}
	return nil
}

func (r *EmbeddingsRepository) SearchSimilar(ctx context.Context, queryEmbedding []float32, zoneCode string, limit int) ([]domain.RetrievedChunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT chunk, 1 - (embedding <=> $1) AS score, start_offset, end_offset, source_url
FROM regulation_embeddings
WHERE zone_code = $2
ORDER BY embedding <=> $1
LIMIT $3
`, pgvector.NewVector(queryEmbedding), zoneCode, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRepository, "search embeddings", err)
	}
	defer rows.Close()

	out := []domain.RetrievedChunk{}
	for rows.Next() {
		var chunk domain.RetrievedChunk
		if err := rows.Scan(&chunk.Chunk, &chunk.Score, &chunk.Start, &chunk.End, &chunk.SourceURL); err != nil {
			return nil, domain.WrapError(domain.ErrRepository, "scan embedding row", err)
		}
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrRepository, "iterate embedding rows", err)
	}
	return out, nil
}
