package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
)

type RegulationDocumentRepository struct {
	db *sql.DB
}

func NewRegulationDocumentRepository(db *sql.DB) *RegulationDocumentRepository {
	return &RegulationDocumentRepository{db: db}
}

func (r *RegulationDocumentRepository) EnsureSchema(ctx context.Context) error {
	return applyMigration(ctx, r.db, "regulation_documents_v1", `
CREATE TABLE IF NOT EXISTS regulation_documents (
	zone_code TEXT NOT NULL,
	source_url TEXT NOT NULL,
	status TEXT NOT NULL,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (zone_code, source_url)
);

CREATE INDEX IF NOT EXISTS idx_regulation_documents_status ON regulation_documents(status);
`)
}

func (r *RegulationDocumentRepository) MarkProcessing(ctx context.Context, zoneCode, sourceURL string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO regulation_documents (zone_code, source_url, status, chunk_count, error_message, created_at, updated_at)
VALUES ($1, $2, $3, 0, '', $4, $4)
ON CONFLICT (zone_code, source_url)
DO UPDATE SET status = EXCLUDED.status, error_message = '', updated_at = EXCLUDED.updated_at
`, zoneCode, sourceURL, string(domain.StatusProcessing), now)
	if err != nil {
		return domain.WrapError(domain.ErrRepository, "mark regulation processing", err)
	}
	return nil
}

func (r *RegulationDocumentRepository) MarkReady(ctx context.Context, zoneCode, sourceURL string, chunkCount int) error {
	return r.updateStatus(ctx, zoneCode, sourceURL, domain.StatusReady, chunkCount, "")
}

func (r *RegulationDocumentRepository) MarkFailed(ctx context.Context, zoneCode, sourceURL, errMessage string) error {
	return r.updateStatus(ctx, zoneCode, sourceURL, domain.StatusFailed, 0, errMessage)
}

func (r *RegulationDocumentRepository) updateStatus(
	ctx context.Context,
	zoneCode, sourceURL string,
	status domain.DocumentStatus,
	chunkCount int,
	errMessage string,
) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE regulation_documents
SET status = $3, chunk_count = $4, error_message = $5, updated_at = $6
WHERE zone_code = $1 AND source_url = $2
`, zoneCode, sourceURL, string(status), chunkCount, errMessage, time.Now().UTC())
	if err != nil {
		return domain.WrapError(domain.ErrRepository, "update regulation status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.WrapError(domain.ErrRepository, "update regulation status", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update regulation status", fmt.Errorf("zone=%s url=%s", zoneCode, sourceURL))
	}
	return nil
}

func (r *RegulationDocumentRepository) Get(ctx context.Context, zoneCode, sourceURL string) (*domain.RegulationDocument, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT zone_code, source_url, status, chunk_count, error_message, created_at, updated_at
FROM regulation_documents
WHERE zone_code = $1 AND source_url = $2
`, zoneCode, sourceURL)

	var doc domain.RegulationDocument
	var status string
	err := row.Scan(&doc.ZoneCode, &doc.SourceURL, &status, &doc.ChunkCount, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get regulation document", fmt.Errorf("zone=%s url=%s", zoneCode, sourceURL))
		}
		return nil, domain.WrapError(domain.ErrRepository, "scan regulation document", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}
