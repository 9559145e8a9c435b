package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*RegulationDocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &RegulationDocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

const regulationURL = "https://portal/reg/L1a.pdf"

func expectMigrationCheck(mock sqlmock.Sqlmock, name string, applied bool) {
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(schemaLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WithArgs(name).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(applied))
}

func TestEnsureSchemaAppliesMigrationOnce(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	expectMigrationCheck(mock, "regulation_documents_v1", false)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS regulation_documents").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("regulation_documents_v1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	expectMigrationCheck(mock, "regulation_documents_v1", true)
	mock.ExpectCommit()

	for i := 0; i < 2; i++ {
		if err := repo.EnsureSchema(context.Background()); err != nil {
			t.Fatalf("EnsureSchema() #%d error = %v", i, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaRollsBackFailedDDL(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	expectMigrationCheck(mock, "regulation_documents_v1", false)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS regulation_documents").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err := repo.EnsureSchema(context.Background())
	if err == nil || !strings.Contains(err.Error(), "regulation_documents_v1") {
		t.Fatalf("expected migration error naming the migration, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkProcessingUpserts(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO regulation_documents").
		WithArgs("L1a", regulationURL, string(domain.StatusProcessing), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkProcessing(context.Background(), "L1a", regulationURL); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkReadyStoresChunkCount(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE regulation_documents").
		WithArgs("L1a", regulationURL, string(domain.StatusReady), 12, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkReady(context.Background(), "L1a", regulationURL, 12); err != nil {
		t.Fatalf("MarkReady() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkFailedReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE regulation_documents").
		WithArgs("L1a", regulationURL, string(domain.StatusFailed), 0, "boom", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkFailed(context.Background(), "L1a", regulationURL, "boom")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkProcessingWrapsRepositoryError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO regulation_documents").WillReturnError(errors.New("connection reset"))

	err := repo.MarkProcessing(context.Background(), "L1a", regulationURL)
	if !domain.IsKind(err, domain.ErrRepository) {
		t.Fatalf("expected ErrRepository, got %v", err)
	}
}

func TestGetRegulationDocument(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"zone_code", "source_url", "status", "chunk_count", "error_message", "created_at", "updated_at"}).
		AddRow("L1a", regulationURL, "ready", 7, "", now, now)
	mock.ExpectQuery("SELECT zone_code, source_url, status").
		WithArgs("L1a", regulationURL).
		WillReturnRows(rows)

	doc, err := repo.Get(context.Background(), "L1a", regulationURL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.Status != domain.StatusReady || doc.ChunkCount != 7 {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestGetRegulationDocumentNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT zone_code, source_url, status").
		WithArgs("L1a", regulationURL).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "L1a", regulationURL)
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}
