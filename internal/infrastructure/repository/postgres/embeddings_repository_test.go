package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
)

func newEmbeddingsRepoWithMock(t *testing.T) (*EmbeddingsRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewEmbeddingsRepository(db, 3), mock, func() { _ = db.Close() }
}

func TestUpsertEmbeddingsSkipsEmptyBatch(t *testing.T) {
	repo, mock, done := newEmbeddingsRepoWithMock(t)
	defer done()

	if err := repo.UpsertEmbeddings(context.Background(), nil); err != nil {
		t.Fatalf("UpsertEmbeddings() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertEmbeddingsWritesEachRecordInTransaction(t *testing.T) {
	repo, mock, done := newEmbeddingsRepoWithMock(t)
	defer done()

	records := []domain.EmbeddingRecord{
		{ID: "L1a:0:800", ZoneCode: "L1a", SourceURL: regulationURL, Chunk: "a", Embedding: []float32{1, 2, 3}, Start: 0, End: 800},
		{ID: "L1a:680:900", ZoneCode: "L1a", SourceURL: regulationURL, Chunk: "b", Embedding: []float32{4, 5, 6}, Start: 680, End: 900},
	}

	mock.ExpectBegin()
	for _, rec := range records {
		mock.ExpectExec("INSERT INTO regulation_embeddings").
			WithArgs(rec.ID, rec.ZoneCode, rec.SourceURL, rec.Chunk, sqlmock.AnyArg(), rec.Start, rec.End).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	if err := repo.UpsertEmbeddings(context.Background(), records); err != nil {
		t.Fatalf("UpsertEmbeddings() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertEmbeddingsSkipsRecordsWithoutVector(t *testing.T) {
	repo, mock, done := newEmbeddingsRepoWithMock(t)
	defer done()

	kept := domain.EmbeddingRecord{ID: "L1a:0:800", ZoneCode: "L1a", SourceURL: regulationURL, Chunk: "a", Embedding: []float32{1, 2, 3}, Start: 0, End: 800}
	records := []domain.EmbeddingRecord{
		kept,
		{ID: "L1a:680:900", ZoneCode: "L1a", SourceURL: regulationURL, Chunk: "b", Embedding: []float32{}, Start: 680, End: 900},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO regulation_embeddings").
		WithArgs(kept.ID, kept.ZoneCode, kept.SourceURL, kept.Chunk, sqlmock.AnyArg(), kept.Start, kept.End).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.UpsertEmbeddings(context.Background(), records); err != nil {
		t.Fatalf("UpsertEmbeddings() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertEmbeddingsWithOnlyEmptyVectorsTouchesNothing(t *testing.T) {
	repo, mock, done := newEmbeddingsRepoWithMock(t)
	defer done()

	records := []domain.EmbeddingRecord{{ID: "L1a:0:800", ZoneCode: "L1a", SourceURL: regulationURL, Chunk: "a"}}
	if err := repo.UpsertEmbeddings(context.Background(), records); err != nil {
		t.Fatalf("UpsertEmbeddings() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertEmbeddingsRollsBackOnError(t *testing.T) {
	repo, mock, done := newEmbeddingsRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO regulation_embeddings").WillReturnError(errors.New("dimension mismatch"))
	mock.ExpectRollback()

	err := repo.UpsertEmbeddings(context.Background(), []domain.EmbeddingRecord{
		{ID: "L1a:0:1", ZoneCode: "L1a", Embedding: []float32{1}},
	})
	if !domain.IsKind(err, domain.ErrRepository) {
		t.Fatalf("expected ErrRepository, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchSimilarFiltersByZone(t *testing.T) {
	repo, mock, done := newEmbeddingsRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"chunk", "score", "start_offset", "end_offset", "source_url"}).
		AddRow("POT maxim 30%", 0.91, 0, 800, regulationURL).
		AddRow("CUT maxim 0,9", 0.87, 680, 1480, regulationURL)
	mock.ExpectQuery("FROM regulation_embeddings").
		WithArgs(sqlmock.AnyArg(), "L1a", 8).
		WillReturnRows(rows)

	chunks, err := repo.SearchSimilar(context.Background(), []float32{0.1, 0.2, 0.3}, "L1a", 8)
	if err != nil {
		t.Fatalf("SearchSimilar() error = %v", err)
	}
	if len(chunks) != 2 || chunks[0].Chunk != "POT maxim 30%" || chunks[1].Start != 680 || chunks[0].SourceURL != regulationURL {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchSimilarWrapsRepositoryError(t *testing.T) {
	repo, mock, done := newEmbeddingsRepoWithMock(t)
	defer done()

	mock.ExpectQuery("FROM regulation_embeddings").WillReturnError(errors.New("relation does not exist"))

	_, err := repo.SearchSimilar(context.Background(), []float32{1}, "L1a", 8)
	if !domain.IsKind(err, domain.ErrRepository) {
		t.Fatalf("expected ErrRepository, got %v", err)
	}
}
