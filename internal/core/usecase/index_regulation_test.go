package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
)

type regulationStatusCall struct {
	status     domain.DocumentStatus
	chunkCount int
	errMsg     string
}

type regulationDocsFake struct {
	calls         []regulationStatusCall
	statusErr     error
	failStatusErr error
}

func (f *regulationDocsFake) MarkProcessing(context.Context, string, string) error {
	f.calls = append(f.calls, regulationStatusCall{status: domain.StatusProcessing})
	return f.statusErr
}

func (f *regulationDocsFake) MarkReady(_ context.Context, _, _ string, chunkCount int) error {
	f.calls = append(f.calls, regulationStatusCall{status: domain.StatusReady, chunkCount: chunkCount})
	return f.statusErr
}

func (f *regulationDocsFake) MarkFailed(_ context.Context, _, _, errMessage string) error {
	f.calls = append(f.calls, regulationStatusCall{status: domain.StatusFailed, errMsg: errMessage})
	return f.failStatusErr
}

func (f *regulationDocsFake) Get(context.Context, string, string) (*domain.RegulationDocument, error) {
	return nil, domain.ErrDocumentNotFound
}

type documentIndexerFake struct {
	count int
	err   error
	input []domain.IndexDocumentInput
}

func (f *documentIndexerFake) IndexDocument(_ context.Context, in domain.IndexDocumentInput) (int, error) {
	f.input = append(f.input, in)
	return f.count, f.err
}

var regulationJob = domain.IndexJob{ZoneCode: "L1a", SourceURL: "https://portal/reg/L1a.pdf"}

func longRegulationText() string {
	return strings.Repeat("Zona L1a cuprinde locuinte individuale. ", 10)
}

func TestIndexRegulationSuccess(t *testing.T) {
	docs := &regulationDocsFake{}
	indexer := &documentIndexerFake{count: 3}
	uc := NewIndexRegulationUseCase(docs, &textSourceFake{texts: map[string]string{regulationJob.SourceURL: longRegulationText()}}, indexer)

	if err := uc.IndexRegulation(context.Background(), regulationJob); err != nil {
		t.Fatalf("IndexRegulation() error = %v", err)
	}
	if len(docs.calls) != 2 || docs.calls[0].status != domain.StatusProcessing || docs.calls[1].status != domain.StatusReady {
		t.Fatalf("unexpected status sequence: %+v", docs.calls)
	}
	if docs.calls[1].chunkCount != 3 {
		t.Fatalf("expected chunk count 3, got %d", docs.calls[1].chunkCount)
	}
	if len(indexer.input) != 1 || indexer.input[0].ZoneCode != "L1a" || indexer.input[0].SourceURL != regulationJob.SourceURL {
		t.Fatalf("unexpected indexer input: %+v", indexer.input)
	}
}

func TestIndexRegulationMarksFailedOnShortText(t *testing.T) {
	docs := &regulationDocsFake{}
	indexer := &documentIndexerFake{}
	uc := NewIndexRegulationUseCase(docs, &textSourceFake{texts: map[string]string{regulationJob.SourceURL: "prea scurt"}}, indexer)

	err := uc.IndexRegulation(context.Background(), regulationJob)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(docs.calls) != 2 || docs.calls[1].status != domain.StatusFailed || docs.calls[1].errMsg == "" {
		t.Fatalf("expected failed status with message, got %+v", docs.calls)
	}
	if len(indexer.input) != 0 {
		t.Fatalf("expected no indexing for short text")
	}
}

func TestIndexRegulationMarksFailedOnIndexError(t *testing.T) {
	docs := &regulationDocsFake{failStatusErr: errors.New("db down")}
	uc := NewIndexRegulationUseCase(
		docs,
		&textSourceFake{texts: map[string]string{regulationJob.SourceURL: longRegulationText()}},
		&documentIndexerFake{err: errors.New("embed fail")},
	)

	err := uc.IndexRegulation(context.Background(), regulationJob)
	if err == nil || !strings.Contains(err.Error(), "embed fail") || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected pipeline and status errors, got %v", err)
	}
	if docs.calls[len(docs.calls)-1].status != domain.StatusFailed {
		t.Fatalf("expected final failed status, got %+v", docs.calls)
	}
}

func TestIndexRegulationValidatesJob(t *testing.T) {
	docs := &regulationDocsFake{}
	uc := NewIndexRegulationUseCase(docs, &textSourceFake{}, &documentIndexerFake{})

	if err := uc.IndexRegulation(context.Background(), domain.IndexJob{ZoneCode: "L1a"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(docs.calls) != 0 {
		t.Fatalf("expected no status updates for invalid job")
	}
}

func TestIsValidText(t *testing.T) {
	if IsValidText("   abc   ", 4) {
		t.Fatalf("expected trimmed text shorter than minimum to be invalid")
	}
	if !IsValidText("ăâîșț", 5) {
		t.Fatalf("expected length to count characters, not bytes")
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText("  Art. 5\t–\n\nPOT  maxim: 30%  ș ț ж  ")
	if got != "Art  5   POT maxim  30  ș ț ж" {
		t.Fatalf("unexpected cleaned text: %q", got)
	}
}

func TestIndexRegulationRejectsGlyphOnlyText(t *testing.T) {
	docs := &regulationDocsFake{}
	indexer := &documentIndexerFake{}
	uc := NewIndexRegulationUseCase(docs, &textSourceFake{texts: map[string]string{regulationJob.SourceURL: strings.Repeat("•·—", 60)}}, indexer)

	if err := uc.IndexRegulation(context.Background(), regulationJob); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(indexer.input) != 0 {
		t.Fatalf("expected indexer not to be called")
	}
}
