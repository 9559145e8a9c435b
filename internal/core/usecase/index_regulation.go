package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/core/ports"
)

const minRegulationTextLength = 100

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	nonTextGlyphRun = regexp.MustCompile(`[^\w\s\x{00A0}-\x{024F}\x{0400}-\x{04FF}]`)
)

type IndexRegulationUseCase struct {
	docs    ports.RegulationDocumentStore
	texts   ports.RegulationTextSource
	indexer ports.DocumentIndexer
}

func NewIndexRegulationUseCase(
	docs ports.RegulationDocumentStore,
	texts ports.RegulationTextSource,
	indexer ports.DocumentIndexer,
) *IndexRegulationUseCase {
	return &IndexRegulationUseCase{
		docs:    docs,
		texts:   texts,
		indexer: indexer,
	}
}

func (uc *IndexRegulationUseCase) IndexRegulation(ctx context.Context, job domain.IndexJob) error {
	if strings.TrimSpace(job.ZoneCode) == "" || strings.TrimSpace(job.SourceURL) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "index regulation", errors.New("zone code and source url are required"))
	}

	if err := uc.docs.MarkProcessing(ctx, job.ZoneCode, job.SourceURL); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	count, err := uc.indexPipeline(ctx, job)
	if err != nil {
		if failErr := uc.docs.MarkFailed(ctx, job.ZoneCode, job.SourceURL, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.docs.MarkReady(ctx, job.ZoneCode, job.SourceURL, count); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *IndexRegulationUseCase) indexPipeline(ctx context.Context, job domain.IndexJob) (int, error) {
	text, err := uc.texts.FetchText(ctx, job.SourceURL)
	if err != nil {
		return 0, fmt.Errorf("fetch regulation text: %w", err)
	}
	if !IsValidText(CleanText(text), minRegulationTextLength) {
		return 0, domain.WrapError(domain.ErrInvalidInput, "fetch regulation text", fmt.Errorf("extracted text shorter than %d characters", minRegulationTextLength))
	}

	count, err := uc.indexer.IndexDocument(ctx, domain.IndexDocumentInput{
		ZoneCode:  job.ZoneCode,
		SourceURL: job.SourceURL,
		FullText:  text,
	})
	if err != nil {
		return 0, fmt.Errorf("index regulation document: %w", err)
	}
	return count, nil
}

// CleanText collapses whitespace and blanks out glyphs outside letters, digits
// and the Latin and Cyrillic blocks. PDF extraction leaves many such artifacts.
func CleanText(text string) string {
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = nonTextGlyphRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// IsValidText reports whether the trimmed text has at least minLength characters.
func IsValidText(text string, minLength int) bool {
	return len([]rune(strings.TrimSpace(text))) >= minLength
}
