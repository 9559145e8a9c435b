package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/resilience"
)

const (
	defaultMaxBytes = 50 << 20
	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Cache stores raw documents by key. The local file store satisfies it.
type Cache interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type Options struct {
	Timeout  time.Duration
	MaxBytes int64
	Cache    Cache
	KeyFor   func(url string) string
	Executor *resilience.Executor
}

// Source downloads regulation documents and returns their plain text.
type Source struct {
	httpClient *http.Client
	maxBytes   int64
	cache      Cache
	keyFor     func(string) string
	executor   *resilience.Executor
}

func NewSource(opts Options) *Source {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	executor := opts.Executor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Source{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxBytes,
		cache:      opts.Cache,
		keyFor:     opts.KeyFor,
		executor:   executor,
	}
}

func (s *Source) FetchText(ctx context.Context, url string) (string, error) {
	raw, err := s.document(ctx, url)
	if err != nil {
		return "", err
	}
	text, err := ExtractText(raw)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", url, err)
	}
	slog.Debug("regulation_text_extracted", "url", url, "bytes", len(raw), "chars", utf8.RuneCountInString(text))
	return text, nil
}

func (s *Source) document(ctx context.Context, url string) ([]byte, error) {
	if s.cache != nil && s.keyFor != nil {
		if raw, ok := s.cached(ctx, url); ok {
			return raw, nil
		}
	}

	var raw []byte
	err := s.executor.Execute(ctx, "regulation.download", func(ctx context.Context) error {
		var err error
		raw, err = s.download(ctx, url)
		return err
	}, classifyDownloadError)
	if err != nil {
		return nil, resilience.WrapTemporary("download regulation", err, classifyDownloadError)
	}

	if s.cache != nil && s.keyFor != nil {
		if err := s.cache.Save(ctx, s.keyFor(url), bytes.NewReader(raw)); err != nil {
			slog.Warn("regulation_cache_save_failed", "url", url, "error", err)
		}
	}
	return raw, nil
}

func (s *Source) cached(ctx context.Context, url string) ([]byte, bool) {
	rc, err := s.cache.Open(ctx, s.keyFor(url))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("regulation_cache_open_failed", "url", url, "error", err)
		}
		return nil, false
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	return raw, true
}

func (s *Source) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return nil, &DownloadError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(body))}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(raw)) > s.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "download regulation", fmt.Errorf("%s exceeds %d bytes", url, s.maxBytes))
	}
	return raw, nil
}

// ExtractText reads PDF documents page by page. Other UTF-8 bodies are returned
// as plain text.
func ExtractText(raw []byte) (string, error) {
	if bytes.HasPrefix(bytes.TrimLeft(raw, " \t\r\n"), []byte("%PDF")) {
		return extractPDF(raw)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("unsupported binary document")
	}
	return strings.TrimSpace(string(raw)), nil
}

func extractPDF(content []byte) (_ string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i+1, err)
		}
		buf.WriteString(text)
		if i < numPages-1 {
			buf.WriteByte('\n')
		}
	}
	return buf.String(), nil
}
