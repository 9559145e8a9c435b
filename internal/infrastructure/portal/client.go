package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/resilience"
)

const (
	maxSessionRetries = 2
	errorBodyLimit    = 500
	htmlInspectLimit  = 64 << 10
	apiKeyPlaceholder = "{API_KEY}"

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	browserAccept    = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
)

type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	APIKeys           map[string]string
	Executor          *resilience.Executor
}

// Client talks to one city's portal. It keeps the session cookies between
// calls, so a single instance per city should be reused.
type Client struct {
	cityID     string
	cfg        domain.PortalConfig
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor

	mu           sync.Mutex
	sessionReady bool
}

func NewClient(city domain.City, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		slog.Warn("portal_cookie_jar_failed", "city_id", city.ID, "error", err)
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	executor := opts.Executor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}

	return &Client{
		cityID:     city.ID,
		cfg:        city.Portal,
		apiKey:     opts.APIKeys[city.ID],
		httpClient: &http.Client{Timeout: timeout, Jar: jar},
		limiter:    limiter,
		executor:   executor,
	}
}

// InitializeSession visits the portal landing pages until one answers 2xx.
// Portals without authentication are ready immediately.
func (c *Client) InitializeSession(ctx context.Context) error {
	c.mu.Lock()
	ready := c.sessionReady
	c.mu.Unlock()
	if ready {
		return nil
	}
	if !c.cfg.RequiresAuth {
		c.setSessionReady(true)
		return nil
	}

	base := strings.TrimRight(c.cfg.BaseURL, "/")
	for _, target := range []string{base, base + "/", base + "/Map"} {
		status, err := c.visit(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("portal_session_attempt_failed", "city_id", c.cityID, "url", target, "error", err)
			continue
		}
		slog.Debug("portal_session_attempt", "city_id", c.cityID, "url", target, "status", status)
		if status >= 200 && status < 300 {
			c.setSessionReady(true)
			slog.Info("portal_session_initialized", "city_id", c.cityID)
			return nil
		}
	}
	return domain.WrapError(domain.ErrTemporary, "portal session", fmt.Errorf("%s: no session url answered", c.cityID))
}

func (c *Client) visit(ctx context.Context, target string) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("create session request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", browserAccept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,ro;q=0.8")
	c.applyCustomHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// SearchAddress re-initializes the session and retries when the portal
// answers with a login or session page.
func (c *Client) SearchAddress(ctx context.Context, address string) ([]domain.AddressSearchResult, error) {
	for attempt := 0; ; attempt++ {
		var results []domain.AddressSearchResult
		err := c.execute(ctx, "search", func(ctx context.Context) error {
			var err error
			results, err = c.searchOnce(ctx, address)
			return err
		})

		var expired *SessionExpiredError
		if errors.As(err, &expired) && attempt < maxSessionRetries {
			slog.Info("portal_session_expired", "city_id", c.cityID, "attempt", attempt+1)
			c.setSessionReady(false)
			if initErr := c.InitializeSession(ctx); initErr != nil {
				slog.Warn("portal_session_init_failed", "city_id", c.cityID, "error", initErr)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		return results, nil
	}
}

func (c *Client) searchOnce(ctx context.Context, address string) ([]domain.AddressSearchResult, error) {
	escaped := strings.ReplaceAll(url.QueryEscape(address), "+", "%20")
	target := strings.TrimRight(c.cfg.BaseURL, "/") + strings.ReplaceAll(c.cfg.SearchURL, "{address}", escaped)

	resp, err := c.get(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("portal %s search request: %w", c.cityID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := newStatusError(c.cityID, "search", resp)
		if looksLikeSessionProblem(statusErr.Body) {
			return nil, &SessionExpiredError{Err: statusErr}
		}
		return nil, statusErr
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, htmlInspectLimit))
		if strings.Contains(contentType, "text/html") {
			if page := inspectHTML(raw); page.isLoginPage() {
				return nil, &SessionExpiredError{Err: fmt.Errorf("portal %s search: got login page %q", c.cityID, page.Title)}
			}
		}
		return nil, fmt.Errorf("portal %s search: expected JSON but got %q: %s", c.cityID, contentType, truncateBody(raw))
	}

	var data any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode %s search response: %w", c.cityID, err)
	}
	return NormalizeSearchResults(data, c.cityID), nil
}

func (c *Client) GetFeatures(ctx context.Context, bbox string) (*domain.FeatureCollection, error) {
	target := strings.TrimRight(c.cfg.BaseURL, "/") + strings.ReplaceAll(c.cfg.FeaturesURL, "{bbox}", bbox)

	var fc domain.FeatureCollection
	err := c.execute(ctx, "features", func(ctx context.Context) error {
		resp, err := c.get(ctx, target)
		if err != nil {
			return fmt.Errorf("portal %s features request: %w", c.cityID, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return newStatusError(c.cityID, "features", resp)
		}
		fc = domain.FeatureCollection{}
		if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
			return fmt.Errorf("decode %s features response: %w", c.cityID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &fc, nil
}

func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	c.applyCustomHeaders(req)
	return c.httpClient.Do(req)
}

// applyCustomHeaders skips headers that need an API key when none is configured.
func (c *Client) applyCustomHeaders(req *http.Request) {
	for name, value := range c.cfg.CustomHeaders {
		if strings.Contains(value, apiKeyPlaceholder) {
			if c.apiKey == "" {
				continue
			}
			value = strings.ReplaceAll(value, apiKeyPlaceholder, c.apiKey)
		}
		req.Header.Set(name, value)
	}
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	err := c.executor.Execute(ctx, "portal."+c.cityID+"."+operation, fn, classifyPortalError)
	return resilience.WrapTemporary("portal "+operation, err, classifyPortalError)
}

func (c *Client) setSessionReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionReady = ready
}

func looksLikeSessionProblem(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "login") || strings.Contains(lower, "session") || strings.Contains(lower, "auth")
}

func readBody(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, errorBodyLimit))
	return strings.TrimSpace(string(body))
}

func truncateBody(raw []byte) string {
	if len(raw) > errorBodyLimit {
		raw = raw[:errorBodyLimit]
	}
	return strings.TrimSpace(string(raw))
}
