package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/httpjson"
)

// Client implements the embeddings repository on a Qdrant collection.
// Point ids are UUIDv5 of the record id, so re-indexing a span overwrites it.
type Client struct {
	endpoint   httpjson.Endpoint
	collection string

	ensureMu          sync.Mutex
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		endpoint: httpjson.Endpoint{
			Service: "qdrant",
			BaseURL: strings.TrimRight(baseURL, "/"),
			Client:  &http.Client{Timeout: 60 * time.Second},
		},
		collection: collection,
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type matchValue struct {
	Value string `json:"value"`
}

type fieldCondition struct {
	Key   string     `json:"key"`
	Match matchValue `json:"match"`
}

type filter struct {
	Must []fieldCondition `json:"must"`
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
	Filter      filter    `json:"filter"`
}

type searchResponse struct {
	Result []struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

func PointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}

func (c *Client) path(suffix string) string {
	return "/collections/" + url.PathEscape(c.collection) + suffix
}

func (c *Client) UpsertEmbeddings(ctx context.Context, records []domain.EmbeddingRecord) error {
	points := make([]point, 0, len(records))
	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			slog.Warn("qdrant_point_skipped", "id", rec.ID, "reason", "empty_vector")
			continue
		}
		points = append(points, point{
			ID:     PointID(rec.ID),
			Vector: rec.Embedding,
			Payload: map[string]any{
				"record_id":  rec.ID,
				"zone_code":  rec.ZoneCode,
				"source_url": rec.SourceURL,
				"chunk":      rec.Chunk,
				"start":      rec.Start,
				"end":        rec.End,
			},
		})
	}
	if len(points) == 0 {
		return nil
	}

	if err := c.ensureCollection(ctx, len(points[0].Vector)); err != nil {
		return domain.WrapError(domain.ErrRepository, "upsert embeddings", err)
	}
	body := map[string]any{"points": points}
	if err := c.endpoint.Do(ctx, http.MethodPut, c.path("/points?wait=true"), "upsert", body, nil); err != nil {
		return domain.WrapError(domain.ErrRepository, "upsert embeddings", err)
	}
	return nil
}

func (c *Client) SearchSimilar(ctx context.Context, queryEmbedding []float32, zoneCode string, limit int) ([]domain.RetrievedChunk, error) {
	req := searchRequest{
		Vector:      queryEmbedding,
		Limit:       limit,
		WithPayload: true,
		Filter:      filter{Must: []fieldCondition{{Key: "zone_code", Match: matchValue{Value: zoneCode}}}},
	}

	var resp searchResponse
	err := c.endpoint.Do(ctx, http.MethodPost, c.path("/points/search"), "search", req, &resp)
	// The collection is created lazily on first upsert.
	if httpjson.StatusCode(err) == http.StatusNotFound {
		return []domain.RetrievedChunk{}, nil
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrRepository, "search embeddings", err)
	}

	out := make([]domain.RetrievedChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, domain.RetrievedChunk{
			Chunk:     getStringPayload(r.Payload, "chunk"),
			Score:     r.Score,
			Start:     getIntPayload(r.Payload, "start"),
			End:       getIntPayload(r.Payload, "end"),
			SourceURL: getStringPayload(r.Payload, "source_url"),
		})
	}
	return out, nil
}

// ensureCollection creates the collection and its zone_code keyword index
// once per vector size. An existing collection (409) counts as created.
func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.ensuredVectorSize == vectorSize {
		return nil
	}

	create := map[string]any{
		"vectors": map[string]any{"size": vectorSize, "distance": "Cosine"},
	}
	err := c.endpoint.Do(ctx, http.MethodPut, c.path(""), "ensure collection", create, nil)
	if err != nil && httpjson.StatusCode(err) != http.StatusConflict {
		return err
	}

	index := map[string]any{"field_name": "zone_code", "field_schema": "keyword"}
	if err := c.endpoint.Do(ctx, http.MethodPut, c.path("/index?wait=true"), "create zone index", index, nil); err != nil {
		var statusErr *httpjson.StatusError
		if !errors.As(err, &statusErr) {
			return fmt.Errorf("create zone index: %w", err)
		}
		slog.Warn("qdrant_zone_index_failed", "collection", c.collection, "error", err)
	}

	c.ensuredVectorSize = vectorSize
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
