package domain

import "fmt"

type TextChunk struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type EmbeddingRecord struct {
	ID        string    `json:"id"`
	ZoneCode  string    `json:"zone_code"`
	SourceURL string    `json:"source_url"`
	Chunk     string    `json:"chunk"`
	Embedding []float32 `json:"embedding"`
	Start     int       `json:"start"`
	End       int       `json:"end"`
}

// EmbeddingRecordID is stable per zone and span so re-indexing overwrites instead of duplicating.
func EmbeddingRecordID(zoneCode string, start, end int) string {
	return fmt.Sprintf("%s:%d:%d", zoneCode, start, end)
}

type RetrievedChunk struct {
	Chunk     string  `json:"chunk"`
	Score     float64 `json:"score"`
	Start     int     `json:"start"`
	End       int     `json:"end"`
	SourceURL string  `json:"source_url"`
}

type IndexDocumentInput struct {
	ZoneCode  string
	SourceURL string
	FullText  string
}

type RetrieveContextInput struct {
	ZoneCode string
	Query    string
	Limit    int
}
