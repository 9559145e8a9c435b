package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/httpjson"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/resilience"
)

type Client struct {
	endpoint   httpjson.Endpoint
	genModel   string
	embedModel string
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		endpoint: httpjson.Endpoint{
			Service: "ollama",
			BaseURL: strings.TrimRight(baseURL, "/"),
			Client:  &http.Client{Timeout: 120 * time.Second},
		},
		genModel:   genModel,
		embedModel: embedModel,
		executor:   executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.call(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

// EmbedQuery returns an empty vector when the provider answers with no embeddings.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return []float32{}, nil
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateJSONFromPrompt(ctx context.Context, system, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  g.client.genModel,
		"system": system,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0.1,
		},
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := g.client.call(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) call(ctx context.Context, path string, payload any, out any, operation string) error {
	err := c.executor.Execute(ctx, "ollama."+operation, func(ctx context.Context) error {
		return c.endpoint.Do(ctx, http.MethodPost, path, operation, payload, out)
	}, classifyOllamaError)
	return resilience.WrapTemporary("ollama "+operation, err, classifyOllamaError)
}
