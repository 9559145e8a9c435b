package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"VECTOR_BACKEND", "CHUNK_SIZE", "CHUNK_OVERLAP", "RAG_TOP_K", "DEFAULT_CITY_ID", "LLM_PROVIDER", "OPENAI_API_KEY", "PORTAL_API_KEYS", "RETRY_MAX_BACKOFF_MS", "REGULATION_CACHE_TTL_HOURS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.VectorBackend != "postgres" {
		t.Fatalf("expected default vector backend postgres, got %q", cfg.VectorBackend)
	}
	if cfg.ChunkSize != 800 || cfg.ChunkOverlap != 120 || cfg.RAGTopK != 8 {
		t.Fatalf("unexpected chunking defaults: %d/%d/%d", cfg.ChunkSize, cfg.ChunkOverlap, cfg.RAGTopK)
	}
	if cfg.DefaultCityID != "bucuresti-ilfov" {
		t.Fatalf("expected default city bucuresti-ilfov, got %q", cfg.DefaultCityID)
	}
	if cfg.OpenAIEmbedModel != "text-embedding-3-small" || cfg.OpenAIChatModel != "gpt-4o" {
		t.Fatalf("unexpected openai models: %q %q", cfg.OpenAIEmbedModel, cfg.OpenAIChatModel)
	}
	if cfg.Resilience.RetryMaxBackoff != 2*time.Second {
		t.Fatalf("expected retry max backoff 2s, got %s", cfg.Resilience.RetryMaxBackoff)
	}
	if cfg.RegulationCacheTTL != 720*time.Hour {
		t.Fatalf("expected regulation cache ttl 720h, got %s", cfg.RegulationCacheTTL)
	}
	if len(cfg.PortalAPIKeys) != 0 {
		t.Fatalf("expected no portal api keys, got %v", cfg.PortalAPIKeys)
	}
	if cfg.RAGEnabled() {
		t.Fatalf("expected rag disabled without an openai key")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "Qdrant")
	t.Setenv("CHUNK_SIZE", "1000")
	t.Setenv("CHUNK_OVERLAP", "bogus")
	t.Setenv("PORTAL_RATE_LIMIT_RPS", "0.5")
	t.Setenv("PORTAL_API_KEYS", "timisoara=abc, iasi = def ,broken,=x")
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("BREAKER_ENABLED", "false")

	cfg := Load()
	if cfg.VectorBackend != "qdrant" {
		t.Fatalf("expected qdrant backend, got %q", cfg.VectorBackend)
	}
	if cfg.ChunkSize != 1000 {
		t.Fatalf("expected chunk size 1000, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap != 120 {
		t.Fatalf("expected invalid overlap to fall back to 120, got %d", cfg.ChunkOverlap)
	}
	if cfg.PortalRateLimit != 0.5 {
		t.Fatalf("expected portal rate 0.5, got %v", cfg.PortalRateLimit)
	}
	if len(cfg.PortalAPIKeys) != 2 || cfg.PortalAPIKeys["timisoara"] != "abc" || cfg.PortalAPIKeys["iasi"] != "def" {
		t.Fatalf("unexpected portal api keys: %v", cfg.PortalAPIKeys)
	}
	if cfg.Resilience.BreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
	if !cfg.RAGEnabled() {
		t.Fatalf("expected rag enabled for ollama provider")
	}
}

func TestLoadCitiesBuiltin(t *testing.T) {
	catalog, err := LoadCities(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadCities() error = %v", err)
	}
	cities := catalog.Cities()
	if len(cities) != 6 {
		t.Fatalf("expected 6 built-in cities, got %d", len(cities))
	}
	if cities[0].ID != "bucuresti-ilfov" || cities[5].ID != "constanta" {
		t.Fatalf("unexpected catalogue order: %s..%s", cities[0].ID, cities[5].ID)
	}

	buc, ok := catalog.CityByID("bucuresti-ilfov")
	if !ok {
		t.Fatalf("expected bucuresti-ilfov")
	}
	if !buc.Portal.RequiresAuth || buc.Coordinates.EPSG != "EPSG:3844" || buc.Coordinates.DefaultBuffer != 700 {
		t.Fatalf("unexpected bucuresti config: %+v", buc)
	}
	if buc.Portal.CustomHeaders["x-app"] != "6" {
		t.Fatalf("expected x-app header, got %v", buc.Portal.CustomHeaders)
	}
	tm, _ := catalog.CityByID("timisoara")
	if tm.Portal.CustomHeaders["X-API-Key"] != "{API_KEY}" {
		t.Fatalf("expected api key placeholder, got %v", tm.Portal.CustomHeaders)
	}
	if _, ok := catalog.CityByID("Cluj-Napoca"); ok {
		t.Fatalf("expected exact id match")
	}
}

func TestLoadCitiesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.yaml")
	data := []byte(`cities:
  - id: sibiu
    name: Sibiu
    county: Sibiu
    portal:
      base_url: https://gis.sibiu.ro/
      search_url: /search?q={address}
      features_url: /zones?bbox={bbox}
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	catalog, err := LoadCities(path)
	if err != nil {
		t.Fatalf("LoadCities() error = %v", err)
	}
	city, ok := catalog.CityByID("sibiu")
	if !ok {
		t.Fatalf("expected sibiu")
	}
	if city.Portal.BaseURL != "https://gis.sibiu.ro" {
		t.Fatalf("expected trailing slash trimmed, got %q", city.Portal.BaseURL)
	}
	if city.Coordinates.EPSG != "EPSG:3844" {
		t.Fatalf("expected default EPSG, got %q", city.Coordinates.EPSG)
	}
}

func TestParseCitiesRejectsInvalidCatalogues(t *testing.T) {
	cases := map[string]string{
		"empty":     "cities: []",
		"no id":     "cities:\n  - name: X\n    portal: {base_url: a, search_url: b, features_url: c}\n",
		"no portal": "cities:\n  - id: x\n",
		"duplicate": "cities:\n  - id: x\n    portal: {base_url: a, search_url: b, features_url: c}\n  - id: x\n    portal: {base_url: a, search_url: b, features_url: c}\n",
		"not yaml":  "cities: [",
	}
	for name, raw := range cases {
		if _, err := ParseCities([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("API_PORT=9999\nNATS_SUBJECT=regulations.test\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("API_PORT", "8081")
	t.Setenv("NATS_SUBJECT", "")
	os.Unsetenv("NATS_SUBJECT")

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	cfg := Load()
	if cfg.APIPort != "8081" {
		t.Fatalf("expected existing API_PORT kept, got %q", cfg.APIPort)
	}
	if cfg.NATSSubject != "regulations.test" {
		t.Fatalf("expected NATS_SUBJECT from env file, got %q", cfg.NATSSubject)
	}
}
