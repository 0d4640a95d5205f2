package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, validate(Default()))
}

func TestValidateWeights(t *testing.T) {
	cfg := Default()
	cfg.Retrieval.Weights = RetrievalWeights{Semantic: 0.5, Time: 0.5, Importance: 0.5, Emotional: 0.5}
	err := validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieval.weights")
}

func TestValidateDedupThreshold(t *testing.T) {
	cfg := Default()
	cfg.Ingestion.DedupCosineThreshold = 0
	require.Error(t, validate(cfg))

	cfg.Ingestion.DedupCosineThreshold = 1.5
	require.Error(t, validate(cfg))
}

func TestValidateMinCronInterval(t *testing.T) {
	cfg := Default()
	cfg.Intents.MinCronIntervalSeconds = 30
	require.Error(t, validate(cfg))
}

func TestValidateMaxInjectionsPerTurn(t *testing.T) {
	cfg := Default()
	cfg.Conversation.MaxInjectionsPerTurn = 0
	require.Error(t, validate(cfg))
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("CACHE_ADDR", "cache.internal:6379")
	t.Setenv("VECTOR_STORE_URL", "http://chroma.internal:8000")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("MEMORYD_ENV", "production")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6379", cfg.Cache.Addr)
	assert.Equal(t, "http://chroma.internal:8000", cfg.VectorStore.BaseURL)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "production", cfg.Environment)
}

func TestLoadMissingOverlay(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	_, err := Load("/nonexistent/memoryd.yaml")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadYAMLOverlay(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	dir := t.TempDir()
	path := dir + "/memoryd.yaml"
	require.NoError(t, os.WriteFile(path, []byte("http_addr: \":7070\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTPAddr)
}
