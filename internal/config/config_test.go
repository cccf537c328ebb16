package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 1, cfg.RAG.HistoryWindow)
	assert.Equal(t, 100, cfg.RAG.HistoryCharBudget)
	assert.Equal(t, 2, cfg.RAG.TopK)
	assert.Equal(t, 2, cfg.RAG.MaxSources)
	assert.Equal(t, 1.3, cfg.RAG.TokenMultiplier)
	assert.Equal(t, int32(768), cfg.Embedding.Dimension)
	assert.Equal(t, "cosine", cfg.Vector.Metric)
	assert.Equal(t, float32(0.1), cfg.LLM.Temperature)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.NoError(t, err)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeYAML(t, `
env: production
upload_dir: /data/uploads
vector:
  provider: qdrant
  qdrant_port: 7000
rag:
  chunk_size: 800
  chunk_overlap: 900
  history_window: 3
  call_timeout: 5s
`)
	t.Setenv("UPLOAD_DIR", "/env/uploads")
	t.Setenv("QDRANT_PORT", "6500")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "/env/uploads", cfg.UploadDir)
	assert.Equal(t, "qdrant", cfg.Vector.Provider)
	assert.Equal(t, 6500, cfg.Vector.QdrantPort)
	assert.Equal(t, 800, cfg.RAG.ChunkSize)
	//overlap must stay below the chunk size
	assert.Equal(t, ChunkOverlap, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 3, cfg.RAG.HistoryWindow)
	assert.Equal(t, 5*time.Second, cfg.RAG.CallTimeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeYAML(t, "rag: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_ProviderKeys(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("OPENAI_API_KEY", "o-key")
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("EMBEDDING_MODEL", "")
	t.Setenv("LLM_MODEL", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "o-key", cfg.Embedding.APIKey)
	assert.Equal(t, OpenAIEmbeddingModel, cfg.Embedding.Model)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
	assert.Equal(t, GeminiModelName, cfg.LLM.Model)
}

func TestLoad_OpenAIModels(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("LLM_MODEL", "")
	t.Setenv("LLM_FALLBACK_MODEL", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, OpenAIModelName, cfg.LLM.Model)
	assert.Equal(t, OpenAIFallbackModelName, cfg.LLM.FallbackModel)
}

func TestFixDatabaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgresql://u:p@h:5432/db", "postgresql://u:p@h:5432/db"},
		{"postgresql://u:p@h:5432/db?schema=public", "postgresql://u:p@h:5432/db"},
		{"postgresql://u:p@h:5432/db?sslmode=disable&schema=public", "postgresql://u:p@h:5432/db?sslmode=disable"},
		{"postgresql://u:p@h:5432/db?SCHEMA=x", "postgresql://u:p@h:5432/db"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FixDatabaseURL(tt.in), tt.in)
	}
}
