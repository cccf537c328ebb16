package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration. Defaults come from the constants in
// environmentVariables.go, then an optional YAML file, then the environment.
type Config struct {
	Env            string   `yaml:"env"`
	ListenAddr     string   `yaml:"listen_addr"`
	UploadDir      string   `yaml:"upload_dir"`
	DatabaseURL    string   `yaml:"database_url"`
	RedisAddr      string   `yaml:"redis_addr"`
	RedisPassword  string   `yaml:"redis_password"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Vector    VectorConfig    `yaml:"vector"`
	RAG       RAGConfig       `yaml:"rag"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	Dimension int32  `yaml:"dimension"`
}

type LLMConfig struct {
	Provider      string  `yaml:"provider"`
	Model         string  `yaml:"model"`
	FallbackModel string  `yaml:"fallback_model"`
	APIKey        string  `yaml:"api_key"`
	Temperature   float32 `yaml:"temperature"`
}

type VectorConfig struct {
	Provider        string        `yaml:"provider"`
	IndexName       string        `yaml:"index_name"`
	Metric          string        `yaml:"metric"`
	PineconeAPIKey  string        `yaml:"pinecone_api_key"`
	PineconeBaseURL string        `yaml:"pinecone_base_url"`
	PineconeCloud   string        `yaml:"pinecone_cloud"`
	PineconeRegion  string        `yaml:"pinecone_region"`
	QdrantHost      string        `yaml:"qdrant_host"`
	QdrantPort      int           `yaml:"qdrant_port"`
	QdrantAPIKey    string        `yaml:"qdrant_api_key"`
	QdrantUseTLS    bool          `yaml:"qdrant_use_tls"`
	ReadyTimeout    time.Duration `yaml:"ready_timeout"`
}

type RAGConfig struct {
	ChunkSize           int           `yaml:"chunk_size"`
	ChunkOverlap        int           `yaml:"chunk_overlap"`
	HistoryWindow       int           `yaml:"history_window"`
	HistoryCharBudget   int           `yaml:"history_char_budget"`
	TopK                int           `yaml:"top_k"`
	SourceLabelMaxChars int           `yaml:"source_label_max_chars"`
	MaxSources          int           `yaml:"max_sources"`
	TokenMultiplier     float64       `yaml:"token_multiplier"`
	CallTimeout         time.Duration `yaml:"call_timeout"`
}

func (c *Config) IsProd() bool {
	env := strings.ToLower(c.Env)
	return env == "prod" || env == "production"
}

// Default returns the configuration built only from compile time defaults.
func Default() *Config {
	return &Config{
		Env:            "dev",
		ListenAddr:     ServerListenAddr,
		UploadDir:      DefaultUploadDir,
		DatabaseURL:    DefaultDatabaseURL,
		RedisAddr:      RedisAddr,
		AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		Embedding: EmbeddingConfig{
			Provider:  "gemini",
			Model:     GoogleEmbeddingModel,
			Dimension: EmbeddingOutputDimensionality,
		},
		LLM: LLMConfig{
			Provider:      "gemini",
			Model:         GeminiModelName,
			FallbackModel: GeminiFallbackModelName,
			Temperature:   ModelTemperature,
		},
		Vector: VectorConfig{
			Provider:        "pinecone",
			IndexName:       DefaultIndexName,
			Metric:          EmbeddingMetric,
			PineconeBaseURL: PineconeBaseURL,
			PineconeCloud:   PineconeCloud,
			PineconeRegion:  PineconeRegion,
			QdrantHost:      QdrantHost,
			QdrantPort:      QdrantGrpcPort,
			QdrantUseTLS:    QdrantUseTLS,
			ReadyTimeout:    IndexReadyTimeout,
		},
		RAG: RAGConfig{
			ChunkSize:           ChunkSize,
			ChunkOverlap:        ChunkOverlap,
			HistoryWindow:       HistoryWindow,
			HistoryCharBudget:   HistoryCharBudget,
			TopK:                RetrievalTopK,
			SourceLabelMaxChars: SourceLabelMaxChars,
			MaxSources:          MaxSources,
			TokenMultiplier:     TokenMultiplier,
			CallTimeout:         ExternalCallTimeout,
		},
	}
}

// Load reads .env (if present), the YAML file at path (if present) and the environment.
// An empty path skips the YAML step.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	cfg.DatabaseURL = FixDatabaseURL(cfg.DatabaseURL)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Env, "APP_ENV")
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.UploadDir, "UPLOAD_DIR")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}

	setString(&cfg.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&cfg.Embedding.Model, "EMBEDDING_MODEL")
	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.FallbackModel, "LLM_FALLBACK_MODEL")

	//api keys follow the provider they are configured for
	if cfg.Embedding.Provider == "openai" {
		setString(&cfg.Embedding.APIKey, "OPENAI_API_KEY")
	} else {
		setString(&cfg.Embedding.APIKey, "GEMINI_API_KEY")
	}
	if cfg.LLM.Provider == "openai" {
		setString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	} else {
		setString(&cfg.LLM.APIKey, "GEMINI_API_KEY")
	}

	setString(&cfg.Vector.Provider, "VECTOR_PROVIDER")
	setString(&cfg.Vector.IndexName, "PINECONE_INDEX_NAME")
	setString(&cfg.Vector.PineconeAPIKey, "PINECONE_API_KEY")
	setString(&cfg.Vector.PineconeRegion, "PINECONE_ENVIRONMENT")
	setString(&cfg.Vector.QdrantHost, "QDRANT_HOST")
	setString(&cfg.Vector.QdrantAPIKey, "QDRANT_API_KEY")
	if port, err := strconv.Atoi(os.Getenv("QDRANT_PORT")); err == nil {
		cfg.Vector.QdrantPort = port
	}
}

func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.Embedding.Dimension <= 0 {
		cfg.Embedding.Dimension = d.Embedding.Dimension
	}
	if cfg.Embedding.Provider == "openai" && cfg.Embedding.Model == GoogleEmbeddingModel {
		cfg.Embedding.Model = OpenAIEmbeddingModel
	}
	if cfg.LLM.Provider == "openai" && cfg.LLM.Model == GeminiModelName {
		cfg.LLM.Model = OpenAIModelName
		cfg.LLM.FallbackModel = OpenAIFallbackModelName
	}
	if cfg.Vector.Metric == "" {
		cfg.Vector.Metric = d.Vector.Metric
	}
	if cfg.Vector.ReadyTimeout <= 0 {
		cfg.Vector.ReadyTimeout = d.Vector.ReadyTimeout
	}
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = d.RAG.ChunkSize
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		cfg.RAG.ChunkOverlap = d.RAG.ChunkOverlap
	}
	if cfg.RAG.HistoryWindow <= 0 {
		cfg.RAG.HistoryWindow = d.RAG.HistoryWindow
	}
	if cfg.RAG.HistoryCharBudget <= 0 {
		cfg.RAG.HistoryCharBudget = d.RAG.HistoryCharBudget
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = d.RAG.TopK
	}
	if cfg.RAG.SourceLabelMaxChars <= 0 {
		cfg.RAG.SourceLabelMaxChars = d.RAG.SourceLabelMaxChars
	}
	if cfg.RAG.MaxSources <= 0 {
		cfg.RAG.MaxSources = d.RAG.MaxSources
	}
	if cfg.RAG.TokenMultiplier <= 0 {
		cfg.RAG.TokenMultiplier = d.RAG.TokenMultiplier
	}
	if cfg.RAG.CallTimeout <= 0 {
		cfg.RAG.CallTimeout = d.RAG.CallTimeout
	}
}

func setString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

// FixDatabaseURL drops query parameters the postgres driver rejects (schema=...).
func FixDatabaseURL(raw string) string {
	base, query, found := strings.Cut(raw, "?")
	if !found {
		return raw
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return raw
	}
	for key := range values {
		if strings.EqualFold(key, "schema") {
			values.Del(key)
		}
	}
	if len(values) == 0 {
		return base
	}
	return base + "?" + values.Encode()
}
