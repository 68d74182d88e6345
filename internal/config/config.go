package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Tika      TikaConfig      `json:"tika"`
	Gemini    GeminiConfig    `json:"gemini"`
	Groq      GroqConfig      `json:"groq"`
	Qdrant    QdrantConfig    `json:"qdrant"`
	Storage   StorageConfig   `json:"storage"`
	Database  DatabaseConfig  `json:"database"`
	Chunking  ChunkingConfig  `json:"chunking"`
	Retrieval RetrievalConfig `json:"retrieval"`
}

type ServerConfig struct {
	Addr            string   `json:"addr"`
	MaxUploadSizeMB int64    `json:"max_upload_size_mb"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
}

type TikaConfig struct {
	ServerURL     string   `json:"server_url"`
	Timeout       Duration `json:"timeout"`
	RetryAttempts int      `json:"retry_attempts"`
	RetryDelay    Duration `json:"retry_delay"`
	OCRThreshold  int      `json:"ocr_threshold"`
}

type GeminiConfig struct {
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`
	VectorSize int    `json:"vector_size"`
}

type GroqConfig struct {
	APIKey       string   `json:"api_key"`
	Model        string   `json:"model"`
	Timeout      Duration `json:"timeout"`
	RateLimitRPS int      `json:"rate_limit_rps"`
}

type QdrantConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	APIKey     string `json:"api_key"`
	UseTLS     bool   `json:"use_tls"`
	Collection string `json:"collection"`
	VectorSize uint64 `json:"vector_size"`
}

type StorageConfig struct {
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"`
	CredentialsFile string `json:"credentials_file"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type ChunkingConfig struct {
	SlidingWindowSize    int    `json:"sliding_window_size"`
	SlidingWindowOverlap int    `json:"sliding_window_overlap"`
	SemanticMaxChunkSize int    `json:"semantic_max_chunk_size"`
	SemanticMode         string `json:"semantic_mode"`
	EmbedConcurrency     int    `json:"embed_concurrency"`
}

type RetrievalConfig struct {
	TopK    int `json:"top_k"`
	MaxTopK int `json:"max_top_k"`
}

// Duration wraps time.Duration so JSON config files can use strings
// like "30s" as well as plain nanosecond numbers.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration value: %v", v)
	}
}

func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			MaxUploadSizeMB: 32,
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Tika: TikaConfig{
			ServerURL:     "http://localhost:9998",
			Timeout:       Duration{2 * time.Minute},
			RetryAttempts: 3,
			RetryDelay:    Duration{5 * time.Second},
			OCRThreshold:  50,
		},
		Gemini: GeminiConfig{
			Model:      "text-embedding-004",
			VectorSize: 384,
		},
		Groq: GroqConfig{
			Model:        "llama-3.1-8b-instant",
			Timeout:      Duration{30 * time.Second},
			RateLimitRPS: 5,
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "user_docs",
			VectorSize: 384,
		},
		Storage: StorageConfig{
			Bucket: "eval_user_docs",
			Prefix: "uploads/",
		},
		Database: DatabaseConfig{
			Path: "./data/docqa.db",
		},
		Chunking: ChunkingConfig{
			SlidingWindowSize:    100,
			SlidingWindowOverlap: 80,
			SemanticMaxChunkSize: 300,
			SemanticMode:         "paragraph",
			EmbedConcurrency:     4,
		},
		Retrieval: RetrievalConfig{
			TopK:    5,
			MaxTopK: 20,
		},
	}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(c)
}

// applyEnv overlays secrets from the environment so API keys never have
// to live in the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		c.Groq.APIKey = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		c.Qdrant.APIKey = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && c.Storage.CredentialsFile == "" {
		c.Storage.CredentialsFile = v
	}
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr cannot be empty")
	}
	if c.Tika.ServerURL == "" {
		return fmt.Errorf("tika server URL cannot be empty")
	}
	if c.Qdrant.Host == "" {
		return fmt.Errorf("qdrant host cannot be empty")
	}
	if c.Qdrant.Collection == "" {
		return fmt.Errorf("qdrant collection cannot be empty")
	}
	if c.Qdrant.VectorSize == 0 {
		return fmt.Errorf("qdrant vector size must be positive")
	}
	if uint64(c.Gemini.VectorSize) != c.Qdrant.VectorSize {
		return fmt.Errorf("embedding vector size %d does not match qdrant vector size %d",
			c.Gemini.VectorSize, c.Qdrant.VectorSize)
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket cannot be empty")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Chunking.SlidingWindowSize <= 0 {
		return fmt.Errorf("sliding window size must be positive")
	}
	if c.Chunking.SlidingWindowOverlap < 0 || c.Chunking.SlidingWindowOverlap >= c.Chunking.SlidingWindowSize {
		return fmt.Errorf("sliding window overlap must be non-negative and smaller than the window size")
	}
	if c.Chunking.SemanticMaxChunkSize <= 0 {
		return fmt.Errorf("semantic max chunk size must be positive")
	}
	if c.Chunking.EmbedConcurrency <= 0 {
		c.Chunking.EmbedConcurrency = 1
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.MaxTopK < c.Retrieval.TopK {
		c.Retrieval.MaxTopK = c.Retrieval.TopK
	}
	return nil
}

func (c *Config) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c)
}
