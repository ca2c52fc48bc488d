package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		BaseURL        string        `yaml:"base_url"`
		Model          string        `yaml:"model"`
		EmbeddingModel string        `yaml:"embedding_model"`
		MaxTokens      int           `yaml:"max_tokens"`
		Temperature    float64       `yaml:"temperature"`
		Timeout        time.Duration `yaml:"timeout"`
	} `yaml:"llm"`

	// Prompts override the built-in templates. Each is a Go text/template.
	Prompts struct {
		Answer   string `yaml:"answer"`
		Reformat string `yaml:"reformat"`
		Related  string `yaml:"related"`
	} `yaml:"prompts"`

	Embedder struct {
		RateLimit float64       `yaml:"rate_limit"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"embedder"`

	Store struct {
		Backend      string `yaml:"backend"`
		SnapshotPath string `yaml:"snapshot_path"`
		DatabaseURL  string `yaml:"database_url"`
		TableName    string `yaml:"table_name"`
		DefaultK     int    `yaml:"default_k"`
	} `yaml:"store"`

	Scraper struct {
		MaxDepth          int           `yaml:"max_depth"`
		RateLimit         float64       `yaml:"rate_limit"`
		Timeout           time.Duration `yaml:"timeout"`
		IgnorePatterns    []string      `yaml:"ignore_patterns"`
		AllowedExtensions []string      `yaml:"allowed_extensions"`
	} `yaml:"scraper"`

	Ingestion struct {
		AllowedPrefixes []string `yaml:"allowed_prefixes"`
		Workers         int      `yaml:"workers"`
	} `yaml:"ingestion"`

	Processor struct {
		ChunkSize      int `yaml:"chunk_size"`
		ChunkOverlap   int `yaml:"chunk_overlap"`
		MinChunkLength int `yaml:"min_chunk_length"`
	} `yaml:"processor"`

	Server struct {
		Port         int           `yaml:"port"`
		APIKey       string        `yaml:"api_key"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
}

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

func LoadConfig(path string) (*Config, error) {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/instructai/config.yaml"),
			"/etc/instructai/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Timeout == 0 {
		config.LLM.Timeout = 2 * time.Minute
	}

	if config.Embedder.RateLimit == 0 {
		config.Embedder.RateLimit = 20
	}
	if config.Embedder.Timeout == 0 {
		config.Embedder.Timeout = 30 * time.Second
	}

	if config.Store.Backend == "" {
		config.Store.Backend = BackendFile
	}
	if config.Store.SnapshotPath == "" {
		config.Store.SnapshotPath = "data/index.snapshot"
	}
	if config.Store.TableName == "" {
		config.Store.TableName = "chunks"
	}
	if config.Store.DefaultK == 0 {
		config.Store.DefaultK = 5
	}

	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if config.Scraper.Timeout == 0 {
		config.Scraper.Timeout = 30 * time.Second
	}
	if len(config.Scraper.AllowedExtensions) == 0 {
		config.Scraper.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	if config.Ingestion.Workers == 0 {
		config.Ingestion.Workers = 1
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8000
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 30 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		// Sitemap ingestion runs inside the request.
		config.Server.WriteTimeout = 30 * time.Minute
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.DatabaseURL = dbURL
	}
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		config.Server.APIKey = apiKey
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if logFile := os.Getenv("LOG_FILE_PATH"); logFile != "" {
		config.Log.File = logFile
	}
	if snapshot := os.Getenv("SNAPSHOT_PATH"); snapshot != "" {
		config.Store.SnapshotPath = snapshot
	}
}
