// Package config loads and validates service configuration from YAML files
// with environment-variable overrides. It provides typed structs for the
// infrastructure (Server, Postgres, Kafka, Redis) and for every stage of the
// detection pipeline (Detection, Chunking, Embedding, WebSearch, Academic).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Detection DetectionConfig `yaml:"detection"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Lexical   LexicalConfig   `yaml:"lexical"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	WebSearch WebSearchConfig `yaml:"webSearch"`
	Academic  AcademicConfig  `yaml:"academic"`
	Worker    WorkerConfig    `yaml:"worker"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`

	// SubmissionsPerMinute caps compare and check requests per user; zero
	// disables the limit.
	SubmissionsPerMinute int `yaml:"submissionsPerMinute"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	CheckJobs string `yaml:"checkJobs"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level, output format and an
// optional JSON log file that receives a copy of every record.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// DetectionConfig selects the vectorisation method and match thresholds.
type DetectionConfig struct {
	Method                  string  `yaml:"method"`
	Threshold               float64 `yaml:"threshold"`
	AcademicThresholdFactor float64 `yaml:"academicThresholdFactor"`
	DuplicatePolicy         string  `yaml:"duplicatePolicy"`
	UniformFloor            float64 `yaml:"uniformFloor"`
}

// ChunkingConfig bounds the chunk and sentence sizes, measured in runes.
type ChunkingConfig struct {
	MaxChunkSize      int `yaml:"maxChunkSize"`
	MinChunkSize      int `yaml:"minChunkSize"`
	MinSentenceLength int `yaml:"minSentenceLength"`
	MinMatchLength    int `yaml:"minMatchLength"`
}

// LexicalConfig controls the TF-IDF vectorizer.
type LexicalConfig struct {
	MaxFeatures int  `yaml:"maxFeatures"`
	NgramMin    int  `yaml:"ngramMin"`
	NgramMax    int  `yaml:"ngramMax"`
	Stem        bool `yaml:"stem"`
}

// EmbeddingConfig configures the sentence-embedding provider used by the
// semantic method.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	ServerURL string `yaml:"serverUrl"`
	APIKey    string `yaml:"apiKey"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batchSize"`
	Cache     bool   `yaml:"cache"`
}

// WebSearchConfig configures the Google Programmable Search client.
type WebSearchConfig struct {
	Enabled           bool          `yaml:"enabled"`
	APIKey            string        `yaml:"apiKey"`
	EngineID          string        `yaml:"engineId"`
	Endpoint          string        `yaml:"endpoint"`
	MaxQueries        int           `yaml:"maxQueries"`
	ResultsPerQuery   int           `yaml:"resultsPerQuery"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Timeout           time.Duration `yaml:"timeout"`
}

// AcademicConfig configures the literature search providers.
type AcademicConfig struct {
	Enabled            bool          `yaml:"enabled"`
	SemanticScholarURL string        `yaml:"semanticScholarUrl"`
	ArxivURL           string        `yaml:"arxivUrl"`
	MaxResults         int           `yaml:"maxResults"`
	FullTextCandidates int           `yaml:"fullTextCandidates"`
	RequestsPerSecond  float64       `yaml:"requestsPerSecond"`
	Timeout            time.Duration `yaml:"timeout"`
}

// WorkerConfig selects how background checks are dispatched.
type WorkerConfig struct {
	Mode          string `yaml:"mode"`
	MaxConcurrent int    `yaml:"maxConcurrent"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading files or the
// environment.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxUploadBytes:  20 << 20,

			SubmissionsPerMinute: 30,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "plagiarism",
			User:            "plagiarism",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "plagiarism-workers",
			Topics: KafkaTopics{
				CheckJobs: "plagiarism-jobs",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Detection: DetectionConfig{
			Method:                  "tfidf",
			Threshold:               0.70,
			AcademicThresholdFactor: 0.8,
			DuplicatePolicy:         "keep",
			UniformFloor:            0.01,
		},
		Chunking: ChunkingConfig{
			MaxChunkSize:      300,
			MinChunkSize:      50,
			MinSentenceLength: 15,
			MinMatchLength:    30,
		},
		Lexical: LexicalConfig{
			MaxFeatures: 10000,
			NgramMin:    1,
			NgramMax:    3,
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			ServerURL: "http://localhost:11434",
			Dimension: 768,
			BatchSize: 32,
			Cache:     true,
		},
		WebSearch: WebSearchConfig{
			MaxQueries:        3,
			ResultsPerQuery:   5,
			RequestsPerSecond: 1,
			Timeout:           10 * time.Second,
		},
		Academic: AcademicConfig{
			SemanticScholarURL: "https://api.semanticscholar.org/graph/v1",
			ArxivURL:           "http://export.arxiv.org/api/query",
			MaxResults:         10,
			FullTextCandidates: 3,
			RequestsPerSecond:  1,
			Timeout:            10 * time.Second,
		},
		Worker: WorkerConfig{
			Mode:          "goroutine",
			MaxConcurrent: 4,
		},
	}
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	switch c.Detection.Method {
	case "tfidf", "embeddings":
	default:
		return fmt.Errorf("detection.method must be tfidf or embeddings, got %q", c.Detection.Method)
	}
	if c.Detection.Threshold <= 0 || c.Detection.Threshold > 1 {
		return fmt.Errorf("detection.threshold must be in (0,1], got %v", c.Detection.Threshold)
	}
	if c.Detection.AcademicThresholdFactor <= 0 || c.Detection.AcademicThresholdFactor > 1 {
		return fmt.Errorf("detection.academicThresholdFactor must be in (0,1], got %v", c.Detection.AcademicThresholdFactor)
	}
	switch c.Detection.DuplicatePolicy {
	case "keep", "dedupe":
	default:
		return fmt.Errorf("detection.duplicatePolicy must be keep or dedupe, got %q", c.Detection.DuplicatePolicy)
	}
	if c.Chunking.MaxChunkSize <= c.Chunking.MinChunkSize {
		return fmt.Errorf("chunking.maxChunkSize (%d) must exceed minChunkSize (%d)", c.Chunking.MaxChunkSize, c.Chunking.MinChunkSize)
	}
	if c.Lexical.NgramMin < 1 || c.Lexical.NgramMax < c.Lexical.NgramMin {
		return fmt.Errorf("lexical ngram range [%d,%d] is invalid", c.Lexical.NgramMin, c.Lexical.NgramMax)
	}
	switch c.Worker.Mode {
	case "goroutine", "kafka":
	default:
		return fmt.Errorf("worker.mode must be goroutine or kafka, got %q", c.Worker.Mode)
	}
	return nil
}

// applyEnvOverrides reads PFE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PFE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PFE_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("PFE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("PFE_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("PFE_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("PFE_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("PFE_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("PFE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PFE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PFE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PFE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PFE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("PFE_LOGGING_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("PFE_DETECTION_METHOD"); v != "" {
		cfg.Detection.Method = v
	}
	if v := os.Getenv("PFE_DETECTION_THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Detection.Threshold = t
		}
	}
	if v := os.Getenv("PFE_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("PFE_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("PFE_EMBEDDING_SERVER_URL"); v != "" {
		cfg.Embedding.ServerURL = v
	}
	if v := os.Getenv("PFE_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("PFE_WEBSEARCH_API_KEY"); v != "" {
		cfg.WebSearch.APIKey = v
		cfg.WebSearch.Enabled = true
	}
	if v := os.Getenv("PFE_WEBSEARCH_ENGINE_ID"); v != "" {
		cfg.WebSearch.EngineID = v
	}
	if v := os.Getenv("PFE_ACADEMIC_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Academic.Enabled = b
		}
	}
	if v := os.Getenv("PFE_SERVER_SUBMISSIONS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.SubmissionsPerMinute = n
		}
	}
	if v := os.Getenv("PFE_WORKER_MODE"); v != "" {
		cfg.Worker.Mode = v
	}
}
