package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	OpenAI    OpenAIConfig
	Auth      AuthConfig
	Retriever RetrieverConfig
	Scraper   ScraperConfig
	Pipeline  PipelineConfig
	Vector    VectorConfig
	Quota     QuotaConfig
	Output    OutputConfig
	Storage   StorageConfig
	InfluxDB  InfluxDBConfig
	Email     EmailConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// MongoDBConfig holds MongoDB connection details
type MongoDBConfig struct {
	URI        string
	Username   string
	Password   string
	Host       string
	Port       string
	Database   string
	AuthSource string
}

// OpenAIConfig holds the LLM provider configuration
type OpenAIConfig struct {
	APIKey         string
	Model          string
	SmartModel     string // used for merge and long-form synthesis
	EmbeddingModel string
	TTSModel       string
	TTSVoice       string
	Temperature    float64
	MaxTokens      int
	CallTimeout    time.Duration // hard wall-clock cap on every LLM call
}

// AuthConfig holds JWT verification settings
type AuthConfig struct {
	JWTSecret string
}

// RetrieverConfig selects and configures search providers
type RetrieverConfig struct {
	Provider     string // duckduckgo | tavily
	TavilyAPIKey string
	MaxResults   int
}

// ScraperConfig bounds page fetching and the quality gate
type ScraperConfig struct {
	Concurrency   int
	FetchTimeout  time.Duration
	MinTextLength int
	MaxBodyBytes  int64
	UserAgent     string
}

// PipelineConfig bounds the orchestrator
type PipelineConfig struct {
	MaxSubtopics        int
	SubtopicConcurrency int
	QueueSize           int           // pending-run backpressure limit
	Workers             int           // concurrent report runs
	SweepInterval       time.Duration // how often the orphan sweep runs
	OrphanWindow        time.Duration // Pending older than this is failed
	WordCount           int           // target words per subtopic report
	CitationStyle       string
}

// VectorConfig tunes the document-vectorstore retriever
type VectorConfig struct {
	DistanceThreshold float64 // hits with distance above this are excluded
	MMRLambda         float64 // relevance/diversity balance
	TopK              int
	FetchK            int // candidates considered before MMR selection
}

// QuotaConfig carries the per-report-type quota costs. These are business
// policy values; defaults mirror the original deployment.
type QuotaConfig struct {
	Enabled      bool
	ResearchCost float64
	DetailedCost float64
	CompleteCost float64
	SubtopicCost float64
}

// OutputConfig controls artifact rendering
type OutputConfig struct {
	Dir             string // root of the local report_outputs tree
	ContextMaxChars int    // synthesizer input budget
	AudioEnabled    bool
	AudioChunkChars int // TTS provider input limit per segment
}

// StorageConfig selects the artifact storage backend
type StorageConfig struct {
	Backend string // local | s3
	S3      S3Config
}

// S3Config holds S3/MinIO connection details
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // custom endpoint for MinIO/S3-compatible services
}

// InfluxDBConfig holds metrics sink details (optional)
type InfluxDBConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// EmailConfig holds SendGrid notification configuration (optional)
type EmailConfig struct {
	APIKey    string
	FromEmail string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8090"),
			Host: getEnv("HOST", "0.0.0.0"),
		},
		MongoDB: MongoDBConfig{
			URI:        getEnv("MONGODB_URI", ""),
			Username:   getEnv("MONGODB_USERNAME", ""),
			Password:   getEnv("MONGODB_PASSWORD", ""),
			Host:       getEnv("MONGODB_HOST", "localhost"),
			Port:       getEnv("MONGODB_PORT", "27017"),
			Database:   getEnv("MONGODB_DATABASE", "research"),
			AuthSource: getEnv("MONGODB_AUTH_SOURCE", "admin"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			SmartModel:     getEnv("OPENAI_SMART_MODEL", "gpt-4o"),
			EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			TTSModel:       getEnv("OPENAI_TTS_MODEL", "tts-1"),
			TTSVoice:       getEnv("OPENAI_TTS_VOICE", "alloy"),
			Temperature:    getEnvFloat("OPENAI_TEMPERATURE", 0.4),
			MaxTokens:      getEnvInt("OPENAI_MAX_TOKENS", 0),
			CallTimeout:    getEnvDuration("OPENAI_CALL_TIMEOUT", 120*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Retriever: RetrieverConfig{
			Provider:     getEnv("RETRIEVER", "duckduckgo"),
			TavilyAPIKey: getEnv("TAVILY_API_KEY", ""),
			MaxResults:   getEnvInt("RETRIEVER_MAX_RESULTS", 10),
		},
		Scraper: ScraperConfig{
			Concurrency:   getEnvInt("SCRAPER_CONCURRENCY", 8),
			FetchTimeout:  getEnvDuration("SCRAPER_FETCH_TIMEOUT", 20*time.Second),
			MinTextLength: getEnvInt("SCRAPER_MIN_TEXT_LENGTH", 300),
			MaxBodyBytes:  int64(getEnvInt("SCRAPER_MAX_BODY_BYTES", 2<<20)),
			UserAgent:     getEnv("SCRAPER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
		},
		Pipeline: PipelineConfig{
			MaxSubtopics:        getEnvInt("PIPELINE_MAX_SUBTOPICS", 5),
			SubtopicConcurrency: getEnvInt("PIPELINE_SUBTOPIC_CONCURRENCY", 8),
			QueueSize:           getEnvInt("PIPELINE_QUEUE_SIZE", 32),
			Workers:             getEnvInt("PIPELINE_WORKERS", 4),
			SweepInterval:       getEnvDuration("PIPELINE_SWEEP_INTERVAL", 10*time.Minute),
			OrphanWindow:        getEnvDuration("PIPELINE_ORPHAN_WINDOW", time.Hour),
			WordCount:           getEnvInt("PIPELINE_WORD_COUNT", 1200),
			CitationStyle:       getEnv("PIPELINE_CITATION_STYLE", "APA"),
		},
		Vector: VectorConfig{
			DistanceThreshold: getEnvFloat("VECTOR_DISTANCE_THRESHOLD", 1.2),
			MMRLambda:         getEnvFloat("VECTOR_MMR_LAMBDA", 0.5),
			TopK:              getEnvInt("VECTOR_TOP_K", 6),
			FetchK:            getEnvInt("VECTOR_FETCH_K", 20),
		},
		Quota: QuotaConfig{
			Enabled:      getEnvBool("QUOTA_ENABLED", true),
			ResearchCost: getEnvFloat("QUOTA_COST_RESEARCH", 0.5),
			DetailedCost: getEnvFloat("QUOTA_COST_DETAILED", 1.0),
			CompleteCost: getEnvFloat("QUOTA_COST_COMPLETE", 1.0),
			SubtopicCost: getEnvFloat("QUOTA_COST_SUBTOPIC", 0.5),
		},
		Output: OutputConfig{
			Dir:             getEnv("REPORT_OUTPUT_DIR", "outputs"),
			ContextMaxChars: getEnvInt("CONTEXT_MAX_CHARS", 40000),
			AudioEnabled:    getEnvBool("AUDIO_ENABLED", true),
			AudioChunkChars: getEnvInt("AUDIO_CHUNK_CHARS", 4000),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", "local"),
			S3: S3Config{
				Region:          getEnv("S3_REGION", "us-east-1"),
				Bucket:          getEnv("S3_BUCKET", ""),
				AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
				Endpoint:        getEnv("S3_ENDPOINT", ""),
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:    getEnv("INFLUXDB2_URL", ""),
			Token:  getEnv("INFLUXDB2_TOKEN", ""),
			Org:    getEnv("INFLUXDB2_ORG", ""),
			Bucket: getEnv("INFLUXDB2_BUCKET", ""),
		},
		Email: EmailConfig{
			APIKey:    getEnv("SENDGRID_API_KEY", ""),
			FromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		},
	}

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ValidateConfig validates that required configuration values are present
func ValidateConfig(config *Config) error {
	if config.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if config.Retriever.Provider == "tavily" && config.Retriever.TavilyAPIKey == "" {
		return fmt.Errorf("TAVILY_API_KEY is required when RETRIEVER=tavily")
	}
	if config.Storage.Backend == "s3" && config.Storage.S3.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
	}
	if config.Pipeline.OrphanWindow <= 0 {
		return fmt.Errorf("PIPELINE_ORPHAN_WINDOW must be positive")
	}
	return nil
}

// Helper functions for environment variable access
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
