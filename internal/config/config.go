package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port string
	Env  string

	// CORSAllowedHosts are origin hosts (host[:port]) allowed by the CORS middleware.
	CORSAllowedHosts []string

	Storage     StorageConfig
	DB          DatabaseConfig
	Redis       RedisConfig
	LLM         LLMConfig
	Translation TranslationConfig
	Upload      UploadConfig
	Templates   TemplateConfig
	Snapshot    SnapshotConfig
	Auth        AuthConfig
	S3          S3Config
	Worker      WorkerConfig
}

// StorageConfig selects the record store implementation.
type StorageConfig struct {
	Driver string // "postgres" or "memory"
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	Name          string
	SSLMode       string
	MigrationsDir string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// LLMConfig contains the OpenRouter-compatible model endpoint used for extraction and translation.
type LLMConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	Referer           string
	ExtractionTimeout time.Duration
	MaxTokens         int
}

// TranslationConfig controls automatic and on-demand translation.
type TranslationConfig struct {
	Language  string
	Timeout   time.Duration
	MaxTokens int
}

// UploadConfig bounds accepted uploads.
type UploadConfig struct {
	MaxBytes int64
}

// TemplateConfig points to the template manifest.
type TemplateConfig struct {
	ManifestPath string
}

// SnapshotConfig selects where extraction snapshots are kept.
type SnapshotConfig struct {
	Backend string // "file" or "redis"
	Dir     string
}

// AuthConfig contains operator authentication settings. Auth is disabled when JWTSecret is empty.
type AuthConfig struct {
	JWTSecret            string
	TokenTTL             time.Duration
	OperatorUsername     string
	OperatorPasswordHash string
}

// S3Config contains the upload archive bucket. Archiving is disabled when Bucket is empty.
type S3Config struct {
	Region   string
	Bucket   string
	Endpoint string
	Prefix   string
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	TranslationBackfillInterval time.Duration
	TranslationBackfillBatch    int
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; production environments rely on real variables.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "5001")
	cfg.Env = getEnv("ENV", "development")
	cfg.CORSAllowedHosts = getEnvList("CORS_ALLOWED_HOSTS", "localhost:3000,127.0.0.1:3000")

	cfg.Storage = StorageConfig{
		Driver: getEnv("STORAGE_DRIVER", "postgres"),
	}

	// Database
	cfg.DB = DatabaseConfig{
		Host:          getEnv("DB_HOST", ""),
		Port:          getEnv("DB_PORT", "5432"),
		User:          getEnv("DB_USER", ""),
		Password:      getEnv("DB_PASSWORD", ""),
		Name:          getEnv("DB_NAME", ""),
		SSLMode:       getEnv("DB_SSLMODE", "disable"),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Model endpoint (OpenRouter)
	cfg.LLM = LLMConfig{
		BaseURL:   getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
		APIKey:    getEnv("OPENROUTER_API_KEY", ""),
		Model:     getEnv("LLM_MODEL", "google/gemini-2.5-flash-preview-09-2025"),
		Referer:   getEnv("LLM_REFERER", "http://localhost"),
		MaxTokens: getEnvInt("LLM_MAX_TOKENS", 16000),
	}

	cfg.Translation = TranslationConfig{
		Language:  getEnv("TRANSLATION_LANGUAGE", "Russian"),
		MaxTokens: getEnvInt("TRANSLATION_MAX_TOKENS", 4000),
	}

	cfg.Upload = UploadConfig{
		MaxBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 50*1024*1024)),
	}

	cfg.Templates = TemplateConfig{
		ManifestPath: getEnv("TEMPLATE_MANIFEST", "templates/templates.yaml"),
	}

	cfg.Snapshot = SnapshotConfig{
		Backend: getEnv("SNAPSHOT_BACKEND", "file"),
		Dir:     getEnv("SNAPSHOT_DIR", "records"),
	}

	cfg.Auth = AuthConfig{
		JWTSecret:            getEnv("JWT_SECRET", ""),
		OperatorUsername:     getEnv("OPERATOR_USERNAME", "operator"),
		OperatorPasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),
	}

	// Upload archive (optional)
	cfg.S3 = S3Config{
		Region:   getEnv("S3_REGION", "eu-central-1"),
		Bucket:   getEnv("S3_BUCKET", ""),
		Endpoint: getEnv("S3_ENDPOINT", ""),
		Prefix:   getEnv("S3_PREFIX", "passports"),
	}

	cfg.Worker = WorkerConfig{
		TranslationBackfillBatch: getEnvInt("TRANSLATION_BACKFILL_BATCH", 20),
	}

	// Durations
	var err error
	if cfg.LLM.ExtractionTimeout, err = parseDurationEnv("EXTRACTION_TIMEOUT", "120s"); err != nil {
		return nil, fmt.Errorf("invalid EXTRACTION_TIMEOUT: %w", err)
	}
	if cfg.Translation.Timeout, err = parseDurationEnv("TRANSLATION_TIMEOUT", "60s"); err != nil {
		return nil, fmt.Errorf("invalid TRANSLATION_TIMEOUT: %w", err)
	}
	if cfg.Auth.TokenTTL, err = parseDurationEnv("JWT_TTL", "12h"); err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	if cfg.Worker.TranslationBackfillInterval, err = parseDurationEnv("TRANSLATION_BACKFILL_INTERVAL", "0s"); err != nil {
		return nil, fmt.Errorf("invalid TRANSLATION_BACKFILL_INTERVAL: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "" {
			return errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q: use postgres or memory", c.Storage.Driver)
	}

	switch c.Snapshot.Backend {
	case "file":
		if c.Snapshot.Dir == "" {
			return errors.New("SNAPSHOT_DIR must be set for the file snapshot backend")
		}
	case "redis":
	default:
		return fmt.Errorf("unsupported SNAPSHOT_BACKEND %q: use file or redis", c.Snapshot.Backend)
	}

	if c.LLM.APIKey == "" {
		return errors.New("OPENROUTER_API_KEY must be set for document extraction")
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Auth.JWTSecret != "" && c.Auth.OperatorPasswordHash == "" {
		return errors.New("OPERATOR_PASSWORD_HASH must be set when JWT_SECRET is configured")
	}
	return nil
}

// AuthEnabled reports whether operator authentication is enforced.
func (c *Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvList splits a comma separated variable, dropping empty entries.
func getEnvList(key, def string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, def), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
