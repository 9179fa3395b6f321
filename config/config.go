package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration. Values come from the
// environment (optionally via a .env file) with working defaults for
// local development.
type Config struct {
	ListenAddr string

	// External separation backend (the AI job API we poll).
	SeparationAPIURL string
	// Poll cadence and budgets for separation jobs. A job whose progress
	// does not move for StuckThreshold consecutive polls is declared stuck,
	// which is a distinct terminal condition from exhausting MaxPollAttempts.
	PollInterval    time.Duration
	MaxPollAttempts int
	StuckThreshold  int

	// Mixer engine tuning. Tracks drifting further than DriftTolerance from
	// the clock reference are re-seeked every DriftCheckInterval.
	DriftTolerance     time.Duration
	DriftCheckInterval time.Duration
	LevelFrameInterval time.Duration

	// Local ingest watch folder. Empty disables the watcher.
	IngestWatchDir string
	// User account that owns watch-folder ingests.
	IngestOwnerID int64

	// Chord analysis backend. When mock is on, results are fabricated
	// locally instead of calling the backend.
	AnalysisUseMock bool

	// MySQL
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO / S3-compatible object storage
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
	// Public base URL prefix for stored objects, e.g. http://localhost:8080/api/audio
	AudioBaseURL string

	// JWT signing secret
	JWTSecret string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvDuration gets an environment variable as a duration or returns a default value.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		SeparationAPIURL: getEnv("SEPARATION_API_URL", "http://localhost:8000"),
		PollInterval:     getEnvDuration("SEPARATION_POLL_INTERVAL", time.Second),
		MaxPollAttempts:  getEnvInt("SEPARATION_MAX_POLL_ATTEMPTS", 120),
		StuckThreshold:   getEnvInt("SEPARATION_STUCK_THRESHOLD", 10),

		DriftTolerance:     getEnvDuration("MIXER_DRIFT_TOLERANCE", 50*time.Millisecond),
		DriftCheckInterval: getEnvDuration("MIXER_DRIFT_CHECK_INTERVAL", 250*time.Millisecond),
		LevelFrameInterval: getEnvDuration("MIXER_LEVEL_FRAME_INTERVAL", 100*time.Millisecond),

		IngestWatchDir: getEnv("INGEST_WATCH_DIR", ""),
		IngestOwnerID:  int64(getEnvInt("INGEST_OWNER_ID", 1)),

		AnalysisUseMock: getEnvBool("ANALYSIS_USE_MOCK", true),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for secrets
		DBName:     getEnv("DB_NAME", "stemset"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "stemset"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		AudioBaseURL:   getEnv("AUDIO_BASE_URL", "http://localhost:8080/api/audio"),

		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),
	}
}
