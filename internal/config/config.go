package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (per-user review locks)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	// NATS (realtime events)
	NATSURL string

	// Blob storage (S3-compatible)
	BlobEndpoint  string
	BlobAccessKey string
	BlobSecretKey string
	BlobBucket    string
	BlobUseSSL    bool

	// Moderation vendor
	ModerationAPIUser     string
	ModerationAPISecret   string
	ModerationImageURL    string
	ModerationTextURL     string
	ModerationTimeout     time.Duration
	TextModerationEnabled bool

	// Review loop
	ReviewInterval time.Duration
	ReviewPageSize int

	// Admin API (JWT for staff tooling, bcrypt hash for machine token)
	JWTSecret      string
	AdminTokenHash string

	// Server
	Port        string
	CORSOrigins string
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "sparkmeet"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       parseInt(getEnv("REDIS_DB", "0"), 0),
		LockTTL:       parseDuration(getEnv("REVIEW_LOCK_TTL", "5m"), 5*time.Minute),

		NATSURL: getEnv("NATS_URL", "nats://localhost:4222"),

		BlobEndpoint:  getEnv("BLOB_ENDPOINT", "localhost:9000"),
		BlobAccessKey: getEnv("BLOB_ACCESS_KEY", ""),
		BlobSecretKey: getEnv("BLOB_SECRET_KEY", ""),
		BlobBucket:    getEnv("BLOB_BUCKET", "profile-photos"),
		BlobUseSSL:    parseBool(getEnv("BLOB_USE_SSL", "false")),

		ModerationAPIUser:     getEnv("MODERATION_API_USER", ""),
		ModerationAPISecret:   getEnv("MODERATION_API_SECRET", ""),
		ModerationImageURL:    getEnv("MODERATION_IMAGE_URL", "https://api.sightengine.com/1.0/check.json"),
		ModerationTextURL:     getEnv("MODERATION_TEXT_URL", "https://api.sightengine.com/1.0/text/check.json"),
		ModerationTimeout:     parseDuration(getEnv("MODERATION_TIMEOUT", "60s"), 60*time.Second),
		TextModerationEnabled: parseBool(getEnv("TEXT_MODERATION_ENABLED", "false")),

		ReviewInterval: parseDuration(getEnv("REVIEW_INTERVAL", "5s"), 5*time.Second),
		ReviewPageSize: parseInt(getEnv("REVIEW_PAGE_SIZE", "5000"), 5000),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		AdminTokenHash: getEnv("ADMIN_TOKEN_HASH", ""),

		Port:        getEnv("PORT", "8081"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
