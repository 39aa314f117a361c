package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Service configuration
	ServicePort string
	ServiceName string
	JWTSecret   string
	SessionTTL  time.Duration
	SweepEvery  time.Duration

	// Logging configuration
	LogLevel  string
	LogFormat string

	// Backend selection
	FolderStore  string // memory or tidb
	ObjectStore  string // none or minio
	CacheBackend string // memory or redis

	// Simulation configuration
	JobStartDelayMax time.Duration
	JobTickInterval  time.Duration
	JobStepMax       float64
	TreeReloadDelay  time.Duration
	RoundTripLatency time.Duration
	PreviewLatency   time.Duration
	SyncStartLatency time.Duration
	SyncTickInterval time.Duration
	SyncTotalFiles   int
	SyncStepMax      int

	// MinIO configuration
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOBucketName string
	MinIOUseSSL     bool

	// TiDB configuration
	TiDBHost     string
	TiDBPort     string
	TiDBUser     string
	TiDBPassword string
	TiDBDatabase string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Jaeger configuration, tracing is off when empty
	JaegerEndpoint string
}

// LoadConfig loads configuration from environment variables with sensible defaults
func LoadConfig() (*Config, error) {
	config := &Config{
		// Service defaults
		ServicePort: getEnv("SERVICE_PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "fasttranscribe"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		SessionTTL:  getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		SweepEvery:  getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		FolderStore:  getEnv("FOLDER_STORE", "memory"),
		ObjectStore:  getEnv("OBJECT_STORE", "none"),
		CacheBackend: getEnv("CACHE_BACKEND", "memory"),

		// Simulation defaults mirror the dashboard timings
		JobStartDelayMax: getEnvAsDuration("JOB_START_DELAY_MAX", 2*time.Second),
		JobTickInterval:  getEnvAsDuration("JOB_TICK_INTERVAL", time.Second),
		JobStepMax:       getEnvAsFloat("JOB_STEP_MAX", 20),
		TreeReloadDelay:  getEnvAsDuration("TREE_RELOAD_DELAY", time.Second),
		RoundTripLatency: getEnvAsDuration("ROUND_TRIP_LATENCY", 500*time.Millisecond),
		PreviewLatency:   getEnvAsDuration("PREVIEW_LATENCY", time.Second),
		SyncStartLatency: getEnvAsDuration("SYNC_START_LATENCY", time.Second),
		SyncTickInterval: getEnvAsDuration("SYNC_TICK_INTERVAL", 2*time.Second),
		SyncTotalFiles:   getEnvAsInt("SYNC_TOTAL_FILES", 25),
		SyncStepMax:      getEnvAsInt("SYNC_STEP_MAX", 5),

		// MinIO defaults
		MinIOEndpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinIOBucketName: getEnv("MINIO_BUCKET_NAME", "fasttranscribe"),
		MinIOUseSSL:     getEnvAsBool("MINIO_USE_SSL", false),

		// TiDB defaults
		TiDBHost:     getEnv("TIDB_HOST", "localhost"),
		TiDBPort:     getEnv("TIDB_PORT", "4000"),
		TiDBUser:     getEnv("TIDB_USER", "root"),
		TiDBPassword: getEnv("TIDB_PASSWORD", ""),
		TiDBDatabase: getEnv("TIDB_DATABASE", "fasttranscribe"),

		// Redis defaults
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	switch c.FolderStore {
	case "memory", "tidb":
	default:
		return fmt.Errorf("unknown FOLDER_STORE %q", c.FolderStore)
	}
	switch c.ObjectStore {
	case "none", "minio":
	default:
		return fmt.Errorf("unknown OBJECT_STORE %q", c.ObjectStore)
	}
	switch c.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.JobTickInterval <= 0 || c.SyncTickInterval <= 0 || c.SweepEvery <= 0 {
		return fmt.Errorf("tick and sweep intervals must be positive")
	}
	if c.JobStepMax <= 0 {
		return fmt.Errorf("JOB_STEP_MAX must be positive")
	}
	if c.SyncTotalFiles <= 0 || c.SyncStepMax <= 0 {
		return fmt.Errorf("SYNC_TOTAL_FILES and SYNC_STEP_MAX must be positive")
	}
	return nil
}

// GetDSN returns the TiDB connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.TiDBUser,
		c.TiDBPassword,
		c.TiDBHost,
		c.TiDBPort,
		c.TiDBDatabase,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
