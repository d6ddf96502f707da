package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Storage      StorageConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Upload       UploadConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  int
	PortScan              int
	Version               string
	PublicDir             string
	RequestTimeoutSeconds int
}

// StorageConfig selects and tunes the persistence backend.
type StorageConfig struct {
	Backend    string
	DataDir    string
	SQLitePath string
	DebounceMS int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables the session registry.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines moderator authentication parameters.
type AuthConfig struct {
	SecretsFile       string
	JWTSecret         string
	ModeratorCode     string
	ModeratorCodeHash string
	TokenTTLMinutes   int
}

// UploadConfig selects where uploaded files are stored.
type UploadConfig struct {
	Backend        string
	Dir            string
	URLPrefix      string
	MaxBytes       int
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioPublicURL string
}

// NotificationConfig holds queue notification endpoints.
type NotificationConfig struct {
	WebhookURL string
}

// Storage backend identifiers.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Upload backend identifiers.
const (
	UploadLocal = "local"
	UploadMinio = "minio"
)

// Load reads configuration from environment variables, applying defaults where possible.
// Secrets not provided by the environment come from the secrets file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	port, err := strconv.Atoi(getEnv("APP_PORT", "3000"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-relay"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  port,
			PortScan:              getEnvAsInt("APP_PORT_SCAN", 10),
			Version:               getEnv("APP_VERSION", "dev"),
			PublicDir:             os.Getenv("PUBLIC_DIR"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Storage: StorageConfig{
			Backend:    getEnv("STORAGE_BACKEND", BackendFile),
			DataDir:    getEnv("DATA_DIR", "data"),
			SQLitePath: getEnv("SQLITE_PATH", "data/relay.db"),
			DebounceMS: getEnvAsInt("FLUSH_DEBOUNCE_MS", 300),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			SecretsFile:       getEnv("SECRETS_FILE", "config/secret.json"),
			JWTSecret:         os.Getenv("AUTH_JWT_SECRET"),
			ModeratorCode:     os.Getenv("MODERATOR_CODE"),
			ModeratorCodeHash: os.Getenv("MODERATOR_CODE_HASH"),
			TokenTTLMinutes:   getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 7*24*60),
		},
		Upload: UploadConfig{
			Backend:        getEnv("UPLOAD_BACKEND", UploadLocal),
			Dir:            getEnv("UPLOAD_DIR", "public/uploads"),
			URLPrefix:      getEnv("UPLOAD_URL_PREFIX", "/uploads"),
			MaxBytes:       getEnvAsInt("UPLOAD_MAX_BYTES", 10*1024*1024),
			MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
			MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinioBucket:    getEnv("MINIO_BUCKET", "uploads"),
			MinioUseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
			MinioPublicURL: os.Getenv("MINIO_PUBLIC_URL"),
		},
		Notification: NotificationConfig{
			WebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
		},
	}

	if cfg.Auth.JWTSecret == "" || (cfg.Auth.ModeratorCode == "" && cfg.Auth.ModeratorCodeHash == "") {
		secrets, err := EnsureSecrets(cfg.Auth.SecretsFile)
		if err != nil {
			return nil, err
		}
		if cfg.Auth.JWTSecret == "" {
			cfg.Auth.JWTSecret = secrets.JWTSecret
		}
		if cfg.Auth.ModeratorCode == "" && cfg.Auth.ModeratorCodeHash == "" {
			cfg.Auth.ModeratorCode = secrets.ModeratorCode
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("STORAGE_BACKEND=postgres requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	switch c.Upload.Backend {
	case UploadLocal:
	case UploadMinio:
		if c.Upload.MinioEndpoint == "" {
			return fmt.Errorf("UPLOAD_BACKEND=minio requires MINIO_ENDPOINT")
		}
	default:
		return fmt.Errorf("unknown UPLOAD_BACKEND %q", c.Upload.Backend)
	}
	return nil
}

// Addr returns the HTTP bind address for the given port.
func (a AppConfig) Addr(port int) string {
	return fmt.Sprintf("%s:%d", a.Host, port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Debounce returns the persistence coalescing window.
func (s StorageConfig) Debounce() time.Duration {
	if s.DebounceMS <= 0 {
		return 0
	}
	return time.Duration(s.DebounceMS) * time.Millisecond
}

// TokenTTL returns the moderator token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
