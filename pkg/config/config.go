package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Mail        MailConfig
	Payments    PaymentsConfig
	Storage     StorageConfig
	Submissions SubmissionsConfig
	Dashboard   DashboardConfig
	Jobs        JobsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MailConfig points at the external transactional email API.
type MailConfig struct {
	Endpoint string
	APIKey   string
	Sender   string
	Timeout  time.Duration
}

// PaymentsConfig controls the submission fee and gateway reconciliation.
type PaymentsConfig struct {
	DefaultFee      float64
	Currency        string
	GatewayURL      string
	GatewayAPIKey   string
	GatewayTimeout  time.Duration
	PollMaxAttempts int
	PollBaseDelay   time.Duration
}

// StorageConfig controls manuscript document storage.
type StorageConfig struct {
	DocumentsDir    string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	MaxFileSize     int64
	AllowedMIMEs    []string
}

// SubmissionsConfig holds manuscript validation limits.
type SubmissionsConfig struct {
	AbstractMaxWords int
	MaxKeywords      int
}

// DashboardConfig tunes role dashboard caching.
type DashboardConfig struct {
	CacheTTL time.Duration
}

// JobsConfig tunes the background mail and reconciliation workers.
type JobsConfig struct {
	MailWorkers      int
	MailRetries      int
	ReconcileWorkers int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Mail = MailConfig{
		Endpoint: v.GetString("MAIL_API_ENDPOINT"),
		APIKey:   v.GetString("MAIL_API_KEY"),
		Sender:   v.GetString("MAIL_SENDER"),
		Timeout:  parseDuration(v.GetString("MAIL_TIMEOUT"), 10*time.Second),
	}

	cfg.Payments = PaymentsConfig{
		DefaultFee:      v.GetFloat64("PAYMENTS_DEFAULT_FEE"),
		Currency:        v.GetString("PAYMENTS_CURRENCY"),
		GatewayURL:      v.GetString("PAYMENTS_GATEWAY_URL"),
		GatewayAPIKey:   v.GetString("PAYMENTS_GATEWAY_API_KEY"),
		GatewayTimeout:  parseDuration(v.GetString("PAYMENTS_GATEWAY_TIMEOUT"), 10*time.Second),
		PollMaxAttempts: v.GetInt("PAYMENTS_POLL_MAX_ATTEMPTS"),
		PollBaseDelay:   parseDuration(v.GetString("PAYMENTS_POLL_BASE_DELAY"), 2*time.Second),
	}

	maxFileSize := v.GetInt64("STORAGE_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 20 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		DocumentsDir:    v.GetString("STORAGE_DOCUMENTS_DIR"),
		SignedURLSecret: v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSize:     maxFileSize,
		AllowedMIMEs:    splitAndTrim(v.GetString("STORAGE_ALLOWED_MIME_TYPES")),
	}

	cfg.Submissions = SubmissionsConfig{
		AbstractMaxWords: v.GetInt("SUBMISSIONS_ABSTRACT_MAX_WORDS"),
		MaxKeywords:      v.GetInt("SUBMISSIONS_MAX_KEYWORDS"),
	}

	cfg.Dashboard = DashboardConfig{
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Jobs = JobsConfig{
		MailWorkers:      v.GetInt("JOBS_MAIL_WORKERS"),
		MailRetries:      v.GetInt("JOBS_MAIL_RETRIES"),
		ReconcileWorkers: v.GetInt("JOBS_RECONCILE_WORKERS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "pubdesk")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MAIL_API_ENDPOINT", "http://localhost:4020/send")
	v.SetDefault("MAIL_API_KEY", "dev_mail_key")
	v.SetDefault("MAIL_SENDER", "noreply@pubdesk.local")
	v.SetDefault("MAIL_TIMEOUT", "10s")

	v.SetDefault("PAYMENTS_DEFAULT_FEE", 50)
	v.SetDefault("PAYMENTS_CURRENCY", "USD")
	v.SetDefault("PAYMENTS_GATEWAY_URL", "http://localhost:4030")
	v.SetDefault("PAYMENTS_GATEWAY_API_KEY", "dev_gateway_key")
	v.SetDefault("PAYMENTS_GATEWAY_TIMEOUT", "10s")
	v.SetDefault("PAYMENTS_POLL_MAX_ATTEMPTS", 5)
	v.SetDefault("PAYMENTS_POLL_BASE_DELAY", "2s")

	v.SetDefault("STORAGE_DOCUMENTS_DIR", "./documents")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "dev_documents_secret")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "30m")
	v.SetDefault("STORAGE_MAX_FILE_SIZE", 20*1024*1024)
	v.SetDefault("STORAGE_ALLOWED_MIME_TYPES", "application/pdf")

	v.SetDefault("SUBMISSIONS_ABSTRACT_MAX_WORDS", 250)
	v.SetDefault("SUBMISSIONS_MAX_KEYWORDS", 5)

	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")

	v.SetDefault("JOBS_MAIL_WORKERS", 2)
	v.SetDefault("JOBS_MAIL_RETRIES", 3)
	v.SetDefault("JOBS_RECONCILE_WORKERS", 1)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
