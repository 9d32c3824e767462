package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	StorageDriverLocal = "local"
	StorageDriverMinio = "minio"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Catalog   CatalogConfig
	Storage   StorageConfig
	Brochures BrochureConfig
	Views     ViewsConfig
	Sessions  SessionConfig
	Dashboard DashboardConfig
}

// DatabaseConfig points at the PostgreSQL instance holding users and sessions.
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

// MongoConfig points at the document store holding the scholarship catalog.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
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

// CatalogConfig tunes scholarship read paths.
type CatalogConfig struct {
	CacheEnabled   bool
	SearchCacheTTL time.Duration
	RecentCacheTTL time.Duration
	FacetsCacheTTL time.Duration
	RecentLimit    int
	MaxPageSize    int
}

// StorageConfig selects the object store used for brochures.
type StorageConfig struct {
	Driver       string
	LocalDir     string
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3Bucket     string
	S3UseSSL     bool
	S3PublicBase string
}

// BrochureConfig controls brochure uploads and signed download links.
type BrochureConfig struct {
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// ViewsConfig sizes the asynchronous view counter.
type ViewsConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
}

// SessionConfig schedules the refresh token janitor.
type SessionConfig struct {
	CleanupSchedule string
	SingleSession   bool
}

// DashboardConfig governs dashboard exposure and cache tuning.
type DashboardConfig struct {
	Enabled           bool
	CacheTTL          time.Duration
	UpcomingWindow    time.Duration
	UpcomingLimit     int
	TopCountriesLimit int
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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

	cfg.Mongo = MongoConfig{
		URI:            v.GetString("MONGO_URI"),
		Database:       v.GetString("MONGO_DATABASE"),
		ConnectTimeout: parseDuration(v.GetString("MONGO_TIMEOUT"), 10*time.Second),
		MaxPoolSize:    v.GetUint64("MONGO_MAX_POOL_SIZE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 30*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Catalog = CatalogConfig{
		CacheEnabled:   v.GetBool("CATALOG_CACHE_ENABLED"),
		SearchCacheTTL: parseDuration(v.GetString("CATALOG_SEARCH_CACHE_TTL"), 5*time.Minute),
		RecentCacheTTL: parseDuration(v.GetString("CATALOG_RECENT_CACHE_TTL"), 5*time.Minute),
		FacetsCacheTTL: parseDuration(v.GetString("CATALOG_FACETS_CACHE_TTL"), 15*time.Minute),
		RecentLimit:    v.GetInt("CATALOG_RECENT_LIMIT"),
		MaxPageSize:    v.GetInt("CATALOG_MAX_PAGE_SIZE"),
	}

	cfg.Storage = StorageConfig{
		Driver:       strings.ToLower(v.GetString("STORAGE_DRIVER")),
		LocalDir:     v.GetString("STORAGE_LOCAL_DIR"),
		S3Endpoint:   v.GetString("S3_ENDPOINT"),
		S3AccessKey:  v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:  v.GetString("S3_SECRET_KEY"),
		S3Bucket:     v.GetString("S3_BUCKET"),
		S3UseSSL:     v.GetBool("S3_USE_SSL"),
		S3PublicBase: v.GetString("S3_PUBLIC_BASE_URL"),
	}

	maxBrochureSize := v.GetInt64("BROCHURE_MAX_FILE_SIZE")
	if maxBrochureSize <= 0 {
		maxBrochureSize = 10 * 1024 * 1024
	}
	cfg.Brochures = BrochureConfig{
		SignedURLSecret:  v.GetString("BROCHURE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("BROCHURE_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxBrochureSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("BROCHURE_ALLOWED_MIME_TYPES")),
	}

	cfg.Views = ViewsConfig{
		Workers:    v.GetInt("VIEWS_WORKERS"),
		BufferSize: v.GetInt("VIEWS_BUFFER_SIZE"),
		MaxRetries: v.GetInt("VIEWS_MAX_RETRIES"),
	}

	cfg.Sessions = SessionConfig{
		CleanupSchedule: v.GetString("SESSION_CLEANUP_SCHEDULE"),
		SingleSession:   v.GetBool("SESSION_SINGLE"),
	}

	cfg.Dashboard = DashboardConfig{
		Enabled:           v.GetBool("ENABLE_DASHBOARD"),
		CacheTTL:          parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
		UpcomingWindow:    parseDuration(v.GetString("DASHBOARD_UPCOMING_WINDOW"), 30*24*time.Hour),
		UpcomingLimit:     v.GetInt("DASHBOARD_UPCOMING_LIMIT"),
		TopCountriesLimit: v.GetInt("DASHBOARD_TOP_COUNTRIES"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ayandah")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "ayandah")
	v.SetDefault("MONGO_TIMEOUT", "10s")
	v.SetDefault("MONGO_MAX_POOL_SIZE", 50)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "ayandah-api")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "720h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CATALOG_CACHE_ENABLED", true)
	v.SetDefault("CATALOG_SEARCH_CACHE_TTL", "5m")
	v.SetDefault("CATALOG_RECENT_CACHE_TTL", "5m")
	v.SetDefault("CATALOG_FACETS_CACHE_TTL", "15m")
	v.SetDefault("CATALOG_RECENT_LIMIT", 6)
	v.SetDefault("CATALOG_MAX_PAGE_SIZE", 100)

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_LOCAL_DIR", "./brochures")
	v.SetDefault("S3_ENDPOINT", "localhost:9000")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_BUCKET", "brochures")
	v.SetDefault("S3_USE_SSL", false)
	v.SetDefault("S3_PUBLIC_BASE_URL", "")

	v.SetDefault("BROCHURE_SIGNED_URL_SECRET", "dev_brochure_secret")
	v.SetDefault("BROCHURE_SIGNED_URL_TTL", "30m")
	v.SetDefault("BROCHURE_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("BROCHURE_ALLOWED_MIME_TYPES", "application/pdf")

	v.SetDefault("VIEWS_WORKERS", 2)
	v.SetDefault("VIEWS_BUFFER_SIZE", 256)
	v.SetDefault("VIEWS_MAX_RETRIES", 3)

	v.SetDefault("SESSION_CLEANUP_SCHEDULE", "@every 1h")
	v.SetDefault("SESSION_SINGLE", false)

	v.SetDefault("ENABLE_DASHBOARD", true)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
	v.SetDefault("DASHBOARD_UPCOMING_WINDOW", "720h")
	v.SetDefault("DASHBOARD_UPCOMING_LIMIT", 5)
	v.SetDefault("DASHBOARD_TOP_COUNTRIES", 5)
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
