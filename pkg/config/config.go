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

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database       DatabaseConfig
	Redis          RedisConfig
	Log            LogConfig
	Catalog        CatalogConfig
	Reconciliation ReconciliationConfig
	History        HistoryConfig
	Metrics        MetricsConfig
	Export         ExportConfig
	CORS           CORSConfig
}

// CORSConfig lists browser origins allowed to call the HTTP trigger surface.
type CORSConfig struct {
	AllowedOrigins []string
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
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// CatalogConfig points at the program classification file. Empty uses the
// embedded default.
type CatalogConfig struct {
	Path string
}

// ReconciliationConfig tunes batch runs.
type ReconciliationConfig struct {
	BatchSize           int
	Workers             int
	ConfidenceThreshold float64
	JourneyMode         string
	ValidAttendanceFlag string
	// Schedule is a cron expression for recurring runs under serve. Empty disables.
	Schedule string
}

// HistoryConfig governs the cached student history lookups.
type HistoryConfig struct {
	CacheTTL time.Duration
}

// MetricsConfig controls where batch metrics are pushed after CLI runs.
type MetricsConfig struct {
	PushgatewayURL string
	JobName        string
}

// ExportConfig controls review-queue exports.
type ExportConfig struct {
	Dir string
	// CSVBOM prefixes CSV files with a UTF-8 byte order mark for spreadsheet tools.
	CSVBOM bool
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
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Catalog = CatalogConfig{Path: v.GetString("CATALOG_PATH")}

	threshold := v.GetFloat64("RECON_CONFIDENCE_THRESHOLD")
	if threshold < 0 || threshold > 1 {
		threshold = 0.6
	}
	cfg.Reconciliation = ReconciliationConfig{
		BatchSize:           v.GetInt("RECON_BATCH_SIZE"),
		Workers:             v.GetInt("RECON_WORKERS"),
		ConfidenceThreshold: threshold,
		JourneyMode:         v.GetString("RECON_JOURNEY_MODE"),
		ValidAttendanceFlag: v.GetString("RECON_VALID_ATTENDANCE_FLAG"),
		Schedule:            strings.TrimSpace(v.GetString("RECON_SCHEDULE")),
	}

	cfg.History = HistoryConfig{
		CacheTTL: parseDuration(v.GetString("HISTORY_CACHE_TTL"), 30*time.Minute),
	}

	cfg.Metrics = MetricsConfig{
		PushgatewayURL: v.GetString("PUSHGATEWAY_URL"),
		JobName:        v.GetString("METRICS_JOB_NAME"),
	}

	cfg.Export = ExportConfig{Dir: v.GetString("EXPORT_DIR"), CSVBOM: v.GetBool("EXPORT_CSV_BOM")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS"))}

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
	v.SetDefault("DB_NAME", "enrollment_ledger")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CATALOG_PATH", "")

	v.SetDefault("RECON_BATCH_SIZE", 200)
	v.SetDefault("RECON_WORKERS", 4)
	v.SetDefault("RECON_CONFIDENCE_THRESHOLD", 0.6)
	v.SetDefault("RECON_JOURNEY_MODE", "consolidated")
	v.SetDefault("RECON_VALID_ATTENDANCE_FLAG", "1")
	v.SetDefault("RECON_SCHEDULE", "")

	v.SetDefault("HISTORY_CACHE_TTL", "30m")

	v.SetDefault("PUSHGATEWAY_URL", "")
	v.SetDefault("METRICS_JOB_NAME", "journey_reconciler")

	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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
