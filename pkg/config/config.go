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

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	SLA           SLAConfig
	Notifications NotificationConfig
	NATS          NATSConfig
	RequestCache  RequestCacheConfig
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
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SLAConfig tunes department timers and the periodic sweep.
type SLAConfig struct {
	DefaultTargetHours  float64
	WarningRatio        float64
	LibraryTargetHours  float64
	BursarTargetHours   float64
	AcademicTargetHours float64
	SweepEnabled        bool
	SweepSchedule       string
}

// NotificationConfig carries the recipient map and delivery toggles.
type NotificationConfig struct {
	Enabled         bool
	SystemNotices   bool
	LibraryQueue    string
	BursarQueue     string
	AcademicQueue   string
	ProcessorQueue  string
	OpsMailbox      string
	DeliveryTimeout time.Duration
	Workers         int
	DedupeTTL       time.Duration
}

// NATSConfig points the mail sender at a NATS server. An empty URL keeps delivery log-only.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// RequestCacheConfig governs read-through caching of request lookups.
type RequestCacheConfig struct {
	Enabled bool
	TTL     time.Duration
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

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.SLA = SLAConfig{
		DefaultTargetHours:  v.GetFloat64("SLA_DEFAULT_TARGET_HOURS"),
		WarningRatio:        v.GetFloat64("SLA_WARNING_RATIO"),
		LibraryTargetHours:  v.GetFloat64("SLA_LIBRARY_TARGET_HOURS"),
		BursarTargetHours:   v.GetFloat64("SLA_BURSAR_TARGET_HOURS"),
		AcademicTargetHours: v.GetFloat64("SLA_ACADEMIC_TARGET_HOURS"),
		SweepEnabled:        v.GetBool("ENABLE_SLA_SWEEP"),
		SweepSchedule:       v.GetString("SLA_SWEEP_SCHEDULE"),
	}

	cfg.Notifications = NotificationConfig{
		Enabled:         v.GetBool("NOTIFY_ENABLED"),
		SystemNotices:   v.GetBool("NOTIFY_SYSTEM_NOTICES"),
		LibraryQueue:    v.GetString("NOTIFY_LIBRARY_QUEUE"),
		BursarQueue:     v.GetString("NOTIFY_BURSAR_QUEUE"),
		AcademicQueue:   v.GetString("NOTIFY_ACADEMIC_QUEUE"),
		ProcessorQueue:  v.GetString("NOTIFY_PROCESSOR_QUEUE"),
		OpsMailbox:      v.GetString("NOTIFY_OPS_MAILBOX"),
		DeliveryTimeout: parseDuration(v.GetString("NOTIFY_DELIVERY_TIMEOUT"), 10*time.Second),
		Workers:         v.GetInt("NOTIFY_WORKERS"),
		DedupeTTL:       parseDuration(v.GetString("NOTIFY_DEDUPE_TTL"), 0),
	}

	cfg.NATS = NATSConfig{
		URL:           v.GetString("NATS_URL"),
		SubjectPrefix: v.GetString("NATS_SUBJECT_PREFIX"),
	}

	cfg.RequestCache = RequestCacheConfig{
		Enabled: v.GetBool("ENABLE_REQUEST_CACHE"),
		TTL:     parseDuration(v.GetString("REQUEST_CACHE_TTL"), 5*time.Minute),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "clearance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SLA_DEFAULT_TARGET_HOURS", 48)
	v.SetDefault("SLA_WARNING_RATIO", 0.75)
	v.SetDefault("SLA_LIBRARY_TARGET_HOURS", 0)
	v.SetDefault("SLA_BURSAR_TARGET_HOURS", 0)
	v.SetDefault("SLA_ACADEMIC_TARGET_HOURS", 0)
	v.SetDefault("ENABLE_SLA_SWEEP", true)
	v.SetDefault("SLA_SWEEP_SCHEDULE", "@every 15m")

	v.SetDefault("NOTIFY_ENABLED", true)
	v.SetDefault("NOTIFY_SYSTEM_NOTICES", true)
	v.SetDefault("NOTIFY_LIBRARY_QUEUE", "library@clearance.local")
	v.SetDefault("NOTIFY_BURSAR_QUEUE", "bursar@clearance.local")
	v.SetDefault("NOTIFY_ACADEMIC_QUEUE", "academic@clearance.local")
	v.SetDefault("NOTIFY_PROCESSOR_QUEUE", "processing@clearance.local")
	v.SetDefault("NOTIFY_OPS_MAILBOX", "ops@clearance.local")
	v.SetDefault("NOTIFY_DELIVERY_TIMEOUT", "10s")
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_DEDUPE_TTL", "")

	v.SetDefault("NATS_URL", "")
	v.SetDefault("NATS_SUBJECT_PREFIX", "notifications.clearance")

	v.SetDefault("ENABLE_REQUEST_CACHE", false)
	v.SetDefault("REQUEST_CACHE_TTL", "5m")
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
