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

// Config aggregates every runtime setting for the tutor administration API.
type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Log      LogConfig
	Sheets   SheetsConfig
	Email    EmailConfig
	Exports  ExportsConfig
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

// AuthConfig drives the one-time-code login flow and session tokens.
type AuthConfig struct {
	JWTSecret     string
	SessionExpiry time.Duration
	CodeExpiry    time.Duration
	CodeLength    int
	AdminEmails   []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SheetsConfig configures the external spreadsheet mirror.
type SheetsConfig struct {
	Dir         string
	CacheExpiry time.Duration
}

// EmailConfig configures outgoing mail.
type EmailConfig struct {
	SendgridAPIKey string
	FromName       string
	FromAddress    string
	Workers        int
}

// ExportsConfig controls roster export output.
type ExportsConfig struct {
	Dir string
}

// Load reads configuration from the environment, honouring a local .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "tutor_admin")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("SESSION_EXPIRY", "12h")
	v.SetDefault("LOGIN_CODE_EXPIRY", "10m")
	v.SetDefault("LOGIN_CODE_LENGTH", 6)
	v.SetDefault("ADMIN_EMAILS", "")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SHEETS_DIR", "")
	v.SetDefault("SHEETS_CACHE_EXPIRY", "5m")

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("EMAIL_FROM_NAME", "Winthrop Pre-Health Committee")
	v.SetDefault("EMAIL_FROM_ADDRESS", "")
	v.SetDefault("EMAIL_WORKERS", 2)

	v.SetDefault("EXPORTS_DIR", "./exports")

	cfg := &Config{
		Env:       strings.ToLower(v.GetString("ENV")),
		Port:      v.GetInt("PORT"),
		APIPrefix: v.GetString("API_PREFIX"),
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Auth: AuthConfig{
			JWTSecret:     v.GetString("JWT_SECRET"),
			SessionExpiry: v.GetDuration("SESSION_EXPIRY"),
			CodeExpiry:    v.GetDuration("LOGIN_CODE_EXPIRY"),
			CodeLength:    v.GetInt("LOGIN_CODE_LENGTH"),
			AdminEmails:   splitList(v.GetString("ADMIN_EMAILS")),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Sheets: SheetsConfig{
			Dir:         v.GetString("SHEETS_DIR"),
			CacheExpiry: v.GetDuration("SHEETS_CACHE_EXPIRY"),
		},
		Email: EmailConfig{
			SendgridAPIKey: v.GetString("SENDGRID_API_KEY"),
			FromName:       v.GetString("EMAIL_FROM_NAME"),
			FromAddress:    v.GetString("EMAIL_FROM_ADDRESS"),
			Workers:        v.GetInt("EMAIL_WORKERS"),
		},
		Exports: ExportsConfig{
			Dir: v.GetString("EXPORTS_DIR"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return errors.New("ENV must be development or production")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("PORT must be a valid TCP port")
	}
	if c.Env == EnvProduction && c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	return nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
