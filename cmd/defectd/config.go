package main

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is read from the environment, optionally seeded from a .env file
type Config struct {
	HTTPAddr        string        `mapstructure:"DEFECTS_HTTP_ADDR"`
	DatabaseDSN     string        `mapstructure:"DEFECTS_DATABASE_DSN"`
	DBPingTimeout   time.Duration `mapstructure:"DEFECTS_DB_PING_TIMEOUT"`
	DBOtelID        string        `mapstructure:"DEFECTS_DB_OTEL_ID"`
	SigningKey      string        `mapstructure:"DEFECTS_SIGNING_KEY"`
	TokenExpiration int           `mapstructure:"DEFECTS_TOKEN_EXPIRATION"`
	Issuer          string        `mapstructure:"DEFECTS_ISSUER"`
	PublicURL       string        `mapstructure:"DEFECTS_PUBLIC_URL"`
	LandingURL      string        `mapstructure:"DEFECTS_LANDING_URL"`
	UploadDir       string        `mapstructure:"DEFECTS_UPLOAD_DIR"`
	LogLevel        string        `mapstructure:"DEFECTS_LOG_LEVEL"`
	Debug           bool          `mapstructure:"DEFECTS_DEBUG"`

	SMTPServer   string `mapstructure:"SMTP_SERVER"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`

	SeedEmail    string `mapstructure:"DEFECTS_SEED_EMAIL"`
	SeedLogin    string `mapstructure:"DEFECTS_SEED_LOGIN"`
	SeedFullName string `mapstructure:"DEFECTS_SEED_FULL_NAME"`
	SeedPassword string `mapstructure:"DEFECTS_SEED_PASSWORD"`
}

var configDefaults = map[string]any{
	"DEFECTS_HTTP_ADDR":        ":25526",
	"DEFECTS_DATABASE_DSN":     "file:defects.db?cache=shared",
	"DEFECTS_DB_PING_TIMEOUT":  "5s",
	"DEFECTS_DB_OTEL_ID":       "",
	"DEFECTS_SIGNING_KEY":      "",
	"DEFECTS_TOKEN_EXPIRATION": 24,
	"DEFECTS_ISSUER":           "defects",
	"DEFECTS_PUBLIC_URL":       "http://localhost:25526",
	"DEFECTS_LANDING_URL":      "/",
	"DEFECTS_UPLOAD_DIR":       "uploads",
	"DEFECTS_LOG_LEVEL":        "info",
	"DEFECTS_DEBUG":            false,
	"SMTP_SERVER":              "smtp.yandex.ru",
	"SMTP_PORT":                587,
	"SMTP_USERNAME":            "",
	"SMTP_PASSWORD":            "",
	"DEFECTS_SEED_EMAIL":       "manager@example.com",
	"DEFECTS_SEED_LOGIN":       "manager",
	"DEFECTS_SEED_FULL_NAME":   "Иван Петров",
	"DEFECTS_SEED_PASSWORD":    "",
}

// LoadConfig reads envFile when present and then the process environment
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		// a missing .env is fine, variables may come from the environment
		_ = godotenv.Load(envFile)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.SigningKey) == "" {
		return errors.New("DEFECTS_SIGNING_KEY is required")
	}
	if c.TokenExpiration <= 0 {
		return errors.New("DEFECTS_TOKEN_EXPIRATION must be a positive number of hours")
	}
	if c.DBPingTimeout <= 0 {
		return errors.New("DEFECTS_DB_PING_TIMEOUT must be a positive duration")
	}
	return nil
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func (c *Config) GetDebug() bool {
	return c.Debug
}

func (c *Config) GetDriver() string {
	if isPostgresDSN(c.DatabaseDSN) {
		return "postgres"
	}
	return "sqlite"
}

func (c *Config) GetServer() string {
	if !isPostgresDSN(c.DatabaseDSN) {
		return ""
	}
	u, err := url.Parse(c.DatabaseDSN)
	if err != nil {
		return ""
	}
	return u.Host
}

func (c *Config) GetDatabase() string {
	if isPostgresDSN(c.DatabaseDSN) {
		if u, err := url.Parse(c.DatabaseDSN); err == nil {
			return strings.TrimPrefix(u.Path, "/")
		}
		return ""
	}
	name, _, _ := strings.Cut(strings.TrimPrefix(c.DatabaseDSN, "file:"), "?")
	return name
}

func (c *Config) GetPingTimeout() time.Duration {
	return c.DBPingTimeout
}

func (c *Config) GetOtelIdentifier() string {
	return c.DBOtelID
}

func (c *Config) GetSigningKey() string {
	return c.SigningKey
}

func (c *Config) GetTokenExpiration() int {
	return c.TokenExpiration
}

func (c *Config) GetIssuer() string {
	return c.Issuer
}

func (c *Config) GetPublicURL() string {
	return strings.TrimRight(c.PublicURL, "/")
}

func (c *Config) GetLandingURL() string {
	return c.LandingURL
}

// Redacted is safe to print at startup
func (c Config) Redacted() Config {
	if c.SigningKey != "" {
		c.SigningKey = "***"
	}
	if c.SMTPPassword != "" {
		c.SMTPPassword = "***"
	}
	if c.SeedPassword != "" {
		c.SeedPassword = "***"
	}
	return c
}
