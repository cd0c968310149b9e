package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigRequiresSigningKey(t *testing.T) {
	t.Setenv("DEFECTS_SIGNING_KEY", "")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFECTS_SIGNING_KEY")
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DEFECTS_SIGNING_KEY", "secret")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":25526", cfg.HTTPAddr)
	assert.Equal(t, 24, cfg.GetTokenExpiration())
	assert.Equal(t, "defects", cfg.GetIssuer())
	assert.Equal(t, "smtp.yandex.ru", cfg.SMTPServer)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, "uploads", cfg.UploadDir)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("DEFECTS_SIGNING_KEY", "secret")
	t.Setenv("DEFECTS_TOKEN_EXPIRATION", "2")
	t.Setenv("DEFECTS_PUBLIC_URL", "https://defects.example.com/")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.GetTokenExpiration())
	assert.Equal(t, "https://defects.example.com", cfg.GetPublicURL())
	assert.Equal(t, 2525, cfg.SMTPPort)
}

func TestRedactedHidesSecrets(t *testing.T) {
	cfg := Config{SigningKey: "k", SMTPPassword: "p"}
	r := cfg.Redacted()

	assert.Equal(t, "***", r.SigningKey)
	assert.Equal(t, "***", r.SMTPPassword)
	assert.Equal(t, "k", cfg.SigningKey)
}

func TestConfigPersistenceSettings(t *testing.T) {
	tests := []struct {
		name     string
		dsn      string
		driver   string
		server   string
		database string
	}{
		{name: "sqlite", dsn: "file:defects.db?cache=shared", driver: "sqlite", database: "defects.db"},
		{name: "postgres", dsn: "postgres://user:pass@db:5432/defects?sslmode=disable", driver: "postgres", server: "db:5432", database: "defects"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{DatabaseDSN: tt.dsn}
			assert.Equal(t, tt.driver, cfg.GetDriver())
			assert.Equal(t, tt.server, cfg.GetServer())
			assert.Equal(t, tt.database, cfg.GetDatabase())
		})
	}
}

func TestLoadConfigPingTimeout(t *testing.T) {
	t.Setenv("DEFECTS_SIGNING_KEY", "secret")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.GetPingTimeout())

	t.Setenv("DEFECTS_DB_PING_TIMEOUT", "250ms")
	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.GetPingTimeout())
}
