package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
  allowed_origins:
    - "https://app.matchwell.io"

database:
  url: "postgres://localhost/growth?sslmode=disable"
  max_open_conns: 40

ad_platform:
  api_key: "ads-key"
  account_id: "acct-1"
  enabled: true

email_audience:
  contact_list_name: "matchwell-members"
  enabled: true

worker:
  feature_window_days: 14
  batch_interval_minutes: 30
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"https://app.matchwell.io"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "postgres://localhost/growth?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 40, cfg.Database.MaxOpenConns)
	assert.Equal(t, "ads-key", cfg.AdPlatform.APIKey)
	assert.True(t, cfg.AdPlatform.Enabled)
	assert.Equal(t, "matchwell-members", cfg.EmailAudience.ContactListName)
	assert.Equal(t, 14, cfg.Worker.FeatureWindowDays)
	assert.Equal(t, 30*time.Minute, cfg.Worker.BatchInterval())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `server: {}`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "us-west-2", cfg.EmailAudience.Region)
	assert.Equal(t, "growth/", cfg.Export.Prefix)
	assert.Equal(t, 30, cfg.Worker.FeatureWindowDays)
	assert.Equal(t, 25, cfg.Worker.AutomationBatchSize)
	assert.Equal(t, 5*time.Second, cfg.Worker.AutomationPollInterval())
	assert.Equal(t, 3, cfg.Webhooks.MaxRetries)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://prod-host/growth")
	t.Setenv("AD_PLATFORM_API_KEY", "env-ads-key")
	t.Setenv("SES_CONTACT_LIST", "prod-members")
	t.Setenv("FEATURE_WINDOW_DAYS", "7")

	cfg, err := LoadFromEnv(writeConfig(t, `
database:
  url: "postgres://localhost/growth"
ad_platform:
  api_key: "file-key"
`))
	require.NoError(t, err)

	assert.Equal(t, "postgres://prod-host/growth", cfg.Database.URL)
	assert.Equal(t, "env-ads-key", cfg.AdPlatform.APIKey)
	assert.True(t, cfg.AdPlatform.Enabled)
	assert.Equal(t, "prod-members", cfg.EmailAudience.ContactListName)
	assert.True(t, cfg.EmailAudience.Enabled)
	assert.Equal(t, 7, cfg.Worker.FeatureWindowDays)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
