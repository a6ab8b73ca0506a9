package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
database:
  postgres:
    host: ${TEST_NL_DB_HOST}
    database: newsletter
    user: newsletter
  elasticsearch:
    url: http://localhost:9200
  redis:
    address: localhost:6379
delivery:
  provider: smtp
  from_email: news@example.com
  smtp:
    host: localhost
`

func TestLoadFromFile_ShippedConfig(t *testing.T) {
	t.Setenv("DB_USER", "newsletter")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadFromFile(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "newsletter-agent", cfg.App.Name)
	assert.Equal(t, "newsletter", cfg.Database.Postgres.User)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "smtp", cfg.Delivery.Provider)
	assert.Equal(t, []string{"auto"}, cfg.Pipeline.DefaultSources)
	assert.Equal(t, 300000, cfg.Tools.CacheTTL)
	assert.Contains(t, cfg.Sources.RSS.Feeds, "technology")
	assert.Equal(t, 4, GetWorkerConfig(cfg, "generate-newsletter").MaxJobsActive)
}

func TestLoadFromFile_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_NL_DB_HOST", "db.internal")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Database.Elasticsearch.Addresses)
	assert.Equal(t, "newsletters", cfg.Database.Elasticsearch.ArchiveIndex)
	assert.Equal(t, "https://newsapi.org", cfg.Sources.NewsAPI.BaseURL)
	assert.Equal(t, 10000, cfg.Sources.HackerNews.Timeout)
	assert.Equal(t, DefaultVocabulary, cfg.Pipeline.Vocabulary)
	assert.Equal(t, "both", cfg.Pipeline.DefaultFormat)
	assert.Equal(t, 587, cfg.Delivery.SMTP.Port)
	assert.Equal(t, "0 9 * * *", cfg.Scheduler.Cron)
	assert.Equal(t, cfg.App.Name, cfg.Observability.ServiceName)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing postgres host",
			body:    minimalConfig,
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "unknown provider",
			body:    strings.Replace(minimalConfig, "provider: smtp", "provider: pigeon", 1),
			wantErr: "delivery.provider must be ses or smtp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name != "missing postgres host" {
				t.Setenv("TEST_NL_DB_HOST", "db.internal")
			}
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_TextFormatAlias(t *testing.T) {
	t.Setenv("TEST_NL_DB_HOST", "db.internal")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+"pipeline:\n  default_format: text\n"))
	require.NoError(t, err)
	assert.Equal(t, "plain-text", cfg.Pipeline.DefaultFormat)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"send-newsletter": {Enabled: false, MaxJobsActive: 2},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "send-newsletter"))
	assert.Equal(t, 2, GetWorkerConfig(cfg, "send-newsletter").MaxJobsActive)
	assert.True(t, IsWorkerEnabled(cfg, "fetch-news"))
	assert.Equal(t, 30000, GetWorkerConfig(cfg, "fetch-news").Timeout)
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
