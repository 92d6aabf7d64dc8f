// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
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

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: audit-insights
  environment: test
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 3, cfg.Insights.MinMeaningfulResponses)
	assert.Equal(t, 4, cfg.Insights.MaxTotal)
	assert.Equal(t, 1, cfg.Insights.MaxPerSection)
	assert.Equal(t, 1200*time.Millisecond, GetDuration(cfg.Insights.RemoteTimeout))
	assert.Equal(t, 3, cfg.Insights.RemoteMaxAttempts)
	assert.Equal(t, 300*time.Second, GetSeconds(cfg.Insights.CacheTTL))
	assert.Equal(t, 60*time.Second, GetSeconds(cfg.Insights.EmptyCacheTTL))
	assert.Equal(t, BackendMemory, cfg.Insights.CacheBackend)
	assert.Equal(t, SourceEmbedded, cfg.Insights.CatalogSource)
	assert.Equal(t, NarratorTemplate, cfg.Insights.Narrator)
	assert.Equal(t, "USD", cfg.Insights.DefaultCurrency)
	assert.Equal(t, "en-US", cfg.Insights.DefaultLocale)
	assert.Equal(t, "", cfg.Logging.LogFile())
}

func TestLoadFromFile_InsightsSection(t *testing.T) {
	path := writeConfig(t, `
insights:
  max_total: 6
  max_per_section: 2
  cache_backend: redis
  recovery_rates:
    no-shows: 0.5
database:
  redis:
    address: localhost:6379
logging:
  output: /var/log/insights.log
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Insights.MaxTotal)
	assert.Equal(t, 2, cfg.Insights.MaxPerSection)
	assert.Equal(t, BackendRedis, cfg.Insights.CacheBackend)
	assert.Equal(t, 0.5, cfg.Insights.RecoveryRates["no-shows"])
	assert.Equal(t, "/var/log/insights.log", cfg.Logging.LogFile())
}

func TestLoadFromFile_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_GENAI_URL", "http://genai.internal:9000")
	path := writeConfig(t, `
insights:
  narrator: genai
apis:
  genai:
    base_url: ${TEST_GENAI_URL}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://genai.internal:9000", cfg.APIs.GenAI.BaseURL)
}

func TestLoadFromFile_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "per-section cap above total",
			body: "insights:\n  max_total: 1\n  max_per_section: 2\n",
			want: "max_per_section",
		},
		{
			name: "recovery rate out of range",
			body: "insights:\n  recovery_rates:\n    recall: 1.5\n",
			want: "recovery_rates",
		},
		{
			name: "redis backend without address",
			body: "insights:\n  cache_backend: redis\n",
			want: "database.redis.address",
		},
		{
			name: "unknown narrator",
			body: "insights:\n  narrator: oracle\n",
			want: "insights.narrator",
		},
		{
			name: "file catalog without path",
			body: "insights:\n  catalog_source: file\n",
			want: "catalog_path",
		},
		{
			name: "camunda without broker",
			body: "camunda:\n  enabled: true\n",
			want: "camunda.broker_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"generate-section-insights": {Enabled: false, MaxJobsActive: 2},
	}}

	assert.Equal(t, 2, GetWorkerConfig(cfg, "generate-section-insights").MaxJobsActive)
	assert.False(t, IsWorkerEnabled(cfg, "generate-section-insights"))
	assert.True(t, IsWorkerEnabled(cfg, "unknown"))
	assert.Equal(t, 5, GetWorkerConfig(cfg, "unknown").MaxJobsActive)
}
