// cmd/insight-manager/app_test.go
package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"audit-insights/internal/common/config"
	"audit-insights/internal/insights/narrative"
	"audit-insights/internal/models"
)

// ==========================
// Helpers
// ==========================

func memoryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Name = "audit-insights-test"
	cfg.Logging.Level = "error"
	cfg.Logging.Format = "json"
	cfg.Tracing.ServiceName = "audit-insights-test"
	cfg.Insights = config.InsightsConfig{
		MinMeaningfulResponses: 3,
		MaxTotal:               4,
		MaxPerSection:          1,
		RemoteTimeout:          1200,
		RemoteMaxAttempts:      3,
		RemoteBackoff:          250,
		CacheTTL:               300,
		EmptyCacheTTL:          60,
		CacheMaxEntries:        100,
		CacheBackend:           config.BackendMemory,
		CatalogSource:          config.SourceEmbedded,
		Narrator:               config.NarratorTemplate,
		HistoryBackend:         config.BackendMemory,
		DefaultCurrency:        "USD",
		DefaultLocale:          "en-US",
		RecoveryRates:          map[string]float64{"no-shows": 0.5},
	}
	return cfg
}

// ==========================
// Tests
// ==========================

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := retryWithBackoff(func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, 5, time.Millisecond, zap.NewNop(), "ping")

	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	err = retryWithBackoff(func() error { return errors.New("down") }, 2, time.Millisecond, zap.NewNop(), "ping")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping failed after 2 attempts")
}

func TestPipelineConfig(t *testing.T) {
	pc := pipelineConfig(memoryConfig().Insights)

	assert.Equal(t, 1200*time.Millisecond, pc.RemoteTimeout)
	assert.Equal(t, 250*time.Millisecond, pc.RemoteBackoff)
	assert.Equal(t, 300*time.Second, pc.CacheTTL)
	assert.Equal(t, 60*time.Second, pc.EmptyCacheTTL)
	assert.Equal(t, 0.5, pc.RecoveryRates["no-shows"])
	assert.Equal(t, 0.70, pc.RecoveryRates["missed-calls"])
}

func TestNewApp_MemoryBackends(t *testing.T) {
	a, err := newApp(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer a.close()

	assert.Empty(t, a.checks)
	assert.IsType(t, narrative.TemplateNarrator{}, a.narrator())

	req := &models.GenerateRequest{
		Business: models.BusinessContext{Vertical: models.VerticalDental, BusinessName: "Bright Smiles", Currency: "USD", Locale: "en-US", Size: 2},
		Snapshot: models.AuditSnapshot{
			AuditID:   "audit-app",
			SectionID: "scheduling-noshows",
			Responses: []models.Response{
				{Key: "noShowsPerWeek", Value: 12.0},
				{Key: "noShowRatePercent", Value: 15.0},
				{Key: "confirmationMethod", Value: "manual calls"},
			},
		},
	}
	resp, err := a.service.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "scheduling-noshows", resp.SectionID)
	assert.LessOrEqual(t, len(resp.Insights), 1)
}

func TestCatalogValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		wantOut string
	}{
		{
			name: "valid",
			body: `version: "t1"
skills:
  - name: Smart Confirmations
    target: dental
    problem: Patients forget appointments
    tags: [no-shows]
claims:
  - text: Automated reminders reduce no-shows
    target: dental
`,
			wantOut: "catalog t1: 1 skills, 1 claims",
		},
		{
			name: "invalid entry",
			body: `version: "t2"
skills:
  - name: Broken
    target: plumbing
    problem: Not a supported vertical
`,
			wantErr: true,
			wantOut: "rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "catalog.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))

			cmd := catalogCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetArgs([]string{"validate", path})

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, out.String(), tt.wantOut)
		})
	}
}

func TestRegistryValidateCommand(t *testing.T) {
	cmd := registryCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"validate", filepath.Join("..", "..", "configs", "activity-registry.json")})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "registry OK: 1 activities")
}
