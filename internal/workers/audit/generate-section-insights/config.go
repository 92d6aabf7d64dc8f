// internal/workers/audit/generate-section-insights/config.go
package generatesectioninsights

import (
	"time"

	"audit-insights/internal/common/config"
	"audit-insights/internal/common/validation"
)

type Config struct {
	Timeout  time.Duration
	Defaults validation.Defaults
}

func LoadConfig(cfg *config.Config) *Config {
	workerCfg := config.GetWorkerConfig(cfg, TaskType)

	timeout := config.GetDuration(workerCfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Config{
		Timeout: timeout,
		Defaults: validation.Defaults{
			Currency: cfg.Insights.DefaultCurrency,
			Locale:   cfg.Insights.DefaultLocale,
		},
	}
}
