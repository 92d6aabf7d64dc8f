// internal/insights/pipeline/config.go
package pipeline

import (
	"time"

	"audit-insights/internal/insights/assemble"
	"audit-insights/internal/insights/impact"
)

type Config struct {
	MinMeaningfulResponses int
	MaxTotal               int
	MaxPerSection          int

	RemoteTimeout     time.Duration
	RemoteMaxAttempts int
	RemoteBackoff     time.Duration

	CacheTTL      time.Duration
	EmptyCacheTTL time.Duration

	RecoveryRates impact.RecoveryRates
}

func DefaultConfig() Config {
	return Config{
		MinMeaningfulResponses: 3,
		MaxTotal:               assemble.DefaultMaxTotal,
		MaxPerSection:          assemble.DefaultMaxPerSection,
		RemoteTimeout:          1200 * time.Millisecond,
		RemoteMaxAttempts:      3,
		RemoteBackoff:          250 * time.Millisecond,
		CacheTTL:               300 * time.Second,
		EmptyCacheTTL:          60 * time.Second,
		RecoveryRates:          impact.DefaultRecoveryRates(),
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinMeaningfulResponses <= 0 {
		c.MinMeaningfulResponses = d.MinMeaningfulResponses
	}
	if c.MaxTotal <= 0 {
		c.MaxTotal = d.MaxTotal
	}
	if c.MaxPerSection <= 0 {
		c.MaxPerSection = d.MaxPerSection
	}
	if c.RemoteTimeout <= 0 {
		c.RemoteTimeout = d.RemoteTimeout
	}
	if c.RemoteMaxAttempts <= 0 {
		c.RemoteMaxAttempts = d.RemoteMaxAttempts
	}
	if c.RemoteBackoff < 0 {
		c.RemoteBackoff = 0
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.EmptyCacheTTL <= 0 {
		c.EmptyCacheTTL = d.EmptyCacheTTL
	}
	if c.RecoveryRates == nil {
		c.RecoveryRates = d.RecoveryRates
	}
	return c
}
