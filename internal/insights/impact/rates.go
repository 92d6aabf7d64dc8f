// internal/insights/impact/rates.go
package impact

// RecoveryRates maps a problem tag to the share of reported loss a
// remediation is expected to recover.
type RecoveryRates map[string]float64

// DefaultRecoveryRates is the product policy table.
func DefaultRecoveryRates() RecoveryRates {
	return RecoveryRates{
		"missed-calls":      0.70,
		"no-shows":          0.60,
		"after-hours":       0.50,
		"recall":            0.35,
		"pending-quotes":    0.30,
		"pending-treatment": 0.25,
		"maintenance-plans": 0.20,
		"new-patients":      0.20,
		"online-reviews":    0.15,
	}
}

// Lookup returns the rate for tag; missing entries are 0.
func (r RecoveryRates) Lookup(tag string) (float64, bool) {
	rate, ok := r[tag]
	return rate, ok
}

// Merge returns a copy of r with overrides applied. Out-of-range overrides are ignored.
func (r RecoveryRates) Merge(overrides map[string]float64) RecoveryRates {
	out := make(RecoveryRates, len(r)+len(overrides))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range overrides {
		if v < 0 || v > 1 {
			continue
		}
		out[k] = v
	}
	return out
}
