// internal/insights/assemble/assembler.go
package assemble

import (
	"strings"
	"unicode"

	"audit-insights/internal/models"
)

const (
	DefaultMaxTotal      = 4
	DefaultMaxPerSection = 1
)

// NormalizeKey turns a problem subject into its canonical dedup key:
// lower-case, with runs of separators collapsed to a single underscore
// ("Missed-Calls" and "missed calls" both become "missed_calls").
func NormalizeKey(subject string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(subject)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Assemble deduplicates and caps candidates in input order. The first
// candidate for each normalized key wins, keys in previouslySeen are dropped,
// and at most maxPerSection survivors per section and maxTotal overall are
// kept. Non-positive limits fall back to the defaults.
func Assemble(candidates []models.Insight, previouslySeen []string, maxTotal, maxPerSection int) []models.Insight {
	if maxTotal <= 0 {
		maxTotal = DefaultMaxTotal
	}
	if maxPerSection <= 0 {
		maxPerSection = DefaultMaxPerSection
	}

	seen := make(map[string]bool, len(previouslySeen)+len(candidates))
	for _, k := range previouslySeen {
		if nk := NormalizeKey(k); nk != "" {
			seen[nk] = true
		}
	}

	perSection := make(map[string]int)
	out := make([]models.Insight, 0, min(len(candidates), maxTotal))

	for _, c := range candidates {
		if len(out) >= maxTotal {
			break
		}

		key := NormalizeKey(c.Key)
		if key == "" || seen[key] {
			continue
		}
		// A key is claimed by its first occurrence even when the section cap rejects it.
		seen[key] = true

		if perSection[c.SectionID] >= maxPerSection {
			continue
		}
		perSection[c.SectionID]++

		c.Key = key
		out = append(out, c)
	}

	return out
}
