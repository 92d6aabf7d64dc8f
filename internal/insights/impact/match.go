// internal/insights/impact/match.go
package impact

import (
	"strings"

	"audit-insights/internal/models"
)

// MatchLossRecords returns the loss records whose area matches any of the
// skill's tags, plus the first skill tag (in tag order) that matched.
// Matching is case-insensitive: equal, substring, or substring of the
// singular form of the tag ("no-shows" matches "No-Show Revenue Loss").
func MatchLossRecords(skill models.Skill, records []models.LossRecord) ([]models.LossRecord, string) {
	var matched []models.LossRecord
	matchedTag := ""

	for _, rec := range records {
		area := normalize(rec.Area)
		if area == "" {
			continue
		}
		for _, tag := range skill.Tags {
			if areaMatchesTag(area, tag) {
				matched = append(matched, rec)
				break
			}
		}
	}

	if len(matched) == 0 {
		return nil, ""
	}

	for _, tag := range skill.Tags {
		for _, rec := range matched {
			if areaMatchesTag(normalize(rec.Area), tag) {
				matchedTag = tag
				break
			}
		}
		if matchedTag != "" {
			break
		}
	}

	return matched, matchedTag
}

func areaMatchesTag(area, tag string) bool {
	t := normalize(tag)
	if t == "" {
		return false
	}
	if area == t || strings.Contains(area, t) {
		return true
	}
	singular := strings.TrimSuffix(t, "s")
	return singular != t && singular != "" && strings.Contains(area, singular)
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
