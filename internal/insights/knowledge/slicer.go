// internal/insights/knowledge/slicer.go
package knowledge

import (
	"audit-insights/internal/models"
)

// Catalog is the full read-only knowledge base.
type Catalog struct {
	Version string
	Skills  []models.Skill
	Claims  []models.Claim
	// Issues lists entries that were rejected while loading.
	Issues []string
}

// Result is a vertical- and tag-filtered view of a catalog.
type Result struct {
	Skills         []models.Skill
	ApprovedClaims []string
}

// Slice narrows the catalog to the entries targeting vertical (or "both").
// A non-empty tag filter further keeps only skills whose tags intersect it;
// untagged claims are general and survive any tag filter. Catalog order is
// preserved. A nil catalog yields an empty result.
func Slice(catalog *Catalog, vertical models.Vertical, tags []string) Result {
	result := Result{
		Skills:         []models.Skill{},
		ApprovedClaims: []string{},
	}
	if catalog == nil {
		return result
	}

	filter := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t != "" {
			filter[t] = struct{}{}
		}
	}

	for _, skill := range catalog.Skills {
		if !targets(skill.Target, vertical) {
			continue
		}
		if len(filter) > 0 && !intersects(skill.Tags, filter) {
			continue
		}
		result.Skills = append(result.Skills, skill)
	}

	for _, claim := range catalog.Claims {
		if claim.Text == "" || !targets(claim.Target, vertical) {
			continue
		}
		if len(filter) > 0 && len(claim.Tags) > 0 && !intersects(claim.Tags, filter) {
			continue
		}
		result.ApprovedClaims = append(result.ApprovedClaims, claim.Text)
	}

	return result
}

func targets(target string, vertical models.Vertical) bool {
	return target == models.TargetBoth || (target != "" && target == string(vertical))
}

func intersects(tags []string, filter map[string]struct{}) bool {
	for _, t := range tags {
		if _, ok := filter[t]; ok {
			return true
		}
	}
	return false
}
