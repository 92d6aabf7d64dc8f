// internal/insights/narrative/prompt.go
package narrative

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = "You write short, plain business insights for owners of small service businesses. " +
	"Respond with JSON only."

type promptCandidate struct {
	Key           string   `json:"key"`
	Problem       string   `json:"problem"`
	Summary       string   `json:"summary,omitempty"`
	Skill         string   `json:"skill"`
	Mechanism     string   `json:"mechanism,omitempty"`
	MonthlyImpact float64  `json:"monthlyImpact"`
	Currency      string   `json:"currency"`
	Benchmark     string   `json:"benchmark,omitempty"`
	Evidence      []string `json:"evidence,omitempty"`
	Claims        []string `json:"approvedClaims"`
}

func promptCandidates(req *Request) []promptCandidate {
	out := make([]promptCandidate, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		claims := c.Claims
		if claims == nil {
			claims = []string{}
		}
		out = append(out, promptCandidate{
			Key:           c.Key,
			Problem:       c.Problem,
			Summary:       c.Summary,
			Skill:         c.SkillName,
			Mechanism:     c.Mechanism,
			MonthlyImpact: c.MonthlyImpact,
			Currency:      c.Currency,
			Benchmark:     c.Benchmark,
			Evidence:      c.Evidence,
			Claims:        claims,
		})
	}
	return out
}

func buildPrompt(req *Request) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Business: %s (%s), locale %s.",
		req.Business.BusinessName, req.Business.Vertical, req.Business.Locale))
	if req.SectionTitle != "" {
		parts = append(parts, fmt.Sprintf("Audit section: %s.", req.SectionTitle))
	}

	candidates, _ := json.MarshalIndent(promptCandidates(req), "", "  ")
	parts = append(parts, "\nFindings:")
	parts = append(parts, string(candidates))

	parts = append(parts, "\nInstructions:")
	parts = append(parts, "- Write one narrative per finding, keeping its key unchanged")
	parts = append(parts, "- Title under 80 characters, description under 3 sentences")
	parts = append(parts, "- Use the monthly impact exactly as given; do not compute new figures")
	parts = append(parts, "- proofPoints may only quote approvedClaims verbatim")
	parts = append(parts, `- Reply as {"narratives":[{"key","title","description","rationale","proofPoints","actionItems"}]}`)

	return strings.Join(parts, "\n")
}
