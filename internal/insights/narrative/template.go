// internal/insights/narrative/template.go
package narrative

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const maxTemplateProofPoints = 2

// TemplateNarrator phrases candidates deterministically without a remote call.
type TemplateNarrator struct{}

func (TemplateNarrator) Narrate(_ context.Context, req *Request) ([]Narrative, error) {
	out := make([]Narrative, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		out = append(out, templateFor(req, c))
	}
	return out, nil
}

func templateFor(req *Request, c Candidate) Narrative {
	var desc strings.Builder
	desc.WriteString(c.Summary)

	if c.MonthlyImpact > 0 {
		if desc.Len() > 0 {
			desc.WriteString(" ")
		}
		fmt.Fprintf(&desc, "%s could recover about %s per month", c.SkillName, FormatMoney(c.MonthlyImpact, c.Currency, req.Business.Locale))
		if req.Business.BusinessName != "" {
			fmt.Fprintf(&desc, " for %s", req.Business.BusinessName)
		}
		desc.WriteString(".")
	}
	if c.Benchmark != "" {
		if desc.Len() > 0 {
			desc.WriteString(" ")
		}
		desc.WriteString(strings.TrimSuffix(c.Benchmark, ".") + ".")
	}

	rationale := c.Mechanism
	if rationale == "" {
		rationale = fmt.Sprintf("%s addresses %s.", c.SkillName, strings.ToLower(c.Problem))
	}

	proof := c.Claims
	if len(proof) > maxTemplateProofPoints {
		proof = proof[:maxTemplateProofPoints]
	}

	return Narrative{
		Key:         c.Key,
		Title:       c.Problem,
		Description: desc.String(),
		Rationale:   rationale,
		ProofPoints: append([]string{}, proof...),
		ActionItems: append([]string{}, c.ActionItems...),
	}
}

// FormatMoney renders a whole-unit amount with the locale's digit grouping,
// e.g. "USD 3,000" for en-US or "EUR 3.000" for de-DE. An empty or
// unparseable locale falls back to en-US.
func FormatMoney(amount float64, currency, locale string) string {
	tag, err := language.Parse(locale)
	if err != nil || locale == "" {
		tag = language.AmericanEnglish
	}
	digits := message.NewPrinter(tag).Sprintf("%d", int64(math.Round(amount)))

	if currency == "" {
		return digits
	}
	return currency + " " + digits
}
