// internal/insights/narrative/narrative.go
package narrative

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/time/rate"

	"audit-insights/internal/models"
)

var (
	ErrRemoteCallFailed  = errors.New("REMOTE_CALL_FAILED")
	ErrRemoteCallTimeout = errors.New("REMOTE_CALL_TIMEOUT")
)

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// Candidate is one assembled insight awaiting prose. All figures are final;
// narrators only phrase them.
type Candidate struct {
	Key           string
	SectionID     string
	Problem       string
	Summary       string
	SkillName     string
	Mechanism     string
	MonthlyImpact float64
	Currency      string
	Benchmark     string
	Evidence      []string
	ActionItems   []string
	// Claims are the approved proof points a narrative may cite.
	Claims []string
}

type Request struct {
	Business     models.BusinessContext
	SectionTitle string
	Candidates   []Candidate
}

// Narrative is the prose for one candidate, matched by Key.
type Narrative struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Rationale   string   `json:"rationale,omitempty"`
	ProofPoints []string `json:"proofPoints,omitempty"`
	ActionItems []string `json:"actionItems,omitempty"`
}

type document struct {
	Narratives []Narrative `json:"narratives"`
}

// Narrator turns candidates into titled descriptions.
type Narrator interface {
	Narrate(ctx context.Context, req *Request) ([]Narrative, error)
}

// NewLimiter returns a limiter allowing perSecond calls with a burst of one.
// A non-positive rate disables limiting.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Complete aligns narratives with the request candidates. A candidate
// without a usable narrative gets the template one; proof points outside the
// candidate's approved claims are dropped; empty action items fall back to
// the candidate's defaults.
func Complete(req *Request, narratives []Narrative) []Narrative {
	byKey := make(map[string]Narrative, len(narratives))
	for _, n := range narratives {
		if _, seen := byKey[n.Key]; !seen {
			byKey[n.Key] = n
		}
	}

	out := make([]Narrative, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		fallback := templateFor(req, c)
		n, ok := byKey[c.Key]
		if !ok || strings.TrimSpace(n.Title) == "" || strings.TrimSpace(n.Description) == "" {
			out = append(out, fallback)
			continue
		}

		n.Key = c.Key
		n.Title = strings.TrimSpace(n.Title)
		n.Description = strings.TrimSpace(n.Description)
		if strings.TrimSpace(n.Rationale) == "" {
			n.Rationale = fallback.Rationale
		}
		n.ProofPoints = FilterProofPoints(n.ProofPoints, c.Claims)
		if len(n.ActionItems) == 0 {
			n.ActionItems = fallback.ActionItems
		}
		out = append(out, n)
	}
	return out
}

// FilterProofPoints keeps the points that match an approved claim, ignoring
// case and surrounding space, and returns the approved wording. The result
// is never nil.
func FilterProofPoints(points, approved []string) []string {
	allowed := make(map[string]string, len(approved))
	for _, a := range approved {
		allowed[normalizeClaim(a)] = a
	}

	out := []string{}
	seen := make(map[string]bool, len(points))
	for _, p := range points {
		norm := normalizeClaim(p)
		claim, ok := allowed[norm]
		if !ok || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, claim)
	}
	return out
}

func normalizeClaim(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
