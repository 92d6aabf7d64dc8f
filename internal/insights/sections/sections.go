// internal/insights/sections/sections.go
package sections

import (
	"fmt"

	"audit-insights/internal/models"
)

type Comparison string

const (
	Above Comparison = "gt"
	Below Comparison = "lt"
)

// Signal is a reported metric with a benchmark threshold. It fires when the
// reported value is strictly past the threshold in the given direction.
type Signal struct {
	Key       string
	Tag       string
	Op        Comparison
	Threshold float64
	Benchmark string
}

// Fires evaluates the signal against a reported value.
func (s Signal) Fires(value float64) bool {
	switch s.Op {
	case Above:
		return value > s.Threshold
	case Below:
		return value < s.Threshold
	}
	return false
}

// Severe reports whether value is far past the benchmark: double the
// threshold for upper limits, half of it for lower limits.
func (s Signal) Severe(value float64) bool {
	switch s.Op {
	case Above:
		return s.Threshold > 0 && value >= 2*s.Threshold
	case Below:
		return value <= s.Threshold/2
	}
	return false
}

type Section struct {
	ID       string
	Vertical models.Vertical
	Title    string
	Tags     []string
	Signals  []Signal
}

// SignalsFor returns the section signals that evidence the given problem tag.
func (s Section) SignalsFor(tag string) []Signal {
	var out []Signal
	for _, sig := range s.Signals {
		if sig.Tag == tag {
			out = append(out, sig)
		}
	}
	return out
}

var catalog = []Section{
	{
		ID: "patient-acquisition", Vertical: models.VerticalDental, Title: "Patient Acquisition",
		Tags: []string{"new-patients"},
		Signals: []Signal{
			{Key: "newPatientsPerMonth", Tag: "new-patients", Op: Below, Threshold: 20, Benchmark: "Healthy practices add 20 or more new patients per month"},
		},
	},
	{
		ID: "scheduling-noshows", Vertical: models.VerticalDental, Title: "Scheduling & No-Shows",
		Tags: []string{"no-shows"},
		Signals: []Signal{
			{Key: "noShowsPerWeek", Tag: "no-shows", Op: Above, Threshold: 4, Benchmark: "Benchmark is 4 or fewer no-shows per week"},
			{Key: "noShowRatePercent", Tag: "no-shows", Op: Above, Threshold: 10, Benchmark: "Benchmark no-show rate is 10% or lower"},
		},
	},
	{
		ID: "phone-handling", Vertical: models.VerticalDental, Title: "Phone Handling",
		Tags: []string{"missed-calls"},
		Signals: []Signal{
			{Key: "missedCallsPerWeek", Tag: "missed-calls", Op: Above, Threshold: 10, Benchmark: "Benchmark is 10 or fewer missed calls per week"},
			{Key: "callAnswerRatePercent", Tag: "missed-calls", Op: Below, Threshold: 85, Benchmark: "Top practices answer at least 85% of calls live"},
		},
	},
	{
		ID: "treatment-acceptance", Vertical: models.VerticalDental, Title: "Treatment Acceptance",
		Tags: []string{"pending-treatment"},
		Signals: []Signal{
			{Key: "treatmentAcceptancePercent", Tag: "pending-treatment", Op: Below, Threshold: 60, Benchmark: "Benchmark case acceptance is 60% or higher"},
			{Key: "pendingTreatmentPlans", Tag: "pending-treatment", Op: Above, Threshold: 20, Benchmark: "Keep unscheduled treatment plans under 20"},
		},
	},
	{
		ID: "recall-reactivation", Vertical: models.VerticalDental, Title: "Recall & Reactivation",
		Tags: []string{"recall"},
		Signals: []Signal{
			{Key: "overdueRecallPatients", Tag: "recall", Op: Above, Threshold: 100, Benchmark: "Keep overdue recall patients under 100"},
			{Key: "recallRatePercent", Tag: "recall", Op: Below, Threshold: 70, Benchmark: "Benchmark recall retention is 70% or higher"},
		},
	},
	{
		ID: "call-handling", Vertical: models.VerticalHVAC, Title: "Call Handling",
		Tags: []string{"missed-calls"},
		Signals: []Signal{
			{Key: "missedCallsPerWeek", Tag: "missed-calls", Op: Above, Threshold: 8, Benchmark: "Benchmark is 8 or fewer missed calls per week"},
			{Key: "callAnswerRatePercent", Tag: "missed-calls", Op: Below, Threshold: 85, Benchmark: "Top contractors answer at least 85% of calls live"},
		},
	},
	{
		ID: "after-hours", Vertical: models.VerticalHVAC, Title: "After-Hours Coverage",
		Tags: []string{"after-hours", "missed-calls"},
		Signals: []Signal{
			{Key: "afterHoursCallsPerWeek", Tag: "after-hours", Op: Above, Threshold: 5, Benchmark: "More than 5 after-hours calls a week needs live coverage"},
			{Key: "afterHoursCoverage", Tag: "after-hours", Op: Below, Threshold: 1, Benchmark: "After-hours calls should reach a live dispatcher"},
		},
	},
	{
		ID: "quotes-followup", Vertical: models.VerticalHVAC, Title: "Quotes & Follow-Up",
		Tags: []string{"pending-quotes"},
		Signals: []Signal{
			{Key: "openQuotes", Tag: "pending-quotes", Op: Above, Threshold: 15, Benchmark: "Keep open unanswered quotes under 15"},
			{Key: "quoteCloseRatePercent", Tag: "pending-quotes", Op: Below, Threshold: 40, Benchmark: "Benchmark quote close rate is 40% or higher"},
		},
	},
	{
		ID: "maintenance-agreements", Vertical: models.VerticalHVAC, Title: "Maintenance Agreements",
		Tags: []string{"maintenance-plans"},
		Signals: []Signal{
			{Key: "maintenanceMembers", Tag: "maintenance-plans", Op: Below, Threshold: 150, Benchmark: "Healthy shops carry 150 or more maintenance members"},
			{Key: "renewalRatePercent", Tag: "maintenance-plans", Op: Below, Threshold: 70, Benchmark: "Benchmark agreement renewal is 70% or higher"},
		},
	},
	{
		ID: "reviews-reputation", Vertical: models.VerticalHVAC, Title: "Reviews & Reputation",
		Tags: []string{"online-reviews"},
		Signals: []Signal{
			{Key: "averageRating", Tag: "online-reviews", Op: Below, Threshold: 4.5, Benchmark: "Benchmark average rating is 4.5 stars or higher"},
			{Key: "reviewsPerMonth", Tag: "online-reviews", Op: Below, Threshold: 8, Benchmark: "Aim for 8 or more new reviews per month"},
		},
	},
}

var byID = func() map[string]Section {
	m := make(map[string]Section, len(catalog))
	for _, s := range catalog {
		m[s.ID] = s
	}
	return m
}()

// Lookup returns the section with the given id.
func Lookup(id string) (Section, bool) {
	s, ok := byID[id]
	return s, ok
}

// Resolve looks up a section and checks that it belongs to the vertical.
func Resolve(id string, vertical models.Vertical) (Section, error) {
	s, ok := byID[id]
	if !ok {
		return Section{}, fmt.Errorf("unknown section %q", id)
	}
	if s.Vertical != vertical {
		return Section{}, fmt.Errorf("section %q belongs to vertical %q, not %q", id, s.Vertical, vertical)
	}
	return s, nil
}

// All returns every section in declaration order.
func All() []Section {
	out := make([]Section, len(catalog))
	copy(out, catalog)
	return out
}

// IDs lists section ids in declaration order.
func IDs() []string {
	ids := make([]string, 0, len(catalog))
	for _, s := range catalog {
		ids = append(ids, s.ID)
	}
	return ids
}
