// internal/insights/sections/problems.go
package sections

import "audit-insights/internal/models"

// Problem carries the presentation metadata for one problem tag.
type Problem struct {
	Tag         string
	Category    models.Category
	Title       string
	Summary     string
	ActionItems []string
}

var problems = map[string]Problem{
	"missed-calls": {
		Tag: "missed-calls", Category: models.CategoryOperationalRisk,
		Title:   "Missed calls are leaking booked jobs",
		Summary: "Calls that go unanswered rarely call back; most book with whoever picks up first.",
		ActionItems: []string{
			"Route overflow and lunch-hour calls to a live answering layer",
			"Text back every missed caller within five minutes",
			"Review the missed-call log weekly",
		},
	},
	"no-shows": {
		Tag: "no-shows", Category: models.CategoryOperationalRisk,
		Title:   "No-shows are emptying the schedule",
		Summary: "Each no-show is chair time that cannot be resold on short notice.",
		ActionItems: []string{
			"Send two-way confirmation texts 48 and 24 hours ahead",
			"Keep a short-notice list to backfill open slots",
			"Require a card on file for repeat no-shows",
		},
	},
	"after-hours": {
		Tag: "after-hours", Category: models.CategoryOperationalRisk,
		Title:   "After-hours calls go to voicemail",
		Summary: "Emergency calls after hours book with the first company that answers.",
		ActionItems: []string{
			"Put an after-hours answering service or on-call dispatcher in place",
			"Offer online booking for next-morning slots",
		},
	},
	"online-reviews": {
		Tag: "online-reviews", Category: models.CategoryOperationalRisk,
		Title:   "Review volume and rating trail local competitors",
		Summary: "Prospects compare ratings and recency before calling.",
		ActionItems: []string{
			"Ask for a review by text right after each completed job",
			"Respond to every review within two business days",
		},
	},
	"pending-quotes": {
		Tag: "pending-quotes", Category: models.CategoryRevenueOpportunity,
		Title:   "Open quotes are not being followed up",
		Summary: "Quotes without a follow-up cadence close at a fraction of the rate of those with one.",
		ActionItems: []string{
			"Follow up every open quote on day 2, day 7 and day 14",
			"Offer financing options on quotes above a set amount",
		},
	},
	"pending-treatment": {
		Tag: "pending-treatment", Category: models.CategoryRevenueOpportunity,
		Title:   "Diagnosed treatment is left unscheduled",
		Summary: "Unscheduled treatment plans lose value every week they sit.",
		ActionItems: []string{
			"Schedule the next visit before the patient leaves the chair",
			"Run a monthly call list of unscheduled treatment plans",
			"Present phased treatment and financing options",
		},
	},
	"recall": {
		Tag: "recall", Category: models.CategoryRevenueOpportunity,
		Title:   "Overdue recall patients are drifting away",
		Summary: "Patients overdue for hygiene are the cheapest appointments to win back.",
		ActionItems: []string{
			"Automate recall reminders by text and email",
			"Work the overdue list weekly by phone",
		},
	},
	"maintenance-plans": {
		Tag: "maintenance-plans", Category: models.CategoryRevenueOpportunity,
		Title:   "Maintenance agreements are under-sold",
		Summary: "Members generate predictable revenue and first call on replacements.",
		ActionItems: []string{
			"Offer the agreement on every service call",
			"Auto-renew agreements with a reminder 30 days ahead",
		},
	},
	"new-patients": {
		Tag: "new-patients", Category: models.CategoryRevenueOpportunity,
		Title:   "New patient flow is below a healthy level",
		Summary: "A practice needs a steady stream of new patients to offset natural attrition.",
		ActionItems: []string{
			"Track new patient source on every first visit",
			"Launch a referral reward for existing patients",
		},
	},
}

// ProblemFor returns the metadata for a problem tag. Unknown tags get a
// generic revenue-opportunity entry.
func ProblemFor(tag string) Problem {
	if p, ok := problems[tag]; ok {
		return p
	}
	return Problem{
		Tag:      tag,
		Category: models.CategoryRevenueOpportunity,
		Title:    "Opportunity: " + tag,
	}
}
