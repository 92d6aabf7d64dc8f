// internal/workers/audit/generate-section-insights/models.go
package generatesectioninsights

import "audit-insights/internal/models"

// Output is merged into the process instance variables on completion.
type Output struct {
	Insights     []models.Insight `json:"insights"`
	InsightCount int              `json:"insightCount"`
	InsightKeys  []string         `json:"insightKeys"`
}

func newOutput(resp *models.GenerateResponse) *Output {
	insights := resp.Insights
	if insights == nil {
		insights = []models.Insight{}
	}
	return &Output{
		Insights:     insights,
		InsightCount: len(insights),
		InsightKeys:  resp.Keys(),
	}
}
