// internal/models/insight.go
package models

import "time"

type Category string

const (
	CategoryRevenueOpportunity Category = "revenue-opportunity"
	CategoryOperationalRisk    Category = "operational-risk"
)

type ImpactBand string

const (
	ImpactLow      ImpactBand = "low"
	ImpactMedium   ImpactBand = "medium"
	ImpactHigh     ImpactBand = "high"
	ImpactVeryHigh ImpactBand = "very-high"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

type SkillReference struct {
	Name        string   `json:"name"`
	Rationale   string   `json:"rationale"`
	ProofPoints []string `json:"proofPoints"`
}

type Insight struct {
	ID            string         `json:"id"`
	Key           string         `json:"key"`
	SectionID     string         `json:"sectionId"`
	Category      Category       `json:"category"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	ImpactBand    ImpactBand     `json:"impactBand"`
	Urgency       Urgency        `json:"urgency"`
	MonthlyImpact float64        `json:"monthlyImpact"`
	Currency      string         `json:"currency"`
	RecoveryRate  float64        `json:"recoveryRate"`
	Formula       string         `json:"formula"`
	Assumptions   []string       `json:"assumptions"`
	Confidence    int            `json:"confidence"`
	Skill         SkillReference `json:"skill"`
	ActionItems   []string       `json:"actionItems"`
	Benchmark     string         `json:"benchmark"`
	DataUsed      []string       `json:"dataUsed"`
	DataMissing   []string       `json:"dataMissing"`
	CreatedAt     time.Time      `json:"createdAt"`
}

type GenerateRequest struct {
	Business     BusinessContext `json:"business"`
	Snapshot     AuditSnapshot   `json:"snapshot"`
	LossSummary  *LossSummary    `json:"lossSummary,omitempty"`
	PreviousKeys []string        `json:"previousKeys,omitempty"`
}

type GenerateResponse struct {
	AuditID   string    `json:"auditId"`
	SectionID string    `json:"sectionId"`
	Insights  []Insight `json:"insights"`
}

// Keys lists the dedup keys of the response insights in order.
func (r *GenerateResponse) Keys() []string {
	keys := make([]string, 0, len(r.Insights))
	for _, in := range r.Insights {
		keys = append(keys, in.Key)
	}
	return keys
}
