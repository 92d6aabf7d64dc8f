// internal/insights/impact/estimator_test.go
package impact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audit-insights/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func noShowSkill(roi *models.ROIRange) models.Skill {
	return models.Skill{
		Name:    "Smart Confirmations",
		Target:  "dental",
		Problem: "no-shows",
		ROI:     roi,
		Tags:    []string{"no-shows"},
	}
}

func reported(fired int) Evidence {
	return Evidence{FiredSignals: fired, Reported: true}
}

// ==========================
// Loss Matching Tests
// ==========================

func TestMatchLossRecords(t *testing.T) {
	tests := []struct {
		name    string
		tags    []string
		areas   []string
		wantLen int
		wantTag string
	}{
		{"plural tag vs singular area", []string{"no-shows"}, []string{"No-Show Revenue Loss"}, 1, "no-shows"},
		{"case-insensitive equality", []string{"recall"}, []string{"RECALL"}, 1, "recall"},
		{"substring", []string{"missed-calls"}, []string{"Missed calls after 5pm"}, 1, "missed-calls"},
		{"first skill tag wins", []string{"after-hours", "missed-calls"}, []string{"Missed Calls", "After-Hours Calls"}, 2, "after-hours"},
		{"no match", []string{"pending-quotes"}, []string{"No-Show Revenue Loss"}, 0, ""},
		{"blank area ignored", []string{"recall"}, []string{"  "}, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var records []models.LossRecord
			for _, a := range tt.areas {
				records = append(records, models.LossRecord{Area: a, ResultMonthly: 100})
			}
			matched, tag := MatchLossRecords(models.Skill{Tags: tt.tags}, records)
			assert.Len(t, matched, tt.wantLen)
			assert.Equal(t, tt.wantTag, tag)
		})
	}
}

// ==========================
// Estimate Tests
// ==========================

func TestEstimate_NoLossNoROI_IsZero(t *testing.T) {
	res := Estimate(Input{Skill: noShowSkill(nil), Rates: DefaultRecoveryRates(), Evidence: reported(1)})

	assert.Equal(t, 0.0, res.MonthlyImpact)
	assert.Empty(t, res.Formula)
	require.Len(t, res.Assumptions, 1)
	assert.Equal(t, BaseConfidence, res.Confidence)
}

func TestEstimate_ROIWithoutLoss_UsesLowBound(t *testing.T) {
	res := Estimate(Input{
		Skill:    noShowSkill(&models.ROIRange{Low: 1500, High: 4000}),
		Rates:    DefaultRecoveryRates(),
		Evidence: reported(1),
	})

	assert.Equal(t, 1500.0, res.MonthlyImpact)
	assert.True(t, res.UsedROI)
	assert.Equal(t, "1500.00 = 1500.00", res.Formula)
	assert.NotEmpty(t, res.Assumptions)
}

func TestEstimate_LossRecordWithRecoveryRate(t *testing.T) {
	records := []models.LossRecord{{Area: "No-Show Revenue Loss", ResultMonthly: 5000}}

	res := Estimate(Input{Skill: noShowSkill(nil), Records: records, Rates: DefaultRecoveryRates(), Evidence: reported(1)})

	assert.Equal(t, 3000.0, res.MonthlyImpact)
	assert.Equal(t, 0.60, res.RecoveryRate)
	assert.Equal(t, 5000.0, res.LossBound)
	assert.Equal(t, "min(0.60 × 5000.00, 5000.00) = 3000.00", res.Formula)
	// base 50 + loss match 20 + corroboration (1 signal + 1 record) 15
	assert.Equal(t, 85, res.Confidence)
}

func TestEstimate_TighterROIBoundWins(t *testing.T) {
	records := []models.LossRecord{{Area: "No-Show Revenue Loss", ResultMonthly: 5000}}

	res := Estimate(Input{
		Skill:    noShowSkill(&models.ROIRange{Low: 1500, High: 4000}),
		Records:  records,
		Rates:    DefaultRecoveryRates(),
		Evidence: reported(1),
	})
	assert.Equal(t, 1500.0, res.MonthlyImpact)

	loose := Estimate(Input{
		Skill:    noShowSkill(&models.ROIRange{Low: 4500, High: 9000}),
		Records:  records,
		Rates:    DefaultRecoveryRates(),
		Evidence: reported(1),
	})
	assert.Equal(t, 3000.0, loose.MonthlyImpact)
}

func TestEstimate_NeverExceedsMatchedLoss(t *testing.T) {
	records := []models.LossRecord{{Area: "No-Show Revenue Loss", ResultMonthly: 200}}

	res := Estimate(Input{
		Skill:    noShowSkill(&models.ROIRange{Low: 1500, High: 4000}),
		Records:  records,
		Rates:    RecoveryRates{},
		Evidence: reported(0),
	})

	assert.Equal(t, 200.0, res.MonthlyImpact)
	assert.LessOrEqual(t, res.MonthlyImpact, res.LossBound)
}

func TestEstimate_MissingRateWithoutROI_IsZero(t *testing.T) {
	records := []models.LossRecord{{Area: "No-Show Revenue Loss", ResultMonthly: 5000}}

	res := Estimate(Input{Skill: noShowSkill(nil), Records: records, Rates: RecoveryRates{}, Evidence: reported(0)})

	assert.Equal(t, 0.0, res.MonthlyImpact)
	assert.Empty(t, res.Formula)
	assert.Contains(t, res.Assumptions[0], "No recovery rate")
}

func TestEstimate_Confidence(t *testing.T) {
	records := []models.LossRecord{{Area: "No-Show Revenue Loss", ResultMonthly: 1000}}

	tests := []struct {
		name     string
		records  []models.LossRecord
		evidence Evidence
		want     int
	}{
		{"base only", nil, reported(1), 50},
		{"corroborated by two signals", nil, reported(2), 65},
		{"inferred", nil, Evidence{}, 30},
		{"loss match, corroborated", records, reported(2), 85},
		{"loss match, inferred", records, Evidence{}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Estimate(Input{Skill: noShowSkill(nil), Records: tt.records, Rates: DefaultRecoveryRates(), Evidence: tt.evidence})
			assert.Equal(t, tt.want, res.Confidence)
			assert.GreaterOrEqual(t, res.Confidence, 0)
			assert.LessOrEqual(t, res.Confidence, MaxConfidence)
		})
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0, ClampConfidence(-15))
	assert.Equal(t, 95, ClampConfidence(105))
	assert.Equal(t, 70, ClampConfidence(70))
}

func TestRecoveryRates_Merge(t *testing.T) {
	rates := DefaultRecoveryRates().Merge(map[string]float64{
		"no-shows":  0.5,
		"new-thing": 0.1,
		"broken":    1.5,
	})

	assert.Equal(t, 0.5, rates["no-shows"])
	assert.Equal(t, 0.1, rates["new-thing"])
	_, ok := rates.Lookup("broken")
	assert.False(t, ok)
	assert.Equal(t, 0.60, DefaultRecoveryRates()["no-shows"])
}
