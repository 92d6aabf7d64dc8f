// internal/insights/impact/estimator.go
package impact

import (
	"fmt"
	"math"

	"audit-insights/internal/models"
)

const (
	BaseConfidence         = 50
	LossMatchBonus         = 20
	CorroborationBonus     = 15
	InferredPenalty        = 20
	MaxConfidence          = 95
	MinCorroboratingSignal = 2
)

// Evidence describes how directly the audit responses support the problem.
type Evidence struct {
	// FiredSignals counts benchmark signals past their threshold.
	FiredSignals int
	// Reported is false when none of the problem's signal keys were answered.
	Reported bool
}

type Input struct {
	Skill    models.Skill
	Records  []models.LossRecord
	Rates    RecoveryRates
	Evidence Evidence
}

// Result is the outcome of one estimate.
type Result struct {
	MonthlyImpact float64
	Confidence    int
	RecoveryRate  float64
	MatchedTag    string
	Formula       string
	Assumptions   []string
	// LossBound is the sum of matched records; zero when none matched.
	LossBound float64
	UsedROI   bool
}

// Estimate computes a conservative monthly impact. An explicit ROI range
// contributes its low bound; matched loss records contribute rate x loss, and
// the result never exceeds the matched loss itself.
func Estimate(in Input) Result {
	matched, tag := MatchLossRecords(in.Skill, in.Records)
	lossSum := models.SumMonthly(matched)
	rate, hasRate := in.Rates.Lookup(tag)

	est := Result{
		MatchedTag:   tag,
		RecoveryRate: rate,
		LossBound:    lossSum,
	}

	var candidate float64
	hasCandidate := false
	var terms []string

	if in.Skill.ROI != nil {
		candidate = in.Skill.ROI.Low
		hasCandidate = true
		est.UsedROI = true
		terms = append(terms, money(in.Skill.ROI.Low))
	}

	if len(matched) > 0 {
		recovered := rate * lossSum
		switch {
		case !hasCandidate:
			candidate = recovered
			hasCandidate = true
			terms = append(terms, fmt.Sprintf("%.2f × %s", rate, money(lossSum)))
		case hasRate:
			candidate = math.Min(candidate, recovered)
			terms = append(terms, fmt.Sprintf("%.2f × %s", rate, money(lossSum)))
		}
		candidate = math.Min(candidate, lossSum)
		terms = append(terms, money(lossSum))
	}

	if hasCandidate {
		est.MonthlyImpact = roundCents(math.Max(candidate, 0))
		if len(matched) > 0 && est.MonthlyImpact > lossSum {
			est.MonthlyImpact = lossSum
		}
	}

	est.Confidence = confidence(len(matched) > 0, in.Evidence.FiredSignals+len(matched), in.Evidence.Reported)

	if est.MonthlyImpact > 0 {
		est.Formula = formula(terms, est.MonthlyImpact)
		est.Assumptions = assumptions(in, matched, rate, hasRate)
	} else {
		est.Formula = ""
		est.Assumptions = []string{zeroReason(in.Skill, matched, hasRate)}
	}

	return est
}

func confidence(lossMatched bool, corroborating int, reported bool) int {
	score := BaseConfidence
	if lossMatched {
		score += LossMatchBonus
	}
	if corroborating >= MinCorroboratingSignal {
		score += CorroborationBonus
	}
	if !reported {
		score -= InferredPenalty
	}
	return ClampConfidence(score)
}

// ClampConfidence bounds a score to [0, MaxConfidence].
func ClampConfidence(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxConfidence {
		return MaxConfidence
	}
	return score
}

func formula(terms []string, result float64) string {
	if len(terms) == 1 {
		return fmt.Sprintf("%s = %s", terms[0], money(result))
	}
	expr := "min("
	for i, t := range terms {
		if i > 0 {
			expr += ", "
		}
		expr += t
	}
	return fmt.Sprintf("%s) = %s", expr, money(result))
}

func assumptions(in Input, matched []models.LossRecord, rate float64, hasRate bool) []string {
	var out []string
	if in.Skill.ROI != nil {
		out = append(out, fmt.Sprintf("Uses the low end of the %s range (%s to %s per month)",
			in.Skill.Name, money(in.Skill.ROI.Low), money(in.Skill.ROI.High)))
	}
	if len(matched) > 0 {
		if hasRate {
			out = append(out, fmt.Sprintf("Assumes %.0f%% of the reported loss is recoverable", rate*100))
		}
		for _, rec := range matched {
			out = append(out, fmt.Sprintf("Reported loss %q of %s per month", rec.Area, money(rec.ResultMonthly)))
		}
		out = append(out, "Impact is capped at the reported loss")
	}
	if !in.Evidence.Reported {
		out = append(out, "Relies on inferred rather than directly reported figures")
	}
	return out
}

func zeroReason(skill models.Skill, matched []models.LossRecord, hasRate bool) string {
	switch {
	case skill.ROI == nil && len(matched) == 0:
		return "No ROI range and no matching reported loss, so no monetary impact is claimed"
	case len(matched) > 0 && !hasRate:
		return "No recovery rate is defined for this problem area, so no monetary impact is claimed"
	default:
		return "Reported figures do not support a positive monetary impact"
	}
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
