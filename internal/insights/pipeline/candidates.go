// internal/insights/pipeline/candidates.go
package pipeline

import (
	"fmt"
	"sort"
	"strconv"

	"audit-insights/internal/insights/assemble"
	"audit-insights/internal/insights/impact"
	"audit-insights/internal/insights/narrative"
	"audit-insights/internal/insights/sections"
	"audit-insights/internal/models"
)

const (
	bandMedium = 500
	bandHigh   = 2000
	bandVery   = 5000
)

// signalReading is the evaluation of one problem's benchmark signals
// against the snapshot.
type signalReading struct {
	fired     int
	severe    bool
	reported  bool
	benchmark string
	evidence  []string
	used      []string
	missing   []string
}

func readSignals(snapshot models.AuditSnapshot, signals []sections.Signal) signalReading {
	r := signalReading{used: []string{}, missing: []string{}}
	for _, sig := range signals {
		value, ok := snapshot.Number(sig.Key)
		if !ok {
			r.missing = append(r.missing, sig.Key)
			continue
		}
		r.reported = true
		r.used = append(r.used, sig.Key)

		if sig.Fires(value) {
			r.fired++
			r.evidence = append(r.evidence, fmt.Sprintf("%s = %s (%s)", sig.Key, strconv.FormatFloat(value, 'f', -1, 64), sig.Benchmark))
			if r.benchmark == "" {
				r.benchmark = sig.Benchmark
			}
			if sig.Severe(value) {
				r.severe = true
			}
		}
	}
	if r.benchmark == "" && len(signals) > 0 {
		r.benchmark = signals[0].Benchmark
	}
	return r
}

// candidate is an estimated insight plus the context its narrative needs.
type candidate struct {
	insight models.Insight
	meta    narrative.Candidate
}

func buildCandidate(
	section sections.Section,
	problem sections.Problem,
	skill models.Skill,
	reading signalReading,
	est impact.Result,
	currency string,
	claims []string,
) candidate {
	dataUsed := append([]string{}, reading.used...)
	if est.LossBound > 0 {
		dataUsed = append(dataUsed, "lossSummary")
	}

	key := assemble.NormalizeKey(problem.Tag)
	in := models.Insight{
		Key:           key,
		SectionID:     section.ID,
		Category:      problem.Category,
		Title:         problem.Title,
		ImpactBand:    impactBand(est.MonthlyImpact),
		Urgency:       urgency(est.MonthlyImpact, reading),
		MonthlyImpact: est.MonthlyImpact,
		Currency:      currency,
		RecoveryRate:  est.RecoveryRate,
		Formula:       est.Formula,
		Assumptions:   est.Assumptions,
		Confidence:    est.Confidence,
		Skill:         models.SkillReference{Name: skill.Name, ProofPoints: []string{}},
		ActionItems:   append([]string{}, problem.ActionItems...),
		Benchmark:     reading.benchmark,
		DataUsed:      dataUsed,
		DataMissing:   append([]string{}, reading.missing...),
	}

	return candidate{
		insight: in,
		meta: narrative.Candidate{
			Key:           key,
			SectionID:     section.ID,
			Problem:       problem.Title,
			Summary:       problem.Summary,
			SkillName:     skill.Name,
			Mechanism:     skill.Mechanism,
			MonthlyImpact: est.MonthlyImpact,
			Currency:      currency,
			Benchmark:     reading.benchmark,
			Evidence:      reading.evidence,
			ActionItems:   problem.ActionItems,
			Claims:        claims,
		},
	}
}

// keep reports whether an estimate is worth surfacing: a positive impact,
// or a benchmark signal that fired even though no amount can be claimed.
func keep(est impact.Result, reading signalReading) bool {
	return est.MonthlyImpact > 0 || reading.fired > 0
}

// rank orders candidates by impact, then confidence, both descending.
// Ties keep their input order.
func rank(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i].insight, cands[j].insight
		if a.MonthlyImpact != b.MonthlyImpact {
			return a.MonthlyImpact > b.MonthlyImpact
		}
		return a.Confidence > b.Confidence
	})
}

func impactBand(monthly float64) models.ImpactBand {
	switch {
	case monthly < bandMedium:
		return models.ImpactLow
	case monthly < bandHigh:
		return models.ImpactMedium
	case monthly < bandVery:
		return models.ImpactHigh
	default:
		return models.ImpactVeryHigh
	}
}

func urgency(monthly float64, reading signalReading) models.Urgency {
	switch {
	case monthly >= bandHigh || reading.severe:
		return models.UrgencyHigh
	case monthly >= bandMedium || reading.fired > 0:
		return models.UrgencyMedium
	default:
		return models.UrgencyLow
	}
}
