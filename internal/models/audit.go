// internal/models/audit.go
package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

type Response struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

type AuditSnapshot struct {
	AuditID        string             `json:"auditId"`
	SectionID      string             `json:"sectionId"`
	Responses      []Response         `json:"responses"`
	ReadinessScore *float64           `json:"readinessScore,omitempty"`
	SectionScores  map[string]float64 `json:"sectionScores,omitempty"`
}

// Latest folds the response list into a map; a repeated key keeps its last value.
func (s AuditSnapshot) Latest() map[string]interface{} {
	latest := make(map[string]interface{}, len(s.Responses))
	for _, r := range s.Responses {
		latest[r.Key] = r.Value
	}
	return latest
}

// MeaningfulCount counts distinct keys whose authoritative value is not null.
func (s AuditSnapshot) MeaningfulCount() int {
	count := 0
	for _, v := range s.Latest() {
		if v != nil {
			count++
		}
	}
	return count
}

// Answered reports whether key has a non-null authoritative value.
func (s AuditSnapshot) Answered(key string) bool {
	v, ok := s.Latest()[key]
	return ok && v != nil
}

// Number returns the authoritative value for key as a float64.
func (s AuditSnapshot) Number(key string) (float64, bool) {
	v, ok := s.Latest()[key]
	if !ok || v == nil {
		return 0, false
	}
	return toFloat(v)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(n, "%")), 64)
		return f, err == nil
	}
	return 0, false
}

type LossRecord struct {
	Area          string   `json:"area"`
	Formula       string   `json:"formula"`
	Assumptions   []string `json:"assumptions"`
	ResultMonthly float64  `json:"resultMonthly"`
	Confidence    int      `json:"confidence"`
}

type LossSummary struct {
	Records      []LossRecord `json:"records"`
	TotalMonthly float64      `json:"totalMonthly"`
}

// SumMonthly adds up the monthly result of every record.
func SumMonthly(records []LossRecord) float64 {
	total := 0.0
	for _, r := range records {
		total += r.ResultMonthly
	}
	return total
}
