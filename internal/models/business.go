// internal/models/business.go
package models

type Vertical string

const (
	VerticalDental Vertical = "dental"
	VerticalHVAC   Vertical = "hvac"

	// TargetBoth marks catalog entries that apply to every vertical.
	TargetBoth = "both"
)

func (v Vertical) Valid() bool {
	return v == VerticalDental || v == VerticalHVAC
}

type BusinessContext struct {
	Vertical     Vertical `json:"vertical"`
	BusinessName string   `json:"businessName"`
	Location     string   `json:"location,omitempty"`
	Currency     string   `json:"currency"`
	Locale       string   `json:"locale"`
	Size         int      `json:"size"`
}
