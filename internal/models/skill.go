// internal/models/skill.go
package models

type ROIRange struct {
	Low  float64 `json:"low" yaml:"low" validate:"gte=0"`
	High float64 `json:"high" yaml:"high" validate:"gtefield=Low"`
}

// Skill is a read-only knowledge base entry describing one remediation offering.
type Skill struct {
	Name      string    `json:"name" yaml:"name" validate:"required"`
	Target    string    `json:"target" yaml:"target" validate:"required,oneof=dental hvac both"`
	Problem   string    `json:"problem" yaml:"problem" validate:"required"`
	Mechanism string    `json:"mechanism" yaml:"mechanism"`
	ROI       *ROIRange `json:"roi,omitempty" yaml:"roi,omitempty"`
	Tags      []string  `json:"tags,omitempty" yaml:"tags,omitempty" validate:"dive,required"`
}

func (s Skill) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Claim is an approved proof-point string that narratives may cite.
type Claim struct {
	Text   string   `json:"text" yaml:"text" validate:"required"`
	Target string   `json:"target" yaml:"target" validate:"required,oneof=dental hvac both"`
	Tags   []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}
