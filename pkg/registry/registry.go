// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// StatusCompleted marks an activity whose worker may be started.
const StatusCompleted = "completed"

type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

// Activity describes one Zeebe task type served by this module. Timeout is
// a Go duration string ("30s"); InputSchema and OutputSchema are JSON
// Schema documents for the job variables.
type Activity struct {
	ID                   string          `json:"id"`
	DisplayName          string          `json:"displayName"`
	Description          string          `json:"description"`
	Category             string          `json:"category"`
	Version              string          `json:"version"`
	TaskType             string          `json:"taskType"`
	ImplementationStatus string          `json:"implementationStatus"`
	InputSchema          json.RawMessage `json:"inputSchema,omitempty"`
	OutputSchema         json.RawMessage `json:"outputSchema,omitempty"`
	ErrorCodes           []string        `json:"errorCodes"`
	Timeout              string          `json:"timeout"`
	Retries              int             `json:"retries"`
	Workflows            []string        `json:"workflows"`
	Tags                 []string        `json:"tags"`
}

// JobTimeout parses Timeout. An empty value yields zero.
func (a Activity) JobTimeout() (time.Duration, error) {
	if a.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return 0, fmt.Errorf("activity %s: invalid timeout %q: %w", a.ID, a.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("activity %s: timeout must be positive, got %s", a.ID, a.Timeout)
	}
	return d, nil
}

// Ready reports whether the activity's worker is implemented.
func (a Activity) Ready() bool {
	return a.ImplementationStatus == StatusCompleted
}

// HasErrorCode reports whether code is declared for the activity.
func (a Activity) HasErrorCode(code string) bool {
	for _, c := range a.ErrorCodes {
		if c == code {
			return true
		}
	}
	return false
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode registry %s: %w", path, err)
	}
	return &reg, nil
}

// Validate checks that every activity has an ID, display name, task type
// and category, that IDs and task types are unique, and that timeouts,
// retries, error codes and variable schemas are well formed.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool, len(r.Activities))
	taskTypes := make(map[string]bool, len(r.Activities))
	for _, activity := range r.Activities {
		if activity.ID == "" {
			return fmt.Errorf("activity missing required field: ID")
		}
		if ids[activity.ID] {
			return fmt.Errorf("duplicate activity ID: %s", activity.ID)
		}
		ids[activity.ID] = true

		if activity.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", activity.ID)
		}
		if activity.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: TaskType", activity.ID)
		}
		if taskTypes[activity.TaskType] {
			return fmt.Errorf("duplicate task type: %s", activity.TaskType)
		}
		taskTypes[activity.TaskType] = true

		if activity.Category == "" {
			return fmt.Errorf("activity %s missing required field: Category", activity.ID)
		}
		if _, err := activity.JobTimeout(); err != nil {
			return err
		}
		if activity.Retries < 0 {
			return fmt.Errorf("activity %s: retries must not be negative", activity.ID)
		}
		if err := checkErrorCodes(activity); err != nil {
			return err
		}
		if err := checkSchema(activity.ID, "inputSchema", activity.InputSchema); err != nil {
			return err
		}
		if err := checkSchema(activity.ID, "outputSchema", activity.OutputSchema); err != nil {
			return err
		}
	}
	return nil
}

// FindByTaskType returns the activity registered for taskType.
func (r *ActivityRegistry) FindByTaskType(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

func checkErrorCodes(a Activity) error {
	seen := make(map[string]bool, len(a.ErrorCodes))
	for _, code := range a.ErrorCodes {
		if code == "" {
			return fmt.Errorf("activity %s: empty error code", a.ID)
		}
		if seen[code] {
			return fmt.Errorf("activity %s: duplicate error code %s", a.ID, code)
		}
		seen[code] = true
	}
	return nil
}

func checkSchema(id, field string, raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw)); err != nil {
		return fmt.Errorf("activity %s: invalid %s: %w", id, field, err)
	}
	return nil
}
