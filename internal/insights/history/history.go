// internal/insights/history/history.go
package history

import (
	"context"
	"errors"
	"sort"
	"sync"

	"audit-insights/internal/insights/assemble"
)

var ErrHistoryUnavailable = errors.New("HISTORY_UNAVAILABLE")

// Store remembers which insight keys each audit has already been shown.
type Store interface {
	// SeenKeys returns the keys emitted for auditID by sections other than
	// excludeSection, sorted and deduplicated.
	SeenKeys(ctx context.Context, auditID, excludeSection string) ([]string, error)
	// Record stores keys as emitted for (auditID, sectionID). Repeated keys
	// are ignored.
	Record(ctx context.Context, auditID, sectionID string, keys []string) error
}

type MemoryStore struct {
	mu     sync.RWMutex
	audits map[string]map[string]map[string]struct{} // audit -> section -> keys
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{audits: make(map[string]map[string]map[string]struct{})}
}

func (m *MemoryStore) SeenKeys(_ context.Context, auditID, excludeSection string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := make(map[string]struct{})
	for section, keys := range m.audits[auditID] {
		if section == excludeSection {
			continue
		}
		for k := range keys {
			set[k] = struct{}{}
		}
	}
	return sortedKeys(set), nil
}

func (m *MemoryStore) Record(_ context.Context, auditID, sectionID string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sections, ok := m.audits[auditID]
	if !ok {
		sections = make(map[string]map[string]struct{})
		m.audits[auditID] = sections
	}
	set, ok := sections[sectionID]
	if !ok {
		set = make(map[string]struct{})
		sections[sectionID] = set
	}
	for _, k := range keys {
		if nk := assemble.NormalizeKey(k); nk != "" {
			set[nk] = struct{}{}
		}
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MergeKeys returns the union of a and b, normalized, sorted and deduplicated.
func MergeKeys(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, k := range list {
			if nk := assemble.NormalizeKey(k); nk != "" {
				set[nk] = struct{}{}
			}
		}
	}
	return sortedKeys(set)
}
