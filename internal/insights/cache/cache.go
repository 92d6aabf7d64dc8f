// internal/insights/cache/cache.go
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"audit-insights/internal/models"
)

const KeyPrefix = "insights:"

var ErrCacheUnavailable = errors.New("CACHE_UNAVAILABLE")

// Store holds serialized responses by key. Implementations are safe for
// concurrent use and replace entries wholesale; a value read back is never
// a partial write.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// KeyInput lists every request parameter that affects the generated output.
type KeyInput struct {
	AuditID      string
	SectionID    string
	Currency     string
	Locale       string
	Vertical     models.Vertical
	PreviousKeys []string
	Responses    map[string]interface{}
	LossSummary  *models.LossSummary
}

// KeyFor derives the KeyInput of a request. Responses are folded so a
// repeated key contributes only its last value.
func KeyFor(req *models.GenerateRequest) KeyInput {
	return KeyInput{
		AuditID:      req.Snapshot.AuditID,
		SectionID:    req.Snapshot.SectionID,
		Currency:     req.Business.Currency,
		Locale:       req.Business.Locale,
		Vertical:     req.Business.Vertical,
		PreviousKeys: req.PreviousKeys,
		Responses:    req.Snapshot.Latest(),
		LossSummary:  req.LossSummary,
	}
}

type keyDocument struct {
	AuditID      string                 `json:"a"`
	SectionID    string                 `json:"s"`
	Currency     string                 `json:"c"`
	Locale       string                 `json:"l"`
	Vertical     models.Vertical        `json:"v"`
	PreviousKeys []string               `json:"p"`
	Responses    map[string]interface{} `json:"r"`
	LossSummary  *models.LossSummary    `json:"x"`
}

// Key returns a stable hash of in. Previous keys are order-insensitive and
// map keys are serialized sorted, so equal inputs always hash equally.
func Key(in KeyInput) string {
	prev := append([]string(nil), in.PreviousKeys...)
	sort.Strings(prev)

	doc := keyDocument{
		AuditID:      in.AuditID,
		SectionID:    in.SectionID,
		Currency:     in.Currency,
		Locale:       in.Locale,
		Vertical:     in.Vertical,
		PreviousKeys: prev,
		Responses:    in.Responses,
		LossSummary:  in.LossSummary,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		// Unserializable response values fall back to the identifying fields.
		data = []byte(in.AuditID + "\x00" + in.SectionID + "\x00" + in.Currency + "\x00" + in.Locale)
	}
	sum := sha256.Sum256(data)
	return KeyPrefix + hex.EncodeToString(sum[:])
}
