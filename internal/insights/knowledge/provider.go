// internal/insights/knowledge/provider.go
package knowledge

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"audit-insights/internal/models"
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

type snapshot struct {
	catalog  *Catalog
	loadedAt time.Time
}

// DefaultLoadTimeout bounds a single catalog load.
const DefaultLoadTimeout = 10 * time.Second

// Provider serves slices from a periodically reloaded catalog snapshot.
// Concurrent reloads are coalesced. A failed reload keeps the previous
// snapshot. When nothing was ever loaded the caller gets an empty catalog
// and the next caller tries again.
type Provider struct {
	source      Source
	refresh     time.Duration
	loadTimeout time.Duration
	logger      Logger
	now         func() time.Time

	current atomic.Pointer[snapshot]
	group   singleflight.Group
}

// NewProvider creates a provider. A refresh of zero loads the catalog once.
func NewProvider(source Source, refresh time.Duration, log Logger) *Provider {
	return &Provider{
		source:      source,
		refresh:     refresh,
		loadTimeout: DefaultLoadTimeout,
		logger:      log,
		now:         time.Now,
	}
}

// Catalog returns the current snapshot, loading it first when missing or stale.
func (p *Provider) Catalog(ctx context.Context) *Catalog {
	if snap := p.current.Load(); snap != nil && !p.stale(snap) {
		return snap.catalog
	}

	v, _, _ := p.group.Do("catalog", func() (interface{}, error) {
		if snap := p.current.Load(); snap != nil && !p.stale(snap) {
			return snap.catalog, nil
		}
		return p.load(ctx), nil
	})
	return v.(*Catalog)
}

// Slice applies Slice to the current catalog.
func (p *Provider) Slice(ctx context.Context, vertical models.Vertical, tags []string) Result {
	return Slice(p.Catalog(ctx), vertical, tags)
}

// Reload forces a load from the source.
func (p *Provider) Reload(ctx context.Context) *Catalog {
	v, _, _ := p.group.Do("catalog", func() (interface{}, error) {
		return p.load(ctx), nil
	})
	return v.(*Catalog)
}

func (p *Provider) stale(snap *snapshot) bool {
	return p.refresh > 0 && p.now().Sub(snap.loadedAt) >= p.refresh
}

// load runs detached from the triggering request: the snapshot is shared,
// so one caller being cancelled must not decide what every other caller sees.
func (p *Provider) load(ctx context.Context) *Catalog {
	previous := p.current.Load()

	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.loadTimeout)
	defer cancel()

	catalog, err := p.source.Load(loadCtx)
	if err != nil || catalog == nil {
		fields := map[string]interface{}{}
		if err != nil {
			fields["error"] = err.Error()
		}
		if previous == nil {
			p.logger.Warn("catalog load failed, no snapshot to serve", fields)
			return &Catalog{}
		}
		p.logger.Warn("catalog load failed, serving previous snapshot", fields)
		catalog = previous.catalog
	} else {
		p.logger.Info("catalog loaded", map[string]interface{}{
			"version":  catalog.Version,
			"skills":   len(catalog.Skills),
			"claims":   len(catalog.Claims),
			"rejected": len(catalog.Issues),
		})
	}

	p.current.Store(&snapshot{catalog: catalog, loadedAt: p.now()})
	return catalog
}
