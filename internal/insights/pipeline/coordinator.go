// internal/insights/pipeline/coordinator.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"audit-insights/internal/common/metrics"
	"audit-insights/internal/common/validation"
	"audit-insights/internal/insights/assemble"
	"audit-insights/internal/insights/cache"
	"audit-insights/internal/insights/impact"
	"audit-insights/internal/insights/knowledge"
	"audit-insights/internal/insights/narrative"
	"audit-insights/internal/insights/sections"
	"audit-insights/internal/models"
)

var tracer = otel.Tracer("audit-insights/internal/insights/pipeline")

var (
	ErrRemoteCallFailed  = narrative.ErrRemoteCallFailed
	ErrRemoteCallTimeout = narrative.ErrRemoteCallTimeout
	ErrCancelled         = errors.New("CANCELLED")
)

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Catalog serves vertical- and tag-filtered knowledge slices.
type Catalog interface {
	Slice(ctx context.Context, vertical models.Vertical, tags []string) knowledge.Result
}

// Coordinator generates the insights for one completed audit section.
type Coordinator struct {
	config   Config
	catalog  Catalog
	cache    cache.Store
	narrator narrative.Narrator
	logger   Logger
	now      func() time.Time
	newID    func() string

	computations atomic.Int64
}

func NewCoordinator(config Config, catalog Catalog, store cache.Store, narrator narrative.Narrator, log Logger) *Coordinator {
	if narrator == nil {
		narrator = narrative.TemplateNarrator{}
	}
	return &Coordinator{
		config:   config.withDefaults(),
		catalog:  catalog,
		cache:    store,
		narrator: narrator,
		logger:   log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Computations returns how many requests went past the cache.
func (c *Coordinator) Computations() int64 {
	return c.computations.Load()
}

// Generate runs gate, cache lookup, slice, estimate, assemble, narrate and
// re-validation for req. Insufficient data yields an empty response without
// touching the cache. Cancellation is observed before the narrative call
// and before the cache write.
func (c *Coordinator) Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	auditID, sectionID := req.Snapshot.AuditID, req.Snapshot.SectionID

	ctx, span := tracer.Start(ctx, "insights.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("audit.id", auditID),
		attribute.String("audit.section", sectionID),
		attribute.String("business.vertical", string(req.Business.Vertical)),
	)

	start := c.now()
	defer func() {
		metrics.InsightGenerationDuration.WithLabelValues(sectionID).Observe(time.Since(start).Seconds())
	}()

	log := map[string]interface{}{"auditId": auditID, "sectionId": sectionID}

	if count := req.Snapshot.MeaningfulCount(); count < c.config.MinMeaningfulResponses {
		c.logger.Debug("gate not met", merge(log, map[string]interface{}{
			"meaningful": count,
			"required":   c.config.MinMeaningfulResponses,
		}))
		metrics.InsightRequests.WithLabelValues(sectionID, metrics.OutcomeGated).Inc()
		span.SetAttributes(attribute.Bool("insights.gated", true))
		return emptyResponse(auditID, sectionID), nil
	}

	section, err := sections.Resolve(sectionID, req.Business.Vertical)
	if err != nil {
		verr := &validation.ValidationError{Field: "snapshot.sectionId", Message: err.Error(), Code: "INVALID_SECTION"}
		return nil, fail(span, verr)
	}

	key := cache.Key(cache.KeyFor(req))
	if cached := c.lookup(ctx, key, log); cached != nil {
		span.SetAttributes(attribute.Bool("insights.cached", true))
		return cached, nil
	}

	c.computations.Add(1)

	cands := c.estimate(ctx, req, section, log)
	rank(cands)

	byKey := make(map[string]narrative.Candidate, len(cands))
	insights := make([]models.Insight, 0, len(cands))
	for _, cand := range cands {
		insights = append(insights, cand.insight)
		if _, ok := byKey[cand.insight.Key]; !ok {
			byKey[cand.insight.Key] = cand.meta
		}
	}
	assembled := assemble.Assemble(insights, req.PreviousKeys, c.config.MaxTotal, c.config.MaxPerSection)
	span.SetAttributes(attribute.Int("insights.candidates", len(cands)), attribute.Int("insights.assembled", len(assembled)))

	if len(assembled) == 0 {
		resp := emptyResponse(auditID, sectionID)
		if err := c.store(ctx, key, resp, c.config.EmptyCacheTTL, log); err != nil {
			return nil, fail(span, err)
		}
		return resp, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fail(span, cancelled(ctx))
	}

	nreq := &narrative.Request{Business: req.Business, SectionTitle: section.Title}
	for _, in := range assembled {
		nreq.Candidates = append(nreq.Candidates, byKey[in.Key])
	}

	narratives, err := c.narrate(ctx, nreq, log)
	if err != nil {
		return nil, fail(span, err)
	}
	narratives = narrative.Complete(nreq, narratives)

	createdAt := c.now().UTC()
	for i := range assembled {
		n := narratives[i]
		assembled[i].ID = c.newID()
		assembled[i].Title = n.Title
		assembled[i].Description = n.Description
		assembled[i].Skill.Rationale = n.Rationale
		assembled[i].Skill.ProofPoints = n.ProofPoints
		assembled[i].ActionItems = n.ActionItems
		assembled[i].CreatedAt = createdAt
	}

	resp := &models.GenerateResponse{AuditID: auditID, SectionID: sectionID, Insights: assembled}
	if err := c.store(ctx, key, resp, c.config.CacheTTL, log); err != nil {
		return nil, fail(span, err)
	}

	for _, in := range assembled {
		metrics.InsightsEmitted.WithLabelValues(string(in.Category)).Inc()
	}
	c.logger.Info("insights generated", merge(log, map[string]interface{}{
		"count": len(assembled),
		"keys":  resp.Keys(),
	}))
	return resp, nil
}

func (c *Coordinator) lookup(ctx context.Context, key string, log map[string]interface{}) *models.GenerateResponse {
	if c.cache == nil {
		return nil
	}

	ctx, span := tracer.Start(ctx, "insights.Cache")
	defer span.End()
	span.SetAttributes(attribute.String("cache.op", "get"))

	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache lookup failed, computing", merge(log, map[string]interface{}{"error": err.Error()}))
		span.RecordError(err)
		metrics.InsightCacheLookups.WithLabelValues("error").Inc()
		return nil
	}
	if !ok {
		metrics.InsightCacheLookups.WithLabelValues("miss").Inc()
		return nil
	}

	resp, err := validation.ParseResponse(raw)
	if err != nil {
		c.logger.Warn("discarding invalid cache entry", merge(log, map[string]interface{}{"error": err.Error()}))
		metrics.InsightCacheLookups.WithLabelValues("invalid").Inc()
		return nil
	}

	metrics.InsightCacheLookups.WithLabelValues("hit").Inc()
	metrics.InsightRequests.WithLabelValues(resp.SectionID, metrics.OutcomeCached).Inc()
	return resp
}

// store re-validates resp and writes it to the cache. A validation failure
// is returned; a cache failure is only logged.
func (c *Coordinator) store(ctx context.Context, key string, resp *models.GenerateResponse, ttl time.Duration, log map[string]interface{}) error {
	raw, err := validation.EncodeResponse(resp)
	if err != nil {
		c.logger.Error("response failed validation", merge(log, map[string]interface{}{"error": err.Error()}))
		return err
	}

	if err := ctx.Err(); err != nil {
		return cancelled(ctx)
	}
	if c.cache == nil {
		return nil
	}

	ctx, span := tracer.Start(ctx, "insights.Cache")
	defer span.End()
	span.SetAttributes(attribute.String("cache.op", "put"), attribute.Int64("cache.ttl_seconds", int64(ttl.Seconds())))

	if err := c.cache.Put(ctx, key, raw, ttl); err != nil {
		c.logger.Warn("cache write failed", merge(log, map[string]interface{}{"error": err.Error()}))
		span.RecordError(err)
	}
	return nil
}

// estimate builds one candidate per reachable (problem, skill) pair. A
// failing candidate is logged and skipped.
func (c *Coordinator) estimate(ctx context.Context, req *models.GenerateRequest, section sections.Section, log map[string]interface{}) []candidate {
	vertical := req.Business.Vertical
	slice := c.slice(ctx, vertical, section.Tags)

	var records []models.LossRecord
	if req.LossSummary != nil {
		records = req.LossSummary.Records
	}

	var out []candidate
	for _, tag := range section.Tags {
		problem := sections.ProblemFor(tag)
		reading := readSignals(req.Snapshot, section.SignalsFor(tag))

		var claims []string
		for _, skill := range slice.Skills {
			if !skill.HasTag(tag) {
				continue
			}
			if claims == nil {
				claims = c.slice(ctx, vertical, []string{tag}).ApprovedClaims
			}

			cand, ok, err := c.estimateOne(section, problem, skill, reading, records, req.Business.Currency, claims)
			if err != nil {
				c.logger.Warn("skipping candidate", merge(log, map[string]interface{}{
					"tag":   tag,
					"skill": skill.Name,
					"error": err.Error(),
				}))
				continue
			}
			if ok {
				out = append(out, cand)
			}
		}
	}
	return out
}

func (c *Coordinator) estimateOne(
	section sections.Section,
	problem sections.Problem,
	skill models.Skill,
	reading signalReading,
	records []models.LossRecord,
	currency string,
	claims []string,
) (cand candidate, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("estimate panicked: %v", r)
		}
	}()

	est := impact.Estimate(impact.Input{
		Skill:   skill,
		Records: records,
		Rates:   c.config.RecoveryRates,
		Evidence: impact.Evidence{
			FiredSignals: reading.fired,
			Reported:     reading.reported,
		},
	})
	if !keep(est, reading) {
		return candidate{}, false, nil
	}
	return buildCandidate(section, problem, skill, reading, est, currency, claims), true, nil
}

func (c *Coordinator) slice(ctx context.Context, vertical models.Vertical, tags []string) (result knowledge.Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("knowledge slice panicked", map[string]interface{}{"error": fmt.Sprint(r)})
			result = knowledge.Result{Skills: []models.Skill{}, ApprovedClaims: []string{}}
		}
	}()
	if c.catalog == nil {
		return knowledge.Result{Skills: []models.Skill{}, ApprovedClaims: []string{}}
	}
	return c.catalog.Slice(ctx, vertical, tags)
}

// narrate calls the narrator with a per-attempt deadline and a fixed
// backoff between attempts.
func (c *Coordinator) narrate(ctx context.Context, req *narrative.Request, log map[string]interface{}) ([]narrative.Narrative, error) {
	ctx, span := tracer.Start(ctx, "insights.Narrate")
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= c.config.RemoteMaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(c.config.RemoteBackoff):
			case <-ctx.Done():
				return nil, cancelled(ctx)
			}
		}
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.config.RemoteTimeout)
		out, err := c.narrator.Narrate(attemptCtx, req)
		cancel()

		if err == nil {
			metrics.InsightRemoteCalls.WithLabelValues("success").Inc()
			span.SetAttributes(attribute.Int("narrate.attempts", attempt))
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}

		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrRemoteCallTimeout) {
			err = fmt.Errorf("%w: %v", ErrRemoteCallTimeout, err)
		}
		lastErr = err

		outcome := "failure"
		if errors.Is(err, ErrRemoteCallTimeout) {
			outcome = "timeout"
		}
		metrics.InsightRemoteCalls.WithLabelValues(outcome).Inc()
		c.logger.Warn("narrative call failed", merge(log, map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": c.config.RemoteMaxAttempts,
			"error":       err.Error(),
		}))
	}

	span.SetAttributes(attribute.Int("narrate.attempts", c.config.RemoteMaxAttempts))
	if errors.Is(lastErr, ErrRemoteCallTimeout) || errors.Is(lastErr, ErrRemoteCallFailed) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %v", ErrRemoteCallFailed, lastErr)
}

// cancelled maps a done context to the pipeline error: a cancelled parent
// is ErrCancelled, an expired parent deadline is a remote timeout.
func cancelled(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrRemoteCallTimeout, ctx.Err())
	}
	return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func emptyResponse(auditID, sectionID string) *models.GenerateResponse {
	return &models.GenerateResponse{AuditID: auditID, SectionID: sectionID, Insights: []models.Insight{}}
}

func merge(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
