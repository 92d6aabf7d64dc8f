// internal/insights/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"audit-insights/internal/common/metrics"
	"audit-insights/internal/models"
)

// Key identifies one audit section. Requests sharing a key supersede each other.
type Key struct {
	AuditID   string
	SectionID string
}

type State string

const (
	StateIdle     State = "idle"
	StateInFlight State = "in-flight"
	StateFailed   State = "failed"
)

// Status answers whether generation is running for a key or whether the
// last attempt failed.
type Status struct {
	State     State      `json:"state"`
	LastError string     `json:"lastError,omitempty"`
	FailedAt  *time.Time `json:"failedAt,omitempty"`
}

// Func computes a response. It must return promptly once ctx is cancelled.
type Func func(ctx context.Context) (*models.GenerateResponse, error)

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

type handle struct {
	gen    uint64
	cancel context.CancelFunc
}

type failure struct {
	message string
	at      time.Time
}

// Orchestrator tracks at most one in-flight request per key. Submitting a
// request cancels the previous one for the same key; only the newest
// request may change the key's status.
type Orchestrator struct {
	logger Logger
	now    func() time.Time

	mu       sync.Mutex
	gen      uint64
	inflight map[Key]*handle
	failures map[Key]failure
}

func New(log Logger) *Orchestrator {
	return &Orchestrator{
		logger:   log,
		now:      time.Now,
		inflight: make(map[Key]*handle),
		failures: make(map[Key]failure),
	}
}

// Submit runs fn under a cancellation token registered for key.
//
// A request that is superseded or cancelled resolves to an empty response
// with a nil error, and whatever fn eventually returns is discarded. A
// failure of the current request, including an expired deadline, is
// returned to the caller and recorded for Status. There are no automatic
// retries.
func (o *Orchestrator) Submit(ctx context.Context, key Key, fn Func) (*models.GenerateResponse, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	gen := o.register(key, cancel)
	metrics.InsightsInFlight.Inc()
	defer metrics.InsightsInFlight.Dec()

	resp, err := fn(runCtx)
	if err == nil && resp == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		err = runCtx.Err()
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	current := false
	if h, ok := o.inflight[key]; ok && h.gen == gen {
		current = true
		delete(o.inflight, key)
	}

	fields := map[string]interface{}{
		"auditId":    key.AuditID,
		"sectionId":  key.SectionID,
		"generation": gen,
	}

	switch {
	case !current:
		o.logger.Debug("discarding superseded request", fields)
		metrics.InsightRequests.WithLabelValues(key.SectionID, metrics.OutcomeCancelled).Inc()
		return emptyResponse(key), nil

	case errors.Is(runCtx.Err(), context.Canceled) && (err != nil || resp == nil):
		o.logger.Debug("request cancelled", fields)
		metrics.InsightRequests.WithLabelValues(key.SectionID, metrics.OutcomeCancelled).Inc()
		return emptyResponse(key), nil

	case err != nil:
		if errors.Is(err, context.Canceled) {
			metrics.InsightRequests.WithLabelValues(key.SectionID, metrics.OutcomeCancelled).Inc()
			return emptyResponse(key), nil
		}
		fields["error"] = err.Error()
		o.logger.Warn("request failed", fields)
		o.failures[key] = failure{message: err.Error(), at: o.now()}
		metrics.InsightRequests.WithLabelValues(key.SectionID, metrics.OutcomeFailed).Inc()
		return nil, err
	}

	delete(o.failures, key)
	metrics.InsightRequests.WithLabelValues(key.SectionID, metrics.OutcomeResolved).Inc()
	if resp == nil {
		return emptyResponse(key), nil
	}
	return resp, nil
}

func (o *Orchestrator) register(key Key, cancel context.CancelFunc) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.gen++
	if prev, ok := o.inflight[key]; ok {
		prev.cancel()
		o.logger.Debug("superseding in-flight request", map[string]interface{}{
			"auditId":    key.AuditID,
			"sectionId":  key.SectionID,
			"generation": prev.gen,
		})
	}
	o.inflight[key] = &handle{gen: o.gen, cancel: cancel}
	return o.gen
}

// Status reports the key's state without triggering generation.
func (o *Orchestrator) Status(key Key) Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.inflight[key]; ok {
		return Status{State: StateInFlight}
	}
	if f, ok := o.failures[key]; ok {
		at := f.at
		return Status{State: StateFailed, LastError: f.message, FailedAt: &at}
	}
	return Status{State: StateIdle}
}

// InFlight returns the number of keys with a running request.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inflight)
}

// CancelAll signals every in-flight request. Used on shutdown.
func (o *Orchestrator) CancelAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, h := range o.inflight {
		h.cancel()
	}
}

func emptyResponse(key Key) *models.GenerateResponse {
	return &models.GenerateResponse{
		AuditID:   key.AuditID,
		SectionID: key.SectionID,
		Insights:  []models.Insight{},
	}
}
