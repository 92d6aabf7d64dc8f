// internal/insights/service/service.go
package service

import (
	"context"

	"audit-insights/internal/insights/history"
	"audit-insights/internal/insights/notify"
	"audit-insights/internal/insights/orchestrator"
	"audit-insights/internal/models"
)

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Generator produces the insights for one request.
type Generator interface {
	Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error)
}

// Service is the entry point shared by the HTTP API and the job worker.
// History and publisher are optional.
type Service struct {
	generator    Generator
	orchestrator *orchestrator.Orchestrator
	history      history.Store
	publisher    notify.Publisher
	logger       Logger
}

func New(generator Generator, orch *orchestrator.Orchestrator, store history.Store, publisher notify.Publisher, log Logger) *Service {
	if publisher == nil {
		publisher = notify.NoopPublisher{}
	}
	return &Service{
		generator:    generator,
		orchestrator: orch,
		history:      store,
		publisher:    publisher,
		logger:       log,
	}
}

// Submit generates insights for req. A newer submission for the same audit
// section cancels this one, which then resolves to an empty response with a
// nil error. Keys already shown for other sections of the audit are added to
// req.PreviousKeys first.
func (s *Service) Submit(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	auditID, sectionID := req.Snapshot.AuditID, req.Snapshot.SectionID
	fields := map[string]interface{}{"auditId": auditID, "sectionId": sectionID}

	if s.history != nil {
		seen, err := s.history.SeenKeys(ctx, auditID, sectionID)
		if err != nil {
			s.logger.Warn("history lookup failed, using request keys only", merge(fields, "error", err.Error()))
		} else if len(seen) > 0 {
			merged := *req
			merged.PreviousKeys = history.MergeKeys(req.PreviousKeys, seen)
			req = &merged
		}
	}

	key := orchestrator.Key{AuditID: auditID, SectionID: sectionID}
	resp, err := s.orchestrator.Submit(ctx, key, func(runCtx context.Context) (*models.GenerateResponse, error) {
		return s.generator.Generate(runCtx, req)
	})
	if err != nil {
		s.logger.Error("insight generation failed", merge(fields, "error", err.Error()))
		return nil, err
	}
	if len(resp.Insights) == 0 {
		return resp, nil
	}

	if s.history != nil {
		if err := s.history.Record(ctx, auditID, sectionID, resp.Keys()); err != nil {
			s.logger.Warn("history record failed", merge(fields, "error", err.Error()))
		}
	}
	if err := s.publisher.Publish(ctx, resp); err != nil {
		s.logger.Warn("event publish failed", merge(fields, "error", err.Error()))
	}
	return resp, nil
}

// Status reports the side-channel state of an audit section.
func (s *Service) Status(auditID, sectionID string) orchestrator.Status {
	return s.orchestrator.Status(orchestrator.Key{AuditID: auditID, SectionID: sectionID})
}

// Shutdown cancels every in-flight request.
func (s *Service) Shutdown() {
	s.orchestrator.CancelAll()
}

func merge(base map[string]interface{}, k string, v interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+1)
	for key, val := range base {
		out[key] = val
	}
	out[k] = v
	return out
}
