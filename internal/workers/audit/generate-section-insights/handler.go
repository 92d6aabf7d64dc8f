// internal/workers/audit/generate-section-insights/handler.go
package generatesectioninsights

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "audit-insights/internal/common/errors"
	"audit-insights/internal/common/logger"
	"audit-insights/internal/common/metrics"
	"audit-insights/internal/common/validation"
	"audit-insights/internal/models"
)

const (
	TaskType = "generate-section-insights"
)

// Submitter runs one generation request for an audit section.
type Submitter interface {
	Submit(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error)
}

// JobRecorder receives per-job outcome measurements.
type JobRecorder interface {
	RecordJobProcessed(ctx context.Context, taskType, status string)
	RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string)
}

// ErrorReporter fails or throws a job according to the error classification.
type ErrorReporter interface {
	HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error)
}

type Handler struct {
	config   *Config
	service  Submitter
	errors   ErrorReporter
	recorder JobRecorder
	logger   logger.Logger
}

func NewHandler(config *Config, service Submitter, errs ErrorReporter, recorder JobRecorder, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		service:  service,
		errors:   errs,
		recorder: recorder,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
		"retries":     job.Retries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, []byte(job.Variables))
	if err != nil {
		h.finish(ctx, start, "failed")
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Classify(err).Code)).Inc()
		h.errors.HandleJobError(ctx, client, job, err)
		return err
	}

	if err := h.completeJob(ctx, client, job, output); err != nil {
		h.finish(ctx, start, "failed")
		return err
	}

	h.finish(ctx, start, "completed")
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	return nil
}

// Execute validates the job variables and generates insights for the section.
func (h *Handler) Execute(ctx context.Context, variables []byte) (*Output, error) {
	req, err := validation.ParseRequestWithDefaults(variables, h.config.Defaults)
	if err != nil {
		return nil, err
	}

	resp, err := h.service.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	output := newOutput(resp)
	h.logger.Info("insights generated", map[string]interface{}{
		"auditId":      req.Snapshot.AuditID,
		"sectionId":    req.Snapshot.SectionID,
		"insightCount": output.InsightCount,
	})
	return output, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return err
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return err
	}
	return nil
}

func (h *Handler) finish(ctx context.Context, start time.Time, status string) {
	elapsed := time.Since(start)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	if h.recorder != nil {
		h.recorder.RecordJobProcessed(ctx, TaskType, status)
		h.recorder.RecordJobDuration(ctx, TaskType, elapsed, status)
	}
}
