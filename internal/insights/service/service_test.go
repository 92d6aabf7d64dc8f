// internal/insights/service/service_test.go
package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"audit-insights/internal/common/logger"
	"audit-insights/internal/insights/history"
	"audit-insights/internal/insights/orchestrator"
	"audit-insights/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type generatorFunc func(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error)

func (f generatorFunc) Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
	return f(ctx, req)
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []*models.GenerateResponse
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, resp *models.GenerateResponse) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, resp)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type failingHistory struct{}

func (failingHistory) SeenKeys(context.Context, string, string) ([]string, error) {
	return nil, history.ErrHistoryUnavailable
}

func (failingHistory) Record(context.Context, string, string, []string) error {
	return history.ErrHistoryUnavailable
}

func createRequest(sectionID string, previous ...string) *models.GenerateRequest {
	return &models.GenerateRequest{
		Business: models.BusinessContext{Vertical: models.VerticalDental, BusinessName: "Bright Smiles", Currency: "USD", Locale: "en-US", Size: 2},
		Snapshot: models.AuditSnapshot{
			AuditID:   "audit-1",
			SectionID: sectionID,
			Responses: []models.Response{{Key: "a", Value: 1.0}, {Key: "b", Value: 2.0}, {Key: "c", Value: 3.0}},
		},
		PreviousKeys: previous,
	}
}

func respond(keys ...string) generatorFunc {
	return func(_ context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
		resp := &models.GenerateResponse{AuditID: req.Snapshot.AuditID, SectionID: req.Snapshot.SectionID, Insights: []models.Insight{}}
		for _, k := range keys {
			resp.Insights = append(resp.Insights, models.Insight{Key: k, SectionID: req.Snapshot.SectionID, Currency: "USD", MonthlyImpact: 100})
		}
		return resp, nil
	}
}

func createService(t *testing.T, gen Generator, store history.Store, pub *recordingPublisher) *Service {
	log := logger.NewTestLogger(t)
	if pub == nil {
		return New(gen, orchestrator.New(log), store, nil, log)
	}
	return New(gen, orchestrator.New(log), store, pub, log)
}

// ==========================
// Tests
// ==========================

func TestSubmit_RecordsAndPublishes(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := history.NewMemoryStore()
	pub := &recordingPublisher{}
	svc := createService(t, respond("no_shows"), store, pub)

	resp, err := svc.Submit(context.Background(), createRequest("scheduling-noshows"))
	require.NoError(t, err)
	assert.Equal(t, []string{"no_shows"}, resp.Keys())

	seen, err := store.SeenKeys(context.Background(), "audit-1", "phone-handling")
	require.NoError(t, err)
	assert.Equal(t, []string{"no_shows"}, seen)
	assert.Equal(t, 1, pub.count())
	assert.Equal(t, orchestrator.StateIdle, svc.Status("audit-1", "scheduling-noshows").State)
}

func TestSubmit_MergesHistoryIntoPreviousKeys(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := history.NewMemoryStore()
	require.NoError(t, store.Record(context.Background(), "audit-1", "phone-handling", []string{"missed_calls"}))
	require.NoError(t, store.Record(context.Background(), "audit-1", "scheduling-noshows", []string{"no_shows"}))

	var got []string
	gen := generatorFunc(func(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
		got = req.PreviousKeys
		return respond()(ctx, req)
	})
	svc := createService(t, gen, store, nil)

	req := createRequest("scheduling-noshows", "recall")
	_, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"missed_calls", "recall"}, got)
	assert.Equal(t, []string{"recall"}, req.PreviousKeys)
}

func TestSubmit_EmptyResultIsNotRecorded(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := history.NewMemoryStore()
	pub := &recordingPublisher{}
	svc := createService(t, respond(), store, pub)

	resp, err := svc.Submit(context.Background(), createRequest("phone-handling"))
	require.NoError(t, err)
	assert.Empty(t, resp.Insights)
	assert.Equal(t, 0, pub.count())

	seen, err := store.SeenKeys(context.Background(), "audit-1", "")
	require.NoError(t, err)
	assert.Empty(t, seen)
}

func TestSubmit_FailureIsReportedInStatus(t *testing.T) {
	defer goleak.VerifyNone(t)

	boom := errors.New("REMOTE_CALL_FAILED")
	gen := generatorFunc(func(context.Context, *models.GenerateRequest) (*models.GenerateResponse, error) {
		return nil, boom
	})
	svc := createService(t, gen, history.NewMemoryStore(), nil)

	_, err := svc.Submit(context.Background(), createRequest("phone-handling"))
	require.ErrorIs(t, err, boom)

	status := svc.Status("audit-1", "phone-handling")
	assert.Equal(t, orchestrator.StateFailed, status.State)
	assert.Contains(t, status.LastError, "REMOTE_CALL_FAILED")
}

func TestSubmit_HistoryAndPublishFailuresAreTolerated(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &recordingPublisher{err: errors.New("throttled")}
	svc := createService(t, respond("missed_calls"), failingHistory{}, pub)

	resp, err := svc.Submit(context.Background(), createRequest("phone-handling"))
	require.NoError(t, err)
	assert.Equal(t, []string{"missed_calls"}, resp.Keys())
	assert.Equal(t, 1, pub.count())
}

func TestSubmit_SupersededRequestResolvesEmpty(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{})
	var calls int
	var mu sync.Mutex
	gen := generatorFunc(func(ctx context.Context, req *models.GenerateRequest) (*models.GenerateResponse, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return respond("missed_calls")(ctx, req)
	})

	store := history.NewMemoryStore()
	svc := createService(t, gen, store, nil)

	type result struct {
		resp *models.GenerateResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := svc.Submit(context.Background(), createRequest("phone-handling"))
		done <- result{resp, err}
	}()

	<-started
	second, err := svc.Submit(context.Background(), createRequest("phone-handling"))
	require.NoError(t, err)
	assert.Equal(t, []string{"missed_calls"}, second.Keys())

	first := <-done
	require.NoError(t, first.err)
	assert.Empty(t, first.resp.Insights)
	assert.Equal(t, orchestrator.StateIdle, svc.Status("audit-1", "phone-handling").State)
}
