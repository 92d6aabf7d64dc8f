// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audit-insights/internal/api"
	"audit-insights/internal/common/logger"
	"audit-insights/internal/insights/cache"
	"audit-insights/internal/insights/history"
	"audit-insights/internal/insights/knowledge"
	"audit-insights/internal/insights/narrative"
	"audit-insights/internal/insights/notify"
	"audit-insights/internal/insights/orchestrator"
	"audit-insights/internal/insights/pipeline"
	"audit-insights/internal/insights/service"
	"audit-insights/internal/models"
)

// ==========================
// Harness
// ==========================

type recordingSNS struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingSNS) Publish(_ context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *input.Message)
	return &sns.PublishOutput{}, nil
}

func (r *recordingSNS) events(t *testing.T) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Event, 0, len(r.messages))
	for _, m := range r.messages {
		var ev notify.Event
		require.NoError(t, json.Unmarshal([]byte(m), &ev))
		out = append(out, ev)
	}
	return out
}

type harness struct {
	server     *httptest.Server
	genaiCalls *atomic.Int64
	sns        *recordingSNS
	history    *history.MemoryStore
}

// genaiHandler answers every generation call with a narrative per candidate key.
func genaiHandler(calls *atomic.Int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		var body struct {
			Context struct {
				Candidates []struct {
					Key string `json:"key"`
				} `json:"candidates"`
			} `json:"context"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		doc := map[string]interface{}{"narratives": []map[string]interface{}{}}
		narratives := []map[string]interface{}{}
		for _, c := range body.Context.Candidates {
			narratives = append(narratives, map[string]interface{}{
				"key":         c.Key,
				"title":       "Generated " + c.Key,
				"description": "A generated description.",
				"proofPoints": []string{"An invented statistic nobody approved"},
			})
		}
		doc["narratives"] = narratives
		text, _ := json.Marshal(doc)
		_ = json.NewEncoder(w).Encode(map[string]string{"text": string(text)})
	}
}

func newHarness(t *testing.T, genai http.HandlerFunc, config pipeline.Config) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewTestLogger(t)
	calls := &atomic.Int64{}
	if genai == nil {
		genai = genaiHandler(calls)
	}
	genaiServer := httptest.NewServer(genai)
	t.Cleanup(genaiServer.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	narrator := narrative.NewGenAINarrator(narrative.GenAIConfig{BaseURL: genaiServer.URL, MaxTokens: 600}, nil, log)
	provider := knowledge.NewProvider(knowledge.EmbeddedSource{}, 0, log)
	coordinator := pipeline.NewCoordinator(config, provider, cache.NewRedisStore(rdb), narrator, log)

	seen := history.NewMemoryStore()
	topic := &recordingSNS{}
	publisher := notify.NewSNSPublisher(topic, "arn:aws:sns:us-east-1:000000000000:insights", log)

	svc := service.New(coordinator, orchestrator.New(log), seen, publisher, log)
	t.Cleanup(svc.Shutdown)

	srv := api.NewServer(svc, api.Options{RequestTimeout: 5 * time.Second}, log)
	server := httptest.NewServer(srv.Handler())
	t.Cleanup(server.Close)

	return &harness{server: server, genaiCalls: calls, sns: topic, history: seen}
}

func (h *harness) post(t *testing.T, body string) (int, []byte) {
	t.Helper()
	resp, err := http.Post(h.server.URL+"/v1/insights", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	return resp.StatusCode, raw
}

func defaultConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.RemoteBackoff = time.Millisecond
	return cfg
}

const noShowBody = `{
	"business": {"vertical": "dental", "businessName": "Bright Smiles", "size": 2},
	"snapshot": {
		"auditId": "audit-e2e",
		"sectionId": "scheduling-noshows",
		"responses": [
			{"key": "noShowsPerWeek", "value": 12},
			{"key": "noShowRatePercent", "value": 15},
			{"key": "confirmationMethod", "value": "phone"}
		]
	}
}`

// ==========================
// Scenarios
// ==========================

func TestE2E_GenerateCachePublish(t *testing.T) {
	h := newHarness(t, nil, defaultConfig())

	status, raw := h.post(t, noShowBody)
	require.Equal(t, http.StatusOK, status, string(raw))

	var first models.GenerateResponse
	require.NoError(t, json.Unmarshal(raw, &first))
	require.Len(t, first.Insights, 1)

	in := first.Insights[0]
	assert.Equal(t, "no_shows", in.Key)
	assert.Equal(t, "Generated no_shows", in.Title)
	assert.Equal(t, 1500.0, in.MonthlyImpact)
	assert.Equal(t, "USD", in.Currency)
	assert.NotContains(t, in.Skill.ProofPoints, "An invented statistic nobody approved")

	status, again := h.post(t, noShowBody)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, string(raw), string(again))
	assert.Equal(t, int64(1), h.genaiCalls.Load())

	events := h.sns.events(t)
	require.NotEmpty(t, events)
	assert.Equal(t, notify.EventInsightsGenerated, events[0].Type)
	assert.Equal(t, []string{"no_shows"}, events[0].Keys)

	seen, err := h.history.SeenKeys(context.Background(), "audit-e2e", "phone-handling")
	require.NoError(t, err)
	assert.Equal(t, []string{"no_shows"}, seen)
}

func TestE2E_GateReturnsEmptyWithoutRemoteCall(t *testing.T) {
	h := newHarness(t, nil, defaultConfig())

	body := `{
		"business": {"vertical": "dental", "businessName": "Bright Smiles", "size": 2},
		"snapshot": {"auditId": "audit-gate", "sectionId": "scheduling-noshows", "responses": [{"key": "noShowsPerWeek", "value": 12}]}
	}`
	status, raw := h.post(t, body)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"auditId":"audit-gate","sectionId":"scheduling-noshows","insights":[]}`, string(raw))
	assert.Equal(t, int64(0), h.genaiCalls.Load())
	assert.Empty(t, h.sns.events(t))
}

func TestE2E_UnknownSectionIsBadRequest(t *testing.T) {
	h := newHarness(t, nil, defaultConfig())

	body := strings.Replace(noShowBody, "scheduling-noshows", "front-desk-vibes", 1)
	status, raw := h.post(t, body)
	require.Equal(t, http.StatusBadRequest, status)

	var errBody struct {
		Error struct {
			Code  string `json:"code"`
			Field string `json:"field"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &errBody))
	assert.Equal(t, "VALIDATION_FAILED", errBody.Error.Code)
	assert.Equal(t, "snapshot.sectionId", errBody.Error.Field)
}

func TestE2E_RemoteFailureAndStatus(t *testing.T) {
	failing := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}
	h := newHarness(t, failing, defaultConfig())

	status, raw := h.post(t, noShowBody)
	require.Equal(t, http.StatusBadGateway, status, string(raw))

	resp, err := http.Get(h.server.URL + "/v1/audits/audit-e2e/sections/scheduling-noshows/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var st orchestrator.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, orchestrator.StateFailed, st.State)
	assert.NotEmpty(t, st.LastError)
}

func TestE2E_RemoteTimeout(t *testing.T) {
	hanging := func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}
	cfg := defaultConfig()
	cfg.RemoteTimeout = 50 * time.Millisecond
	cfg.RemoteMaxAttempts = 1
	h := newHarness(t, hanging, cfg)

	status, _ := h.post(t, noShowBody)
	assert.Equal(t, http.StatusGatewayTimeout, status)
}
