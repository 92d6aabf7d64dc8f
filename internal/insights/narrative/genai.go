// internal/insights/narrative/genai.go
package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	commonhttp "audit-insights/internal/common/http"
	"audit-insights/internal/common/validation"
)

type GenAIConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// GenAINarrator calls the internal generation gateway at
// POST {BaseURL}/api/ai/generate. Deadlines come from the caller's context.
type GenAINarrator struct {
	config  GenAIConfig
	client  *commonhttp.Client
	limiter *rate.Limiter
	logger  Logger
}

func NewGenAINarrator(config GenAIConfig, limiter *rate.Limiter, log Logger) *GenAINarrator {
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	return &GenAINarrator{
		config:  config,
		client:  commonhttp.NewClient(config.Timeout).WithBearerToken(config.APIKey),
		limiter: limiter,
		logger:  log,
	}
}

func (g *GenAINarrator) Narrate(ctx context.Context, req *Request) ([]Narrative, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, remoteError(ctx, err)
	}

	requestBody := map[string]interface{}{
		"prompt": buildPrompt(req),
		"context": map[string]interface{}{
			"system":     systemPrompt,
			"section":    req.SectionTitle,
			"vertical":   req.Business.Vertical,
			"candidates": promptCandidates(req),
		},
		"max_tokens":  g.config.MaxTokens,
		"temperature": g.config.Temperature,
	}
	resp, err := g.client.PostJSON(ctx, strings.TrimSuffix(g.config.BaseURL, "/")+"/api/ai/generate", requestBody)
	if err != nil {
		return nil, remoteError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRemoteCallFailed, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var apiResponse struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, remoteError(ctx, fmt.Errorf("decode error: %w", err))
	}

	narratives, err := parseNarratives(apiResponse.Text)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("narratives generated", map[string]interface{}{
		"provider":   "genai",
		"candidates": len(req.Candidates),
		"narratives": len(narratives),
	})
	return narratives, nil
}

// parseNarratives validates model output against the narrative schema.
func parseNarratives(text string) ([]Narrative, error) {
	text = stripFences(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty narrative text", ErrRemoteCallFailed)
	}

	var doc document
	if err := validation.ParseNarrative([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid narrative: %v", ErrRemoteCallFailed, err)
	}
	return doc.Narratives, nil
}

// remoteError maps transport and context errors onto the remote-call sentinels.
// Parent cancellation is returned as-is so callers can tell it apart.
func remoteError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrRemoteCallTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrRemoteCallFailed, err)
	}
}
