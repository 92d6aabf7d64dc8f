// internal/insights/narrative/openai.go
package narrative

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const DefaultOpenAIModel = "gpt-4o-mini"

type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
}

// OpenAINarrator asks a chat completion model for the narrative document.
type OpenAINarrator struct {
	client  *openai.Client
	config  OpenAIConfig
	limiter *rate.Limiter
	logger  Logger
}

func NewOpenAINarrator(config OpenAIConfig, limiter *rate.Limiter, log Logger) *OpenAINarrator {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Model == "" {
		config.Model = DefaultOpenAIModel
	}
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	return &OpenAINarrator{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  config,
		limiter: limiter,
		logger:  log,
	}
}

func (o *OpenAINarrator) Narrate(ctx context.Context, req *Request) ([]Narrative, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, remoteError(ctx, err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model: o.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
		Temperature: o.config.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if o.config.MaxTokens > 0 {
		chatReq.MaxCompletionTokens = o.config.MaxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, remoteError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ErrRemoteCallFailed)
	}

	narratives, err := parseNarratives(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	o.logger.Debug("narratives generated", map[string]interface{}{
		"provider":     "openai",
		"model":        o.config.Model,
		"finishReason": string(resp.Choices[0].FinishReason),
		"narratives":   len(narratives),
	})
	return narratives, nil
}
