package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/revrost/go-openrouter"
	"go.uber.org/zap"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/policy/ratelimit"
)

// DefaultModel is used when OpenRouterConfig.Model is empty.
const DefaultModel = "openai/gpt-4o-mini"

// ErrMissingAPIKey is returned by NewOpenRouter without credentials.
var ErrMissingAPIKey = errors.New("oracle: openrouter api key is required")

// chatCompleter is the subset of *openrouter.Client used here.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openrouter.ChatCompletionRequest) (openrouter.ChatCompletionResponse, error)
}

// OpenRouterConfig configures the OpenRouter oracle.
type OpenRouterConfig struct {
	APIKey            string
	Model             string
	RequestsPerSecond float64
	Burst             int
}

// OpenRouter extracts triples with a chat model in JSON-object mode.
type OpenRouter struct {
	client  chatCompleter
	model   string
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

var _ crawler.Oracle = (*OpenRouter)(nil)

// NewOpenRouter builds an OpenRouter oracle.
func NewOpenRouter(cfg OpenRouterConfig, logger *zap.Logger) (*OpenRouter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	return newOpenRouter(openrouter.NewClient(cfg.APIKey), cfg, logger), nil
}

func newOpenRouter(client chatCompleter, cfg OpenRouterConfig, logger *zap.Logger) *OpenRouter {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenRouter{
		client: client,
		model:  cfg.Model,
		limiter: ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.RequestsPerSecond,
			DefaultBurst: cfg.Burst,
		}),
		logger: logger,
	}
}

// Model reports the chat model in use.
func (o *OpenRouter) Model() string {
	return o.model
}

// ExtractTriples implements crawler.Oracle.
func (o *OpenRouter) ExtractTriples(ctx context.Context, text, contextName, sourceURL string) ([]crawler.RawTriple, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if err := o.limiter.Wait(ctx, o.model); err != nil {
		return nil, fmt.Errorf("openrouter throttle: %w", err)
	}

	request := openrouter.ChatCompletionRequest{
		Model: o.model,
		Messages: []openrouter.ChatCompletionMessage{
			{
				Role:    openrouter.ChatMessageRoleSystem,
				Content: openrouter.Content{Text: SystemPrompt},
			},
			{
				Role:    openrouter.ChatMessageRoleUser,
				Content: openrouter.Content{Text: BuildPrompt(text, contextName)},
			},
		},
		ResponseFormat: &openrouter.ChatCompletionResponseFormat{
			Type: openrouter.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	response, err := o.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("openrouter completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("openrouter completion: no choices returned")
	}

	reply := response.Choices[0].Message.Content.Text
	triples, err := ParseResponse(reply)
	if err != nil {
		o.logger.Debug("unparseable oracle reply",
			zap.String("source_url", sourceURL),
			zap.String("reply", crawler.Truncate(reply, 200)),
		)
		return nil, err
	}
	return triples, nil
}
