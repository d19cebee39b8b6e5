package aianalysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"momcare/apps/backend/internal/healthrisk"
	"momcare/apps/backend/internal/pregnancy"
)

var (
	// ErrNotConfigured is returned when AI is disabled or has no API key.
	ErrNotConfigured = errors.New("ai analysis is not configured")
	// ErrUnavailable wraps every transport, status and envelope failure.
	ErrUnavailable = errors.New("ai analysis unavailable")
)

const probeTimeout = 10 * time.Second

// Analyzer returns raw model text; callers hand it to a Resolver.
type Analyzer interface {
	Analyze(ctx context.Context, s healthrisk.Snapshot, pc *pregnancy.Context) (string, error)
	Recommend(ctx context.Context, s healthrisk.Snapshot, pc *pregnancy.Context, eval healthrisk.Evaluation) (string, error)
	Available(ctx context.Context) bool
}

// OpenAIClient talks to any chat-completions compatible endpoint.
type OpenAIClient struct {
	cfg    Config
	client *openai.Client
	log    zerolog.Logger
}

func NewOpenAIClient(cfg Config, log zerolog.Logger) *OpenAIClient {
	cfg = cfg.normalized()
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: newEnvelopeTransport(http.DefaultTransport, cfg.Temperature),
	}
	return &OpenAIClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
		log:    log.With().Str("component", "ai_client").Str("model", cfg.Model).Logger(),
	}
}

func (c *OpenAIClient) configured() bool {
	return c.cfg.Enabled && c.cfg.APIKey != ""
}

func (c *OpenAIClient) Analyze(ctx context.Context, s healthrisk.Snapshot, pc *pregnancy.Context) (string, error) {
	return c.complete(ctx, "analyze", buildAnalysisPrompt(s, pc), c.cfg.MaxTokens, c.cfg.Timeout)
}

func (c *OpenAIClient) Recommend(ctx context.Context, s healthrisk.Snapshot, pc *pregnancy.Context, eval healthrisk.Evaluation) (string, error) {
	return c.complete(ctx, "recommend", buildRecommendationPrompt(s, pc, eval), c.cfg.MaxTokens, c.cfg.Timeout)
}

// Available sends a trivial prompt. It is only meant for health checks.
func (c *OpenAIClient) Available(ctx context.Context) bool {
	timeout := c.cfg.Timeout
	if timeout > probeTimeout {
		timeout = probeTimeout
	}
	text, err := c.complete(ctx, "probe", probePrompt, 5, timeout)
	if err != nil {
		c.log.Warn().Err(err).Msg("ai availability probe failed")
		return false
	}
	return strings.TrimSpace(text) != ""
}

func (c *OpenAIClient) complete(ctx context.Context, op, prompt string, maxTokens int, timeout time.Duration) (string, error) {
	if !c.configured() {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
		Stream:      false,
	})
	elapsed := time.Since(start)
	if err != nil {
		recordRequest(ctx, op, c.cfg.Model, statusCodeOf(err), elapsed, err)
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		err := errors.New("response missing choices[0].message.content")
		recordRequest(ctx, op, c.cfg.Model, http.StatusOK, elapsed, err)
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}

	recordRequest(ctx, op, c.cfg.Model, http.StatusOK, elapsed, nil)
	c.log.Debug().
		Str("op", op).
		Dur("elapsed", elapsed).
		Int("total_tokens", resp.Usage.TotalTokens).
		Msg("ai completion finished")
	return resp.Choices[0].Message.Content, nil
}

func statusCodeOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
