// Package genai adapts an OpenAI compatible chat completion API to port.Completer.
package genai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fibernet/central-cliente-bfa-go/internal/domain"
	"github.com/fibernet/central-cliente-bfa-go/internal/infra/resilience"
	"github.com/fibernet/central-cliente-bfa-go/internal/port"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("genai")

const serviceName = "genai"

// ErrDisabled is returned when no API key was configured.
var ErrDisabled = errors.New("genai: api key not configured")

// Client calls the chat completion endpoint with retry and circuit breaker.
type Client struct {
	api   *openai.Client
	model string
	cb    *gobreaker.CircuitBreaker
	cfg   resilience.Config
}

var _ port.Completer = (*Client)(nil)

// NewClient creates a new Client. An empty baseURL uses the OpenAI default.
func NewClient(httpClient *http.Client, apiKey, baseURL, model string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Client {
	c := &Client{model: model, cb: cb, cfg: cfg}
	if apiKey == "" {
		return c
	}

	oc := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		oc.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}
	c.api = openai.NewClientWithConfig(oc)
	return c
}

// Enabled reports whether an API key was configured.
func (c *Client) Enabled() bool { return c.api != nil }

// Complete asks the model for the next assistant turn.
func (c *Client) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.Completion, error) {
	ctx, span := tracer.Start(ctx, "GenAI.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("genai.model", c.model), attribute.Int("genai.turns", len(req.Messages)))

	if c.api == nil {
		return nil, &domain.ErrExternalService{Service: serviceName, Err: ErrDisabled}
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	var resp openai.ChatCompletionResponse
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			var callErr error
			resp, callErr = c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       c.model,
				Messages:    msgs,
				Temperature: req.Temperature,
			})
			return callErr
		}, isPermanent)
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.ErrCircuitOpen{Service: serviceName}
		}
		return nil, &domain.ErrExternalService{Service: serviceName, Err: err}
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, &domain.ErrExternalService{Service: serviceName, Err: errors.New("empty completion")}
	}

	span.SetAttributes(attribute.Int("genai.tokens", resp.Usage.TotalTokens))
	return &domain.Completion{
		Text:             strings.TrimSpace(resp.Choices[0].Message.Content),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// isPermanent stops retries on client errors other than rate limiting.
func isPermanent(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 && apiErr.HTTPStatusCode != http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= 400 && reqErr.HTTPStatusCode < 500 && reqErr.HTTPStatusCode != http.StatusTooManyRequests
	}
	return false
}
