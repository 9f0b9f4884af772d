package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/promptforge/promptforge/internal/config"
)

const structuredAddendum = `

You must respond with ONLY a valid JSON object. Do not include any text outside the JSON object. No markdown, no explanation.`

type gateway struct {
	providers       map[string]Provider
	defaultProvider string
	defaultModel    string
	maxTokens       int
	temperature     float64
	maxAttempts     int
	baseDelay       time.Duration
	maxDelay        time.Duration
	callTimeout     time.Duration
}

// NewGateway builds a gateway from explicit configuration. Providers are
// registered only when their credentials are present.
func NewGateway(cfg config.LLMConfig) Gateway {
	g := newGateway(cfg)

	if cfg.AnthropicKey != "" {
		g.providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}
	if cfg.OpenAIKey != "" {
		g.providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey)
	}

	return g
}

// NewGatewayWithProviders wires an explicit provider set; used by tests
// to inject fake transports.
func NewGatewayWithProviders(cfg config.LLMConfig, providers map[string]Provider) Gateway {
	g := newGateway(cfg)
	for name, p := range providers {
		g.providers[name] = p
	}
	return g
}

func newGateway(cfg config.LLMConfig) *gateway {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	maxDelay := cfg.RetryMaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return &gateway{
		providers:       make(map[string]Provider),
		defaultProvider: cfg.DefaultProvider,
		defaultModel:    cfg.DefaultModel,
		maxTokens:       cfg.MaxTokens,
		temperature:     cfg.Temperature,
		maxAttempts:     maxAttempts,
		baseDelay:       baseDelay,
		maxDelay:        maxDelay,
		callTimeout:     cfg.CallTimeout,
	}
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, &CallError{Kind: KindInvalidRequest, Message: fmt.Sprintf("provider %q not configured", name)}
	}
	return p, nil
}

// Invoke performs one logical model call with bounded per-attempt
// timeout, exponential backoff with jitter on transient failures, and
// fail-fast on permanent ones. The returned error is always *CallError.
func (g *gateway) Invoke(ctx context.Context, req CallRequest) (*CallResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	chatReq := g.buildChatRequest(req)

	var lastErr *CallError
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := g.backoffDelay(attempt - 1)
			slog.Debug("retrying llm call",
				"provider", providerName,
				"attempt", attempt,
				"delay", delay,
				"kind", lastErr.Kind,
			)
			select {
			case <-ctx.Done():
				return nil, &CallError{Kind: KindTimeout, Message: ctx.Err().Error(), Attempts: attempt - 1, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		resp, callErr := g.attempt(ctx, p, chatReq)
		if callErr == nil {
			content := resp.Content
			if req.Structured {
				content = StripFences(content)
			}
			return &CallResponse{
				Content:      content,
				Provider:     resp.Provider,
				Model:        resp.Model,
				Attempts:     attempt,
				InputTokens:  resp.InputTokens,
				OutputTokens: resp.OutputTokens,
				CostUSD:      resp.CostUSD,
				LatencyMs:    resp.LatencyMs,
			}, nil
		}

		lastErr = callErr
		if !callErr.Transient() {
			callErr.Attempts = attempt
			return nil, callErr
		}
	}

	lastErr.Attempts = g.maxAttempts
	return nil, lastErr
}

func (g *gateway) attempt(ctx context.Context, p Provider, req ChatRequest) (*ChatResponse, *CallError) {
	if g.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
	}

	resp, err := p.ChatCompletion(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	return resp, nil
}

func (g *gateway) buildChatRequest(req CallRequest) ChatRequest {
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = g.temperature
	}

	instructions := req.Instructions
	if req.Structured {
		instructions += structuredAddendum
	}

	var msgs []Message
	if instructions != "" {
		msgs = append(msgs, Message{Role: "system", Content: instructions})
	}
	msgs = append(msgs, Message{Role: "user", Content: req.Input})

	return ChatRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// backoffDelay doubles the base delay per completed attempt, caps it,
// then spreads it ±25% so batch retries don't synchronize.
func (g *gateway) backoffDelay(retries int) time.Duration {
	d := baseBackoff(g.baseDelay, g.maxDelay, retries)
	jitter := time.Duration(rand.Int63n(int64(d)/2+1)) - d/4
	return d + jitter
}

func baseBackoff(base, max time.Duration, retries int) time.Duration {
	d := base
	for i := 1; i < retries; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		d = max
	}
	return d
}

func (g *gateway) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = "openai" // only provider with native embeddings
	}
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	if g.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
	}

	resp, err := p.GenerateEmbedding(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	return resp, nil
}

func (g *gateway) ListModels() []ModelInfo {
	var models []ModelInfo
	for _, p := range g.providers {
		for _, m := range p.Models() {
			models = append(models, ModelInfo{
				Provider: p.Name(),
				Model:    m,
				Type:     "chat",
			})
		}
	}
	return models
}

// StripFences removes a markdown code fence wrapper from a model reply.
func StripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
