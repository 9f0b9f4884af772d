package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge/promptforge/internal/config"
)

// fakeProvider scripts one response or error per attempt.
type fakeProvider struct {
	responses []fakeTurn
	calls     int
	lastReq   ChatRequest
}

type fakeTurn struct {
	content string
	err     error
}

func (f *fakeProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	f.lastReq = req
	turn := f.responses[f.calls]
	if f.calls < len(f.responses)-1 {
		f.calls++
	}
	if turn.err != nil {
		return nil, turn.err
	}
	return &ChatResponse{Provider: "fake", Model: req.Model, Content: turn.content}, nil
}

func (f *fakeProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	return &EmbeddingResponse{Provider: "fake", Model: req.Model, Embeddings: [][]float32{{0.1, 0.2}}}, nil
}

func (f *fakeProvider) Name() string     { return "fake" }
func (f *fakeProvider) Models() []string { return []string{"fake-model"} }

func testConfig() config.LLMConfig {
	return config.LLMConfig{
		DefaultProvider: "fake",
		DefaultModel:    "fake-model",
		MaxTokens:       1024,
		Temperature:     1.0,
		MaxAttempts:     3,
		RetryBaseDelay:  time.Millisecond,
		RetryMaxDelay:   4 * time.Millisecond,
	}
}

func newTestGateway(p Provider) Gateway {
	return NewGatewayWithProviders(testConfig(), map[string]Provider{"fake": p})
}

func TestInvokeRetriesTransientThenSucceeds(t *testing.T) {
	p := &fakeProvider{responses: []fakeTurn{
		{err: &CallError{Kind: KindServerError, Message: "upstream 500"}},
		{content: "recovered"},
	}}
	gw := newTestGateway(p)

	resp, err := gw.Invoke(context.Background(), CallRequest{Input: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, 2, resp.Attempts)
}

func TestInvokeExhaustsAttemptsOnRateLimit(t *testing.T) {
	p := &fakeProvider{responses: []fakeTurn{
		{err: &CallError{Kind: KindRateLimited, Message: "429"}},
	}}
	gw := newTestGateway(p)

	_, err := gw.Invoke(context.Background(), CallRequest{Input: "hello"})
	require.Error(t, err)

	ce, ok := AsCallError(err)
	require.True(t, ok)
	assert.Equal(t, KindRateLimited, ce.Kind)
	assert.Equal(t, 3, ce.Attempts)
	assert.True(t, ce.Transient())
}

func TestInvokeFailsFastOnPermanentError(t *testing.T) {
	p := &fakeProvider{responses: []fakeTurn{
		{err: &CallError{Kind: KindAuthError, Message: "bad key"}},
		{content: "never reached"},
	}}
	gw := newTestGateway(p)

	_, err := gw.Invoke(context.Background(), CallRequest{Input: "hello"})
	require.Error(t, err)

	ce, ok := AsCallError(err)
	require.True(t, ok)
	assert.Equal(t, KindAuthError, ce.Kind)
	assert.Equal(t, 1, ce.Attempts)
	assert.False(t, ce.Transient())
}

func TestInvokeUnknownProvider(t *testing.T) {
	gw := newTestGateway(&fakeProvider{responses: []fakeTurn{{content: "x"}}})

	_, err := gw.Invoke(context.Background(), CallRequest{Provider: "nope", Input: "hello"})
	require.Error(t, err)

	ce, ok := AsCallError(err)
	require.True(t, ok)
	assert.Equal(t, KindInvalidRequest, ce.Kind)
}

func TestInvokeAppliesDefaultsAndStructuredAddendum(t *testing.T) {
	p := &fakeProvider{responses: []fakeTurn{{content: "{}"}}}
	gw := newTestGateway(p)

	_, err := gw.Invoke(context.Background(), CallRequest{
		Instructions: "analyze this",
		Input:        "content",
		Structured:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, "fake-model", p.lastReq.Model)
	assert.Equal(t, 1024, p.lastReq.MaxTokens)
	require.Len(t, p.lastReq.Messages, 2)
	assert.Equal(t, "system", p.lastReq.Messages[0].Role)
	assert.Contains(t, p.lastReq.Messages[0].Content, "ONLY a valid JSON object")
	assert.Equal(t, "content", p.lastReq.Messages[1].Content)
}

func TestInvokeStripsFencesOnStructuredReplies(t *testing.T) {
	p := &fakeProvider{responses: []fakeTurn{{content: "```json\n{\"score\": 80}\n```"}}}
	gw := newTestGateway(p)

	resp, err := gw.Invoke(context.Background(), CallRequest{Input: "x", Structured: true})
	require.NoError(t, err)
	assert.Equal(t, `{"score": 80}`, resp.Content)
}

func TestBaseBackoffDoublesAndCaps(t *testing.T) {
	base := 2 * time.Second
	max := 30 * time.Second

	var prev time.Duration
	for retries := 1; retries <= 6; retries++ {
		d := baseBackoff(base, max, retries)
		assert.GreaterOrEqual(t, d, prev, "delay must not shrink between retries")
		assert.LessOrEqual(t, d, max)
		prev = d
	}
	assert.Equal(t, 2*time.Second, baseBackoff(base, max, 1))
	assert.Equal(t, 4*time.Second, baseBackoff(base, max, 2))
	assert.Equal(t, 30*time.Second, baseBackoff(base, max, 6))
}

func TestClassifyTaxonomy(t *testing.T) {
	assert.Equal(t, KindTimeout, classify(context.DeadlineExceeded).Kind)
	assert.Equal(t, KindRateLimited, kindFromStatus(429))
	assert.Equal(t, KindTimeout, kindFromStatus(408))
	assert.Equal(t, KindServerError, kindFromStatus(503))
	assert.Equal(t, KindAuthError, kindFromStatus(401))
	assert.Equal(t, KindInvalidRequest, kindFromStatus(422))
	assert.Equal(t, KindUnknown, kindFromStatus(0))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripFences(`{"a":1}`))
}
