package variant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge/promptforge/internal/llm"
	"github.com/promptforge/promptforge/internal/models"
)

type fakeInvoker struct {
	content string
	err     error
}

func (f *fakeInvoker) Invoke(ctx context.Context, req llm.CallRequest) (*llm.CallResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CallResponse{Content: f.content, Attempts: 1}, nil
}

func sourceVersion() *models.PromptVersion {
	return &models.PromptVersion{ID: uuid.New(), PromptID: uuid.New(), Version: 2, Content: "Summarize the user's text."}
}

func TestGenerateReturnsRequestedCount(t *testing.T) {
	g := NewGenerator(&fakeInvoker{
		content: `{"variants": ["first rewrite", "second rewrite", "third rewrite"]}`,
	}, "test-model")

	candidates, err := g.Generate(context.Background(), sourceVersion(), AxisClarity, 3)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	for _, c := range candidates {
		assert.Equal(t, AxisClarity, c.Axis)
		assert.NotEmpty(t, c.Content)
	}
}

func TestGenerateFailsOnShortfall(t *testing.T) {
	g := NewGenerator(&fakeInvoker{
		content: `{"variants": ["only one rewrite"]}`,
	}, "test-model")

	_, err := g.Generate(context.Background(), sourceVersion(), AxisBalanced, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestGenerateDropsDuplicatesAndEmpties(t *testing.T) {
	g := NewGenerator(&fakeInvoker{
		content: `{"variants": ["same text", "same text", "  ", "other text"]}`,
	}, "test-model")

	// Four raw entries collapse to two distinct candidates.
	_, err := g.Generate(context.Background(), sourceVersion(), AxisConciseness, 3)
	require.Error(t, err)

	candidates, err := g.Generate(context.Background(), sourceVersion(), AxisConciseness, 2)
	require.NoError(t, err)
	assert.Equal(t, "same text", candidates[0].Content)
	assert.Equal(t, "other text", candidates[1].Content)
}

func TestGenerateParsesDelimitedFallback(t *testing.T) {
	g := NewGenerator(&fakeInvoker{
		content: "VARIANT 1:\n---\nfirst full text\n---\nVARIANT 2:\n---\nsecond full text\n---",
	}, "test-model")

	candidates, err := g.Generate(context.Background(), sourceVersion(), AxisRobustness, 2)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "first full text", candidates[0].Content)
	assert.Equal(t, "second full text", candidates[1].Content)
}

func TestGenerateWrapsGatewayFailure(t *testing.T) {
	g := NewGenerator(&fakeInvoker{
		err: &llm.CallError{Kind: llm.KindRateLimited, Message: "429", Attempts: 3},
	}, "test-model")

	_, err := g.Generate(context.Background(), sourceVersion(), AxisClarity, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)

	ce, ok := llm.AsCallError(err)
	require.True(t, ok)
	assert.Equal(t, llm.KindRateLimited, ce.Kind)
}

func TestGenerateRejectsBadArguments(t *testing.T) {
	g := NewGenerator(&fakeInvoker{content: `{"variants": ["x"]}`}, "test-model")

	_, err := g.Generate(context.Background(), sourceVersion(), "speed", 1)
	assert.Error(t, err)

	_, err = g.Generate(context.Background(), sourceVersion(), AxisClarity, 0)
	assert.Error(t, err)
}

func TestCommitNoteNamesAxis(t *testing.T) {
	assert.Equal(t, "variant optimized for clarity", CommitNote(AxisClarity))
}
