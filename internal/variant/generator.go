// Package variant generates alternative prompt phrasings along a
// requested optimization axis.
package variant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/promptforge/promptforge/internal/llm"
	"github.com/promptforge/promptforge/internal/models"
)

// ErrGenerationFailed wraps gateway failures and short responses.
var ErrGenerationFailed = errors.New("variant generation failed")

// Axis is what a variant run optimizes for.
type Axis string

const (
	AxisClarity     Axis = "clarity"
	AxisConciseness Axis = "conciseness"
	AxisRobustness  Axis = "robustness"
	AxisBalanced    Axis = "balanced"
)

func (a Axis) Valid() bool {
	switch a {
	case AxisClarity, AxisConciseness, AxisRobustness, AxisBalanced:
		return true
	}
	return false
}

// Candidate is an unsaved variant. Committing one goes through the
// version store with the source version as parent.
type Candidate struct {
	Content string `json:"content"`
	Axis    Axis   `json:"axis"`
}

type Generator struct {
	gw    llm.Invoker
	model string
}

func NewGenerator(gw llm.Invoker, model string) *Generator {
	return &Generator{gw: gw, model: model}
}

const generateInstructions = `You are an expert in prompt engineering. Generate improved variants of the system prompt the user provides, each optimizing for the requested focus while maintaining the core intent.

Respond with a JSON object of this exact shape:
{"variants": ["<first full variant text>", "<second full variant text>", ...]}`

// Generate asks for count alternative rewrites in one gateway call and
// returns them unsaved. Fewer than count distinct non-empty candidates
// is a failure; the caller gets nothing rather than a silent shortfall.
func (g *Generator) Generate(ctx context.Context, version *models.PromptVersion, axis Axis, count int) ([]Candidate, error) {
	if !axis.Valid() {
		return nil, fmt.Errorf("unknown optimization axis %q", axis)
	}
	if count < 1 {
		return nil, fmt.Errorf("variant count must be positive, got %d", count)
	}

	input := fmt.Sprintf(`Optimization focus: %s
Number of variants: %d

Original prompt:
---
%s
---`, axis, count, version.Content)

	resp, err := g.gw.Invoke(ctx, llm.CallRequest{
		Model:        g.model,
		Instructions: generateInstructions,
		Input:        input,
		Structured:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}

	texts := parseVariants(resp.Content)
	texts = dedupe(texts)
	if len(texts) < count {
		return nil, fmt.Errorf("%w: wanted %d distinct candidates, recovered %d", ErrGenerationFailed, count, len(texts))
	}

	candidates := make([]Candidate, count)
	for i := 0; i < count; i++ {
		candidates[i] = Candidate{Content: texts[i], Axis: axis}
	}
	return candidates, nil
}

// CommitNote is the author note recorded when a candidate is saved as a
// new version, so the lineage records the requested axis.
func CommitNote(axis Axis) string {
	return fmt.Sprintf("variant optimized for %s", axis)
}

func parseVariants(content string) []string {
	content = llm.StripFences(content)

	var parsed struct {
		Variants []string `json:"variants"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err == nil && len(parsed.Variants) > 0 {
		return parsed.Variants
	}

	// Fallback for replies in the older delimited form:
	//   VARIANT 1:
	//   ---
	//   <text>
	//   ---
	return parseDelimited(content)
}

func parseDelimited(content string) []string {
	var variants []string
	var current []string
	inVariant := false

	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "VARIANT"):
			if inVariant && len(current) > 0 {
				variants = append(variants, strings.TrimSpace(strings.Join(current, "\n")))
			}
			current = nil
			inVariant = false
		case strings.TrimSpace(line) == "---":
			if inVariant {
				variants = append(variants, strings.TrimSpace(strings.Join(current, "\n")))
				current = nil
			}
			inVariant = !inVariant
		case inVariant:
			current = append(current, line)
		}
	}
	if inVariant && len(current) > 0 {
		variants = append(variants, strings.TrimSpace(strings.Join(current, "\n")))
	}
	return variants
}

func dedupe(texts []string) []string {
	seen := make(map[string]bool, len(texts))
	var out []string
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
