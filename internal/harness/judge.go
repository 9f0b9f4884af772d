package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/promptforge/promptforge/internal/llm"
	"github.com/promptforge/promptforge/internal/models"
)

const judgeInstructions = `You are an expert evaluator. Score the actual output the user provides against the supplied criteria.

Respond with a JSON object of this exact shape:
{"score": <integer 0-100>, "rationale": "<what was done well, what was not, and whether the criteria are met>"}`

// buildJudgeInput embeds whichever of expected output and rubric the
// test case carries; both are valid at once and neither excludes the
// other.
func buildJudgeInput(tc *models.TestCase, output string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Test input:\n---\n%s\n---\n\n", tc.Input)
	if tc.Rubric != "" {
		fmt.Fprintf(&b, "Evaluation criteria:\n%s\n\n", tc.Rubric)
	}
	if tc.ExpectedOutput != "" {
		fmt.Fprintf(&b, "Expected output:\n---\n%s\n---\n\n", tc.ExpectedOutput)
	}
	fmt.Fprintf(&b, "Actual output:\n---\n%s\n---", output)

	return b.String()
}

type verdict struct {
	Score     float64
	Rationale string
}

var judgeScorePattern = regexp.MustCompile(`(?i)score"?\s*[:=]\s*(\d+(?:\.\d+)?)`)

// parseVerdict extracts score and rationale from the judge reply,
// falling back to a prose score when the JSON instruction was ignored.
func parseVerdict(content string) verdict {
	content = llm.StripFences(content)

	var parsed struct {
		Score     *float64 `json:"score"`
		Rationale string   `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err == nil && parsed.Score != nil {
		return verdict{Score: clampScore(*parsed.Score), Rationale: parsed.Rationale}
	}

	if m := judgeScorePattern.FindStringSubmatch(content); m != nil {
		if score, err := strconv.ParseFloat(m[1], 64); err == nil {
			return verdict{Score: clampScore(score), Rationale: content}
		}
	}

	return verdict{Score: 0, Rationale: "unscorable judge reply: " + content}
}

func (h *Harness) judge(ctx context.Context, tc *models.TestCase, output string) (verdict, error) {
	resp, err := h.gw.Invoke(ctx, llm.CallRequest{
		Model:        h.cfg.JudgeModel,
		Instructions: judgeInstructions,
		Input:        buildJudgeInput(tc, output),
		Structured:   true,
	})
	if err != nil {
		return verdict{}, err
	}
	return parseVerdict(resp.Content), nil
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
