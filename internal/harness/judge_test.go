package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/promptforge/promptforge/internal/models"
)

func TestBuildJudgeInputBranching(t *testing.T) {
	base := &models.TestCase{Input: "the input", Rubric: "", ExpectedOutput: ""}

	minimal := buildJudgeInput(base, "the output")
	assert.Contains(t, minimal, "the input")
	assert.Contains(t, minimal, "the output")
	assert.NotContains(t, minimal, "Evaluation criteria")
	assert.NotContains(t, minimal, "Expected output")

	withRubric := *base
	withRubric.Rubric = "must mention the deadline"
	r := buildJudgeInput(&withRubric, "the output")
	assert.Contains(t, r, "Evaluation criteria")
	assert.Contains(t, r, "must mention the deadline")

	withExpected := *base
	withExpected.ExpectedOutput = "golden answer"
	e := buildJudgeInput(&withExpected, "the output")
	assert.Contains(t, e, "Expected output")
	assert.Contains(t, e, "golden answer")

	// Rubric and expected output are not mutually exclusive.
	both := *base
	both.Rubric = "rubric text"
	both.ExpectedOutput = "golden answer"
	b := buildJudgeInput(&both, "the output")
	assert.Contains(t, b, "rubric text")
	assert.Contains(t, b, "golden answer")
}

func TestParseVerdictJSON(t *testing.T) {
	v := parseVerdict(`{"score": 88, "rationale": "covers all criteria"}`)
	assert.Equal(t, 88.0, v.Score)
	assert.Equal(t, "covers all criteria", v.Rationale)
}

func TestParseVerdictClampsScore(t *testing.T) {
	assert.Equal(t, 100.0, parseVerdict(`{"score": 140, "rationale": "x"}`).Score)
	assert.Equal(t, 0.0, parseVerdict(`{"score": -3, "rationale": "x"}`).Score)
}

func TestParseVerdictSalvagesProse(t *testing.T) {
	v := parseVerdict("A solid response. Score: 75. Minor omissions only.")
	assert.Equal(t, 75.0, v.Score)
	assert.NotEmpty(t, v.Rationale)
}

func TestParseVerdictUnscorable(t *testing.T) {
	v := parseVerdict("I refuse to grade this.")
	assert.Equal(t, 0.0, v.Score)
	assert.Contains(t, v.Rationale, "unscorable judge reply")
}

func TestParseVerdictStripsFences(t *testing.T) {
	v := parseVerdict("```json\n{\"score\": 62, \"rationale\": \"ok\"}\n```")
	assert.Equal(t, 62.0, v.Score)
}
