package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge/promptforge/internal/models"
)

func TestParseAssessmentWellFormed(t *testing.T) {
	a := parseAssessment(`{
		"score": 82,
		"issues": [{"description": "vague output format", "location": "last paragraph", "severity": "high"}],
		"suggestions": ["specify the output format"]
	}`)

	assert.Equal(t, 82.0, a.Score)
	assert.False(t, a.PartialParse)
	assert.Empty(t, a.MissingFields)
	require.Len(t, a.Issues, 1)
	assert.Equal(t, models.SeverityHigh, a.Issues[0].Severity)
	assert.Equal(t, []string{"specify the output format"}, a.Suggestions)
}

func TestParseAssessmentStripsFences(t *testing.T) {
	a := parseAssessment("```json\n{\"score\": 50, \"issues\": [], \"suggestions\": []}\n```")
	assert.Equal(t, 50.0, a.Score)
	assert.False(t, a.PartialParse)
}

func TestParseAssessmentClampsOutOfRangeSilently(t *testing.T) {
	over := parseAssessment(`{"score": 150, "issues": [], "suggestions": []}`)
	assert.Equal(t, 100.0, over.Score)
	assert.False(t, over.PartialParse, "clamping is not a parse failure")

	under := parseAssessment(`{"score": -5, "issues": [], "suggestions": []}`)
	assert.Equal(t, 0.0, under.Score)
	assert.False(t, under.PartialParse)
}

func TestParseAssessmentMissingScoreIsPartial(t *testing.T) {
	a := parseAssessment(`{"issues": [], "suggestions": []}`)
	assert.True(t, a.PartialParse)
	assert.Contains(t, a.MissingFields, "score")
	assert.Equal(t, 0.0, a.Score)
}

func TestParseAssessmentMissingListsArePartial(t *testing.T) {
	a := parseAssessment(`{"score": 70}`)
	assert.True(t, a.PartialParse)
	assert.Contains(t, a.MissingFields, "issues")
	assert.Contains(t, a.MissingFields, "suggestions")
	assert.Equal(t, 70.0, a.Score)
}

func TestParseAssessmentSalvagesProseScore(t *testing.T) {
	a := parseAssessment("The prompt is decent overall. SCORE: 85. It could be tighter.")
	assert.Equal(t, 85.0, a.Score)
	assert.True(t, a.PartialParse)
	assert.NotContains(t, a.MissingFields, "score")
	assert.Contains(t, a.MissingFields, "issues")
	assert.Contains(t, a.MissingFields, "suggestions")
}

func TestParseAssessmentUnsalvageable(t *testing.T) {
	a := parseAssessment("I cannot evaluate this prompt.")
	assert.Equal(t, 0.0, a.Score)
	assert.True(t, a.PartialParse)
	assert.Contains(t, a.MissingFields, "score")
}

func TestNormalizeIssuesDefaultsUnknownSeverity(t *testing.T) {
	issues := normalizeIssues([]models.Issue{
		{Description: "a", Severity: "CRITICAL"},
		{Description: "b", Severity: "low"},
		{Description: "c", Severity: ""},
	})
	assert.Equal(t, models.SeverityMedium, issues[0].Severity)
	assert.Equal(t, models.SeverityLow, issues[1].Severity)
	assert.Equal(t, models.SeverityMedium, issues[2].Severity)
}
