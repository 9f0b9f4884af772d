package analysis

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/promptforge/promptforge/internal/llm"
	"github.com/promptforge/promptforge/internal/models"
)

// assessment is the engine's view of one parsed model reply.
type assessment struct {
	Score         float64
	Issues        []models.Issue
	Suggestions   []string
	PartialParse  bool
	MissingFields []string
}

// rawAssessment mirrors the requested JSON shape with pointer fields so
// absence is distinguishable from zero.
type rawAssessment struct {
	Score       *float64       `json:"score"`
	Issues      []models.Issue `json:"issues"`
	Suggestions []string       `json:"suggestions"`
}

// scorePattern salvages a score from replies that ignored the JSON
// instruction (the model sometimes answers in prose with "SCORE: 85").
var scorePattern = regexp.MustCompile(`(?i)score"?\s*[:=]\s*(\d+(?:\.\d+)?)`)

// parseAssessment extracts whatever it can from a model reply. A
// malformed reply degrades to best-effort extraction with PartialParse
// set; it never fabricates fields it cannot find.
func parseAssessment(content string) assessment {
	content = llm.StripFences(content)

	var raw rawAssessment
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return salvage(content)
	}

	a := assessment{
		Issues:      normalizeIssues(raw.Issues),
		Suggestions: raw.Suggestions,
	}
	if raw.Score == nil {
		a.PartialParse = true
		a.MissingFields = append(a.MissingFields, "score")
	} else {
		a.Score = clampScore(*raw.Score)
	}
	if raw.Issues == nil {
		a.PartialParse = true
		a.MissingFields = append(a.MissingFields, "issues")
	}
	if raw.Suggestions == nil {
		a.PartialParse = true
		a.MissingFields = append(a.MissingFields, "suggestions")
	}
	return a
}

// salvage handles non-JSON replies: pull a score out of the text if one
// is present, and report everything else missing.
func salvage(content string) assessment {
	a := assessment{
		PartialParse:  true,
		MissingFields: []string{"issues", "suggestions"},
	}

	if m := scorePattern.FindStringSubmatch(content); m != nil {
		if score, err := strconv.ParseFloat(m[1], 64); err == nil {
			a.Score = clampScore(score)
			return a
		}
	}

	a.MissingFields = append([]string{"score"}, a.MissingFields...)
	return a
}

func normalizeIssues(issues []models.Issue) []models.Issue {
	for i := range issues {
		switch models.Severity(strings.ToLower(string(issues[i].Severity))) {
		case models.SeverityLow:
			issues[i].Severity = models.SeverityLow
		case models.SeverityHigh:
			issues[i].Severity = models.SeverityHigh
		default:
			issues[i].Severity = models.SeverityMedium
		}
	}
	return issues
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
