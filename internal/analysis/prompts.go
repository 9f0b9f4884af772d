package analysis

import (
	"fmt"

	"github.com/promptforge/promptforge/internal/models"
)

// Dimension meta-prompts. Each asks for the same JSON shape so parsing
// stays uniform: {"score": 0-100, "issues": [...], "suggestions": [...]}.

const responseShape = `Respond with a JSON object of this exact shape:
{
  "score": <integer 0-100>,
  "issues": [{"description": "<specific problem>", "location": "<quote or section, optional>", "severity": "low" | "medium" | "high"}],
  "suggestions": ["<concrete recommendation>"]
}`

var dimensionPrompts = map[models.Dimension]string{
	models.DimensionClarity: `You are an expert in prompt engineering. Analyze the following system prompt for CLARITY and AMBIGUITY.

Evaluate:
1. Are instructions clear and unambiguous?
2. Could any part be misinterpreted?
3. Is the language precise and specific?
4. Are there any vague terms that need definition?

` + responseShape,

	models.DimensionCompleteness: `You are an expert in prompt engineering. Analyze the following system prompt for COMPLETENESS and ROBUSTNESS.

Evaluate:
1. Are edge cases handled?
2. Are there gaps in logic or instructions?
3. Does it handle malformed or unexpected inputs?
4. Are all necessary constraints specified?

Report missing elements and unhandled edge cases as issues.

` + responseShape,

	models.DimensionEfficiency: `You are an expert in prompt engineering. Analyze the following system prompt for EFFICIENCY and TOKEN USAGE.

Evaluate:
1. Is there unnecessary verbosity?
2. Can instructions be more concise without losing meaning?
3. Are there redundant statements?
4. Is the structure optimal?

Report redundancies as issues and token reductions as suggestions.

` + responseShape,

	models.DimensionSafety: `You are an expert in AI safety and prompt engineering. Analyze the following system prompt for SAFETY and ETHICAL CONSIDERATIONS.

Evaluate:
1. Are there potential misuse vectors?
2. Does it include appropriate safety guardrails?
3. Are there concerning biases?
4. Does it handle harmful requests appropriately?

Report risks and missing safeguards as issues.

` + responseShape,
}

func buildAnalysisInput(content string) string {
	return fmt.Sprintf("System prompt to analyze:\n---\n%s\n---", content)
}
