package queue

const (
	TypeTestRunExecute = "testrun:execute"
	TypeVersionEmbed   = "version:embed"
)

type TestRunExecutePayload struct {
	PromptID  string `json:"prompt_id"`
	VersionID string `json:"version_id"`
	RunID     string `json:"run_id,omitempty"` // set when the run row was pre-created
}

type VersionEmbedPayload struct {
	PromptID  string `json:"prompt_id"`
	VersionID string `json:"version_id"`
}
