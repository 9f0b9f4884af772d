package models

import (
	"time"

	"github.com/google/uuid"
)

// TestCase belongs to a prompt, not a version, so it can be run
// against any version in the history.
type TestCase struct {
	ID             uuid.UUID `json:"id" db:"id"`
	PromptID       uuid.UUID `json:"prompt_id" db:"prompt_id"`
	Name           string    `json:"name" db:"name"`
	Input          string    `json:"input" db:"input"`
	ExpectedOutput string    `json:"expected_output,omitempty" db:"expected_output"`
	Rubric         string    `json:"rubric,omitempty" db:"rubric"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type TestResult struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	RunID      *uuid.UUID `json:"run_id,omitempty" db:"run_id"`
	TestCaseID uuid.UUID  `json:"test_case_id" db:"test_case_id"`
	VersionID  uuid.UUID  `json:"version_id" db:"version_id"`
	Output     string     `json:"output" db:"output"`
	Score      float64    `json:"score" db:"score"`
	Rationale  string     `json:"rationale,omitempty" db:"rationale"`
	Passed     bool       `json:"passed" db:"passed"`
	Failed     bool       `json:"failed" db:"failed"` // gateway call failed, score recorded as 0
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// TestRun groups the results of one batch invocation.
type TestRun struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	VersionID   uuid.UUID    `json:"version_id" db:"version_id"`
	Status      RunStatus    `json:"status" db:"status"`
	Results     []TestResult `json:"results,omitempty" db:"-"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
}
