package models

import (
	"time"

	"github.com/google/uuid"
)

type Prompt struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description,omitempty" db:"description"`
	CurrentVersion int       `json:"current_version" db:"current_version"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// PromptVersion is an immutable snapshot of a prompt's content.
// Edits never mutate a version; they append a new one.
type PromptVersion struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	PromptID        uuid.UUID  `json:"prompt_id" db:"prompt_id"`
	Version         int        `json:"version" db:"version"`
	Content         string     `json:"content" db:"content"`
	Note            string     `json:"note,omitempty" db:"note"`
	ParentVersionID *uuid.UUID `json:"parent_version_id,omitempty" db:"parent_version_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}
