package models

import (
	"time"

	"github.com/google/uuid"
)

// Dimension is one axis of prompt quality assessment.
type Dimension string

const (
	DimensionClarity       Dimension = "clarity"
	DimensionCompleteness  Dimension = "completeness"
	DimensionEfficiency    Dimension = "efficiency"
	DimensionSafety        Dimension = "safety"
	DimensionComprehensive Dimension = "comprehensive"
)

// BaseDimensions are the four dimensions a comprehensive run fans out over.
var BaseDimensions = []Dimension{
	DimensionClarity,
	DimensionCompleteness,
	DimensionEfficiency,
	DimensionSafety,
}

func (d Dimension) Valid() bool {
	switch d {
	case DimensionClarity, DimensionCompleteness, DimensionEfficiency, DimensionSafety, DimensionComprehensive:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// severityRank orders issues for merged comprehensive reports.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

type Issue struct {
	Description string   `json:"description"`
	Location    string   `json:"location,omitempty"`
	Severity    Severity `json:"severity"`
}

// AnalysisReport is the result of one analysis run against one version.
// Repeated runs are all retained for trend display.
type AnalysisReport struct {
	ID          uuid.UUID `json:"id" db:"id"`
	VersionID   uuid.UUID `json:"version_id" db:"version_id"`
	Dimension   Dimension `json:"dimension" db:"dimension"`
	Score       float64   `json:"score" db:"score"`
	Issues      []Issue   `json:"issues" db:"issues"`
	Suggestions []string  `json:"suggestions" db:"suggestions"`

	// PartialParse marks a report assembled from a malformed model reply:
	// best-effort extraction, with MissingFields naming what was absent.
	PartialParse  bool     `json:"partial_parse,omitempty" db:"partial_parse"`
	MissingFields []string `json:"missing_fields,omitempty" db:"missing_fields"`

	// Comprehensive runs only: per-dimension scores that fed the composite
	// and dimensions whose calls failed.
	Breakdown         map[Dimension]float64 `json:"breakdown,omitempty" db:"breakdown"`
	MissingDimensions []Dimension           `json:"missing_dimensions,omitempty" db:"missing_dimensions"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
