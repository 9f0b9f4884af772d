package harness

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/promptforge/promptforge/internal/models"
)

// VersionStats aggregates one version's side of a comparison.
type VersionStats struct {
	VersionID uuid.UUID             `json:"version_id"`
	Version   int                   `json:"version"`
	MeanScore float64               `json:"mean_score"`
	PassRate  float64               `json:"pass_rate"`
	ByCase    map[uuid.UUID]float64 `json:"by_case"`
	// Cases where this version deviates from the cross-version case
	// mean by more than the configured margin, in either direction.
	Overperformed  []uuid.UUID `json:"overperformed,omitempty"`
	Underperformed []uuid.UUID `json:"underperformed,omitempty"`
}

// Comparison holds the full result of running the same cases against
// several versions.
type Comparison struct {
	Versions []VersionStats `json:"versions"`
	Runs     []*models.TestRun
}

// Compare runs every case against every version and aggregates per
// version: mean score, pass rate, per-case scores, and the cases where
// a version lands more than the margin away from the cross-version
// mean for that case. Versions run sequentially; within a version the
// batch pool applies. A failed pair contributes its zero score like
// any other result.
func (h *Harness) Compare(ctx context.Context, versions []*models.PromptVersion, cases []models.TestCase) (*Comparison, error) {
	if len(versions) < 2 {
		return nil, fmt.Errorf("comparison needs at least two versions, got %d", len(versions))
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("no test cases to run")
	}

	cmp := &Comparison{Versions: make([]VersionStats, len(versions))}
	for i, v := range versions {
		run, err := h.RunBatch(ctx, v, cases)
		if err != nil {
			return nil, fmt.Errorf("version %d batch: %w", v.Version, err)
		}
		cmp.Runs = append(cmp.Runs, run)

		stats := VersionStats{
			VersionID: v.ID,
			Version:   v.Version,
			ByCase:    make(map[uuid.UUID]float64, len(run.Results)),
		}
		var passed int
		for _, r := range run.Results {
			stats.ByCase[r.TestCaseID] = r.Score
			stats.MeanScore += r.Score
			if r.Passed {
				passed++
			}
		}
		stats.MeanScore /= float64(len(run.Results))
		stats.PassRate = float64(passed) / float64(len(run.Results))
		cmp.Versions[i] = stats
	}

	// Cross-version mean per case, then flag outliers per version.
	caseMeans := make(map[uuid.UUID]float64, len(cases))
	for _, tc := range cases {
		var sum float64
		for _, s := range cmp.Versions {
			sum += s.ByCase[tc.ID]
		}
		caseMeans[tc.ID] = sum / float64(len(versions))
	}
	for i := range cmp.Versions {
		s := &cmp.Versions[i]
		for _, tc := range cases {
			delta := s.ByCase[tc.ID] - caseMeans[tc.ID]
			switch {
			case delta > h.cfg.CompareMargin:
				s.Overperformed = append(s.Overperformed, tc.ID)
			case delta < -h.cfg.CompareMargin:
				s.Underperformed = append(s.Underperformed, tc.ID)
			}
		}
	}

	return cmp, nil
}

// Summary aggregates every stored result for a version.
type Summary struct {
	VersionID uuid.UUID `json:"version_id"`
	Total     int       `json:"total"`
	MeanScore float64   `json:"mean_score"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
}

// Summarize reads the stored results for a version and reports totals.
// Call failures count toward the failed bucket with their zero score.
func (h *Harness) Summarize(ctx context.Context, versionID uuid.UUID) (*Summary, error) {
	results, err := h.store.ListTestResults(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("list test results: %w", err)
	}

	s := &Summary{VersionID: versionID, Total: len(results)}
	if len(results) == 0 {
		return s, nil
	}
	for _, r := range results {
		s.MeanScore += r.Score
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	s.MeanScore /= float64(s.Total)
	return s, nil
}
