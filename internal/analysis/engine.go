// Package analysis orchestrates multi-dimension prompt quality
// assessment through the call gateway.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/promptforge/promptforge/internal/llm"
	"github.com/promptforge/promptforge/internal/models"
)

// ErrAnalysisFailed wraps gateway failures surfaced from a dimension call.
var ErrAnalysisFailed = errors.New("analysis failed")

// Store is the slice of the persistence boundary this engine needs.
type Store interface {
	SaveAnalysis(ctx context.Context, r *models.AnalysisReport) error
	ListAnalyses(ctx context.Context, versionID uuid.UUID) ([]models.AnalysisReport, error)
}

type Engine struct {
	gw      llm.Invoker
	store   Store
	model   string
	workers int
}

func NewEngine(gw llm.Invoker, store Store, model string, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{gw: gw, store: store, model: model, workers: workers}
}

// Analyze runs one dimension against a version and persists the report.
// The comprehensive dimension fans out over all base dimensions.
func (e *Engine) Analyze(ctx context.Context, version *models.PromptVersion, dim models.Dimension) (*models.AnalysisReport, error) {
	if !dim.Valid() {
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}
	if dim == models.DimensionComprehensive {
		composite, _, err := e.AnalyzeComprehensive(ctx, version)
		return composite, err
	}

	report, err := e.runDimension(ctx, version, dim)
	if err != nil {
		return nil, err
	}
	if err := e.store.SaveAnalysis(ctx, report); err != nil {
		return nil, fmt.Errorf("persist %s report: %w", dim, err)
	}
	return report, nil
}

// AnalyzeComprehensive runs all four base dimensions through a bounded
// pool, persists each successful report, and assembles an
// equal-weighted composite. One dimension failing does not abort the
// rest; the run fails only when every dimension fails.
func (e *Engine) AnalyzeComprehensive(ctx context.Context, version *models.PromptVersion) (*models.AnalysisReport, []models.AnalysisReport, error) {
	dims := models.BaseDimensions
	reports := make([]*models.AnalysisReport, len(dims))
	errs := make([]error, len(dims))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, dim := range dims {
		g.Go(func() error {
			r, err := e.runDimension(gctx, version, dim)
			if err != nil {
				// Recorded, not returned: the other dimensions keep going.
				errs[i] = err
				slog.Warn("dimension analysis failed", "dimension", dim, "version_id", version.ID, "error", err)
				return nil
			}
			reports[i] = r
			return nil
		})
	}
	g.Wait()

	// Assembled in fixed dimension order so output is deterministic
	// regardless of which goroutine finished first.
	composite := &models.AnalysisReport{
		VersionID: version.ID,
		Dimension: models.DimensionComprehensive,
		Breakdown: make(map[models.Dimension]float64),
	}
	var succeeded []models.AnalysisReport
	var total float64
	for i, dim := range dims {
		r := reports[i]
		if r == nil {
			composite.MissingDimensions = append(composite.MissingDimensions, dim)
			continue
		}
		if err := e.store.SaveAnalysis(ctx, r); err != nil {
			return nil, nil, fmt.Errorf("persist %s report: %w", dim, err)
		}
		succeeded = append(succeeded, *r)
		composite.Breakdown[dim] = r.Score
		total += r.Score
		composite.Issues = append(composite.Issues, r.Issues...)
		composite.Suggestions = append(composite.Suggestions, r.Suggestions...)
		if r.PartialParse {
			composite.PartialParse = true
		}
	}

	if len(succeeded) == 0 {
		return nil, nil, fmt.Errorf("%w: all dimensions failed: %v", ErrAnalysisFailed, errors.Join(errs...))
	}

	composite.Score = total / float64(len(succeeded))
	sort.SliceStable(composite.Issues, func(i, j int) bool {
		return composite.Issues[i].Severity.Rank() > composite.Issues[j].Severity.Rank()
	})

	if err := e.store.SaveAnalysis(ctx, composite); err != nil {
		return nil, nil, fmt.Errorf("persist composite report: %w", err)
	}
	return composite, succeeded, nil
}

// History returns all retained reports for a version, newest first.
func (e *Engine) History(ctx context.Context, versionID uuid.UUID) ([]models.AnalysisReport, error) {
	return e.store.ListAnalyses(ctx, versionID)
}

func (e *Engine) runDimension(ctx context.Context, version *models.PromptVersion, dim models.Dimension) (*models.AnalysisReport, error) {
	resp, err := e.gw.Invoke(ctx, llm.CallRequest{
		Model:        e.model,
		Instructions: dimensionPrompts[dim],
		Input:        buildAnalysisInput(version.Content),
		Structured:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s dimension: %w", ErrAnalysisFailed, dim, err)
	}

	a := parseAssessment(resp.Content)
	if a.PartialParse {
		slog.Warn("partial analysis parse",
			"dimension", dim,
			"version_id", version.ID,
			"missing", a.MissingFields,
		)
	}

	return &models.AnalysisReport{
		VersionID:     version.ID,
		Dimension:     dim,
		Score:         a.Score,
		Issues:        a.Issues,
		Suggestions:   a.Suggestions,
		PartialParse:  a.PartialParse,
		MissingFields: a.MissingFields,
	}, nil
}
