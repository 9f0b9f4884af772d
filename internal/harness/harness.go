// Package harness executes prompt versions against stored test cases
// and scores the outputs with a judge call.
package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/promptforge/promptforge/internal/llm"
	"github.com/promptforge/promptforge/internal/models"
)

// Store is the slice of the persistence boundary this harness needs.
type Store interface {
	GetTestCase(ctx context.Context, id uuid.UUID) (*models.TestCase, error)
	ListTestCases(ctx context.Context, promptID uuid.UUID) ([]models.TestCase, error)
	SaveTestResult(ctx context.Context, r *models.TestResult) error
	ListTestResults(ctx context.Context, versionID uuid.UUID) ([]models.TestResult, error)
	CreateTestRun(ctx context.Context, run *models.TestRun) error
	UpdateTestRunStatus(ctx context.Context, id uuid.UUID, status models.RunStatus) error
	GetTestRun(ctx context.Context, id uuid.UUID) (*models.TestRun, error)
}

type Config struct {
	Model         string  // model under test execution
	JudgeModel    string  // model scoring the outputs
	PassThreshold float64 // score >= threshold counts as pass
	Workers       int     // bounded pool for batch execution
	CompareMargin float64 // per-case deviation worth flagging
}

type Harness struct {
	gw    llm.Invoker
	store Store
	cfg   Config
}

func New(gw llm.Invoker, store Store, cfg Config) *Harness {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PassThreshold == 0 {
		cfg.PassThreshold = 70
	}
	if cfg.CompareMargin == 0 {
		cfg.CompareMargin = 10
	}
	return &Harness{gw: gw, store: store, cfg: cfg}
}

// RunTest executes one case against one version, judges the output,
// and persists the result. A gateway failure surfaces as an error here;
// inline failure recording is a batch behavior.
func (h *Harness) RunTest(ctx context.Context, version *models.PromptVersion, tc *models.TestCase) (*models.TestResult, error) {
	result := h.executePair(ctx, version, tc, nil)
	if result.Failed {
		return nil, fmt.Errorf("test %q: %s", tc.Name, result.Rationale)
	}
	if err := h.store.SaveTestResult(ctx, result); err != nil {
		return nil, fmt.Errorf("persist test result: %w", err)
	}
	return result, nil
}

// RunBatch executes every case against the version through a bounded
// worker pool. One pair's gateway failure is recorded as a zero-score
// result instead of aborting the batch; the batch itself fails only
// when its single constituent fails. Results are assembled and
// persisted in case insertion order regardless of completion order,
// and cancellation is honored between pairs, keeping completed results.
func (h *Harness) RunBatch(ctx context.Context, version *models.PromptVersion, cases []models.TestCase) (*models.TestRun, error) {
	if len(cases) == 0 {
		return nil, fmt.Errorf("no test cases to run")
	}

	run := &models.TestRun{VersionID: version.ID, Status: models.RunStatusRunning}
	if err := h.store.CreateTestRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create test run: %w", err)
	}

	results := make([]*models.TestResult, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.Workers)
	for i := range cases {
		// Cooperative cancellation: stop dispatching once the batch
		// context is gone, completed pairs stay.
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil // pool slot freed after cancellation, pair stays unrecorded
			}
			results[i] = h.executePair(gctx, version, &cases[i], &run.ID)
			return nil
		})
	}
	g.Wait()

	run.Results = run.Results[:0]
	for _, r := range results {
		if r == nil {
			continue // pair never dispatched (cancelled)
		}
		if err := h.store.SaveTestResult(ctx, r); err != nil {
			return nil, fmt.Errorf("persist test result: %w", err)
		}
		run.Results = append(run.Results, *r)
	}

	if err := ctx.Err(); err != nil {
		h.finishRun(run, models.RunStatusFailed)
		return run, fmt.Errorf("batch cancelled after %d of %d cases: %w", len(run.Results), len(cases), err)
	}

	if len(cases) == 1 && run.Results[0].Failed {
		h.finishRun(run, models.RunStatusFailed)
		return run, fmt.Errorf("batch failed: %s", run.Results[0].Rationale)
	}

	h.finishRun(run, models.RunStatusCompleted)
	return run, nil
}

func (h *Harness) finishRun(run *models.TestRun, status models.RunStatus) {
	run.Status = status
	// Status bookkeeping must not lose an otherwise-complete batch.
	if err := h.store.UpdateTestRunStatus(context.Background(), run.ID, status); err != nil {
		slog.Warn("failed to update test run status", "run_id", run.ID, "status", status, "error", err)
	}
}

// executePair performs the two calls of a single test: run the version
// against the case input, then judge the output. Gateway failures come
// back as a zero-score failure result, never a panic or partial write.
func (h *Harness) executePair(ctx context.Context, version *models.PromptVersion, tc *models.TestCase, runID *uuid.UUID) *models.TestResult {
	result := &models.TestResult{
		RunID:      runID,
		TestCaseID: tc.ID,
		VersionID:  version.ID,
	}

	resp, err := h.gw.Invoke(ctx, llm.CallRequest{
		Model:        h.cfg.Model,
		Instructions: version.Content,
		Input:        tc.Input,
	})
	if err != nil {
		result.Failed = true
		result.Rationale = "call failed: " + err.Error()
		return result
	}
	result.Output = resp.Content

	v, err := h.judge(ctx, tc, resp.Content)
	if err != nil {
		result.Failed = true
		result.Rationale = "judge call failed: " + err.Error()
		return result
	}

	result.Score = v.Score
	result.Rationale = v.Rationale
	result.Passed = v.Score >= h.cfg.PassThreshold
	return result
}
