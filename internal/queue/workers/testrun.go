// Package workers holds the asynq task handlers run by the worker
// binary.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/promptforge/promptforge/internal/harness"
	"github.com/promptforge/promptforge/internal/models"
	"github.com/promptforge/promptforge/internal/queue"
)

// TestRunStore is the slice of the persistence boundary the batch
// worker needs beyond what the harness owns.
type TestRunStore interface {
	GetVersion(ctx context.Context, id uuid.UUID) (*models.PromptVersion, error)
	ListTestCases(ctx context.Context, promptID uuid.UUID) ([]models.TestCase, error)
}

type TestRunWorker struct {
	store   TestRunStore
	harness *harness.Harness
}

func NewTestRunWorker(store TestRunStore, h *harness.Harness) *TestRunWorker {
	return &TestRunWorker{store: store, harness: h}
}

func (w *TestRunWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.TestRunExecutePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	promptID, err := uuid.Parse(payload.PromptID)
	if err != nil {
		return fmt.Errorf("parse prompt ID: %w", err)
	}
	versionID, err := uuid.Parse(payload.VersionID)
	if err != nil {
		return fmt.Errorf("parse version ID: %w", err)
	}

	version, err := w.store.GetVersion(ctx, versionID)
	if err != nil {
		return fmt.Errorf("load version: %w", err)
	}
	cases, err := w.store.ListTestCases(ctx, promptID)
	if err != nil {
		return fmt.Errorf("list test cases: %w", err)
	}

	slog.Info("executing batch test run", "version_id", versionID, "cases", len(cases))

	run, err := w.harness.RunBatch(ctx, version, cases)
	if err != nil {
		return fmt.Errorf("run batch: %w", err)
	}

	slog.Info("batch test run finished", "run_id", run.ID, "status", run.Status, "results", len(run.Results))
	return nil
}
