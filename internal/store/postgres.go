package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptforge/promptforge/internal/models"
)

type Postgres struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// CreatePrompt inserts a prompt together with its initial version, so a
// prompt never exists without at least one version.
func (s *Postgres) CreatePrompt(ctx context.Context, name, description, content, note string) (*models.Prompt, *models.PromptVersion, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var p models.Prompt
	err = tx.QueryRow(ctx,
		`INSERT INTO prompts (id, name, description, current_version)
		 VALUES ($1, $2, $3, 1)
		 RETURNING id, name, description, current_version, created_at, updated_at`,
		uuid.New(), name, description,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CurrentVersion, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("insert prompt: %w", err)
	}

	var v models.PromptVersion
	err = tx.QueryRow(ctx,
		`INSERT INTO prompt_versions (id, prompt_id, version, content, note)
		 VALUES ($1, $2, 1, $3, $4)
		 RETURNING id, prompt_id, version, content, note, parent_version_id, created_at`,
		uuid.New(), p.ID, content, note,
	).Scan(&v.ID, &v.PromptID, &v.Version, &v.Content, &v.Note, &v.ParentVersionID, &v.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("insert initial version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return &p, &v, nil
}

func (s *Postgres) GetPrompt(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	var p models.Prompt
	err := s.db.QueryRow(ctx,
		`SELECT id, name, description, current_version, created_at, updated_at
		 FROM prompts WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CurrentVersion, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Postgres) ListPrompts(ctx context.Context, limit, offset int) ([]models.Prompt, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, description, current_version, created_at, updated_at
		 FROM prompts ORDER BY updated_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []models.Prompt
	for rows.Next() {
		var p models.Prompt
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CurrentVersion, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// DeletePrompt cascades to versions, test cases, analyses and results
// through the schema's ON DELETE CASCADE constraints.
func (s *Postgres) DeletePrompt(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM prompts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendVersion allocates the next sequence number for the prompt under
// a row lock, inserts the snapshot, and moves the current-version
// pointer forward. History is append-only; nothing is ever rewritten.
func (s *Postgres) AppendVersion(ctx context.Context, promptID uuid.UUID, content, note string, parent *uuid.UUID) (*models.PromptVersion, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentVersion int
	err = tx.QueryRow(ctx,
		`SELECT current_version FROM prompts WHERE id = $1 FOR UPDATE`, promptID,
	).Scan(&currentVersion)
	if err != nil {
		return nil, notFound(err)
	}

	newVersion := currentVersion + 1

	var v models.PromptVersion
	err = tx.QueryRow(ctx,
		`INSERT INTO prompt_versions (id, prompt_id, version, content, note, parent_version_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, prompt_id, version, content, note, parent_version_id, created_at`,
		uuid.New(), promptID, newVersion, content, note, parent,
	).Scan(&v.ID, &v.PromptID, &v.Version, &v.Content, &v.Note, &v.ParentVersionID, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE prompts SET current_version = $1, updated_at = now() WHERE id = $2`,
		newVersion, promptID,
	)
	if err != nil {
		return nil, fmt.Errorf("update current version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &v, nil
}

func (s *Postgres) GetVersion(ctx context.Context, id uuid.UUID) (*models.PromptVersion, error) {
	var v models.PromptVersion
	err := s.db.QueryRow(ctx,
		`SELECT id, prompt_id, version, content, note, parent_version_id, created_at
		 FROM prompt_versions WHERE id = $1`, id,
	).Scan(&v.ID, &v.PromptID, &v.Version, &v.Content, &v.Note, &v.ParentVersionID, &v.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (s *Postgres) GetCurrentVersion(ctx context.Context, promptID uuid.UUID) (*models.PromptVersion, error) {
	var v models.PromptVersion
	err := s.db.QueryRow(ctx,
		`SELECT v.id, v.prompt_id, v.version, v.content, v.note, v.parent_version_id, v.created_at
		 FROM prompt_versions v
		 JOIN prompts p ON p.id = v.prompt_id AND p.current_version = v.version
		 WHERE p.id = $1`, promptID,
	).Scan(&v.ID, &v.PromptID, &v.Version, &v.Content, &v.Note, &v.ParentVersionID, &v.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// ListVersions returns the full history oldest first.
func (s *Postgres) ListVersions(ctx context.Context, promptID uuid.UUID) ([]models.PromptVersion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, prompt_id, version, content, note, parent_version_id, created_at
		 FROM prompt_versions WHERE prompt_id = $1 ORDER BY version ASC`,
		promptID,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []models.PromptVersion
	for rows.Next() {
		var v models.PromptVersion
		if err := rows.Scan(&v.ID, &v.PromptID, &v.Version, &v.Content, &v.Note, &v.ParentVersionID, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *Postgres) SaveAnalysis(ctx context.Context, r *models.AnalysisReport) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	issues, err := json.Marshal(r.Issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}
	suggestions, err := json.Marshal(r.Suggestions)
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}
	var breakdown []byte
	if r.Breakdown != nil {
		if breakdown, err = json.Marshal(r.Breakdown); err != nil {
			return fmt.Errorf("marshal breakdown: %w", err)
		}
	}
	var missingFields, missingDims []byte
	if r.MissingFields != nil {
		missingFields, _ = json.Marshal(r.MissingFields)
	}
	if r.MissingDimensions != nil {
		missingDims, _ = json.Marshal(r.MissingDimensions)
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO analysis_reports
		   (id, version_id, dimension, score, issues, suggestions, partial_parse, missing_fields, breakdown, missing_dimensions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at`,
		r.ID, r.VersionID, r.Dimension, r.Score, issues, suggestions,
		r.PartialParse, missingFields, breakdown, missingDims,
	).Scan(&r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis report: %w", err)
	}
	return nil
}

// ListAnalyses returns every retained report for a version, newest
// first, for historical trend display.
func (s *Postgres) ListAnalyses(ctx context.Context, versionID uuid.UUID) ([]models.AnalysisReport, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, version_id, dimension, score, issues, suggestions,
		        partial_parse, missing_fields, breakdown, missing_dimensions, created_at
		 FROM analysis_reports WHERE version_id = $1 ORDER BY created_at DESC`,
		versionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var reports []models.AnalysisReport
	for rows.Next() {
		var r models.AnalysisReport
		var issues, suggestions, missingFields, breakdown, missingDims []byte
		if err := rows.Scan(&r.ID, &r.VersionID, &r.Dimension, &r.Score, &issues, &suggestions,
			&r.PartialParse, &missingFields, &breakdown, &missingDims, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		if len(issues) > 0 {
			if err := json.Unmarshal(issues, &r.Issues); err != nil {
				return nil, fmt.Errorf("unmarshal issues: %w", err)
			}
		}
		if len(suggestions) > 0 {
			if err := json.Unmarshal(suggestions, &r.Suggestions); err != nil {
				return nil, fmt.Errorf("unmarshal suggestions: %w", err)
			}
		}
		if len(missingFields) > 0 {
			json.Unmarshal(missingFields, &r.MissingFields)
		}
		if len(breakdown) > 0 {
			json.Unmarshal(breakdown, &r.Breakdown)
		}
		if len(missingDims) > 0 {
			json.Unmarshal(missingDims, &r.MissingDimensions)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *Postgres) CreateTestCase(ctx context.Context, tc *models.TestCase) error {
	if tc.ID == uuid.Nil {
		tc.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO test_cases (id, prompt_id, name, input, expected_output, rubric)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		tc.ID, tc.PromptID, tc.Name, tc.Input, tc.ExpectedOutput, tc.Rubric,
	).Scan(&tc.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert test case: %w", err)
	}
	return nil
}

func (s *Postgres) GetTestCase(ctx context.Context, id uuid.UUID) (*models.TestCase, error) {
	var tc models.TestCase
	err := s.db.QueryRow(ctx,
		`SELECT id, prompt_id, name, input, expected_output, rubric, created_at
		 FROM test_cases WHERE id = $1`, id,
	).Scan(&tc.ID, &tc.PromptID, &tc.Name, &tc.Input, &tc.ExpectedOutput, &tc.Rubric, &tc.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &tc, nil
}

// ListTestCases preserves insertion order so batch runs and displays
// are stable.
func (s *Postgres) ListTestCases(ctx context.Context, promptID uuid.UUID) ([]models.TestCase, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, prompt_id, name, input, expected_output, rubric, created_at
		 FROM test_cases WHERE prompt_id = $1 ORDER BY created_at ASC, id ASC`,
		promptID,
	)
	if err != nil {
		return nil, fmt.Errorf("list test cases: %w", err)
	}
	defer rows.Close()

	var cases []models.TestCase
	for rows.Next() {
		var tc models.TestCase
		if err := rows.Scan(&tc.ID, &tc.PromptID, &tc.Name, &tc.Input, &tc.ExpectedOutput, &tc.Rubric, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan test case: %w", err)
		}
		cases = append(cases, tc)
	}
	return cases, rows.Err()
}

func (s *Postgres) DeleteTestCase(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM test_cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete test case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) SaveTestResult(ctx context.Context, r *models.TestResult) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO test_results (id, run_id, test_case_id, version_id, output, score, rationale, passed, failed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		r.ID, r.RunID, r.TestCaseID, r.VersionID, r.Output, r.Score, r.Rationale, r.Passed, r.Failed,
	).Scan(&r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert test result: %w", err)
	}
	return nil
}

func (s *Postgres) ListTestResults(ctx context.Context, versionID uuid.UUID) ([]models.TestResult, error) {
	return s.queryResults(ctx,
		`SELECT id, run_id, test_case_id, version_id, output, score, rationale, passed, failed, created_at
		 FROM test_results WHERE version_id = $1 ORDER BY created_at DESC`,
		versionID,
	)
}

func (s *Postgres) ListRunResults(ctx context.Context, runID uuid.UUID) ([]models.TestResult, error) {
	return s.queryResults(ctx,
		`SELECT id, run_id, test_case_id, version_id, output, score, rationale, passed, failed, created_at
		 FROM test_results WHERE run_id = $1 ORDER BY created_at ASC`,
		runID,
	)
}

func (s *Postgres) queryResults(ctx context.Context, sql string, args ...any) ([]models.TestResult, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query test results: %w", err)
	}
	defer rows.Close()

	var results []models.TestResult
	for rows.Next() {
		var r models.TestResult
		if err := rows.Scan(&r.ID, &r.RunID, &r.TestCaseID, &r.VersionID, &r.Output,
			&r.Score, &r.Rationale, &r.Passed, &r.Failed, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan test result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Postgres) CreateTestRun(ctx context.Context, run *models.TestRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = models.RunStatusPending
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO test_runs (id, version_id, status) VALUES ($1, $2, $3) RETURNING created_at`,
		run.ID, run.VersionID, run.Status,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert test run: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateTestRunStatus(ctx context.Context, id uuid.UUID, status models.RunStatus) error {
	var completedAt *time.Time
	if status == models.RunStatusCompleted || status == models.RunStatusFailed {
		now := time.Now().UTC()
		completedAt = &now
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE test_runs SET status = $1, completed_at = $2 WHERE id = $3`,
		status, completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update test run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) GetTestRun(ctx context.Context, id uuid.UUID) (*models.TestRun, error) {
	var run models.TestRun
	err := s.db.QueryRow(ctx,
		`SELECT id, version_id, status, created_at, completed_at FROM test_runs WHERE id = $1`, id,
	).Scan(&run.ID, &run.VersionID, &run.Status, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		return nil, notFound(err)
	}

	results, err := s.ListRunResults(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Results = results
	return &run, nil
}
