package harness

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge/promptforge/internal/llm"
	"github.com/promptforge/promptforge/internal/models"
	"github.com/promptforge/promptforge/internal/store"
)

// fakeInvoker serves both sides of a test pair: execution calls echo a
// key derived from prompt content and case input, judge calls score
// that key from the scripted table.
type fakeInvoker struct {
	mu          sync.Mutex
	scores      map[string]float64 // pairKey -> judge score
	fail        map[string]bool    // pairKey -> execution call fails
	calls       int
	cancel      context.CancelFunc // optional: fired once calls reach cancelAfter
	cancelAfter int
}

func pairKey(content, input string) string {
	return content + "|" + input
}

func (f *fakeInvoker) Invoke(ctx context.Context, req llm.CallRequest) (*llm.CallResponse, error) {
	f.mu.Lock()
	f.calls++
	if f.cancel != nil && f.calls >= f.cancelAfter {
		f.cancel()
	}
	f.mu.Unlock()

	if req.Model == "judge-model" {
		for key, score := range f.scores {
			if strings.Contains(req.Input, key) {
				return &llm.CallResponse{
					Content:  fmt.Sprintf(`{"score": %g, "rationale": "scripted"}`, score),
					Attempts: 1,
				}, nil
			}
		}
		return &llm.CallResponse{Content: `{"score": 0, "rationale": "unknown pair"}`, Attempts: 1}, nil
	}

	key := pairKey(req.Instructions, req.Input)
	if f.fail[key] {
		return nil, &llm.CallError{Kind: llm.KindServerError, Message: "upstream 500", Attempts: 3}
	}
	return &llm.CallResponse{Content: key, Attempts: 1}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	cases   map[uuid.UUID]*models.TestCase
	results []models.TestResult
	runs    map[uuid.UUID]*models.TestRun
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cases: make(map[uuid.UUID]*models.TestCase),
		runs:  make(map[uuid.UUID]*models.TestRun),
	}
}

func (f *fakeStore) GetTestCase(ctx context.Context, id uuid.UUID) (*models.TestCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tc, ok := f.cases[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return tc, nil
}

func (f *fakeStore) ListTestCases(ctx context.Context, promptID uuid.UUID) ([]models.TestCase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TestCase
	for _, tc := range f.cases {
		if tc.PromptID == promptID {
			out = append(out, *tc)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveTestResult(ctx context.Context, r *models.TestResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = uuid.New()
	f.results = append(f.results, *r)
	return nil
}

func (f *fakeStore) ListTestResults(ctx context.Context, versionID uuid.UUID) ([]models.TestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TestResult
	for _, r := range f.results {
		if r.VersionID == versionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateTestRun(ctx context.Context, run *models.TestRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run.ID = uuid.New()
	stored := *run
	f.runs[run.ID] = &stored
	return nil
}

func (f *fakeStore) UpdateTestRunStatus(ctx context.Context, id uuid.UUID, status models.RunStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	run.Status = status
	return nil
}

func (f *fakeStore) GetTestRun(ctx context.Context, id uuid.UUID) (*models.TestRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return run, nil
}

func testConfig() Config {
	return Config{
		Model:         "run-model",
		JudgeModel:    "judge-model",
		PassThreshold: 70,
		Workers:       2,
		CompareMargin: 10,
	}
}

func makeVersion(content string) *models.PromptVersion {
	return &models.PromptVersion{ID: uuid.New(), PromptID: uuid.New(), Version: 1, Content: content}
}

func makeCases(promptID uuid.UUID, inputs ...string) []models.TestCase {
	cases := make([]models.TestCase, len(inputs))
	for i, in := range inputs {
		cases[i] = models.TestCase{ID: uuid.New(), PromptID: promptID, Name: fmt.Sprintf("case-%d", i+1), Input: in}
	}
	return cases
}

func TestRunTestPassesAtThreshold(t *testing.T) {
	v := makeVersion("Summarize.")
	tc := &models.TestCase{ID: uuid.New(), PromptID: v.PromptID, Name: "exact threshold", Input: "some text"}
	inv := &fakeInvoker{scores: map[string]float64{pairKey(v.Content, tc.Input): 70}}
	st := newFakeStore()
	h := New(inv, st, testConfig())

	result, err := h.RunTest(context.Background(), v, tc)
	require.NoError(t, err)
	assert.Equal(t, 70.0, result.Score)
	assert.True(t, result.Passed, "score equal to threshold passes")
	assert.Len(t, st.results, 1)
}

func TestRunTestSurfacesCallFailure(t *testing.T) {
	v := makeVersion("Summarize.")
	tc := &models.TestCase{ID: uuid.New(), PromptID: v.PromptID, Name: "broken", Input: "text"}
	inv := &fakeInvoker{fail: map[string]bool{pairKey(v.Content, tc.Input): true}}
	st := newFakeStore()
	h := New(inv, st, testConfig())

	_, err := h.RunTest(context.Background(), v, tc)
	require.Error(t, err)
	assert.Empty(t, st.results, "failed single run persists nothing")
}

func TestRunBatchRecordsPartialFailureInline(t *testing.T) {
	v := makeVersion("Classify the text.")
	cases := makeCases(v.PromptID, "in1", "in2", "in3", "in4", "in5")

	scores := make(map[string]float64)
	for _, tc := range cases {
		scores[pairKey(v.Content, tc.Input)] = 80
	}
	inv := &fakeInvoker{
		scores: scores,
		fail:   map[string]bool{pairKey(v.Content, "in3"): true},
	}
	st := newFakeStore()
	h := New(inv, st, testConfig())

	run, err := h.RunBatch(context.Background(), v, cases)
	require.NoError(t, err, "one failing pair must not fail a multi-case batch")
	require.Len(t, run.Results, 5)
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	// Case insertion order survives concurrent execution.
	for i, r := range run.Results {
		assert.Equal(t, cases[i].ID, r.TestCaseID)
	}

	failed := run.Results[2]
	assert.True(t, failed.Failed)
	assert.False(t, failed.Passed)
	assert.Equal(t, 0.0, failed.Score)
	assert.Contains(t, failed.Rationale, "call failed")

	for i, r := range run.Results {
		if i == 2 {
			continue
		}
		assert.True(t, r.Passed)
		assert.Equal(t, 80.0, r.Score)
	}
}

func TestRunBatchSingleCaseFailureFailsBatch(t *testing.T) {
	v := makeVersion("Classify.")
	cases := makeCases(v.PromptID, "only")
	inv := &fakeInvoker{fail: map[string]bool{pairKey(v.Content, "only"): true}}
	st := newFakeStore()
	h := New(inv, st, testConfig())

	run, err := h.RunBatch(context.Background(), v, cases)
	require.Error(t, err)
	assert.Equal(t, models.RunStatusFailed, run.Status)
}

func TestRunBatchStopsDispatchingOnCancel(t *testing.T) {
	v := makeVersion("Summarize.")
	cases := makeCases(v.PromptID, "in1", "in2", "in3", "in4", "in5")

	scores := make(map[string]float64)
	for _, tc := range cases {
		scores[pairKey(v.Content, tc.Input)] = 80
	}

	ctx, cancel := context.WithCancel(context.Background())
	// Cancel once the first pair finished (execution + judge call).
	inv := &fakeInvoker{scores: scores, cancel: cancel, cancelAfter: 2}

	cfg := testConfig()
	cfg.Workers = 1
	st := newFakeStore()
	h := New(inv, st, cfg)

	run, err := h.RunBatch(ctx, v, cases)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.RunStatusFailed, run.Status)

	// Completed pairs are kept, undispatched ones never appear.
	assert.NotEmpty(t, run.Results)
	assert.Less(t, len(run.Results), len(cases))
	assert.Equal(t, cases[0].ID, run.Results[0].TestCaseID)
}

func TestCompareAggregatesPerVersion(t *testing.T) {
	v1 := makeVersion("Version one instructions.")
	v2 := &models.PromptVersion{ID: uuid.New(), PromptID: v1.PromptID, Version: 2, Content: "Version two instructions."}
	cases := makeCases(v1.PromptID, "case input A", "case input B")

	inv := &fakeInvoker{scores: map[string]float64{
		pairKey(v1.Content, "case input A"): 90,
		pairKey(v1.Content, "case input B"): 70,
		pairKey(v2.Content, "case input A"): 50,
		pairKey(v2.Content, "case input B"): 80,
	}}
	st := newFakeStore()
	h := New(inv, st, testConfig())

	cmp, err := h.Compare(context.Background(), []*models.PromptVersion{v1, v2}, cases)
	require.NoError(t, err)
	require.Len(t, cmp.Versions, 2)

	s1, s2 := cmp.Versions[0], cmp.Versions[1]
	assert.Equal(t, 80.0, s1.MeanScore)
	assert.Equal(t, 1.0, s1.PassRate)
	assert.Equal(t, 65.0, s2.MeanScore)
	assert.Equal(t, 0.5, s2.PassRate)

	// Case A means 70 across versions: +20 for v1, -20 for v2.
	assert.Equal(t, []uuid.UUID{cases[0].ID}, s1.Overperformed)
	assert.Empty(t, s1.Underperformed)
	assert.Equal(t, []uuid.UUID{cases[0].ID}, s2.Underperformed)
	assert.Empty(t, s2.Overperformed)
}

func TestCompareNeedsTwoVersions(t *testing.T) {
	h := New(&fakeInvoker{}, newFakeStore(), testConfig())
	v := makeVersion("x")

	_, err := h.Compare(context.Background(), []*models.PromptVersion{v}, makeCases(v.PromptID, "in"))
	assert.Error(t, err)
}

func TestSummarizeAggregatesStoredResults(t *testing.T) {
	st := newFakeStore()
	versionID := uuid.New()
	st.results = []models.TestResult{
		{VersionID: versionID, Score: 90, Passed: true},
		{VersionID: versionID, Score: 60, Passed: false},
		{VersionID: versionID, Score: 0, Passed: false, Failed: true},
		{VersionID: uuid.New(), Score: 100, Passed: true}, // other version, excluded
	}
	h := New(&fakeInvoker{}, st, testConfig())

	s, err := h.Summarize(context.Background(), versionID)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 50.0, s.MeanScore)
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 2, s.Failed)
}

func TestSummarizeEmpty(t *testing.T) {
	h := New(&fakeInvoker{}, newFakeStore(), testConfig())

	s, err := h.Summarize(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Total)
	assert.Equal(t, 0.0, s.MeanScore)
}
