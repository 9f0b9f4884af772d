package version

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge/promptforge/internal/models"
	"github.com/promptforge/promptforge/internal/store"
)

// fakeStore keeps everything in memory and mirrors the append-only
// versioning contract of the real store.
type fakeStore struct {
	prompts  map[uuid.UUID]*models.Prompt
	versions []models.PromptVersion
}

func newFakeStore() *fakeStore {
	return &fakeStore{prompts: make(map[uuid.UUID]*models.Prompt)}
}

func (f *fakeStore) CreatePrompt(ctx context.Context, name, description, content, note string) (*models.Prompt, *models.PromptVersion, error) {
	p := &models.Prompt{ID: uuid.New(), Name: name, Description: description, CurrentVersion: 1}
	f.prompts[p.ID] = p
	v := models.PromptVersion{ID: uuid.New(), PromptID: p.ID, Version: 1, Content: content, Note: note}
	f.versions = append(f.versions, v)
	return p, &v, nil
}

func (f *fakeStore) GetPrompt(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	p, ok := f.prompts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ListPrompts(ctx context.Context, limit, offset int) ([]models.Prompt, error) {
	var out []models.Prompt
	for _, p := range f.prompts {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) DeletePrompt(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.prompts[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.prompts, id)
	return nil
}

func (f *fakeStore) AppendVersion(ctx context.Context, promptID uuid.UUID, content, note string, parent *uuid.UUID) (*models.PromptVersion, error) {
	p, ok := f.prompts[promptID]
	if !ok {
		return nil, store.ErrNotFound
	}
	v := models.PromptVersion{
		ID:              uuid.New(),
		PromptID:        promptID,
		Version:         p.CurrentVersion + 1,
		Content:         content,
		Note:            note,
		ParentVersionID: parent,
	}
	f.versions = append(f.versions, v)
	p.CurrentVersion = v.Version
	return &v, nil
}

func (f *fakeStore) GetVersion(ctx context.Context, id uuid.UUID) (*models.PromptVersion, error) {
	for i := range f.versions {
		if f.versions[i].ID == id {
			return &f.versions[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetCurrentVersion(ctx context.Context, promptID uuid.UUID) (*models.PromptVersion, error) {
	p, ok := f.prompts[promptID]
	if !ok {
		return nil, store.ErrNotFound
	}
	for i := range f.versions {
		if f.versions[i].PromptID == promptID && f.versions[i].Version == p.CurrentVersion {
			return &f.versions[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListVersions(ctx context.Context, promptID uuid.UUID) ([]models.PromptVersion, error) {
	var out []models.PromptVersion
	for _, v := range f.versions {
		if v.PromptID == promptID {
			out = append(out, v)
		}
	}
	return out, nil
}

func TestHistoryNumbersAreSequential(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil)
	ctx := context.Background()

	p, _, err := svc.CreatePrompt(ctx, "summarizer", "", "v1 content", "initial")
	require.NoError(t, err)

	for i := 2; i <= 5; i++ {
		_, err := svc.CreateVersion(ctx, p.ID, "content", "edit", nil)
		require.NoError(t, err)
	}

	history, err := svc.History(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i, v := range history {
		assert.Equal(t, i+1, v.Version)
	}

	current, err := svc.Current(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, current.Version)
}

func TestRollbackAppendsNewVersion(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil)
	ctx := context.Background()

	p, v1, err := svc.CreatePrompt(ctx, "classifier", "", "original content", "initial")
	require.NoError(t, err)
	_, err = svc.CreateVersion(ctx, p.ID, "changed content", "rewrite", nil)
	require.NoError(t, err)

	rolled, err := svc.Rollback(ctx, p.ID, v1.ID)
	require.NoError(t, err)

	// Rollback moves forward: a third version carrying the old content.
	assert.Equal(t, 3, rolled.Version)
	assert.Equal(t, "original content", rolled.Content)
	assert.Equal(t, "rollback to version 1", rolled.Note)
	require.NotNil(t, rolled.ParentVersionID)
	assert.Equal(t, v1.ID, *rolled.ParentVersionID)

	history, err := svc.History(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestRollbackRejectsForeignVersion(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil)
	ctx := context.Background()

	pa, _, err := svc.CreatePrompt(ctx, "a", "", "content a", "")
	require.NoError(t, err)
	_, vb, err := svc.CreatePrompt(ctx, "b", "", "content b", "")
	require.NoError(t, err)

	_, err = svc.Rollback(ctx, pa.ID, vb.ID)
	assert.Error(t, err)
}

func TestDiffVersionsSelfDiffIsAllEqual(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil)
	ctx := context.Background()

	_, v1, err := svc.CreatePrompt(ctx, "p", "", "line one\nline two\n", "")
	require.NoError(t, err)

	ops, err := svc.DiffVersions(ctx, v1.ID, v1.ID)
	require.NoError(t, err)
	require.NotEmpty(t, ops)
	for _, op := range ops {
		assert.Equal(t, OpEqual, op.Op)
	}
}
