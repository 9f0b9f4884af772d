// Package version tracks prompt content history: append-only version
// creation, on-demand diffs, and forward-moving rollback.
package version

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/promptforge/promptforge/internal/models"
)

// Store is the slice of the persistence boundary this service needs.
type Store interface {
	CreatePrompt(ctx context.Context, name, description, content, note string) (*models.Prompt, *models.PromptVersion, error)
	GetPrompt(ctx context.Context, id uuid.UUID) (*models.Prompt, error)
	ListPrompts(ctx context.Context, limit, offset int) ([]models.Prompt, error)
	DeletePrompt(ctx context.Context, id uuid.UUID) error
	AppendVersion(ctx context.Context, promptID uuid.UUID, content, note string, parent *uuid.UUID) (*models.PromptVersion, error)
	GetVersion(ctx context.Context, id uuid.UUID) (*models.PromptVersion, error)
	GetCurrentVersion(ctx context.Context, promptID uuid.UUID) (*models.PromptVersion, error)
	ListVersions(ctx context.Context, promptID uuid.UUID) ([]models.PromptVersion, error)
}

// Cache is an optional read cache for current-version lookups.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

const currentVersionTTL = 60 * time.Second

type Service struct {
	store Store
	cache Cache // nil = no caching
}

func NewService(store Store, cache Cache) *Service {
	return &Service{store: store, cache: cache}
}

func (s *Service) CreatePrompt(ctx context.Context, name, description, content, note string) (*models.Prompt, *models.PromptVersion, error) {
	return s.store.CreatePrompt(ctx, name, description, content, note)
}

func (s *Service) GetPrompt(ctx context.Context, id uuid.UUID) (*models.Prompt, []models.PromptVersion, error) {
	p, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	versions, err := s.store.ListVersions(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return p, versions, nil
}

func (s *Service) ListPrompts(ctx context.Context, limit, offset int) ([]models.Prompt, error) {
	return s.store.ListPrompts(ctx, limit, offset)
}

func (s *Service) DeletePrompt(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeletePrompt(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// CreateVersion appends a new immutable snapshot and moves the
// current-version pointer to it.
func (s *Service) CreateVersion(ctx context.Context, promptID uuid.UUID, content, note string, parent *uuid.UUID) (*models.PromptVersion, error) {
	v, err := s.store.AppendVersion(ctx, promptID, content, note, parent)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, promptID)
	return v, nil
}

func (s *Service) GetVersion(ctx context.Context, id uuid.UUID) (*models.PromptVersion, error) {
	return s.store.GetVersion(ctx, id)
}

// Current returns the version the prompt's pointer references, cached
// briefly since it backs every analyze/test invocation.
func (s *Service) Current(ctx context.Context, promptID uuid.UUID) (*models.PromptVersion, error) {
	key := currentKey(promptID)
	if s.cache != nil {
		var cached models.PromptVersion
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	v, err := s.store.GetCurrentVersion(ctx, promptID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, v, currentVersionTTL); err != nil {
			slog.Warn("failed to cache current version", "prompt_id", promptID, "error", err)
		}
	}
	return v, nil
}

// History returns all versions oldest first, sequence numbers strictly
// increasing by 1 from 1.
func (s *Service) History(ctx context.Context, promptID uuid.UUID) ([]models.PromptVersion, error) {
	return s.store.ListVersions(ctx, promptID)
}

// DiffVersions computes the line diff between two stored versions.
func (s *Service) DiffVersions(ctx context.Context, aID, bID uuid.UUID) ([]DiffOp, error) {
	a, err := s.store.GetVersion(ctx, aID)
	if err != nil {
		return nil, err
	}
	b, err := s.store.GetVersion(ctx, bID)
	if err != nil {
		return nil, err
	}
	return Diff(a.Content, b.Content), nil
}

// Rollback restores the target's content as a brand new version.
// History is never rewound or mutated; rolling back to the current
// version still appends a duplicate-content version so the history
// stays monotonic and auditable.
func (s *Service) Rollback(ctx context.Context, promptID, targetVersionID uuid.UUID) (*models.PromptVersion, error) {
	target, err := s.store.GetVersion(ctx, targetVersionID)
	if err != nil {
		return nil, err
	}
	if target.PromptID != promptID {
		return nil, fmt.Errorf("version %s does not belong to prompt %s", targetVersionID, promptID)
	}

	note := fmt.Sprintf("rollback to version %d", target.Version)
	v, err := s.store.AppendVersion(ctx, promptID, target.Content, note, &target.ID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, promptID)

	slog.Info("rolled back prompt",
		"prompt_id", promptID,
		"target_version", target.Version,
		"new_version", v.Version,
	)
	return v, nil
}

func (s *Service) invalidate(ctx context.Context, promptID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, currentKey(promptID)); err != nil {
		slog.Warn("failed to invalidate version cache", "prompt_id", promptID, "error", err)
	}
}

func currentKey(promptID uuid.UUID) string {
	return "prompt:current:" + promptID.String()
}
