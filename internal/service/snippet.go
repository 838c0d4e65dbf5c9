// Package service contains the business logic layer: validation, the
// recycle-bin sweep policy, and orchestration of repository calls.
// Handlers above it speak HTTP; repositories below it speak SQL; this
// layer speaks neither.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nafisb/snipvault/internal/apperror"
	"github.com/nafisb/snipvault/internal/model"
	"github.com/nafisb/snipvault/internal/repository"
)

const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 10000
	MaxCodeLength        = 100000 // ~100KB per fragment
)

// SnippetService handles business logic for snippets.
//
// Error policy: repository errors are logged with the operation and the
// affected id/owner, then propagated unchanged; no retries, no fallback
// values. Not-found is apperror.ErrNotFound, which the HTTP layer turns
// into a 404.
type SnippetService struct {
	repo   repository.SnippetRepository
	logger *slog.Logger
}

func NewSnippetService(repo repository.SnippetRepository, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:   repo,
		logger: logger,
	}
}

// validateInput trims and checks the writable snippet fields shared by
// create and update.
func validateInput(in *repository.SnippetInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.Title == "" {
		return apperror.ValidationFailed("title", "snippet title is required")
	}
	if len(in.Title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("snippet title must be %d characters or less", MaxTitleLength))
	}
	if len(in.Description) > MaxDescriptionLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	for i, f := range in.Fragments {
		if len(f.Code) > MaxCodeLength {
			return apperror.ValidationFailed("fragments",
				fmt.Sprintf("fragment %d exceeds %d characters", i, MaxCodeLength))
		}
	}
	return nil
}

// CreateSnippet validates and stores a new snippet. New snippets are
// always active (no expiry); IsPublic defaults to false via the input's
// zero value.
func (s *SnippetService) CreateSnippet(ctx context.Context, in repository.SnippetInput, userID string) (*model.Snippet, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("user", "user ID is required")
	}
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	snippet, err := s.repo.CreateSnippet(ctx, in, userID)
	if err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("user_id", userID),
	)
	return snippet, nil
}

// UpdateSnippet validates and rewrites an existing snippet. Fragments
// and categories are replaced wholesale. Not-found covers both a missing
// snippet and one owned by somebody else.
func (s *SnippetService) UpdateSnippet(ctx context.Context, id string, in repository.SnippetInput, userID string) (*model.Snippet, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	snippet, err := s.repo.UpdateSnippet(ctx, id, in, userID)
	if err != nil {
		s.logError("update snippet", id, userID, err)
		return nil, err
	}

	s.logger.Info("snippet updated",
		slog.String("id", id),
		slog.String("user_id", userID),
	)
	return snippet, nil
}

// GetAllSnippets returns the user's active snippets.
func (s *SnippetService) GetAllSnippets(ctx context.Context, userID string) ([]model.Snippet, error) {
	snippets, err := s.repo.FindAllSnippets(ctx, userID)
	if err != nil {
		s.logError("list snippets", "", userID, err)
		return nil, err
	}
	return snippets, nil
}

// GetAllPublicSnippets returns every active public snippet.
func (s *SnippetService) GetAllPublicSnippets(ctx context.Context) ([]model.Snippet, error) {
	snippets, err := s.repo.FindAllPublicSnippets(ctx)
	if err != nil {
		s.logError("list public snippets", "", "", err)
		return nil, err
	}
	return snippets, nil
}

// GetSnippetByID returns one active snippet visible to userID. An empty
// userID is anonymous access: only public snippets are visible.
func (s *SnippetService) GetSnippetByID(ctx context.Context, id, userID string) (*model.Snippet, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}
	return s.repo.FindSnippetByID(ctx, id, userID)
}

// MoveToRecycle soft-deletes a snippet and returns the pre-mutation
// snapshot. From here the snippet stays recoverable for 30 days.
func (s *SnippetService) MoveToRecycle(ctx context.Context, id, userID string) (*model.Snippet, error) {
	snippet, err := s.repo.MoveToRecycle(ctx, id, userID)
	if err != nil {
		s.logError("recycle snippet", id, userID, err)
		return nil, err
	}

	s.logger.Info("snippet moved to recycle bin",
		slog.String("id", id),
		slog.String("user_id", userID),
	)
	return snippet, nil
}

// GetRecycledSnippets lists the user's recycle bin. The expiry sweep
// runs first, inline: anything past its expiry is purged before the
// listing is taken, which is the only place the 30-day window is
// enforced. A snippet can therefore sit expired-but-unpurged until the
// next recycle-bin view, but is never visible past its expiry.
func (s *SnippetService) GetRecycledSnippets(ctx context.Context, userID string) ([]model.Snippet, error) {
	if err := s.DeleteExpiredSnippets(ctx); err != nil {
		return nil, err
	}

	snippets, err := s.repo.FindAllDeleted(ctx, userID)
	if err != nil {
		s.logError("list recycled snippets", "", userID, err)
		return nil, err
	}
	return snippets, nil
}

// DeleteExpiredSnippets purges everything whose expiry has passed.
func (s *SnippetService) DeleteExpiredSnippets(ctx context.Context) error {
	if err := s.repo.DeleteExpired(ctx); err != nil {
		s.logError("delete expired snippets", "", "", err)
		return err
	}
	return nil
}

// DeleteSnippet permanently removes a snippet, bypassing the recycle
// bin. Returns the deleted record.
func (s *SnippetService) DeleteSnippet(ctx context.Context, id, userID string) (*model.Snippet, error) {
	snippet, err := s.repo.DeleteSnippet(ctx, id, userID)
	if err != nil {
		s.logError("delete snippet", id, userID, err)
		return nil, err
	}

	s.logger.Info("snippet deleted",
		slog.String("id", id),
		slog.String("user_id", userID),
	)
	return snippet, nil
}

// RestoreSnippet returns a recycled snippet to the active state. Always
// succeeds when the store is reachable; restoring a snippet that isn't
// there is a silent no-op.
func (s *SnippetService) RestoreSnippet(ctx context.Context, id, userID string) error {
	if err := s.repo.RestoreSnippet(ctx, id, userID); err != nil {
		s.logError("restore snippet", id, userID, err)
		return err
	}

	s.logger.Info("snippet restored",
		slog.String("id", id),
		slog.String("user_id", userID),
	)
	return nil
}

// logError logs a repository failure with operation context. Not-found
// is a normal outcome, not a store failure, so it is not logged as one.
func (s *SnippetService) logError(op, id, userID string, err error) {
	if errors.Is(err, apperror.ErrNotFound) {
		return
	}
	attrs := []any{slog.String("error", err.Error())}
	if id != "" {
		attrs = append(attrs, slog.String("id", id))
	}
	if userID != "" {
		attrs = append(attrs, slog.String("user_id", userID))
	}
	s.logger.Error("failed to "+op, attrs...)
}
