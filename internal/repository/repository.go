// Package repository declares the data-access interfaces the service
// layer depends on. The sqlite subpackage provides the implementation;
// tests substitute in-memory mocks.
package repository

import (
	"context"

	"github.com/nafisb/snipvault/internal/model"
)

// FragmentInput is one fragment as submitted by a caller. Position is the
// caller's requested display order; the repository re-normalizes it to a
// dense 0..n-1 sequence on write.
type FragmentInput struct {
	FileName string `json:"file_name"`
	Code     string `json:"code"`
	Language string `json:"language"`
	Position int    `json:"position"`
}

// SnippetInput carries the writable fields of a snippet for create and
// update. Fragments and categories are replaced wholesale on update.
type SnippetInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	IsPublic    bool            `json:"is_public"`
	Categories  []string        `json:"categories"`
	Fragments   []FragmentInput `json:"fragments"`
}

// SnippetRepository is the sole reader/writer of snippet rows.
//
// Every method taking a userID scopes its statements by
// (id, user_id); a non-owner's write affects zero rows and surfaces as
// apperror.ErrNotFound, never as a distinct "forbidden" condition.
// Multi-statement mutations run inside a single transaction.
type SnippetRepository interface {
	CreateSnippet(ctx context.Context, in SnippetInput, userID string) (*model.Snippet, error)
	UpdateSnippet(ctx context.Context, id string, in SnippetInput, userID string) (*model.Snippet, error)

	FindAllSnippets(ctx context.Context, userID string) ([]model.Snippet, error)
	FindAllPublicSnippets(ctx context.Context) ([]model.Snippet, error)
	FindAllDeleted(ctx context.Context, userID string) ([]model.Snippet, error)
	// FindSnippetByID returns an active snippet visible to userID
	// (owner or public). An empty userID means anonymous access: only
	// public snippets are visible.
	FindSnippetByID(ctx context.Context, id, userID string) (*model.Snippet, error)

	// MoveToRecycle soft-deletes: sets the expiry 30 days out and returns
	// the pre-mutation snapshot.
	MoveToRecycle(ctx context.Context, id, userID string) (*model.Snippet, error)
	// RestoreSnippet clears the expiry. Restoring a snippet that does not
	// exist (or is not recycled) is a silent no-op.
	RestoreSnippet(ctx context.Context, id, userID string) error
	// DeleteSnippet permanently removes the row and returns its data.
	DeleteSnippet(ctx context.Context, id, userID string) (*model.Snippet, error)
	// DeleteExpired purges every snippet whose expiry has passed,
	// cascading to fragments and categories.
	DeleteExpired(ctx context.Context) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	// UpsertGitHubUser inserts on first OAuth login and refreshes the
	// profile on subsequent ones, keyed by GitHubID.
	UpsertGitHubUser(ctx context.Context, user *model.User) error
}
