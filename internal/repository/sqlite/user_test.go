package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/nafisb/snipvault/internal/apperror"
	"github.com/nafisb/snipvault/internal/model"
)

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	u := &model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "$2a$..."}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if u.ID == "" {
		t.Error("CreateUser() should assign an ID")
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Error("CreateUser() should set timestamps")
	}

	got, err := db.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	if got.ID != u.ID || got.Email != "alice@example.com" {
		t.Errorf("GetUserByUsername() = %+v, want the created user", got)
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)

	if err := db.CreateUser(context.Background(), &model.User{Username: "alice"}); err != nil {
		t.Fatal(err)
	}
	err := db.CreateUser(context.Background(), &model.User{Username: "alice"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("duplicate username: error = %v, want ErrConflict", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.GetUserByID(context.Background(), "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetUserByUsername(context.Background(), "nobody"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByUsername() error = %v, want ErrNotFound", err)
	}
}

func TestUpsertGitHubUser_InsertThenRefresh(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &model.User{Username: "octocat", Email: "old@example.com", GitHubID: 583231, AvatarURL: "v1"}
	if err := db.UpsertGitHubUser(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.ID == "" {
		t.Fatal("first upsert should assign an ID")
	}

	// Second login with the same GitHub ID refreshes the profile but
	// keeps the internal identity.
	second := &model.User{Username: "octocat-renamed", Email: "new@example.com", GitHubID: 583231, AvatarURL: "v2"}
	if err := db.UpsertGitHubUser(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("internal ID changed across logins: %s -> %s", first.ID, second.ID)
	}
	if second.Email != "new@example.com" || second.AvatarURL != "v2" {
		t.Errorf("profile not refreshed: %+v", second)
	}
	if second.Username != "octocat" {
		t.Errorf("Username = %q, want the first-login name to stick", second.Username)
	}
}

// A new OAuth user whose GitHub login collides with an existing local
// username gets a suffixed username instead of a failed login.
func TestUpsertGitHubUser_UsernameCollision(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.CreateUser(ctx, &model.User{Username: "alice"}); err != nil {
		t.Fatal(err)
	}

	gh := &model.User{Username: "alice", GitHubID: 42}
	if err := db.UpsertGitHubUser(ctx, gh); err != nil {
		t.Fatalf("UpsertGitHubUser() error = %v", err)
	}
	if gh.Username == "alice" {
		t.Error("colliding username should have been suffixed")
	}
	if gh.ID == "" {
		t.Error("new OAuth user should get an ID")
	}
}
