package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/nafisb/snipvault/internal/apperror"
	"github.com/nafisb/snipvault/internal/auth"
	"github.com/nafisb/snipvault/internal/model"
	"github.com/nafisb/snipvault/internal/repository"
)

// mockUserRepo keeps accounts in memory, keyed by username.
type mockUserRepo struct {
	users  map[string]*model.User
	nextID int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) CreateUser(_ context.Context, user *model.User) error {
	if _, taken := m.users[user.Username]; taken {
		return apperror.Conflict("username", user.Username)
	}
	m.nextID++
	user.ID = fmt.Sprintf("user-%d", m.nextID)
	m.users[user.Username] = user
	return nil
}

func (m *mockUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperror.NotFound("user", id)
}

func (m *mockUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	u, ok := m.users[username]
	if !ok {
		return nil, apperror.NotFound("user", username)
	}
	return u, nil
}

func (m *mockUserRepo) UpsertGitHubUser(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.GitHubID == user.GitHubID {
			user.ID = u.ID
			return nil
		}
	}
	m.nextID++
	user.ID = fmt.Sprintf("user-%d", m.nextID)
	m.users[user.Username] = user
	return nil
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

// newTestAuthService wires the service with real token and password
// components (bcrypt at minimum cost, so tests stay fast) and the mock
// store.
func newTestAuthService(t *testing.T, users repository.UserRepository) *AuthService {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return NewAuthService(
		users,
		tokens,
		auth.NewPasswordServiceForTest(4),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestRegister(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestAuthService(t, users)

	res, err := svc.Register(context.Background(), "Alice", "alice@example.com", "hunter22pass")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if res.User.Username != "alice" {
		t.Errorf("Username = %q, want lowercased", res.User.Username)
	}
	if res.User.PasswordHash == "" || res.User.PasswordHash == "hunter22pass" {
		t.Error("password should be stored hashed, never plaintext")
	}
	if res.Token == "" {
		t.Error("Register() should issue a session token")
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
	}{
		{"username too short", "ab", "longenoughpass"},
		{"password too short", "alice", "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestAuthService(t, newMockUserRepo())
			_, err := svc.Register(context.Background(), tt.username, "", tt.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestRegister_TakenUsername(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestAuthService(t, users)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "", "password123"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Register(ctx, "ALICE", "", "password123")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestLogin(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestAuthService(t, users)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "", "password123"); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Login(ctx, "Alice", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Token == "" {
		t.Error("Login() should issue a session token")
	}
}

// Unknown user, wrong password, and an OAuth-only account all fail the
// same way; the response must not reveal which.
func TestLogin_Unauthorized(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestAuthService(t, users)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "", "password123"); err != nil {
		t.Fatal(err)
	}
	// OAuth-only account: no password hash on record.
	users.users["octocat"] = &model.User{ID: "user-99", Username: "octocat", GitHubID: 1}

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"unknown username", "nobody", "password123"},
		{"wrong password", "alice", "wrong-password"},
		{"oauth-only account", "octocat", "password123"},
	}

	var messages []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.username, tt.password)
			if !errors.Is(err, apperror.ErrUnauthorized) {
				t.Fatalf("error = %v, want ErrUnauthorized", err)
			}
			messages = append(messages, err.Error())
		})
	}
	for i := 1; i < len(messages); i++ {
		if messages[i] != messages[0] {
			t.Errorf("login failures leak their cause: %q vs %q", messages[0], messages[i])
		}
	}
}

func TestLoginOrRegisterGitHub(t *testing.T) {
	users := newMockUserRepo()
	svc := newTestAuthService(t, users)
	ctx := context.Background()

	gh := &auth.GitHubUser{ID: 583231, Login: "Octocat", Email: "octo@example.com"}

	first, err := svc.LoginOrRegisterGitHub(ctx, gh)
	if err != nil {
		t.Fatalf("first GitHub login: %v", err)
	}
	if first.User.Username != "octocat" {
		t.Errorf("Username = %q, want lowercased GitHub login", first.User.Username)
	}
	if first.Token == "" {
		t.Error("should issue a session token")
	}

	second, err := svc.LoginOrRegisterGitHub(ctx, gh)
	if err != nil {
		t.Fatalf("second GitHub login: %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Errorf("repeat login created a new identity: %s -> %s", first.User.ID, second.User.ID)
	}
}
