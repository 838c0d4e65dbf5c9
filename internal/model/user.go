package model

import "time"

// User is a registered account.
//
// Accounts are created either locally (username + bcrypt password hash)
// or through GitHub OAuth, in which case GitHubID is non-zero and
// PasswordHash is empty. Username is unique either way; it is joined
// into every snippet row the API returns.
//
// PasswordHash is tagged json:"-" so it can never leak through a handler
// that encodes the whole struct.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GitHubID     int64     `json:"github_id,omitempty"` // 0 for local accounts
	AvatarURL    string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
