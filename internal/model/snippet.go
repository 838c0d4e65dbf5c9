// Package model defines the data structures used throughout the application.
package model

import "time"

// Snippet is a titled collection of code fragments with metadata.
//
// A snippet is active while ExpiryDate is nil. Moving it to the recycle
// bin sets ExpiryDate 30 days into the future; restoring clears it again.
// Once the expiry passes, the next recycle-bin listing purges the row
// permanently, together with its fragments and categories.
//
// Username and ShareCount are derived columns (joined from users and
// counted from shared_snippets); they are never written through this type.
type Snippet struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"` // nil = active
	UserID      string     `json:"user_id"`
	IsPublic    bool       `json:"is_public"`
	Username    string     `json:"username"`
	Categories  []string   `json:"categories"`
	Fragments   []Fragment `json:"fragments"`
	ShareCount  int        `json:"share_count"`
}

// Fragment is one file-like unit of code within a snippet.
//
// Fragments are replaced wholesale on every snippet update, so their IDs
// are not stable across edits. Position is a dense 0..n-1 index defining
// display order; it is re-normalized on every write.
type Fragment struct {
	ID        int64  `json:"id"`
	SnippetID string `json:"-"`
	FileName  string `json:"file_name"`
	Code      string `json:"code"`
	Language  string `json:"language"`
	Position  int    `json:"position"`
}
