package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/nafisb/snipvault/internal/apperror"
	"github.com/nafisb/snipvault/internal/model"
	"github.com/nafisb/snipvault/internal/repository"
)

// Compile-time check that *DB implements repository.SnippetRepository.
var _ repository.SnippetRepository = (*DB)(nil)

// recycleWindow is how long a snippet stays recoverable in the recycle
// bin before it becomes eligible for the purge sweep.
const recycleWindow = 30 * 24 * time.Hour

// defaultLanguage is applied to fragments submitted without a language tag.
const defaultLanguage = "plaintext"

// snippetSelect is the shared projection for every snippet read. The
// category list is folded into one comma-joined column per snippet and
// split apart again in scanSnippetRow; fragments are fetched separately
// because they carry multi-line code bodies that don't aggregate well.
const snippetSelect = `
	SELECT
		s.id,
		s.title,
		s.description,
		s.updated_at,
		s.expiry_date,
		s.user_id,
		s.is_public,
		u.username,
		GROUP_CONCAT(DISTINCT c.name) AS categories,
		(SELECT COUNT(*) FROM shared_snippets WHERE snippet_id = s.id) AS share_count
	FROM snippets s
	LEFT JOIN categories c ON c.snippet_id = s.id
	LEFT JOIN users u ON u.id = s.user_id`

const (
	// Active snippets owned by a user.
	selectOwnedQuery = snippetSelect + `
	WHERE s.user_id = ? AND s.expiry_date IS NULL
	GROUP BY s.id
	ORDER BY s.updated_at DESC`

	// Active public snippets, any owner.
	selectPublicQuery = snippetSelect + `
	WHERE s.is_public = 1 AND s.expiry_date IS NULL
	GROUP BY s.id
	ORDER BY s.updated_at DESC`

	// Recycled snippets owned by a user (the recycle-bin listing).
	selectDeletedQuery = snippetSelect + `
	WHERE s.user_id = ? AND s.expiry_date IS NOT NULL
	GROUP BY s.id
	ORDER BY s.updated_at DESC`

	// Single active snippet visible to a user: their own, or anyone's
	// public one. Recycled snippets are invisible here even to the owner.
	selectByIDQuery = snippetSelect + `
	WHERE s.id = ? AND (s.user_id = ? OR s.is_public = 1) AND s.expiry_date IS NULL
	GROUP BY s.id`

	// Single active public snippet, for anonymous access.
	selectPublicByIDQuery = snippetSelect + `
	WHERE s.id = ? AND s.is_public = 1 AND s.expiry_date IS NULL
	GROUP BY s.id`

	// Single active snippet strictly owned by a user. The recycle write
	// uses this for its pre-mutation snapshot so a non-owner can never
	// learn the snippet exists.
	selectOwnedByIDQuery = snippetSelect + `
	WHERE s.id = ? AND s.user_id = ? AND s.expiry_date IS NULL
	GROUP BY s.id`
)

// CreateSnippet inserts a snippet with its fragments and categories in a
// single transaction: either every row lands or none do.
//
// Fragment defaults: file name "file{n}" and language "plaintext" when
// absent; positions are re-normalized to the dense sequence 0..n-1 in the
// caller's requested order. Categories are trimmed, lowercased and
// deduplicated; blank entries are skipped.
func (db *DB) CreateSnippet(ctx context.Context, in repository.SnippetInput, userID string) (*model.Snippet, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating snippet: begin: %w", err)
	}
	defer tx.Rollback()

	id := xid.New().String()
	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snippets (id, title, description, updated_at, expiry_date, user_id, is_public)
		 VALUES (?, ?, ?, ?, NULL, ?, ?)`,
		id, in.Title, in.Description, now, userID, in.IsPublic,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating snippet: %w", err)
	}

	if err := insertFragments(ctx, tx, id, in.Fragments); err != nil {
		return nil, fmt.Errorf("sqlite: creating snippet %s: %w", id, err)
	}
	if err := insertCategories(ctx, tx, id, in.Categories); err != nil {
		return nil, fmt.Errorf("sqlite: creating snippet %s: %w", id, err)
	}

	snippet, err := getSnippet(ctx, tx, selectOwnedByIDQuery, id, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading back snippet %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: creating snippet %s: commit: %w", id, err)
	}
	return snippet, nil
}

// UpdateSnippet rewrites a snippet in place, replacing its fragments and
// categories wholesale rather than diffing them. The UPDATE is scoped by
// (id, user_id); zero rows affected means not-found; whether the row is
// missing or owned by someone else is deliberately indistinguishable.
func (db *DB) UpdateSnippet(ctx context.Context, id string, in repository.SnippetInput, userID string) (*model.Snippet, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating snippet %s: begin: %w", id, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE snippets
		 SET title = ?, description = ?, updated_at = ?, is_public = ?
		 WHERE id = ? AND user_id = ?`,
		in.Title, in.Description, time.Now().UTC(), in.IsPublic, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating snippet %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return nil, apperror.NotFound("snippet", id)
	}

	// The correlated EXISTS keeps these deletes owner-checked on their
	// own, independent of the UPDATE above.
	_, err = tx.ExecContext(ctx,
		`DELETE FROM fragments
		 WHERE snippet_id = ?
		 AND EXISTS (
			SELECT 1 FROM snippets
			WHERE snippets.id = fragments.snippet_id AND snippets.user_id = ?
		 )`,
		id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: clearing fragments for snippet %s: %w", id, err)
	}
	if err := insertFragments(ctx, tx, id, in.Fragments); err != nil {
		return nil, fmt.Errorf("sqlite: updating snippet %s: %w", id, err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM categories
		 WHERE snippet_id = ?
		 AND EXISTS (
			SELECT 1 FROM snippets
			WHERE snippets.id = categories.snippet_id AND snippets.user_id = ?
		 )`,
		id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: clearing categories for snippet %s: %w", id, err)
	}
	if err := insertCategories(ctx, tx, id, in.Categories); err != nil {
		return nil, fmt.Errorf("sqlite: updating snippet %s: %w", id, err)
	}

	snippet, err := getSnippet(ctx, tx, selectOwnedByIDQuery, id, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading back snippet %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: updating snippet %s: commit: %w", id, err)
	}
	return snippet, nil
}

// FindAllSnippets returns a user's active snippets, newest first.
func (db *DB) FindAllSnippets(ctx context.Context, userID string) ([]model.Snippet, error) {
	return db.listSnippets(ctx, selectOwnedQuery, userID)
}

// FindAllPublicSnippets returns every active public snippet.
func (db *DB) FindAllPublicSnippets(ctx context.Context) ([]model.Snippet, error) {
	return db.listSnippets(ctx, selectPublicQuery)
}

// FindAllDeleted returns a user's recycled snippets. ExpiryDate is set on
// every record in the result.
func (db *DB) FindAllDeleted(ctx context.Context, userID string) ([]model.Snippet, error) {
	return db.listSnippets(ctx, selectDeletedQuery, userID)
}

// FindSnippetByID returns a single active snippet. With a userID the
// snippet must be theirs or public; with an empty userID (anonymous) it
// must be public. Recycled snippets are never returned.
func (db *DB) FindSnippetByID(ctx context.Context, id, userID string) (*model.Snippet, error) {
	if userID == "" {
		return getSnippet(ctx, db.conn, selectPublicByIDQuery, id)
	}
	return getSnippet(ctx, db.conn, selectByIDQuery, id, userID)
}

// MoveToRecycle soft-deletes: it stamps the snippet with an expiry 30
// days out, after taking a snapshot of the row inside the same
// transaction so the caller can report what was recycled. Only an active
// snippet owned by userID qualifies; anything else is not-found.
func (db *DB) MoveToRecycle(ctx context.Context, id, userID string) (*model.Snippet, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recycling snippet %s: begin: %w", id, err)
	}
	defer tx.Rollback()

	snapshot, err := getSnippet(ctx, tx, selectOwnedByIDQuery, id, userID)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE snippets SET expiry_date = ? WHERE id = ? AND user_id = ?`,
		time.Now().UTC().Add(recycleWindow), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recycling snippet %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: recycling snippet %s: commit: %w", id, err)
	}
	return snapshot, nil
}

// RestoreSnippet clears the expiry, returning the snippet to the active
// state. Restoring a snippet that doesn't exist, isn't recycled, or
// belongs to someone else affects zero rows and is NOT an error; callers
// cannot distinguish "restored" from "nothing to restore".
func (db *DB) RestoreSnippet(ctx context.Context, id, userID string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE snippets SET expiry_date = NULL WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: restoring snippet %s: %w", id, err)
	}
	return nil
}

// DeleteSnippet permanently removes a snippet, returning the deleted
// row's data. DELETE ... RETURNING makes the read-and-remove atomic in
// one statement; there is no window for another request to delete the
// row between a check and the write. Fragments and categories go with it
// via ON DELETE CASCADE.
func (db *DB) DeleteSnippet(ctx context.Context, id, userID string) (*model.Snippet, error) {
	var (
		s      model.Snippet
		expiry sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx,
		`DELETE FROM snippets
		 WHERE id = ? AND user_id = ?
		 RETURNING id, title, description, updated_at, expiry_date, user_id, is_public`,
		id, userID,
	).Scan(&s.ID, &s.Title, &s.Description, &s.UpdatedAt, &expiry, &s.UserID, &s.IsPublic)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
	}

	s.UpdatedAt = s.UpdatedAt.UTC()
	if expiry.Valid {
		t := expiry.Time.UTC()
		s.ExpiryDate = &t
	}
	s.Categories = []string{}
	s.Fragments = []model.Fragment{}
	return &s, nil
}

// DeleteExpired purges every snippet whose expiry has passed. It is the
// sweep half of the recycle-bin contract and runs before each recycle-bin
// listing; there is no background timer.
func (db *DB) DeleteExpired(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM snippets WHERE expiry_date IS NOT NULL AND expiry_date <= ?`,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting expired snippets: %w", err)
	}
	return nil
}

// --- row shaping -------------------------------------------------------

// insertFragments stores the submitted fragments with defaults applied
// and positions normalized: stable-sort by the requested position, then
// store the index, so the stored sequence is always dense 0..n-1.
func insertFragments(ctx context.Context, q querier, snippetID string, fragments []repository.FragmentInput) error {
	ordered := make([]repository.FragmentInput, len(fragments))
	copy(ordered, fragments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	for i, f := range ordered {
		fileName := strings.TrimSpace(f.FileName)
		if fileName == "" {
			fileName = fmt.Sprintf("file%d", i+1)
		}
		language := strings.TrimSpace(f.Language)
		if language == "" {
			language = defaultLanguage
		}

		_, err := q.ExecContext(ctx,
			`INSERT INTO fragments (snippet_id, file_name, code, language, position)
			 VALUES (?, ?, ?, ?, ?)`,
			snippetID, fileName, f.Code, language, i,
		)
		if err != nil {
			return fmt.Errorf("inserting fragment %d: %w", i, err)
		}
	}
	return nil
}

// insertCategories stores the non-blank categories, lowercased, trimmed
// and deduplicated.
func insertCategories(ctx context.Context, q querier, snippetID string, categories []string) error {
	seen := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		name := strings.ToLower(strings.TrimSpace(c))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		_, err := q.ExecContext(ctx,
			`INSERT INTO categories (snippet_id, name) VALUES (?, ?)`,
			snippetID, name,
		)
		if err != nil {
			return fmt.Errorf("inserting category %q: %w", name, err)
		}
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanSnippetRow reads one snippetSelect row. The comma-joined category
// column is split back into a list; NULLs (no categories, missing user)
// come through as sql.Null* and collapse to empty values.
func scanSnippetRow(sc scanner) (*model.Snippet, error) {
	var (
		s          model.Snippet
		expiry     sql.NullTime
		username   sql.NullString
		categories sql.NullString
	)

	err := sc.Scan(
		&s.ID,
		&s.Title,
		&s.Description,
		&s.UpdatedAt,
		&expiry,
		&s.UserID,
		&s.IsPublic,
		&username,
		&categories,
		&s.ShareCount,
	)
	if err != nil {
		return nil, err
	}

	s.UpdatedAt = s.UpdatedAt.UTC()
	if expiry.Valid {
		t := expiry.Time.UTC()
		s.ExpiryDate = &t
	}
	s.Username = username.String
	s.Categories = []string{}
	if categories.Valid && categories.String != "" {
		s.Categories = strings.Split(categories.String, ",")
	}
	s.Fragments = []model.Fragment{}

	return &s, nil
}

// getSnippet runs a single-row snippet query and attaches its fragments.
func getSnippet(ctx context.Context, q querier, query string, args ...any) (*model.Snippet, error) {
	s, err := scanSnippetRow(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			id, _ := args[0].(string)
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet: %w", err)
	}

	s.Fragments, err = fetchFragments(ctx, q, s.ID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// listSnippets runs a multi-row snippet query, then attaches fragments
// to each record. The rows are drained and closed before the fragment
// queries run so only one statement is in flight at a time.
func (db *DB) listSnippets(ctx context.Context, query string, args ...any) ([]model.Snippet, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := []model.Snippet{}
	for rows.Next() {
		s, err := scanSnippetRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}
	rows.Close()

	for i := range snippets {
		snippets[i].Fragments, err = fetchFragments(ctx, db.conn, snippets[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return snippets, nil
}

// fetchFragments returns a snippet's fragments ordered by position.
func fetchFragments(ctx context.Context, q querier, snippetID string) ([]model.Fragment, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, snippet_id, file_name, code, language, position
		 FROM fragments
		 WHERE snippet_id = ?
		 ORDER BY position`,
		snippetID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetching fragments for snippet %s: %w", snippetID, err)
	}
	defer rows.Close()

	fragments := []model.Fragment{}
	for rows.Next() {
		var f model.Fragment
		if err := rows.Scan(&f.ID, &f.SnippetID, &f.FileName, &f.Code, &f.Language, &f.Position); err != nil {
			return nil, fmt.Errorf("sqlite: scanning fragment row: %w", err)
		}
		fragments = append(fragments, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating fragments: %w", err)
	}
	return fragments, nil
}
