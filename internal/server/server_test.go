package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nafisb/snipvault/internal/model"
)

// newTestServer spins up the fully wired application over an in-memory
// database and returns an httptest server plus a cookie-jar client, so
// the JWT session cookie flows between requests like it would in a
// browser.
func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(Config{
		Port:      0,
		DBPath:    ":memory:",
		JWTSecret: "test-secret-at-least-16-chars!!",
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.db.Close() })

	ts := httptest.NewServer(s.router)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}
	return ts, client
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func register(t *testing.T, client *http.Client, baseURL, username string) {
	t.Helper()
	resp := doJSON(t, client, http.MethodPost, baseURL+"/auth/register", map[string]string{
		"username": username,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func TestRequiresAuth(t *testing.T) {
	ts, _ := newTestServer(t)

	// No cookie jar, no session.
	resp, err := http.Get(ts.URL + "/api/snippets")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterAndLogin(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "alice")

	// The session cookie from registration authenticates /api/me.
	resp := doJSON(t, client, http.MethodGet, ts.URL+"/api/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[model.User](t, resp)
	assert.Equal(t, "alice", me.Username)

	// Wrong password: 401, no session.
	resp = doJSON(t, client, http.MethodPost, ts.URL+"/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/auth/login", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

// End-to-end pass through the snippet lifecycle over HTTP:
// create -> recycle -> restore -> recycle -> delete.
func TestSnippetLifecycleOverHTTP(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "alice")

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/snippets", map[string]any{
		"title":      "lifecycle",
		"categories": []string{"Go", "go"},
		"fragments":  []map[string]any{{"code": "package main", "language": "go"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[model.Snippet](t, resp)
	require.NotEmpty(t, created.ID)
	assert.Nil(t, created.ExpiryDate)
	assert.Equal(t, []string{"go"}, created.Categories)

	// Soft delete.
	resp = doJSON(t, client, http.MethodPatch, ts.URL+"/api/snippets/"+created.ID+"/recycle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	recycled := decode[map[string]string](t, resp)
	assert.Equal(t, created.ID, recycled["id"])

	// Gone from the active listing, present in the recycle bin.
	resp = doJSON(t, client, http.MethodGet, ts.URL+"/api/snippets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]model.Snippet](t, resp))

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/api/snippets/recycled", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bin := decode[[]model.Snippet](t, resp)
	require.Len(t, bin, 1)
	assert.NotNil(t, bin[0].ExpiryDate)

	// Restore brings it back.
	resp = doJSON(t, client, http.MethodPatch, ts.URL+"/api/snippets/"+created.ID+"/restore", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/api/snippets/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	restored := decode[model.Snippet](t, resp)
	assert.Nil(t, restored.ExpiryDate)

	// Permanent delete, then 404.
	resp = doJSON(t, client, http.MethodDelete, ts.URL+"/api/snippets/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodGet, ts.URL+"/api/snippets/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestOwnershipIsolationOverHTTP(t *testing.T) {
	ts, alice := newTestServer(t)
	register(t, alice, ts.URL, "alice")

	resp := doJSON(t, alice, http.MethodPost, ts.URL+"/api/snippets", map[string]any{
		"title": "private to alice",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[model.Snippet](t, resp)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	mallory := &http.Client{Jar: jar}
	register(t, mallory, ts.URL, "mallory")

	// Reads, writes, and recycles against someone else's snippet all
	// 404; indistinguishable from a missing id.
	resp = doJSON(t, mallory, http.MethodGet, ts.URL+"/api/snippets/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, mallory, http.MethodPut, ts.URL+"/api/snippets/"+created.ID, map[string]any{"title": "stolen"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, mallory, http.MethodPatch, ts.URL+"/api/snippets/"+created.ID+"/recycle", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, mallory, http.MethodDelete, ts.URL+"/api/snippets/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Alice still has it, untouched.
	resp = doJSON(t, alice, http.MethodGet, ts.URL+"/api/snippets/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[model.Snippet](t, resp)
	assert.Equal(t, "private to alice", got.Title)
}

func TestPublicRoutes(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "alice")

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/snippets", map[string]any{
		"title":     "shared",
		"is_public": true,
		"fragments": []map[string]any{{"file_name": "main.go", "code": "package main"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	public := decode[model.Snippet](t, resp)

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/api/snippets", map[string]any{
		"title": "secret",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	private := decode[model.Snippet](t, resp)

	// Anonymous client: no jar, no cookie.
	anon := &http.Client{}

	resp = doJSON(t, anon, http.MethodGet, ts.URL+"/api/public/snippets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listing := decode[[]model.Snippet](t, resp)
	require.Len(t, listing, 1)
	assert.Equal(t, "shared", listing[0].Title)
	assert.Equal(t, "alice", listing[0].Username)

	resp = doJSON(t, anon, http.MethodGet, ts.URL+"/api/public/snippets/"+private.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Raw fragment body comes back as plain text.
	require.NotEmpty(t, public.Fragments)
	fragURL := ts.URL + "/api/public/snippets/" + public.ID + "/" +
		strconv.FormatInt(public.Fragments[0].ID, 10) + "/raw"
	resp, err := anon.Get(fragURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "package main", string(body))
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	ts, client := newTestServer(t)
	register(t, client, ts.URL, "alice")

	resp := doJSON(t, client, http.MethodPost, ts.URL+"/api/snippets", map[string]any{
		"title": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, client, http.MethodPost, ts.URL+"/auth/register", map[string]string{
		"username": "alice",
		"password": "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}
