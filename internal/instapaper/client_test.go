package instapaper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeAPI is a minimal Instapaper stand-in. Responses are keyed by path.
type fakeAPI struct {
	mu        sync.Mutex
	email     string
	password  string
	responses map[string]string
	forms     map[string]map[string]string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()

	api := &fakeAPI{
		email:     "me@example.com",
		password:  "hunter2",
		responses: make(map[string]string),
		forms:     make(map[string]map[string]string),
	}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "OAuth ") || !strings.Contains(auth, `oauth_consumer_key="consumer"`) {
		http.Error(w, "unsigned request", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	form := make(map[string]string)
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}
	f.mu.Lock()
	f.forms[r.URL.Path] = form
	body, ok := f.responses[r.URL.Path]
	f.mu.Unlock()

	if r.URL.Path == "/oauth/access_token" {
		if form["x_auth_username"] != f.email || form["x_auth_password"] != f.password {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, "Invalid xAuth credentials.")
			return
		}
		fmt.Fprint(w, "oauth_token=tok&oauth_token_secret=sec")
		return
	}

	if !strings.Contains(auth, `oauth_token="tok"`) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "no token")
		return
	}

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

func (f *fakeAPI) form(path string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forms[path]
}

func login(t *testing.T, srv *httptest.Server) *Session {
	t.Helper()

	c := NewClient("consumer", "secret", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	s, err := c.Login(context.Background(), "me@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login() failed: %v", err)
	}
	return s
}

func TestLogin_Success(t *testing.T) {
	api, srv := newFakeAPI(t)
	login(t, srv)

	if got := api.form("/oauth/access_token")["x_auth_mode"]; got != "client_auth" {
		t.Errorf("x_auth_mode = %q, want client_auth", got)
	}
}

func TestLogin_Rejected(t *testing.T) {
	_, srv := newFakeAPI(t)

	c := NewClient("consumer", "secret", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	_, err := c.Login(context.Background(), "me@example.com", "wrong")
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("Login() error = %v, want ErrAuth", err)
	}

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Login() error is %T, want *AuthError", err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", authErr.StatusCode)
	}
}

func TestLogin_NetworkFailureIsNotAuthError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient("consumer", "secret", WithBaseURL(url))
	_, err := c.Login(context.Background(), "me@example.com", "hunter2")
	if err == nil {
		t.Fatal("Login() against a closed server should fail")
	}
	if errors.Is(err, ErrAuth) {
		t.Errorf("transport failure reported as ErrAuth: %v", err)
	}
}

func TestListFolders(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.responses["/folders/list"] = `[
		{"type": "folder", "folder_id": 111, "title": "Tech", "display_title": "Tech", "sync_to_mobile": 1, "position": 1},
		{"type": "folder", "folder_id": "222", "title": "News", "sync_to_mobile": "0", "position": 2.5}
	]`

	folders, err := login(t, srv).ListFolders(context.Background())
	if err != nil {
		t.Fatalf("ListFolders() failed: %v", err)
	}

	want := []Folder{
		{FolderID: 111, Title: "Tech", DisplayTitle: "Tech", SyncToMobile: 1, Position: 1},
		{FolderID: 222, Title: "News", Position: 2.5},
	}
	if diff := cmp.Diff(want, folders); diff != "" {
		t.Errorf("folders mismatch (-want +got):\n%s", diff)
	}
}

func TestListBookmarks(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.responses["/bookmarks/list"] = `[
		{"type": "meta"},
		{"type": "user", "user_id": 1, "username": "me@example.com"},
		{"type": "bookmark", "bookmark_id": 1, "title": "One", "url": "https://example.com/1",
		 "progress": 0.5, "progress_timestamp": 1700000000, "starred": "1", "time": 1690000000, "hash": "abc"},
		{"type": "bookmark", "bookmark_id": 2, "title": "Two", "url": "https://example.com/2", "starred": "0", "time": 1690000100}
	]`

	bookmarks, err := login(t, srv).ListBookmarks(context.Background(), "unread", DefaultBookmarkLimit)
	if err != nil {
		t.Fatalf("ListBookmarks() failed: %v", err)
	}

	form := api.form("/bookmarks/list")
	if form["folder_id"] != "unread" || form["limit"] != "500" {
		t.Errorf("request form = %v, want folder_id=unread limit=500", form)
	}

	want := []Bookmark{
		{BookmarkID: 1, Title: "One", URL: "https://example.com/1", Progress: 0.5,
			ProgressTimestamp: 1700000000, Starred: "1", Time: 1690000000, Hash: "abc"},
		{BookmarkID: 2, Title: "Two", URL: "https://example.com/2", Starred: "0", Time: 1690000100},
	}
	if diff := cmp.Diff(want, bookmarks); diff != "" {
		t.Errorf("bookmarks mismatch (-want +got):\n%s", diff)
	}
}

func TestListBookmarks_APIError(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.responses["/bookmarks/list"] = `[{"type": "error", "error_code": 1040, "message": "Rate-limit exceeded"}]`

	_, err := login(t, srv).ListBookmarks(context.Background(), "unread", 10)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("ListBookmarks() error = %v, want *APIError", err)
	}
	if apiErr.Code != 1040 || apiErr.Message != "Rate-limit exceeded" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestVerifyCredentials(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.responses["/account/verify_credentials"] = `[{"type": "user", "user_id": 42, "username": "me@example.com"}]`

	u, err := login(t, srv).VerifyCredentials(context.Background())
	if err != nil {
		t.Fatalf("VerifyCredentials() failed: %v", err)
	}
	if u.UserID != 42 || u.Username != "me@example.com" {
		t.Errorf("user = %+v", u)
	}
}

func TestAPIError_NonJSONBody(t *testing.T) {
	err := apiError(http.StatusInternalServerError, []byte("boom\n"))

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("apiError() = %T, want *APIError", err)
	}
	if apiErr.Message != "boom" || apiErr.StatusCode != 500 {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestScalarTypes(t *testing.T) {
	var v struct {
		A Int   `json:"a"`
		B Int   `json:"b"`
		C Float `json:"c"`
		D Text  `json:"d"`
		E Text  `json:"e"`
		F Int   `json:"f"`
	}
	data := `{"a": 5, "b": "6", "c": "0.25", "d": 1, "e": null, "f": 7.0}`
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if v.A != 5 || v.B != 6 || v.C != 0.25 || v.D != "1" || v.E != "" || v.F != 7 {
		t.Errorf("decoded = %+v", v)
	}
}
