// Package instapaper is a minimal client for the Instapaper Full API.
//
// Only what the exporter needs is covered: the xAuth login handshake, listing
// folders, listing the bookmarks of one folder and verifying credentials.
// Every call is an OAuth 1.0a signed, form-encoded POST.
//
// No timeout is set on the underlying HTTP client. A hung request blocks until
// the caller's context is cancelled.
package instapaper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dghubble/oauth1"
)

// DefaultBaseURL is the root of the Instapaper Full API.
const DefaultBaseURL = "https://www.instapaper.com/api/1"

// DefaultBookmarkLimit is the page size requested per folder. Instapaper
// caps /bookmarks/list at 500 and the exporter does not paginate further.
const DefaultBookmarkLimit = 500

// Client holds the OAuth consumer pair and talks to one API endpoint.
type Client struct {
	config     *oauth1.Config
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets the HTTP client whose transport carries signed requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the given OAuth consumer credentials.
func NewClient(consumerID, consumerSecret string, opts ...Option) *Client {
	c := &Client{
		config:     oauth1.NewConfig(consumerID, consumerSecret),
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session is an authenticated connection for one account.
type Session struct {
	client *Client
	http   *http.Client
}

// Login exchanges the account email and password for an access token using
// xAuth. Rejected credentials produce an *AuthError. Transport failures are
// returned as they are.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	form := url.Values{
		"x_auth_username": {email},
		"x_auth_password": {password},
		"x_auth_mode":     {"client_auth"},
	}

	// The handshake is signed with the consumer pair only.
	hc := c.signedClient(oauth1.NewToken("", ""))
	body, status, err := c.post(ctx, hc, "/oauth/access_token", form)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, &AuthError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	if status < 200 || status > 299 {
		return nil, apiError(status, body)
	}

	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, &AuthError{StatusCode: status, Message: "unreadable token response"}
	}
	token, secret := values.Get("oauth_token"), values.Get("oauth_token_secret")
	if token == "" || secret == "" {
		return nil, &AuthError{StatusCode: status, Message: "no access token in response"}
	}

	c.logger.Printf("Logged in as %s", email)

	return &Session{
		client: c,
		http:   c.signedClient(oauth1.NewToken(token, secret)),
	}, nil
}

// VerifyCredentials returns the account the session belongs to.
func (s *Session) VerifyCredentials(ctx context.Context) (*User, error) {
	items, err := s.call(ctx, "/account/verify_credentials", nil)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if item.Type != "user" {
			continue
		}
		var u User
		if err := json.Unmarshal(item.raw, &u); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		return &u, nil
	}
	return nil, fmt.Errorf("verify_credentials returned no user")
}

// ListFolders returns the folders the account has created. The built-in
// unread, starred and archive folders are not part of the response.
func (s *Session) ListFolders(ctx context.Context) ([]Folder, error) {
	items, err := s.call(ctx, "/folders/list", nil)
	if err != nil {
		return nil, err
	}

	var folders []Folder
	for _, item := range items {
		if item.Type != "folder" {
			continue
		}
		var f Folder
		if err := json.Unmarshal(item.raw, &f); err != nil {
			return nil, fmt.Errorf("failed to decode folder: %w", err)
		}
		folders = append(folders, f)
	}

	s.client.logger.Printf("Listed %d folders", len(folders))
	return folders, nil
}

// ListBookmarks returns up to limit bookmarks of folderID in the order the API
// reports them. folderID is a numeric folder id or one of unread, starred and
// archive.
func (s *Session) ListBookmarks(ctx context.Context, folderID string, limit int) ([]Bookmark, error) {
	form := url.Values{"folder_id": {folderID}}
	if limit > 0 {
		form.Set("limit", strconv.Itoa(limit))
	}

	items, err := s.call(ctx, "/bookmarks/list", form)
	if err != nil {
		return nil, err
	}

	var bookmarks []Bookmark
	for _, item := range items {
		if item.Type != "bookmark" {
			continue
		}
		var b Bookmark
		if err := json.Unmarshal(item.raw, &b); err != nil {
			return nil, fmt.Errorf("failed to decode bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}

	s.client.logger.Printf("Listed %d bookmarks in folder %s", len(bookmarks), folderID)
	return bookmarks, nil
}

// item is one element of an API response array. Every element carries a
// "type" naming its kind.
type item struct {
	Type string
	raw  json.RawMessage
}

// errorItem is the body of a {"type": "error"} element.
type errorItem struct {
	ErrorCode Int  `json:"error_code"`
	Message   Text `json:"message"`
}

// call posts form to path and decodes the typed array response.
func (s *Session) call(ctx context.Context, path string, form url.Values) ([]item, error) {
	body, status, err := s.client.post(ctx, s.http, path, form)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, &AuthError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	if status < 200 || status > 299 {
		return nil, apiError(status, body)
	}

	items, err := decodeItems(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	for _, it := range items {
		if it.Type == "error" {
			var e errorItem
			_ = json.Unmarshal(it.raw, &e)
			return nil, &APIError{StatusCode: status, Code: int(e.ErrorCode), Message: string(e.Message)}
		}
	}
	return items, nil
}

func decodeItems(body []byte) ([]item, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		// Some endpoints answer with a single object.
		var single json.RawMessage
		if err2 := json.Unmarshal(body, &single); err2 != nil {
			return nil, err
		}
		raws = []json.RawMessage{single}
	}

	items := make([]item, 0, len(raws))
	for _, raw := range raws {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, err
		}
		items = append(items, item{Type: head.Type, raw: raw})
	}
	return items, nil
}

// apiError builds an *APIError from a non-2xx response, using the error
// element of the body when there is one.
func apiError(status int, body []byte) error {
	if items, err := decodeItems(body); err == nil {
		for _, it := range items {
			if it.Type != "error" {
				continue
			}
			var e errorItem
			if err := json.Unmarshal(it.raw, &e); err == nil {
				return &APIError{StatusCode: status, Code: int(e.ErrorCode), Message: string(e.Message)}
			}
		}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

// signedClient returns an HTTP client that signs requests with the consumer
// pair and tok, sending them through c.httpClient's transport.
func (c *Client) signedClient(tok *oauth1.Token) *http.Client {
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, c.httpClient)
	return c.config.Client(ctx, tok)
}

func (c *Client) post(ctx context.Context, hc *http.Client, path string, form url.Values) ([]byte, int, error) {
	if form == nil {
		form = url.Values{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.logger.Printf("POST %s", path)
	resp, err := hc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read %s response: %w", path, err)
	}
	return body, resp.StatusCode, nil
}
