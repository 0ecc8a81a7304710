// Package bluesky is a small AT Protocol client covering the XRPC calls used
// to publish, look up and delete posts on a PDS.
package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	defaultPDS     = "https://bsky.social"
	PostCollection = "app.bsky.feed.post"
)

var ErrNotAuthenticated = errors.New("not authenticated: call Login first")

// APIError is a non-2xx XRPC response. Name carries the lexicon error name,
// e.g. "ExpiredToken" or "InvalidRequest".
type APIError struct {
	Status  int    `json:"-"`
	Name    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s: %s", e.Status, e.Name, e.Message)
}

type Client struct {
	pds        string
	httpClient *http.Client

	mu         sync.RWMutex
	accessJwt  string
	refreshJwt string
	did        string
	handle     string
}

// NewClient creates a client for pds, defaulting to https://bsky.social.
func NewClient(pds string) *Client {
	if pds == "" {
		pds = defaultPDS
	}
	return &Client{
		pds: strings.TrimRight(pds, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Login(ctx context.Context, identifier, password string) error {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}

	var resp sessionResponse
	if err := c.send(ctx, http.MethodPost, "/xrpc/com.atproto.server.createSession", nil, body, "", &resp); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	c.setSession(resp)
	return nil
}

// DID returns the authenticated account's DID. Only valid after Login.
func (c *Client) DID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.did
}

func (c *Client) Handle() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handle
}

func (c *Client) GetAuthorFeed(ctx context.Context, actor, filter string, limit int) ([]FeedViewPost, error) {
	query := url.Values{}
	query.Set("actor", actor)
	query.Set("limit", fmt.Sprint(limit))
	if filter != "" {
		query.Set("filter", filter)
	}

	var resp struct {
		Feed []FeedViewPost `json:"feed"`
	}
	if err := c.call(ctx, http.MethodGet, "/xrpc/app.bsky.feed.getAuthorFeed", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("get author feed: %w", err)
	}
	return resp.Feed, nil
}

// GetPostThread returns the post at the root of the thread view for uri.
// Deleted or blocked posts come back as an error.
func (c *Client) GetPostThread(ctx context.Context, uri string) (*PostView, error) {
	query := url.Values{}
	query.Set("uri", uri)
	query.Set("depth", "0")

	var resp struct {
		Thread struct {
			Type string    `json:"$type"`
			Post *PostView `json:"post"`
		} `json:"thread"`
	}
	if err := c.call(ctx, http.MethodGet, "/xrpc/app.bsky.feed.getPostThread", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("get post thread: %w", err)
	}
	if resp.Thread.Type != "app.bsky.feed.defs#threadViewPost" || resp.Thread.Post == nil {
		return nil, fmt.Errorf("get post thread: %s is not a viewable post (%s)", uri, resp.Thread.Type)
	}
	return resp.Thread.Post, nil
}

// UploadBlob uploads raw bytes and returns a reference to embed in a record.
func (c *Client) UploadBlob(ctx context.Context, data []byte, mimeType string) (*BlobRef, error) {
	if c.accessToken() == "" {
		return nil, ErrNotAuthenticated
	}

	var resp struct {
		Blob BlobRef `json:"blob"`
	}
	if err := c.call(ctx, http.MethodPost, "/xrpc/com.atproto.repo.uploadBlob", nil, rawBody{data: data, contentType: mimeType}, &resp); err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}
	return &resp.Blob, nil
}

func (c *Client) CreatePost(ctx context.Context, record PostRecord) (*StrongRef, error) {
	did := c.DID()
	if did == "" {
		return nil, ErrNotAuthenticated
	}
	if record.Type == "" {
		record.Type = PostCollection
	}
	if record.CreatedAt == "" {
		record.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	body := createRecordRequest{
		Repo:       did,
		Collection: PostCollection,
		Record:     record,
	}

	var ref StrongRef
	if err := c.call(ctx, http.MethodPost, "/xrpc/com.atproto.repo.createRecord", nil, body, &ref); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	return &ref, nil
}

func (c *Client) DeletePost(ctx context.Context, uri string) error {
	if c.accessToken() == "" {
		return ErrNotAuthenticated
	}

	repo, collection, rkey, err := ParseURI(uri)
	if err != nil {
		return err
	}

	body := deleteRecordRequest{
		Repo:       repo,
		Collection: collection,
		RKey:       rkey,
	}
	if err := c.call(ctx, http.MethodPost, "/xrpc/com.atproto.repo.deleteRecord", nil, body, nil); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// ParseURI splits at://{repo}/{collection}/{rkey}.
func ParseURI(uri string) (repo, collection, rkey string, err error) {
	rest, ok := strings.CutPrefix(uri, "at://")
	if !ok {
		return "", "", "", fmt.Errorf("invalid at-uri %q", uri)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("invalid at-uri %q", uri)
	}
	return parts[0], parts[1], parts[2], nil
}

// WebURL maps a post at-uri to its bsky.app permalink, or "" if uri is not a
// post uri.
func WebURL(uri string) string {
	repo, collection, rkey, err := ParseURI(uri)
	if err != nil || collection != PostCollection {
		return ""
	}
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", repo, rkey)
}

// call sends an authenticated request and, when the access token has
// expired, refreshes the session once and retries.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body any, result any) error {
	err := c.send(ctx, method, path, query, body, c.accessToken(), result)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Name != "ExpiredToken" {
		return err
	}

	if err := c.refresh(ctx); err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	return c.send(ctx, method, path, query, body, c.accessToken(), result)
}

func (c *Client) refresh(ctx context.Context) error {
	c.mu.RLock()
	token := c.refreshJwt
	c.mu.RUnlock()
	if token == "" {
		return ErrNotAuthenticated
	}

	var resp sessionResponse
	if err := c.send(ctx, http.MethodPost, "/xrpc/com.atproto.server.refreshSession", nil, nil, token, &resp); err != nil {
		return err
	}

	c.setSession(resp)
	return nil
}

type rawBody struct {
	data        []byte
	contentType string
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any, token string, result any) error {
	endpoint := c.pds + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case rawBody:
		reader = bytes.NewReader(b.data)
		contentType = b.contentType
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || (apiErr.Name == "" && apiErr.Message == "") {
			apiErr.Message = string(respBody)
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

func (c *Client) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessJwt
}

func (c *Client) setSession(resp sessionResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessJwt = resp.AccessJwt
	c.refreshJwt = resp.RefreshJwt
	if resp.DID != "" {
		c.did = resp.DID
	}
	if resp.Handle != "" {
		c.handle = resp.Handle
	}
}

type sessionResponse struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	DID        string `json:"did"`
	Handle     string `json:"handle"`
}

type createRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	Record     any    `json:"record"`
}

type deleteRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	RKey       string `json:"rkey"`
}
