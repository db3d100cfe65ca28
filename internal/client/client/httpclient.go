package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/coderoom/internal/client/models"
	"github.com/dmitrijs2005/coderoom/internal/filetree"
	"github.com/dmitrijs2005/coderoom/internal/netx"
)

const defaultTimeout = 30 * time.Second

// HTTPClient implements Client against a coderoom server.
type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.http = c }
}

// NewHTTPClient validates baseURL, which must be absolute http(s).
func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: want http(s)://host[:port]", baseURL)
	}

	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *HTTPClient) BaseURL() string { return c.baseURL }

func (c *HTTPClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// do sends body (JSON-encoded when non-nil) and decodes a 2xx answer into
// out when out is non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	raw, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

func (c *HTTPClient) send(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(resp.StatusCode, raw)
	}
	return raw, nil
}

func (c *HTTPClient) Register(ctx context.Context, name, email, password string) (*models.Session, error) {
	req := map[string]string{"name": name, "email": email, "password": password}
	var s models.Session
	if err := c.do(ctx, http.MethodPost, "/users/register", req, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.Token)
	return &s, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.Session, error) {
	req := map[string]string{"email": email, "password": password}
	var s models.Session
	if err := c.do(ctx, http.MethodPost, "/users/login", req, &s); err != nil {
		return nil, err
	}
	c.SetToken(s.Token)
	return &s, nil
}

// Profile returns the identity carried by the current token.
func (c *HTTPClient) Profile(ctx context.Context) (*models.User, error) {
	var resp struct {
		User models.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/profile", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Logout revokes the token server side and forgets it locally. The local
// token is dropped even when the server call fails.
func (c *HTTPClient) Logout(ctx context.Context) error {
	if c.Token() == "" {
		return ErrNotLoggedIn
	}
	err := c.do(ctx, http.MethodGet, "/users/logout", nil, nil)
	c.SetToken("")
	return err
}

// Users lists everyone except the caller.
func (c *HTTPClient) Users(ctx context.Context) ([]models.User, error) {
	var resp struct {
		Users []models.User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/all", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *HTTPClient) CreateProject(ctx context.Context, name string) (*models.Project, error) {
	var p models.Project
	if err := c.do(ctx, http.MethodPost, "/projects/create", map[string]string{"name": name}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) Projects(ctx context.Context) ([]models.Project, error) {
	var resp struct {
		Projects []models.Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects/all", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

func (c *HTTPClient) AddUsers(ctx context.Context, projectID string, userIDs []string) (*models.Project, error) {
	req := struct {
		ProjectID string   `json:"projectId"`
		Users     []string `json:"users"`
	}{projectID, userIDs}
	return c.project(ctx, http.MethodPut, "/projects/add-user", req)
}

func (c *HTTPClient) Project(ctx context.Context, projectID string) (*models.Project, error) {
	return c.project(ctx, http.MethodGet, "/projects/get-project/"+url.PathEscape(projectID), nil)
}

// UpdateFileTree replaces the stored tree with tree.
func (c *HTTPClient) UpdateFileTree(ctx context.Context, projectID string, tree filetree.Tree) (*models.Project, error) {
	if tree == nil {
		tree = filetree.Tree{}
	}
	req := struct {
		ProjectID string        `json:"projectId"`
		FileTree  filetree.Tree `json:"fileTree"`
	}{projectID, tree}
	return c.project(ctx, http.MethodPut, "/projects/update-file-tree", req)
}

func (c *HTTPClient) project(ctx context.Context, method, path string, body any) (*models.Project, error) {
	var resp struct {
		Project *models.Project `json:"project"`
	}
	if err := c.do(ctx, method, path, body, &resp); err != nil {
		return nil, err
	}
	if resp.Project == nil {
		return nil, fmt.Errorf("%s %s: response has no project", method, path)
	}
	return resp.Project, nil
}

func (c *HTTPClient) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, http.MethodDelete, "/projects/delete/"+url.PathEscape(projectID), nil, nil)
}

// ExportURL asks for a presigned download link to the last saved tree.
func (c *HTTPClient) ExportURL(ctx context.Context, projectID string) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects/export/"+url.PathEscape(projectID), nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// Download fetches a presigned object. The session token is not sent.
func (c *HTTPClient) Download(ctx context.Context, presigned string) ([]byte, error) {
	return netx.DownloadPresigned(ctx, c.http, presigned)
}

// Generate calls the AI passthrough and returns the raw model text.
func (c *HTTPClient) Generate(ctx context.Context, prompt string) (string, error) {
	raw, err := c.send(ctx, http.MethodGet, "/ai/get-result?prompt="+url.QueryEscape(prompt), nil)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
