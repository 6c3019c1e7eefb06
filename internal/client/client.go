// Package client is the HTTP data layer for the bug API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/joescharf/bugs/internal/models"
)

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 10 * time.Second

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client talks to a bug server at BaseURL. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL, e.g. "http://localhost:5000".
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// WithTimeout sets the per-call timeout. Zero leaves the current value.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.httpClient.Timeout = d
	}
	return c
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// BaseURL returns the server URL the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListBugs fetches every bug, newest first.
func (c *Client) ListBugs(ctx context.Context) ([]*models.Bug, error) {
	var bugs []*models.Bug
	if err := c.do(ctx, http.MethodGet, "/api/bugs", nil, &bugs); err != nil {
		return nil, err
	}
	if bugs == nil {
		bugs = []*models.Bug{}
	}
	return bugs, nil
}

// GetBug fetches one bug.
func (c *Client) GetBug(ctx context.Context, id string) (*models.Bug, error) {
	var bug models.Bug
	if err := c.do(ctx, http.MethodGet, bugPath(id), nil, &bug); err != nil {
		return nil, err
	}
	return &bug, nil
}

// CreateBug submits a new bug and returns the stored record.
func (c *Client) CreateBug(ctx context.Context, in models.BugInput) (*models.Bug, error) {
	var bug models.Bug
	if err := c.do(ctx, http.MethodPost, "/api/bugs", in, &bug); err != nil {
		return nil, err
	}
	return &bug, nil
}

// UpdateBug replaces title, description and status of an existing bug.
func (c *Client) UpdateBug(ctx context.Context, id string, in models.BugInput) (*models.Bug, error) {
	var bug models.Bug
	if err := c.do(ctx, http.MethodPut, bugPath(id), in, &bug); err != nil {
		return nil, err
	}
	return &bug, nil
}

// DeleteBug removes a bug.
func (c *Client) DeleteBug(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, bugPath(id), nil, nil)
}

func bugPath(id string) string {
	return "/api/bugs/" + url.PathEscape(id)
}

// errorBody is the union of the server's error shapes.
type errorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newAPIError(code int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: code}

	var eb errorBody
	if json.Unmarshal(data, &eb) == nil {
		apiErr.Message = eb.Message
		apiErr.Fields = eb.Errors
	}
	if apiErr.Message == "" && len(apiErr.Fields) > 0 {
		apiErr.Message = strings.Join(fieldMessages(apiErr.Fields), " ")
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(code)
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("status %d", code)
	}
	return apiErr
}

// fieldMessages orders field errors title, description, status, then the rest
// alphabetically.
func fieldMessages(fields map[string]string) []string {
	order := []string{"title", "description", "status"}
	seen := map[string]bool{}
	var msgs []string
	for _, f := range order {
		if m, ok := fields[f]; ok {
			msgs = append(msgs, m)
			seen[f] = true
		}
	}
	var rest []string
	for f := range fields {
		if !seen[f] {
			rest = append(rest, f)
		}
	}
	sort.Strings(rest)
	for _, f := range rest {
		msgs = append(msgs, fields[f])
	}
	return msgs
}
