package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentic-research/codepad/api"
	"github.com/agentic-research/codepad/internal/tree"
)

// Client talks to the codepad HTTP API.
type Client struct {
	httpClient       *http.Client
	baseURL          string
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

var _ Store = (*Client)(nil)

// NewClient returns a client for the API rooted at baseURL. retryMax counts
// total attempts for requests that fail with a network error or a 5xx.
// Project creation is never retried: a server that committed before failing
// would otherwise end up with two projects.
func NewClient(baseURL string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 30 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 1
	}
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &Client{
		httpClient:       &http.Client{Timeout: httpTimeout},
		baseURL:          strings.TrimRight(baseURL, "/"),
		retryMaxAttempts: retryMax,
		retryBaseDelay:   baseDelay,
		retryMaxDelay:    maxDelay,
	}
}

// StatusError is a non-2xx response from the API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: status=%d", e.StatusCode)
}

// Unwrap maps the status onto the store sentinels.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusBadRequest:
		return ErrInvalid
	default:
		return ErrUnavailable
	}
}

func (c *Client) FetchTree(ctx context.Context, uid, projectID string) (*tree.Node, error) {
	var root tree.Node
	q := url.Values{"uid": {uid}, "projectId": {projectID}}
	if err := c.do(ctx, http.MethodGet, "/api/getFileTree", q, nil, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

func (c *Client) SaveTree(ctx context.Context, uid, projectID string, root *tree.Node) error {
	body := api.SaveTreeRequest{UID: uid, ProjectID: projectID, FileTree: root}
	return c.do(ctx, http.MethodPost, "/api/saveFileTree", nil, body, nil)
}

func (c *Client) SaveFileContent(ctx context.Context, uid, projectID, fileID, content, language string) error {
	body := api.SaveFileRequest{UID: uid, ProjectID: projectID, FileID: fileID, Content: content, Language: language}
	return c.do(ctx, http.MethodPost, "/api/saveFile", nil, body, nil)
}

func (c *Client) CreateProject(ctx context.Context, uid, name, description string) (*api.Project, error) {
	var out api.ProjectResponse
	body := api.ProjectRequest{UID: uid, Name: name, Description: description}
	if err := c.send(ctx, 1, http.MethodPost, "/api/projects", nil, body, &out); err != nil {
		return nil, err
	}
	if out.Project == nil {
		return nil, fmt.Errorf("%w: empty project in response", ErrUnavailable)
	}
	return out.Project, nil
}

func (c *Client) GetProject(ctx context.Context, uid, projectID string) (*api.Project, error) {
	var out api.Project
	q := url.Values{"uid": {uid}}
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListProjects(ctx context.Context, uid string) ([]api.Project, error) {
	var out api.ProjectList
	if err := c.do(ctx, http.MethodGet, "/api/projects", url.Values{"uid": {uid}}, nil, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

func (c *Client) UpdateProject(ctx context.Context, uid, projectID, name, description string) error {
	body := api.ProjectRequest{UID: uid, Name: name, Description: description}
	return c.do(ctx, http.MethodPut, "/api/projects/"+url.PathEscape(projectID), nil, body, nil)
}

func (c *Client) DeleteProject(ctx context.Context, uid, projectID string) error {
	q := url.Values{"uid": {uid}}
	return c.do(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(projectID), q, nil, nil)
}

// Download fetches the zip archive of a project.
func (c *Client) Download(ctx context.Context, uid, projectID string, w io.Writer) error {
	endpoint := c.baseURL + "/api/projects/" + url.PathEscape(projectID) + "/download?" + url.Values{"uid": {uid}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("%w: read archive: %w", ErrUnavailable, err)
	}
	return nil
}

// do sends a request that is safe to repeat. Tree and content saves replace
// state wholesale, so they count as such.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	return c.send(ctx, c.retryMaxAttempts, method, path, query, in, out)
}

func (c *Client) send(ctx context.Context, attempts int, method, path string, query url.Values, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	backoff := c.retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		retry, err := c.roundTrip(req, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == attempts {
			break
		}
		sleep := withJitter(backoff)
		if sleep > c.retryMaxDelay {
			sleep = c.retryMaxDelay
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		backoff *= 2
	}
	return lastErr
}

// roundTrip performs one request. retry reports whether a failure is worth
// another attempt.
func (c *Client) roundTrip(req *http.Request, out any) (retry bool, err error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return isRetryableNetErr(err), fmt.Errorf("%w: %s %s: %w", ErrUnavailable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode >= 500, statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}
	return false, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var msg api.Message
	_ = json.Unmarshal(body, &msg)
	return &StatusError{StatusCode: resp.StatusCode, Message: msg.Message}
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, io.EOF)
}

// withJitter returns d with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}
