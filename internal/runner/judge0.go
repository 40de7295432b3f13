// Package runner executes source code on a Judge0 compatible service.
package runner

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
	"time"
)

const (
	DefaultBaseURL = "https://judge0-ce.p.rapidapi.com"
	DefaultHost    = "judge0-ce.p.rapidapi.com"

	// defaultLanguageID is JavaScript (Node.js).
	defaultLanguageID = 63
)

// ErrTimeout is returned when a submission is still queued or running after
// the last poll.
var ErrTimeout = errors.New("runner: submission did not finish")

var languageIDs = map[string]int{
	"javascript": 63,
	"python":     71,
	"java":       62,
	"cpp":        54,
	"c++":        54,
	"c":          50,
	"go":         60,
	"typescript": 74,
	"rust":       73,
}

// LanguageID maps an editor language onto a Judge0 language id, falling back
// to JavaScript.
func LanguageID(language string) int {
	if id, ok := languageIDs[strings.ToLower(language)]; ok {
		return id
	}
	return defaultLanguageID
}

// Request is one program to run.
type Request struct {
	Source   string
	Language string
	Stdin    string
}

// Result is the outcome of one submission. Stdout, Stderr and
// CompileOutput are kept as reported; Output is the single text shown to
// the user, the first of them that is not empty.
type Result struct {
	Token         string `json:"token"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
	Output        string `json:"output"`
	Status        string `json:"status"`
	Time          string `json:"time"`
	Memory        string `json:"memory"`
}

type submission struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin,omitempty"`
}

type submissionResult struct {
	Token         string  `json:"token"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Time          *string `json:"time"`
	Memory        *int64  `json:"memory"`
	Status        struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

// Judge0 status ids 1 and 2 are "In Queue" and "Processing".
func (r submissionResult) pending() bool { return r.Status.ID > 0 && r.Status.ID <= 2 }

type Options struct {
	BaseURL      string
	Host         string
	APIKey       string
	HTTPTimeout  time.Duration
	PollInterval time.Duration
	MaxPolls     int
}

type Client struct {
	httpClient   *http.Client
	baseURL      string
	host         string
	apiKey       string
	pollInterval time.Duration
	maxPolls     int
}

func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
		if o.Host == "" {
			o.Host = DefaultHost
		}
	}
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = 30 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxPolls <= 0 {
		o.MaxPolls = 10
	}
	return &Client{
		httpClient:   &http.Client{Timeout: o.HTTPTimeout},
		baseURL:      strings.TrimRight(o.BaseURL, "/"),
		host:         o.Host,
		apiKey:       o.APIKey,
		pollInterval: o.PollInterval,
		maxPolls:     o.MaxPolls,
	}
}

// Run submits req and polls until the submission finishes.
func (c *Client) Run(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(submission{
		SourceCode: req.Source,
		LanguageID: LanguageID(req.Language),
		Stdin:      req.Stdin,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}
	var created submissionResult
	q := url.Values{"base64_encoded": {"false"}, "wait": {"false"}, "fields": {"*"}}
	if err := c.do(ctx, http.MethodPost, "/submissions", q, body, &created); err != nil {
		return nil, err
	}
	if created.Token == "" {
		return nil, errors.New("runner: submission returned no token")
	}

	q = url.Values{"base64_encoded": {"false"}, "fields": {"*"}}
	for i := 0; i < c.maxPolls; i++ {
		if err := wait(ctx, c.pollInterval); err != nil {
			return nil, err
		}
		var res submissionResult
		if err := c.do(ctx, http.MethodGet, "/submissions/"+url.PathEscape(created.Token), q, nil, &res); err != nil {
			return nil, err
		}
		if !res.pending() {
			res.Token = created.Token
			return res.result(), nil
		}
	}
	return nil, fmt.Errorf("%w: token %s", ErrTimeout, created.Token)
}

func (r submissionResult) result() *Result {
	out := &Result{
		Token:         r.Token,
		Stdout:        deref(r.Stdout),
		Stderr:        deref(r.Stderr),
		CompileOutput: deref(r.CompileOutput),
		Status:        r.Status.Description,
		Output:        "No output.",
		Time:          "N/A",
		Memory:        "N/A",
	}
	for _, s := range []string{out.Stdout, out.Stderr, out.CompileOutput} {
		if s != "" {
			out.Output = s
			break
		}
	}
	if r.Time != nil && *r.Time != "" {
		out.Time = *r.Time
	}
	if r.Memory != nil {
		out.Memory = fmt.Sprintf("%d", *r.Memory)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+q.Encode(), rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-rapidapi-key", c.apiKey)
		if c.host != "" {
			req.Header.Set("x-rapidapi-host", c.host)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError is a non-2xx response from the execution service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("runner: status=%d body=%s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("runner: status=%d", e.StatusCode)
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
