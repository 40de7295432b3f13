// Package assist requests code suggestions and bug fixes from an
// OpenAI-compatible chat completions endpoint.
package assist

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
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// ErrMissingKey is returned before any request when no API key is set.
var ErrMissingKey = errors.New("assist: API key is missing")

type Client struct {
	httpClient       *http.Client
	apiKey           string
	baseURL          string
	model            string
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Options configures a Client. Zero values select defaults.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func NewClient(o Options) *Client {
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = 60 * time.Second
	}
	if o.RetryMax <= 0 {
		o.RetryMax = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 4 * time.Second
	}
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Model == "" {
		o.Model = DefaultModel
	}
	return &Client{
		httpClient:       &http.Client{Timeout: o.HTTPTimeout},
		apiKey:           o.APIKey,
		baseURL:          strings.TrimRight(o.BaseURL, "/"),
		model:            o.Model,
		retryMaxAttempts: o.RetryMax,
		retryBaseDelay:   o.BaseDelay,
		retryMaxDelay:    o.MaxDelay,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Suggest returns a single inline completion for code.
func (c *Client) Suggest(ctx context.Context, code, language string) (string, error) {
	if language == "" {
		language = "javascript"
	}
	out, err := c.complete(ctx, suggestPrompt+" in "+language+"\n\n"+code)
	if err != nil {
		return "", err
	}
	return StripFences(out), nil
}

// Fix returns code with bugs corrected.
func (c *Client) Fix(ctx context.Context, code, language string) (string, error) {
	prompt := fixPrompt
	if language != "" {
		prompt += " The code is written in " + language + "."
	}
	out, err := c.complete(ctx, prompt+"\n\n"+code)
	if err != nil {
		return "", err
	}
	return StripFences(out), nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingKey
	}
	payload, err := json.Marshal(completionRequest{
		Model:    c.model,
		Messages: []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.baseURL + "/chat/completions"
	backoff := c.retryBaseDelay

	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isRetryableNetErr(err) && attempt < c.retryMaxAttempts {
				lastErr = err
				sleep(ctx, backoff)
				backoff *= 2
				continue
			}
			return "", fmt.Errorf("http request: %w", err)
		}
		text, retryAfter, err := readCompletion(resp)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable(err) || attempt == c.retryMaxAttempts {
			break
		}
		wait := withJitter(backoff)
		if retryAfter > 0 {
			wait = retryAfter
		} else if wait > c.retryMaxDelay {
			wait = c.retryMaxDelay
		}
		sleep(ctx, wait)
		backoff *= 2
	}
	return "", lastErr
}

func readCompletion(resp *http.Response) (string, time.Duration, error) {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var raw map[string]any
		_ = json.Unmarshal(body, &raw)
		if v, ok := raw["error"].(map[string]any); ok {
			apiErr.Message, _ = v["message"].(string)
			apiErr.Code, _ = v["code"].(string)
		} else if msg, ok := raw["message"].(string); ok {
			apiErr.Message = msg
		}
		err := classifyAPIError(apiErr, resp)
		var rl *RateLimitError
		if errors.As(err, &rl) {
			return "", rl.RetryAfter, err
		}
		return "", 0, err
	}
	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", 0, errors.New("assist: response has no choices")
	}
	return out.Choices[0].Message.Content, 0, nil
}

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	} else {
		t = ""
	}
	t = strings.TrimSuffix(strings.TrimRight(t, " \t\n"), "```")
	return strings.TrimRight(t, "\n")
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF)
}

func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

func withJitter(d time.Duration) time.Duration {
	if d < 4 {
		return d
	}
	j := time.Duration(rand.Int63n(int64(d) / 4))
	return d - d/8 + j
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
