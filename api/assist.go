package api

import (
	"github.com/agentic-research/codepad/internal/lint"
)

// SuggestionResponse is returned by /api/suggestion.
type SuggestionResponse struct {
	Suggestion string `json:"suggestion"`
}

// FixResponse is returned by /api/bugfix.
type FixResponse struct {
	FixedCode string `json:"fixed_code"`
}

// DetectResponse is returned by /api/bugdetect.
type DetectResponse struct {
	Errors []lint.Diagnostic `json:"errors"`
}

// FormatResponse is returned by /api/format.
type FormatResponse struct {
	Code    string `json:"code"`
	Changed bool   `json:"changed"`
}

// RunRequest submits code for execution.
type RunRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Stdin    string `json:"stdin"`
}
