package server

import (
	"net/http"

	"github.com/agentic-research/codepad/api"
	"github.com/agentic-research/codepad/internal/lint"
	"github.com/agentic-research/codepad/internal/runner"
)

func (s *Server) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	var req api.CodeRequest
	if !decode(w, r, &req) {
		return
	}
	if s.assistant == nil {
		writeMessage(w, http.StatusServiceUnavailable, "assistant is not configured")
		return
	}
	if req.Code == "" {
		writeMessage(w, http.StatusBadRequest, "code is required")
		return
	}
	out, err := s.assistant.Suggest(r.Context(), req.Code, req.Language)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SuggestionResponse{Suggestion: out})
}

func (s *Server) handleBugFix(w http.ResponseWriter, r *http.Request) {
	var req api.CodeRequest
	if !decode(w, r, &req) {
		return
	}
	if s.assistant == nil {
		writeMessage(w, http.StatusServiceUnavailable, "assistant is not configured")
		return
	}
	if req.Code == "" {
		writeMessage(w, http.StatusBadRequest, "code is required")
		return
	}
	out, err := s.assistant.Fix(r.Context(), req.Code, req.Language)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FixResponse{FixedCode: out})
}

func (s *Server) handleBugDetect(w http.ResponseWriter, r *http.Request) {
	var req api.CodeRequest
	if !decode(w, r, &req) {
		return
	}
	diags := lint.Diagnose([]byte(req.Code), req.Language)
	if diags == nil {
		diags = []lint.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, api.DetectResponse{Errors: diags})
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req api.CodeRequest
	if !decode(w, r, &req) {
		return
	}
	out, ok := lint.Format([]byte(req.Code), req.Language)
	writeJSON(w, http.StatusOK, api.FormatResponse{Code: string(out), Changed: ok && string(out) != req.Code})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req api.RunRequest
	if !decode(w, r, &req) {
		return
	}
	if s.runner == nil {
		writeMessage(w, http.StatusServiceUnavailable, "code runner is not configured")
		return
	}
	res, err := s.runner.Run(r.Context(), runner.Request{Source: req.Code, Language: req.Language, Stdin: req.Stdin})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
