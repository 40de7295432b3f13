package server

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/agentic-research/codepad/api"
	"github.com/agentic-research/codepad/internal/treefs"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		writeMessage(w, http.StatusBadRequest, "uid is required")
		return
	}
	projects, err := s.store.ListProjects(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ProjectList{Projects: projects})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req api.ProjectRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UID == "" || req.Name == "" {
		writeMessage(w, http.StatusBadRequest, "uid and name are required")
		return
	}
	p, err := s.store.CreateProject(r.Context(), req.UID, req.Name, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.ProjectResponse{Message: "Project created successfully", Project: p})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		writeMessage(w, http.StatusBadRequest, "uid is required")
		return
	}
	p, err := s.store.GetProject(r.Context(), uid, r.PathValue("projectId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req api.ProjectRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UID == "" || req.Name == "" {
		writeMessage(w, http.StatusBadRequest, "uid and name are required")
		return
	}
	if err := s.store.UpdateProject(r.Context(), req.UID, r.PathValue("projectId"), req.Name, req.Description); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Project updated successfully")
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		writeMessage(w, http.StatusBadRequest, "uid is required")
		return
	}
	if err := s.store.DeleteProject(r.Context(), uid, r.PathValue("projectId")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Project deleted successfully")
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		writeMessage(w, http.StatusBadRequest, "uid is required")
		return
	}
	p, err := s.store.GetProject(r.Context(), uid, r.PathValue("projectId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if p.FileTree == nil {
		writeMessage(w, http.StatusNotFound, "project has no file tree")
		return
	}
	var buf bytes.Buffer
	if err := treefs.WriteZip(&buf, p.FileTree); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.Name+"_project.zip"))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleGetTree(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	uid, projectID := q.Get("uid"), q.Get("projectId")
	if uid == "" || projectID == "" {
		writeMessage(w, http.StatusBadRequest, "uid and projectId are required")
		return
	}
	root, err := s.store.FetchTree(r.Context(), uid, projectID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, root)
}

func (s *Server) handleSaveTree(w http.ResponseWriter, r *http.Request) {
	var req api.SaveTreeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UID == "" || req.ProjectID == "" || req.FileTree == nil {
		writeMessage(w, http.StatusBadRequest, "uid, projectId and fileTree are required")
		return
	}
	if err := s.store.SaveTree(r.Context(), req.UID, req.ProjectID, req.FileTree); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "File tree saved successfully")
}

func (s *Server) handleSaveFile(w http.ResponseWriter, r *http.Request) {
	var req api.SaveFileRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UID == "" || req.ProjectID == "" || req.FileID == "" {
		writeMessage(w, http.StatusBadRequest, "uid, projectId and fileId are required")
		return
	}
	if err := s.store.SaveFileContent(r.Context(), req.UID, req.ProjectID, req.FileID, req.Content, req.Language); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "File saved successfully")
}
