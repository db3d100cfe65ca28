package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/coderoom/internal/common"
	"github.com/dmitrijs2005/coderoom/internal/filetree"
	"github.com/dmitrijs2005/coderoom/internal/server/gate"
)

type createProjectRequest struct {
	Name string `json:"name"`
}

type addUsersRequest struct {
	ProjectID string   `json:"projectId"`
	Users     []string `json:"users"`
}

type updateFileTreeRequest struct {
	ProjectID string          `json:"projectId"`
	FileTree  json.RawMessage `json:"fileTree"`
}

func callerID(r *http.Request) string {
	claims, _ := gate.ClaimsFromContext(r.Context())
	return claims.UserID
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err, http.StatusBadRequest)
		return
	}

	project, err := h.projects.Create(r.Context(), callerID(r), req.Name)
	if err != nil {
		h.writeServiceError(w, r, err, http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusCreated, project)
}

func (h *Handler) allProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.All(r.Context(), callerID(r))
	if err != nil {
		h.writeServiceError(w, r, err, http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (h *Handler) addUsers(w http.ResponseWriter, r *http.Request) {
	var req addUsersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err, http.StatusBadRequest)
		return
	}

	project, err := h.projects.AddUsers(r.Context(), callerID(r), req.ProjectID, req.Users)
	if err != nil {
		h.writeServiceError(w, r, err, http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"project": project})
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.Get(r.Context(), chi.URLParam(r, "projectId"))
	if err != nil {
		h.writeServiceError(w, r, err, http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"project": project})
}

func (h *Handler) updateFileTree(w http.ResponseWriter, r *http.Request) {
	var req updateFileTreeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeServiceError(w, r, err, http.StatusBadRequest)
		return
	}

	var tree filetree.Tree
	if raw := bytes.TrimSpace(req.FileTree); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		t, err := filetree.Decode(raw)
		if err != nil {
			v := &common.ValidationError{}
			v.Add("fileTree", err.Error())
			h.writeServiceError(w, r, v, http.StatusBadRequest)
			return
		}
		tree = t
	}

	project, err := h.projects.UpdateFileTree(r.Context(), req.ProjectID, tree)
	if err != nil {
		h.writeServiceError(w, r, err, http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"project": project})
}

func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.projects.Delete(r.Context(), chi.URLParam(r, "projectId")); err != nil {
		h.writeServiceError(w, r, err, http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"mes": "project delete "})
}

func (h *Handler) exportProject(w http.ResponseWriter, r *http.Request) {
	url, err := h.projects.ExportURL(r.Context(), chi.URLParam(r, "projectId"))
	if err != nil {
		h.writeServiceError(w, r, err, http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}
