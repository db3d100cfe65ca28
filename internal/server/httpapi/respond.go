package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/coderoom/internal/common"
)

const maxBodyBytes = 4 << 20

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads one JSON object into v. Malformed bodies and type
// mismatches come back as a *common.ValidationError.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		verr := &common.ValidationError{}
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr) && typeErr.Field != "":
			verr.Add(typeErr.Field, "Invalid value")
		case errors.Is(err, io.EOF):
			verr.Add("body", "Request body is required")
		default:
			verr.Add("body", "Malformed JSON body")
		}
		return verr
	}
	return nil
}

// writeServiceError maps a service error onto the response. notFound is
// the status used for common.ErrorNotFound, which differs between routes.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound int) {
	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, map[string]any{"errors": verr.Fields})
	case errors.Is(err, common.ErrNotProjectMember):
		respondError(w, http.StatusBadRequest, "User not belong to be this project")
	case errors.Is(err, common.ErrorNotFound):
		respondError(w, notFound, "Project not found")
	case errors.Is(err, common.ErrorAlreadyExists):
		respondError(w, http.StatusBadRequest, "Project name already exists")
	case errors.Is(err, common.ErrorUnauthorized):
		respondError(w, http.StatusUnauthorized, "Unauthorized")
	default:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
