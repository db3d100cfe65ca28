package httpapi

import (
	"net/http"
	"strings"
)

// aiResult returns the raw generator text for ?prompt=.
func (h *Handler) aiResult(w http.ResponseWriter, r *http.Request) {
	prompt := strings.TrimSpace(r.URL.Query().Get("prompt"))
	if prompt == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "prompt is required"})
		return
	}

	text, err := h.ai.Generate(r.Context(), prompt)
	if err != nil {
		h.logger.Warn(r.Context(), "ai passthrough failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"message": "AI generation failed"})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}
