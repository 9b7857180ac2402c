package handlers

import "net/http"

// HomeHandler serves the landing document the consent flow redirects back to.
type HomeHandler struct{}

type homeResponse struct {
	Service string `json:"service"`
	Success string `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handle implements GET /. It echoes the flash parameters set by the callback.
func (HomeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	respondJSON(r.Context(), w, http.StatusOK, homeResponse{
		Service: "uploader",
		Success: query.Get("success"),
		Error:   query.Get("error"),
	})
}
