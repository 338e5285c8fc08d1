package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/goban-dev/goban/internal/apperr"
	"github.com/goban-dev/goban/internal/ingest"
)

// CreatePost feeds the multipart stream straight into the pipeline and
// answers with a redirect to the thread the post landed in.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, apperr.Validation("expected multipart form data"))
		return
	}

	sub := ingest.Submission{
		ClientAddr: clientIP(r),
		BoardSlug:  chi.URLParam(r, "board"),
	}
	result, err := h.pipeline.Submit(r.Context(), sub, mr)
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, result.RedirectPath(), http.StatusSeeOther)
}
