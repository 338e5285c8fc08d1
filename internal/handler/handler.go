// Package handler is the HTTP boundary: thin projections over the
// repository on the read side, the ingestion pipeline on the write side
// and a small JSON admin surface.
package handler

import (
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"net"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/goban-dev/goban/internal/apperr"
	"github.com/goban-dev/goban/internal/domain"
	"github.com/goban-dev/goban/internal/ingest"
	"github.com/goban-dev/goban/internal/logger"
	"github.com/goban-dev/goban/internal/middleware"
)

//go:embed templates/*.html
var templateFS embed.FS

type Handler struct {
	repo           domain.BoardRepository
	media          domain.MediaStore
	identity       domain.IdentityProvider
	pipeline       *ingest.Pipeline
	tokens         *middleware.TokenService
	moderatorHash  string
	templates      *template.Template
	validate       *validator.Validate
	threadsPerPage int
}

func New(
	repo domain.BoardRepository,
	media domain.MediaStore,
	identity domain.IdentityProvider,
	pipeline *ingest.Pipeline,
	tokens *middleware.TokenService,
	moderatorHash string,
) (*Handler, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Handler{
		repo:           repo,
		media:          media,
		identity:       identity,
		pipeline:       pipeline,
		tokens:         tokens,
		moderatorHash:  moderatorHash,
		templates:      templates,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		threadsPerPage: 10,
	}, nil
}

// writeError maps an error to its status code exactly once, here.
func writeError(w http.ResponseWriter, err error) {
	status := apperr.Status(err)
	if status == http.StatusInternalServerError {
		logger.Log.Error("request failed", "error", err)
	}
	http.Error(w, apperr.UserMessage(err), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("encode response", "error", err)
	}
}

func (h *Handler) decodeValidate(r io.Reader, body any) error {
	if err := json.NewDecoder(r).Decode(body); err != nil {
		return apperr.Validation("body is invalid json")
	}
	if err := h.validate.Struct(body); err != nil {
		return apperr.Validation("required fields missing or invalid")
	}
	return nil
}

func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		logger.Log.Error("render template", "template", name, "error", err)
	}
}

// clientIP strips the port from RemoteAddr. Proxy headers are deliberately
// ignored: trusting them unguarded would let anyone dodge bans.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
