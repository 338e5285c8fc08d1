package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/goban-dev/goban/internal/apperr"
	"github.com/goban-dev/goban/internal/domain"
	"github.com/goban-dev/goban/internal/logger"
	"github.com/goban-dev/goban/internal/middleware"
)

type loginRequest struct {
	Password string `json:"password" validate:"required"`
}

type createBanRequest struct {
	IPAddress string `json:"ip_address" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
	// Duration like "24h"; empty means permanent.
	ExpiresIn string `json:"expires_in"`
}

type createBoardRequest struct {
	Slug        string         `json:"slug" validate:"required,alphanum,max=16"`
	Title       string         `json:"title" validate:"required,max=128"`
	Description string         `json:"description"`
	Settings    map[string]any `json:"settings"`
}

// Login exchanges the moderator password for a session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := h.decodeValidate(r.Body, &body); err != nil {
		writeError(w, err)
		return
	}

	if h.moderatorHash == "" || !h.identity.VerifyModerator(body.Password, h.moderatorHash) {
		writeError(w, apperr.Unauthorized("invalid credentials"))
		return
	}

	token, err := h.tokens.NewToken()
	if err != nil {
		writeError(w, apperr.Internal(err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateBan(w http.ResponseWriter, r *http.Request) {
	var body createBanRequest
	if err := h.decodeValidate(r.Body, &body); err != nil {
		writeError(w, err)
		return
	}

	ban := &domain.Ban{
		ID:        uuid.Must(uuid.NewV7()),
		IPAddress: body.IPAddress,
		Reason:    body.Reason,
		CreatedAt: time.Now().UTC(),
	}
	if body.ExpiresIn != "" {
		d, err := time.ParseDuration(body.ExpiresIn)
		if err != nil || d <= 0 {
			writeError(w, apperr.Validation("expires_in must be a positive duration"))
			return
		}
		expiresAt := ban.CreatedAt.Add(d)
		ban.ExpiresAt = &expiresAt
	}

	if err := h.repo.CreateBan(r.Context(), ban); err != nil {
		writeError(w, err)
		return
	}

	logger.Log.Info("ban created", "address", ban.IPAddress, "permanent", ban.ExpiresAt == nil)
	writeJSON(w, http.StatusCreated, map[string]string{"id": ban.ID.String()})
}

func (h *Handler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	var body createBoardRequest
	if err := h.decodeValidate(r.Body, &body); err != nil {
		writeError(w, err)
		return
	}

	board := &domain.Board{
		ID:        uuid.Must(uuid.NewV7()),
		Slug:      body.Slug,
		Title:     body.Title,
		Settings:  body.Settings,
		CreatedAt: time.Now().UTC(),
	}
	if body.Description != "" {
		board.Description = &body.Description
	}

	if err := h.repo.CreateBoard(r.Context(), board); err != nil {
		writeError(w, err)
		return
	}

	logger.Log.Info("board created", "slug", board.Slug)
	writeJSON(w, http.StatusCreated, map[string]string{"id": board.ID.String()})
}
