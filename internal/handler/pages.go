package handler

import (
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/goban-dev/goban/internal/apperr"
	"github.com/goban-dev/goban/internal/domain"
)

// postView is a post prepared for templating. Content is stored sanitized,
// so it renders unescaped on purpose.
type postView struct {
	UserID    string
	Tripcode  string
	Content   template.HTML
	CreatedAt time.Time
	MediaURL  string
	ThumbURL  string
}

type threadView struct {
	ID       uuid.UUID
	IsSticky bool
	IsLocked bool
	LastBump time.Time
	Op       postView
}

func (h *Handler) postView(p *domain.Post) postView {
	view := postView{
		UserID:    p.UserIDInThread,
		Content:   template.HTML(p.Content),
		CreatedAt: p.CreatedAt,
	}
	if tc, ok := p.Metadata["tripcode"].(string); ok {
		view.Tripcode = tc
	}
	if p.MediaID != nil {
		view.MediaURL = h.media.URL(*p.MediaID)
		view.ThumbURL = h.media.ThumbnailURL(*p.MediaID)
	}
	return view
}

func (h *Handler) Welcome(w http.ResponseWriter, r *http.Request) {
	boards, err := h.repo.ListBoards(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	h.render(w, "welcome.html", map[string]any{"Boards": boards})
}

func (h *Handler) BoardIndex(w http.ResponseWriter, r *http.Request) {
	board, err := h.repo.GetBoard(r.Context(), chi.URLParam(r, "board"))
	if err != nil {
		writeError(w, err)
		return
	}

	page := 1
	if q := r.URL.Query().Get("page"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			writeError(w, apperr.Validation("page must be a positive integer"))
			return
		}
		page = n
	}

	threads, err := h.repo.ListThreadsPaginated(r.Context(), board.ID,
		h.threadsPerPage, (page-1)*h.threadsPerPage)
	if err != nil {
		writeError(w, err)
		return
	}

	h.render(w, "board.html", map[string]any{
		"Board":    board,
		"Threads":  threads,
		"Page":     page,
		"PrevPage": page - 1,
		"NextPage": page + 1,
	})
}

func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	board, err := h.repo.GetBoard(r.Context(), chi.URLParam(r, "board"))
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.repo.ThreadsWithOp(r.Context(), board.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]threadView, 0, len(entries))
	for i := range entries {
		views = append(views, threadView{
			ID:       entries[i].Thread.ID,
			IsSticky: entries[i].Thread.IsSticky,
			IsLocked: entries[i].Thread.IsLocked,
			LastBump: entries[i].Thread.LastBump,
			Op:       h.postView(&entries[i].Op),
		})
	}

	h.render(w, "catalog.html", map[string]any{
		"Board":   board,
		"Threads": views,
	})
}

func (h *Handler) ThreadView(w http.ResponseWriter, r *http.Request) {
	board, err := h.repo.GetBoard(r.Context(), chi.URLParam(r, "board"))
	if err != nil {
		writeError(w, err)
		return
	}

	threadID, err := uuid.Parse(chi.URLParam(r, "thread"))
	if err != nil {
		writeError(w, apperr.NotFound("thread", chi.URLParam(r, "thread")))
		return
	}

	thread, posts, err := h.repo.GetThread(r.Context(), threadID)
	if err != nil {
		writeError(w, err)
		return
	}
	if thread.BoardID != board.ID {
		writeError(w, apperr.NotFound("thread", threadID.String()))
		return
	}

	views := make([]postView, 0, len(posts))
	for i := range posts {
		views = append(views, h.postView(&posts[i]))
	}

	h.render(w, "thread.html", map[string]any{
		"Board":  board,
		"Thread": thread,
		"Posts":  views,
	})
}
