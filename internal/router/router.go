// Package router wires the HTTP surface onto chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goban-dev/goban/internal/middleware"
	"github.com/goban-dev/goban/internal/setup"
)

func New(deps *setup.Dependencies) chi.Router {
	r := chi.NewRouter()

	// No RealIP here: bans key on RemoteAddr, and trusting forwarded
	// headers unguarded would let anyone dodge them.
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogging)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	h := deps.Handler

	r.Get("/", h.Welcome)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Uploaded originals and thumbnails, served straight off disk.
	uploads := http.StripPrefix(deps.Config.UploadURLPrefix,
		http.FileServer(http.Dir(deps.Config.UploadRoot)))
	r.Get(deps.Config.UploadURLPrefix+"/*", uploads.ServeHTTP)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Group(func(r chi.Router) {
			r.Use(middleware.ModeratorOnly(deps.Tokens))
			r.Post("/bans", h.CreateBan)
			r.Post("/boards", h.CreateBoard)
		})
	})

	r.Route("/{board}", func(r chi.Router) {
		r.Get("/", h.BoardIndex)
		r.Get("/catalog", h.Catalog)
		r.Get("/thread/{thread}", h.ThreadView)
		r.Post("/post", h.CreatePost)
	})

	return r
}
