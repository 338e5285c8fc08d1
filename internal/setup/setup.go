// Package setup initializes the application dependencies: backend
// selection, port assembly, board provisioning and the ban cache.
package setup

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goban-dev/goban/internal/apperr"
	"github.com/goban-dev/goban/internal/config"
	"github.com/goban-dev/goban/internal/domain"
	"github.com/goban-dev/goban/internal/handler"
	"github.com/goban-dev/goban/internal/identity"
	"github.com/goban-dev/goban/internal/ingest"
	"github.com/goban-dev/goban/internal/logger"
	"github.com/goban-dev/goban/internal/media"
	"github.com/goban-dev/goban/internal/middleware"
	"github.com/goban-dev/goban/internal/storage/pg"
	"github.com/goban-dev/goban/internal/storage/sqlite"
)

const sessionTTL = 12 * time.Hour

// Dependencies holds every initialized port and the HTTP layer on top.
type Dependencies struct {
	Config   *config.Config
	Repo     domain.BoardRepository
	Media    domain.MediaStore
	Identity domain.IdentityProvider
	Bans     *identity.BanCache
	Handler  *handler.Handler
	Tokens   *middleware.TokenService

	closer interface{ Close() error }
}

// New assembles the application. The passed context bounds the ban cache's
// background refresh; cancel it on shutdown.
func New(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	repo, closer, err := openRepository(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	store, err := media.New(cfg.UploadRoot, cfg.UploadURLPrefix)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("init media store: %w", err)
	}

	secret, err := loadSecret(cfg.SessionSecret)
	if err != nil {
		closer.Close()
		return nil, err
	}

	bans := identity.NewBanCache(repo)
	if err := bans.Refresh(ctx); err != nil {
		logger.Log.Warn("initial ban refresh failed", "error", err)
	}
	bans.StartBackgroundRefresh(ctx, cfg.BanRefreshInterval)

	ident, err := identity.New(secret, bans)
	if err != nil {
		closer.Close()
		return nil, err
	}

	if cfg.BoardsFile != "" {
		if err := seedBoards(ctx, repo, cfg.BoardsFile); err != nil {
			closer.Close()
			return nil, err
		}
	}

	pipeline := ingest.New(repo, store, ident, cfg.MaxUploadBytes)
	tokens := middleware.NewTokenService(cfg.JWTKey, sessionTTL)

	h, err := handler.New(repo, store, ident, pipeline, tokens, cfg.ModeratorPasswordHash)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("init handler: %w", err)
	}

	return &Dependencies{
		Config:   cfg,
		Repo:     repo,
		Media:    store,
		Identity: ident,
		Bans:     bans,
		Handler:  h,
		Tokens:   tokens,
		closer:   closer,
	}, nil
}

func (d *Dependencies) Close() error {
	return d.closer.Close()
}

// openRepository picks the backend off the DATABASE_URL scheme:
// postgres:// connects to PostgreSQL, anything else is a SQLite path.
func openRepository(url string) (domain.BoardRepository, interface{ Close() error }, error) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		s, err := pg.New(url)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	s, err := sqlite.New(url)
	if err != nil {
		return nil, nil, err
	}
	return s, s, nil
}

// loadSecret decodes the configured hex secret, or generates a fresh one.
// A generated secret rotates every thread pseudonym on restart.
func loadSecret(configured string) ([]byte, error) {
	if configured == "" {
		logger.Log.Warn("SESSION_SECRET not set, generating an ephemeral secret")
		return identity.NewSecret()
	}
	secret, err := hex.DecodeString(configured)
	if err != nil {
		return nil, fmt.Errorf("SESSION_SECRET must be hex: %w", err)
	}
	if len(secret) != identity.SecretLen {
		return nil, fmt.Errorf("SESSION_SECRET must decode to %d bytes, got %d", identity.SecretLen, len(secret))
	}
	return secret, nil
}

// seedBoards provisions boards from the yaml file, skipping ones that
// already exist.
func seedBoards(ctx context.Context, repo domain.BoardRepository, path string) error {
	seeds, err := config.LoadBoardsFile(path)
	if err != nil {
		return err
	}

	for _, seed := range seeds {
		if _, err := repo.GetBoard(ctx, seed.Slug); err == nil {
			continue
		} else if !apperr.IsKind(err, apperr.KindNotFound) {
			return err
		}

		board := &domain.Board{
			ID:        uuid.Must(uuid.NewV7()),
			Slug:      seed.Slug,
			Title:     seed.Title,
			Settings:  seed.Settings,
			CreatedAt: time.Now().UTC(),
		}
		if seed.Description != "" {
			desc := seed.Description
			board.Description = &desc
		}
		if err := repo.CreateBoard(ctx, board); err != nil {
			return fmt.Errorf("seed board %q: %w", seed.Slug, err)
		}
		logger.Log.Info("board provisioned", "slug", seed.Slug)
	}
	return nil
}
