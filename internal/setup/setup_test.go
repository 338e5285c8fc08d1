package setup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goban-dev/goban/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DatabaseURL:        filepath.Join(dir, "goban.db"),
		UploadRoot:         filepath.Join(dir, "uploads"),
		UploadURLPrefix:    "/static/uploads",
		MaxUploadBytes:     8 << 20,
		BanRefreshInterval: time.Minute,
		JWTKey:             "test-key",
	}
}

func TestNewAssemblesSQLiteBackend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	defer deps.Close()

	boards, err := deps.Repo.ListBoards(ctx)
	require.NoError(t, err)
	assert.Empty(t, boards)
}

func TestBoardSeeding(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig(t)
	cfg.BoardsFile = filepath.Join(t.TempDir(), "boards.yaml")
	require.NoError(t, os.WriteFile(cfg.BoardsFile, []byte(`
boards:
  - slug: b
    title: Random
  - slug: g
    title: Technology
`), 0o644))

	deps, err := New(ctx, cfg)
	require.NoError(t, err)

	boards, err := deps.Repo.ListBoards(ctx)
	require.NoError(t, err)
	require.Len(t, boards, 2)
	deps.Close()

	// Re-running against the same database must not duplicate or fail.
	deps, err = New(ctx, cfg)
	require.NoError(t, err)
	defer deps.Close()

	boards, err = deps.Repo.ListBoards(ctx)
	require.NoError(t, err)
	assert.Len(t, boards, 2)
}

func TestSecretValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("bad hex", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.SessionSecret = "zzzz"
		_, err := New(ctx, cfg)
		assert.Error(t, err)
	})

	t.Run("wrong length", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.SessionSecret = "abcd"
		_, err := New(ctx, cfg)
		assert.Error(t, err)
	})

	t.Run("valid secret", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.SessionSecret = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
		deps, err := New(ctx, cfg)
		require.NoError(t, err)
		defer deps.Close()

		id := deps.Identity.ThreadUserID("1.2.3.4", uuid.Must(uuid.NewV7()))
		assert.Len(t, id, 8)
	})
}
