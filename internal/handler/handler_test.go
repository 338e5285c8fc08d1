package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goban-dev/goban/internal/config"
	"github.com/goban-dev/goban/internal/domain"
	"github.com/goban-dev/goban/internal/handler"
	"github.com/goban-dev/goban/internal/identity"
	"github.com/goban-dev/goban/internal/ingest"
	"github.com/goban-dev/goban/internal/media"
	"github.com/goban-dev/goban/internal/middleware"
	"github.com/goban-dev/goban/internal/router"
	"github.com/goban-dev/goban/internal/setup"
	"github.com/goban-dev/goban/internal/storage/sqlite"
)

const moderatorPassword = "correct horse battery staple"

type app struct {
	router http.Handler
	repo   *sqlite.Storage
	bans   *identity.BanCache
}

func newApp(t *testing.T) *app {
	t.Helper()

	repo, err := sqlite.New(filepath.Join(t.TempDir(), "goban.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	uploadRoot := t.TempDir()
	store, err := media.New(uploadRoot, "/static/uploads")
	require.NoError(t, err)

	bans := identity.NewBanCache(repo)
	ident, err := identity.New(bytes.Repeat([]byte{3}, identity.SecretLen), bans)
	require.NoError(t, err)

	moderatorHash, err := identity.HashModeratorPassword(moderatorPassword)
	require.NoError(t, err)

	pipeline := ingest.New(repo, store, ident, 8<<20)
	tokens := middleware.NewTokenService("test-jwt-key", time.Hour)
	h, err := handler.New(repo, store, ident, pipeline, tokens, moderatorHash)
	require.NoError(t, err)

	deps := &setup.Dependencies{
		Config: &config.Config{
			UploadRoot:      uploadRoot,
			UploadURLPrefix: "/static/uploads",
		},
		Repo:     repo,
		Media:    store,
		Identity: ident,
		Bans:     bans,
		Handler:  h,
		Tokens:   tokens,
	}

	return &app{router: router.New(deps), repo: repo, bans: bans}
}

func (a *app) seedBoard(t *testing.T, slug, title string) *domain.Board {
	t.Helper()
	board := &domain.Board{
		ID:        uuid.Must(uuid.NewV7()),
		Slug:      slug,
		Title:     title,
		Settings:  domain.JSONMap{},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, a.repo.CreateBoard(context.Background(), board))
	return board
}

func (a *app) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func postForm(t *testing.T, path string, fields map[string]string, file []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		fw, err := w.CreateFormField(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(value))
		require.NoError(t, err)
	}
	if file != nil {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="file"; filename="upload.png"`)
		header.Set("Content-Type", "image/png")
		fw, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func smallPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 31), G: uint8(y * 29), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNewThreadFlow(t *testing.T) {
	a := newApp(t)
	a.seedBoard(t, "b", "Random")

	rec := a.do(postForm(t, "/b/post", map[string]string{"content": "Hello <world>"}, nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	location := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/b/thread/"), location)

	page := a.do(httptest.NewRequest(http.MethodGet, location, nil))
	require.Equal(t, http.StatusOK, page.Code)
	body := page.Body.String()
	assert.Contains(t, body, "Hello &lt;world&gt;")
	assert.NotContains(t, body, "greentext")
}

func TestReplyFlow(t *testing.T) {
	a := newApp(t)
	a.seedBoard(t, "b", "Random")

	rec := a.do(postForm(t, "/b/post", map[string]string{"content": "op"}, nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	location := rec.Header().Get("Location")
	threadID := strings.TrimPrefix(location, "/b/thread/")

	rec = a.do(postForm(t, "/b/post", map[string]string{
		"content":   ">be me\nnormal",
		"thread_id": threadID,
	}, nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, location, rec.Header().Get("Location"))

	page := a.do(httptest.NewRequest(http.MethodGet, location, nil))
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(),
		`<span class="greentext">&gt;be me</span><br />normal`)
}

func TestPostWithImage(t *testing.T) {
	a := newApp(t)
	a.seedBoard(t, "b", "Random")

	rec := a.do(postForm(t, "/b/post", map[string]string{"content": "pic"}, smallPNG(t)))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	page := a.do(httptest.NewRequest(http.MethodGet, rec.Header().Get("Location"), nil))
	require.Equal(t, http.StatusOK, page.Code)
	body := page.Body.String()
	assert.Contains(t, body, "/static/uploads/")
	assert.Contains(t, body, "thumb_")

	// The thumbnail link resolves through the static file server.
	start := strings.Index(body, `src="`) + len(`src="`)
	end := strings.Index(body[start:], `"`)
	thumbURL := body[start : start+end]
	img := a.do(httptest.NewRequest(http.MethodGet, thumbURL, nil))
	assert.Equal(t, http.StatusOK, img.Code)
}

func TestStatusCodes(t *testing.T) {
	a := newApp(t)
	a.seedBoard(t, "b", "Random")

	require.NoError(t, a.repo.CreateBan(context.Background(), &domain.Ban{
		ID:        uuid.Must(uuid.NewV7()),
		IPAddress: "192.0.2.1", // httptest.NewRequest's RemoteAddr
		Reason:    "test",
		CreatedAt: time.Now().UTC(),
	}))

	t.Run("banned client gets 403", func(t *testing.T) {
		require.NoError(t, a.bans.Refresh(context.Background()))
		rec := a.do(postForm(t, "/b/post", map[string]string{"content": "hi"}, nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		// The ban must not leak into read paths.
		page := a.do(httptest.NewRequest(http.MethodGet, "/b/", nil))
		assert.Equal(t, http.StatusOK, page.Code)
	})

	t.Run("unknown board gets 404", func(t *testing.T) {
		req := postForm(t, "/zzz/post", map[string]string{"content": "hi"}, nil)
		req.RemoteAddr = "198.51.100.7:4444"
		rec := a.do(req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown thread gets 404", func(t *testing.T) {
		path := "/b/thread/" + uuid.Must(uuid.NewV7()).String()
		rec := a.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed thread id gets 404", func(t *testing.T) {
		rec := a.do(httptest.NewRequest(http.MethodGet, "/b/thread/not-a-uuid", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non-multipart post gets 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/b/post", strings.NewReader("content=hi"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "198.51.100.7:4444"
		rec := a.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad page parameter gets 400", func(t *testing.T) {
		rec := a.do(httptest.NewRequest(http.MethodGet, "/b/?page=zero", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// faultyRepo wraps the real storage and fails every thread insert,
// simulating a storage outage behind an otherwise healthy app.
type faultyRepo struct {
	*sqlite.Storage
}

func (r *faultyRepo) CreateThread(ctx context.Context, thread *domain.Thread, op *domain.Post) error {
	return errors.New("storage unavailable")
}

func TestRepositoryFaultMapsTo500(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "goban.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	repo := &faultyRepo{Storage: store}

	uploadRoot := t.TempDir()
	blobs, err := media.New(uploadRoot, "/static/uploads")
	require.NoError(t, err)

	bans := identity.NewBanCache(repo)
	ident, err := identity.New(bytes.Repeat([]byte{3}, identity.SecretLen), bans)
	require.NoError(t, err)

	pipeline := ingest.New(repo, blobs, ident, 8<<20)
	tokens := middleware.NewTokenService("test-jwt-key", time.Hour)
	h, err := handler.New(repo, blobs, ident, pipeline, tokens, "")
	require.NoError(t, err)

	deps := &setup.Dependencies{
		Config: &config.Config{
			UploadRoot:      uploadRoot,
			UploadURLPrefix: "/static/uploads",
		},
		Repo:     repo,
		Media:    blobs,
		Identity: ident,
		Bans:     bans,
		Handler:  h,
		Tokens:   tokens,
	}
	r := router.New(deps)

	board := &domain.Board{
		ID:        uuid.Must(uuid.NewV7()),
		Slug:      "b",
		Title:     "Random",
		Settings:  domain.JSONMap{},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateBoard(context.Background(), board))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, postForm(t, "/b/post", map[string]string{"content": "doomed"}, nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// The failed submission must leave no thread behind and touch no media.
	threads, err := store.ListThreadsPaginated(context.Background(), board.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, threads)

	entries, err := os.ReadDir(uploadRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestThreadScopedToBoard(t *testing.T) {
	a := newApp(t)
	a.seedBoard(t, "b", "Random")
	a.seedBoard(t, "g", "Technology")

	rec := a.do(postForm(t, "/b/post", map[string]string{"content": "on b"}, nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	threadID := strings.TrimPrefix(rec.Header().Get("Location"), "/b/thread/")

	rec = a.do(httptest.NewRequest(http.MethodGet, "/g/thread/"+threadID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWelcomeAndCatalog(t *testing.T) {
	a := newApp(t)
	a.seedBoard(t, "b", "Random")
	a.seedBoard(t, "g", "Technology")

	rec := a.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/b/")
	assert.Contains(t, rec.Body.String(), "Technology")

	require.Equal(t, http.StatusSeeOther,
		a.do(postForm(t, "/b/post", map[string]string{"content": "catalog me"}, nil)).Code)

	rec = a.do(httptest.NewRequest(http.MethodGet, "/b/catalog", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "catalog me")
}

func TestAdminFlow(t *testing.T) {
	a := newApp(t)
	a.seedBoard(t, "b", "Random")

	login := func(password string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"password": password})
		req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return a.do(req)
	}

	t.Run("wrong password rejected", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, login("nope").Code)
	})

	rec := login(moderatorPassword)
	require.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	session := cookies[0]
	assert.Equal(t, middleware.SessionCookie, session.Name)

	t.Run("ban requires session", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"ip_address": "10.1.1.1", "reason": "spam"})
		req := httptest.NewRequest(http.MethodPost, "/admin/bans", bytes.NewReader(body))
		rec := a.do(req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("create ban", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{
			"ip_address": "10.1.1.1", "reason": "spam", "expires_in": "24h",
		})
		req := httptest.NewRequest(http.MethodPost, "/admin/bans", bytes.NewReader(body))
		req.AddCookie(session)
		rec := a.do(req)
		require.Equal(t, http.StatusCreated, rec.Code)

		active, err := a.repo.ActiveBans(context.Background())
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "10.1.1.1", active[0].IPAddress)
		assert.NotNil(t, active[0].ExpiresAt)
	})

	t.Run("create board", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"slug": "v", "title": "Video Games"})
		req := httptest.NewRequest(http.MethodPost, "/admin/boards", bytes.NewReader(body))
		req.AddCookie(session)
		rec := a.do(req)
		require.Equal(t, http.StatusCreated, rec.Code)

		board, err := a.repo.GetBoard(context.Background(), "v")
		require.NoError(t, err)
		assert.Equal(t, "Video Games", board.Title)
	})

	t.Run("invalid body rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/boards", strings.NewReader(`{"slug":""}`))
		req.AddCookie(session)
		rec := a.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
