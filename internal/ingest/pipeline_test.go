package ingest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goban-dev/goban/internal/apperr"
	"github.com/goban-dev/goban/internal/domain"
	"github.com/goban-dev/goban/internal/identity"
	"github.com/goban-dev/goban/internal/media"
	"github.com/goban-dev/goban/internal/storage/sqlite"
)

type fixture struct {
	pipeline *Pipeline
	repo     *sqlite.Storage
	bans     *identity.BanCache
	mediaDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo, err := sqlite.New(filepath.Join(t.TempDir(), "goban.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	mediaDir := t.TempDir()
	store, err := media.New(mediaDir, "/static/uploads")
	require.NoError(t, err)

	secret := bytes.Repeat([]byte{7}, identity.SecretLen)
	bans := identity.NewBanCache(repo)
	ident, err := identity.New(secret, bans)
	require.NoError(t, err)

	return &fixture{
		pipeline: New(repo, store, ident, 8<<20),
		repo:     repo,
		bans:     bans,
		mediaDir: mediaDir,
	}
}

func (f *fixture) seedBoard(t *testing.T, slug string, settings domain.JSONMap) *domain.Board {
	t.Helper()
	board := &domain.Board{
		ID:        uuid.Must(uuid.NewV7()),
		Slug:      slug,
		Title:     "Board " + slug,
		Settings:  settings,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.repo.CreateBoard(context.Background(), board))
	return board
}

type formPart struct {
	name        string
	contentType string
	data        []byte
}

func buildForm(t *testing.T, parts ...formPart) *multipart.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.contentType == "" {
			fw, err := w.CreateFormField(p.name)
			require.NoError(t, err)
			_, err = fw.Write(p.data)
			require.NoError(t, err)
			continue
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="`+p.name+`"; filename="upload"`)
		header.Set("Content-Type", p.contentType)
		fw, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = fw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return multipart.NewReader(&buf, w.Boundary())
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 17), G: uint8(y * 13), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSubmit_NewThread(t *testing.T) {
	f := newFixture(t)
	f.seedBoard(t, "b", nil)
	ctx := context.Background()

	form := buildForm(t, formPart{name: "content", data: []byte("Hello <world>")})
	result, err := f.pipeline.Submit(ctx, Submission{ClientAddr: "1.2.3.4", BoardSlug: "b"}, form)
	require.NoError(t, err)
	assert.True(t, result.IsNew)
	assert.Equal(t, "/b/thread/"+result.ThreadID.String(), result.RedirectPath())

	thread, posts, err := f.repo.GetThread(ctx, result.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, result.ThreadID, thread.ID)
	require.Len(t, posts, 1)
	assert.True(t, posts[0].IsOp)
	assert.Equal(t, "Hello &lt;world&gt;", posts[0].Content)
	assert.Nil(t, posts[0].MediaID)
}

func TestSubmit_Reply(t *testing.T) {
	f := newFixture(t)
	f.seedBoard(t, "b", nil)
	ctx := context.Background()
	sub := Submission{ClientAddr: "1.2.3.4", BoardSlug: "b"}

	first, err := f.pipeline.Submit(ctx, sub,
		buildForm(t, formPart{name: "content", data: []byte("op")}))
	require.NoError(t, err)

	second, err := f.pipeline.Submit(ctx, sub, buildForm(t,
		formPart{name: "content", data: []byte(">quoted\nreply")},
		formPart{name: "thread_id", data: []byte(first.ThreadID.String())},
	))
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.ThreadID, second.ThreadID)

	thread, posts, err := f.repo.GetThread(ctx, first.ThreadID)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.False(t, posts[1].IsOp)
	assert.Equal(t, `<span class="greentext">&gt;quoted</span><br />reply`, posts[1].Content)
	assert.True(t, thread.LastBump.Equal(posts[1].CreatedAt))

	// Same client in the same thread keeps the same pseudonym.
	assert.Equal(t, posts[0].UserIDInThread, posts[1].UserIDInThread)
	assert.Len(t, posts[1].UserIDInThread, 8)
}

func TestSubmit_ThreadIDFallbacks(t *testing.T) {
	f := newFixture(t)
	f.seedBoard(t, "b", nil)
	ctx := context.Background()
	sub := Submission{ClientAddr: "1.2.3.4", BoardSlug: "b"}

	t.Run("garbage id starts a new thread", func(t *testing.T) {
		result, err := f.pipeline.Submit(ctx, sub, buildForm(t,
			formPart{name: "content", data: []byte("hi")},
			formPart{name: "thread_id", data: []byte("not-a-uuid")},
		))
		require.NoError(t, err)
		assert.True(t, result.IsNew)
	})

	t.Run("unknown id starts a new thread", func(t *testing.T) {
		result, err := f.pipeline.Submit(ctx, sub, buildForm(t,
			formPart{name: "content", data: []byte("hi")},
			formPart{name: "thread_id", data: []byte(uuid.Must(uuid.NewV7()).String())},
		))
		require.NoError(t, err)
		assert.True(t, result.IsNew)
	})

	t.Run("thread on another board starts a new thread", func(t *testing.T) {
		f.seedBoard(t, "g", nil)
		onB, err := f.pipeline.Submit(ctx, sub,
			buildForm(t, formPart{name: "content", data: []byte("op on b")}))
		require.NoError(t, err)

		result, err := f.pipeline.Submit(ctx, Submission{ClientAddr: "1.2.3.4", BoardSlug: "g"},
			buildForm(t,
				formPart{name: "content", data: []byte("cross-board")},
				formPart{name: "thread_id", data: []byte(onB.ThreadID.String())},
			))
		require.NoError(t, err)
		assert.True(t, result.IsNew)
		assert.NotEqual(t, onB.ThreadID, result.ThreadID)
	})
}

func TestSubmit_WithFile(t *testing.T) {
	f := newFixture(t)
	f.seedBoard(t, "b", nil)
	ctx := context.Background()

	form := buildForm(t,
		formPart{name: "content", data: []byte("pic related")},
		formPart{name: "file", contentType: "image/png", data: testPNG(t)},
	)
	result, err := f.pipeline.Submit(ctx, Submission{ClientAddr: "1.2.3.4", BoardSlug: "b"}, form)
	require.NoError(t, err)

	_, posts, err := f.repo.GetThread(ctx, result.ThreadID)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.NotNil(t, posts[0].MediaID)
	id := *posts[0].MediaID
	assert.Len(t, id, 64)

	_, err = os.Stat(filepath.Join(f.mediaDir, id[0:2], id[2:4], id))
	assert.NoError(t, err)
}

func TestSubmit_Banned(t *testing.T) {
	f := newFixture(t)
	f.seedBoard(t, "b", nil)
	ctx := context.Background()

	require.NoError(t, f.repo.CreateBan(ctx, &domain.Ban{
		ID: uuid.Must(uuid.NewV7()), IPAddress: "9.9.9.9", Reason: "spam", CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, f.bans.Refresh(ctx))

	form := buildForm(t,
		formPart{name: "content", data: []byte("blocked")},
		formPart{name: "file", contentType: "image/png", data: testPNG(t)},
	)
	_, err := f.pipeline.Submit(ctx, Submission{ClientAddr: "9.9.9.9", BoardSlug: "b"}, form)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized))

	// No side effects at all: no threads and no media blob.
	board, err := f.repo.GetBoard(ctx, "b")
	require.NoError(t, err)
	threads, err := f.repo.ListThreadsPaginated(ctx, board.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, threads)

	entries, err := os.ReadDir(f.mediaDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubmit_UnknownBoard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	form := buildForm(t, formPart{name: "content", data: []byte("hi")})
	_, err := f.pipeline.Submit(ctx, Submission{ClientAddr: "1.2.3.4", BoardSlug: "zzz"}, form)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestSubmit_SizeLimits(t *testing.T) {
	ctx := context.Background()

	t.Run("global cap", func(t *testing.T) {
		f := newFixture(t)
		f.seedBoard(t, "b", nil)
		f.pipeline.maxUpload = 32

		form := buildForm(t,
			formPart{name: "content", data: []byte("hi")},
			formPart{name: "file", contentType: "image/png", data: testPNG(t)},
		)
		_, err := f.pipeline.Submit(ctx, Submission{ClientAddr: "1.2.3.4", BoardSlug: "b"}, form)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})

	t.Run("board override", func(t *testing.T) {
		f := newFixture(t)
		f.seedBoard(t, "b", domain.JSONMap{"max_file_size": float64(16)})

		form := buildForm(t,
			formPart{name: "content", data: []byte("hi")},
			formPart{name: "file", contentType: "image/png", data: testPNG(t)},
		)
		_, err := f.pipeline.Submit(ctx, Submission{ClientAddr: "1.2.3.4", BoardSlug: "b"}, form)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})

	t.Run("oversize content", func(t *testing.T) {
		f := newFixture(t)
		f.seedBoard(t, "b", nil)

		form := buildForm(t,
			formPart{name: "content", data: bytes.Repeat([]byte("a"), maxContentBytes+1)})
		_, err := f.pipeline.Submit(ctx, Submission{ClientAddr: "1.2.3.4", BoardSlug: "b"}, form)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})
}

func TestSubmit_Tripcode(t *testing.T) {
	f := newFixture(t)
	f.seedBoard(t, "b", nil)
	ctx := context.Background()
	sub := Submission{ClientAddr: "1.2.3.4", BoardSlug: "b"}

	first, err := f.pipeline.Submit(ctx, sub, buildForm(t,
		formPart{name: "content", data: []byte("signed")},
		formPart{name: "tripcode", data: []byte("hunter2")},
	))
	require.NoError(t, err)

	_, err = f.pipeline.Submit(ctx, Submission{ClientAddr: "5.6.7.8", BoardSlug: "b"},
		buildForm(t,
			formPart{name: "content", data: []byte("also signed")},
			formPart{name: "thread_id", data: []byte(first.ThreadID.String())},
			formPart{name: "tripcode", data: []byte("hunter2")},
		))
	require.NoError(t, err)

	_, posts, err := f.repo.GetThread(ctx, first.ThreadID)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	tc, ok := posts[0].Metadata["tripcode"].(string)
	require.True(t, ok)
	assert.Len(t, tc, 11)
	assert.True(t, strings.HasPrefix(tc, "!"))

	// Same password gives the same tripcode regardless of client.
	assert.Equal(t, tc, posts[1].Metadata["tripcode"])
	// Pseudonyms still differ: tripcodes are opt-in, not identity.
	assert.NotEqual(t, posts[0].UserIDInThread, posts[1].UserIDInThread)
}

func TestSubmit_IgnoresUnknownFields(t *testing.T) {
	f := newFixture(t)
	f.seedBoard(t, "b", nil)
	ctx := context.Background()

	form := buildForm(t,
		formPart{name: "captcha", data: []byte("whatever")},
		formPart{name: "content", data: []byte("hi")},
	)
	result, err := f.pipeline.Submit(ctx, Submission{ClientAddr: "1.2.3.4", BoardSlug: "b"}, form)
	require.NoError(t, err)
	assert.True(t, result.IsNew)
}

func TestSubmit_InvalidUTF8Dropped(t *testing.T) {
	f := newFixture(t)
	f.seedBoard(t, "b", nil)
	ctx := context.Background()

	form := buildForm(t, formPart{name: "content", data: []byte{'o', 'k', 0xff, 0xfe, '!'}})
	result, err := f.pipeline.Submit(ctx, Submission{ClientAddr: "1.2.3.4", BoardSlug: "b"}, form)
	require.NoError(t, err)

	_, posts, err := f.repo.GetThread(ctx, result.ThreadID)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "ok!", posts[0].Content)
}
