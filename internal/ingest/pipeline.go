// Package ingest orchestrates a post submission: drain the multipart
// stream, enforce the ban policy, persist media, derive the poster's
// identity, sanitize content and commit through the repository.
package ingest

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goban-dev/goban/internal/apperr"
	"github.com/goban-dev/goban/internal/domain"
	"github.com/goban-dev/goban/internal/logger"
	"github.com/goban-dev/goban/internal/sanitize"
)

// Per-field byte caps. The file cap is configurable; text fields are not.
const (
	maxContentBytes  = 64 * 1024
	maxThreadIDBytes = 64
	maxTripcodeBytes = 256
)

// Submission is the request metadata the HTTP layer hands over alongside
// the multipart stream.
type Submission struct {
	ClientAddr string
	BoardSlug  string
}

// Result names the thread the post landed in.
type Result struct {
	BoardSlug string
	ThreadID  uuid.UUID
	IsNew     bool
}

func (r *Result) RedirectPath() string {
	return fmt.Sprintf("/%s/thread/%s", r.BoardSlug, r.ThreadID)
}

type Pipeline struct {
	repo      domain.BoardRepository
	media     domain.MediaStore
	identity  domain.IdentityProvider
	maxUpload int64
}

func New(repo domain.BoardRepository, media domain.MediaStore, identity domain.IdentityProvider, maxUpload int64) *Pipeline {
	return &Pipeline{repo: repo, media: media, identity: identity, maxUpload: maxUpload}
}

// fields is what survives draining the multipart stream.
type fields struct {
	content      string
	threadID     uuid.UUID
	hasThreadID  bool
	file         []byte
	fileType     string
	tripcodePass string
}

// Submit runs one submission end to end and returns the redirect target.
// The ban check happens after the stream is drained but before any media
// or database work, so a banned client causes no side effects.
func (p *Pipeline) Submit(ctx context.Context, sub Submission, mr *multipart.Reader) (*Result, error) {
	f, err := p.drain(mr)
	if err != nil {
		return nil, err
	}

	banned, err := p.identity.IsBanned(ctx, sub.ClientAddr)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("ban check: %w", err))
	}
	if banned {
		return nil, apperr.Unauthorized("address is banned")
	}

	var mediaID *string
	if len(f.file) > 0 {
		id, err := p.media.Save(ctx, f.file, f.fileType)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("save media: %w", err))
		}
		mediaID = &id
	}

	board, err := p.repo.GetBoard(ctx, sub.BoardSlug)
	if err != nil {
		return nil, err
	}
	if limit := board.MaxFileSize(); limit > 0 && int64(len(f.file)) > limit {
		// The blob may already be on disk; orphans are a GC concern.
		return nil, apperr.Validation("file exceeds board upload limit")
	}

	isReply := false
	threadTarget := f.threadID
	if f.hasThreadID {
		exists, err := p.repo.ThreadExists(ctx, board.ID, f.threadID)
		if err != nil {
			return nil, err
		}
		isReply = exists
	}
	if !isReply {
		threadTarget, err = uuid.NewV7()
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("generate thread id: %w", err))
		}
	}

	postID, err := uuid.NewV7()
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("generate post id: %w", err))
	}

	metadata := domain.JSONMap{}
	if f.tripcodePass != "" {
		metadata["tripcode"] = p.identity.Tripcode(f.tripcodePass)
	}

	now := time.Now().UTC()
	post := &domain.Post{
		ID:             postID,
		ThreadID:       threadTarget,
		UserIDInThread: p.identity.ThreadUserID(sub.ClientAddr, threadTarget),
		Content:        sanitize.Sanitize(f.content),
		MediaID:        mediaID,
		IsOp:           !isReply,
		CreatedAt:      now,
		Metadata:       metadata,
	}

	if isReply {
		if err := p.repo.CreatePost(ctx, post); err != nil {
			return nil, err
		}
	} else {
		thread := &domain.Thread{
			ID:       threadTarget,
			BoardID:  board.ID,
			LastBump: now,
			Metadata: domain.JSONMap{},
		}
		if err := p.repo.CreateThread(ctx, thread, post); err != nil {
			return nil, err
		}
	}

	logger.Log.Info("post accepted",
		"board", sub.BoardSlug, "thread", threadTarget, "reply", isReply, "media", mediaID != nil)
	return &Result{BoardSlug: sub.BoardSlug, ThreadID: threadTarget, IsNew: !isReply}, nil
}

// drain consumes the multipart stream field by field, never materializing
// the request before dispatching on field name. Unrecognized fields are
// discarded.
func (p *Pipeline) drain(mr *multipart.Reader) (*fields, error) {
	f := &fields{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.Validation("malformed multipart stream")
		}

		if err := p.consumePart(f, part); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (p *Pipeline) consumePart(f *fields, part *multipart.Part) error {
	defer part.Close()

	switch part.FormName() {
	case "content":
		b, err := readCapped(part, maxContentBytes)
		if err != nil {
			return err
		}
		f.content = strings.ToValidUTF8(string(b), "")
	case "thread_id":
		b, err := readCapped(part, maxThreadIDBytes)
		if err != nil {
			return err
		}
		// Unparsable ids fall back to new-thread mode.
		if id, err := uuid.Parse(strings.TrimSpace(string(b))); err == nil {
			f.threadID = id
			f.hasThreadID = true
		}
	case "tripcode":
		b, err := readCapped(part, maxTripcodeBytes)
		if err != nil {
			return err
		}
		f.tripcodePass = string(b)
	case "file":
		b, err := readCapped(part, p.maxUpload)
		if err != nil {
			return err
		}
		f.file = b
		f.fileType = part.Header.Get("Content-Type")
	default:
		if _, err := io.Copy(io.Discard, part); err != nil {
			return apperr.Validation("malformed multipart stream")
		}
	}
	return nil
}

func readCapped(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, apperr.Validation("malformed multipart stream")
	}
	if int64(len(b)) > limit {
		return nil, apperr.Validation("field exceeds size limit")
	}
	return b, nil
}
