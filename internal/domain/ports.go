package domain

import (
	"context"

	"github.com/google/uuid"
)

// The three ports below are the whole surface the ingestion pipeline knows.
// Concrete implementations are chosen at startup (internal/setup) and held
// by shared reference across all request goroutines, so every
// implementation must be safe under concurrent use.

// BoardRepository is the persistence port over {Board, Thread, Post, Ban}.
//
// Errors come back as *apperr.Error: NotFound for missing rows and broken
// foreign keys, Validation for precondition violations, Conflict for locked
// threads and duplicate slugs, Internal for driver failures.
type BoardRepository interface {
	GetBoard(ctx context.Context, slug string) (*Board, error)
	ListBoards(ctx context.Context) ([]Board, error)
	// CreateBoard provisions a board. Duplicate slug is a Conflict.
	CreateBoard(ctx context.Context, board *Board) error

	// CreateThread inserts the thread and its OP post atomically: either
	// both rows become visible or neither does. Preconditions: the post
	// references the thread and has IsOp set; the board must exist.
	CreateThread(ctx context.Context, thread *Thread, op *Post) error
	GetThread(ctx context.Context, id uuid.UUID) (*Thread, []Post, error)
	// ThreadExists reports whether the thread lives on the given board.
	ThreadExists(ctx context.Context, boardID, threadID uuid.UUID) (bool, error)
	// ListThreadsPaginated orders by (is_sticky DESC, last_bump DESC),
	// ties broken by thread id so pagination is stable.
	ListThreadsPaginated(ctx context.Context, boardID uuid.UUID, limit, offset int) ([]Thread, error)
	ThreadsWithOp(ctx context.Context, boardID uuid.UUID) ([]ThreadWithOp, error)

	// CreatePost appends a reply (IsOp must be false) and advances the
	// parent thread's last_bump to the post's CreatedAt. A locked thread
	// rejects the insert with Conflict.
	CreatePost(ctx context.Context, post *Post) error

	// ActiveBans returns all bans that have not expired.
	ActiveBans(ctx context.Context) ([]Ban, error)
	CreateBan(ctx context.Context, ban *Ban) error
}

// MediaStore is the content-addressed blob port. Save returns the lowercase
// hex SHA-256 of the bytes; saving the same bytes twice is a no-op that
// returns the same id. The declared content type is advisory only.
type MediaStore interface {
	Save(ctx context.Context, data []byte, declaredContentType string) (string, error)
	URL(mediaID string) string
	ThumbnailURL(mediaID string) string
}

// IdentityProvider derives pseudonymous identities and answers moderation
// queries. ThreadUserID is stable within a thread for a given client and
// process lifetime, and unlinkable across threads.
type IdentityProvider interface {
	ThreadUserID(clientAddr string, threadID uuid.UUID) string
	Tripcode(password string) string
	VerifyModerator(password, storedHash string) bool
	IsBanned(ctx context.Context, clientAddr string) (bool, error)
}
