package domain

import (
	"time"

	"github.com/google/uuid"
)

// Post is the unit of conversation. Content is stored post-sanitization;
// raw user input never reaches a repository. MediaID, when set, is the
// 64-hex content address of a blob the media store has accepted — the
// repository does not validate the reference.
type Post struct {
	ID             uuid.UUID
	ThreadID       uuid.UUID
	UserIDInThread string
	Content        string
	MediaID        *string
	IsOp           bool
	CreatedAt      time.Time
	Metadata       JSONMap
}
