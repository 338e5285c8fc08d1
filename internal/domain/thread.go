package domain

import (
	"time"

	"github.com/google/uuid"
)

// Thread anchors a conversation on a board. It is created together with its
// OP post in one transaction; a thread with no OP post must never be
// observable. LastBump advances on every reply and drives listing order.
type Thread struct {
	ID       uuid.UUID
	BoardID  uuid.UUID
	LastBump time.Time
	IsSticky bool
	IsLocked bool
	Metadata JSONMap
}

// ThreadWithOp pairs a thread with its OP post for index/catalog rendering.
type ThreadWithOp struct {
	Thread Thread
	Op     Post
}
