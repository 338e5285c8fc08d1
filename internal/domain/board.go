package domain

import (
	"time"

	"github.com/google/uuid"
)

// Board is a named topical forum, e.g. /b/. Boards are provisioned at
// startup or through the admin surface and are never mutated by the
// ingestion pipeline. Slug is the stable external key; ID the internal one.
type Board struct {
	ID          uuid.UUID
	Slug        string
	Title       string
	Description *string
	Settings    JSONMap
	CreatedAt   time.Time
}

// MaxFileSize returns the per-board upload cap from settings, or 0 when the
// board does not override the global limit.
func (b *Board) MaxFileSize() int64 {
	if b.Settings == nil {
		return 0
	}
	switch v := b.Settings["max_file_size"].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// JSONMap is the schemaless bucket persisted as a JSON TEXT column
// (board settings, thread/post metadata).
type JSONMap map[string]any
