// Package sqlite implements the board repository on SQLite via the pure-Go
// modernc driver. It is the default backend: a single file, no server.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite3 "modernc.org/sqlite"

	"github.com/goban-dev/goban/internal/apperr"
	"github.com/goban-dev/goban/internal/domain"
	"github.com/goban-dev/goban/internal/logger"
)

// SQLITE_CONSTRAINT primary result code.
const sqliteConstraint = 19

type Storage struct {
	db *sql.DB
}

var _ domain.BoardRepository = (*Storage)(nil)

// New opens (creating if needed) the database at path and bootstraps the
// schema. Foreign keys are enforced and writers wait out short lock
// contention instead of failing.
func New(path string) (*Storage, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	storage := &Storage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Log.Info("connected to sqlite", "path", path)
	return storage, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Internal(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Internal(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// wrapErr maps driver failures into the shared taxonomy. Constraint
// violations become conflicts; everything else is internal.
func wrapErr(err error) error {
	var se *sqlite3.Error
	if errors.As(err, &se) && se.Code()&0xff == sqliteConstraint {
		return apperr.Conflict(err.Error())
	}
	return apperr.Internal(err)
}

// UUIDs persist as 16-byte blobs; their v7 time ordering survives a
// bytewise comparison, which the tie-break ORDER BY clauses rely on.

func uuidBlob(id uuid.UUID) []byte {
	b := make([]byte, 16)
	copy(b, id[:])
	return b
}

func blobUUID(b []byte) uuid.UUID {
	id, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// Timestamps persist as RFC 3339 UTC text so values round-trip identically
// regardless of driver conversion rules.

func timeText(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeText(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func jsonText(m domain.JSONMap) string {
	if m == nil {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func parseJSONText(s string) domain.JSONMap {
	var m domain.JSONMap
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return domain.JSONMap{}
	}
	return m
}
