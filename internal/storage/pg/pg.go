// Package pg implements the board repository on PostgreSQL via lib/pq.
// Selected when DATABASE_URL carries a postgres:// scheme.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/goban-dev/goban/internal/apperr"
	"github.com/goban-dev/goban/internal/domain"
	"github.com/goban-dev/goban/internal/logger"
)

// PostgreSQL error classes we translate instead of surfacing verbatim.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

type Storage struct {
	db *sql.DB
}

var _ domain.BoardRepository = (*Storage)(nil)

func New(url string) (*Storage, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres database: %w", err)
	}

	storage := &Storage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Log.Info("connected to postgres")
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

func wrapErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return apperr.Conflict(err.Error())
		case pqForeignKeyViolation:
			return apperr.NotFound("referenced row", pqErr.Detail)
		}
	}
	return apperr.Internal(err)
}

func jsonValue(m domain.JSONMap) []byte {
	if m == nil {
		return []byte("{}")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func parseJSONValue(b []byte) domain.JSONMap {
	var m domain.JSONMap
	if err := json.Unmarshal(b, &m); err != nil {
		return domain.JSONMap{}
	}
	return m
}
