package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goban-dev/goban/internal/apperr"
	"github.com/goban-dev/goban/internal/domain"
)

func (s *Storage) CreateBoard(ctx context.Context, board *domain.Board) error {
	var description sql.NullString
	if board.Description != nil {
		description = sql.NullString{String: *board.Description, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO boards (id, slug, title, description, settings, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		board.ID, board.Slug, board.Title, description,
		jsonValue(board.Settings), board.CreatedAt,
	)
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

func (s *Storage) GetBoard(ctx context.Context, slug string) (*domain.Board, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, slug, title, description, settings, created_at
        FROM boards WHERE slug = $1`, slug)

	board, err := scanBoard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("board", slug)
		}
		return nil, apperr.Internal(err)
	}
	return board, nil
}

func (s *Storage) ListBoards(ctx context.Context) ([]domain.Board, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, slug, title, description, settings, created_at
        FROM boards ORDER BY slug`)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer rows.Close()

	var boards []domain.Board
	for rows.Next() {
		board, err := scanBoard(rows)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		boards = append(boards, *board)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(err)
	}
	return boards, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBoard(row scanner) (*domain.Board, error) {
	var (
		board       domain.Board
		description sql.NullString
		settings    []byte
	)
	if err := row.Scan(&board.ID, &board.Slug, &board.Title, &description, &settings, &board.CreatedAt); err != nil {
		return nil, err
	}
	board.Settings = parseJSONValue(settings)
	if description.Valid {
		board.Description = &description.String
	}
	return &board, nil
}
