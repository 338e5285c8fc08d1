package sqlite

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
        VALUES (?, ?, ?, ?, ?, ?)`,
		uuidBlob(board.ID), board.Slug, board.Title, description,
		jsonText(board.Settings), timeText(board.CreatedAt),
	)
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

func (s *Storage) GetBoard(ctx context.Context, slug string) (*domain.Board, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, slug, title, description, settings, created_at
        FROM boards WHERE slug = ?`, slug)

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
		id          []byte
		slug        string
		title       string
		description sql.NullString
		settings    string
		createdAt   string
	)
	if err := row.Scan(&id, &slug, &title, &description, &settings, &createdAt); err != nil {
		return nil, err
	}

	board := &domain.Board{
		ID:        blobUUID(id),
		Slug:      slug,
		Title:     title,
		Settings:  parseJSONText(settings),
		CreatedAt: parseTimeText(createdAt),
	}
	if description.Valid {
		board.Description = &description.String
	}
	return board, nil
}
