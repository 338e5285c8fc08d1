package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/goban-dev/goban/internal/apperr"
	"github.com/goban-dev/goban/internal/domain"
)

func (s *Storage) CreateThread(ctx context.Context, thread *domain.Thread, op *domain.Post) error {
	if op.ThreadID != thread.ID {
		return apperr.Validation("op post must reference its thread")
	}
	if !op.IsOp {
		return apperr.Validation("thread creation requires an op post")
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM boards WHERE id = $1", thread.BoardID,
		).Scan(&one)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("board", thread.BoardID.String())
			}
			return apperr.Internal(fmt.Errorf("validate board: %w", err))
		}

		if _, err := tx.ExecContext(ctx, `
            INSERT INTO threads (id, board_id, last_bump, is_sticky, is_locked, metadata)
            VALUES ($1, $2, $3, $4, $5, $6)`,
			thread.ID, thread.BoardID, thread.LastBump,
			thread.IsSticky, thread.IsLocked, jsonValue(thread.Metadata),
		); err != nil {
			return wrapErr(err)
		}

		return insertPost(ctx, tx, op)
	})
}

func (s *Storage) GetThread(ctx context.Context, id uuid.UUID) (*domain.Thread, []domain.Post, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, board_id, last_bump, is_sticky, is_locked, metadata
        FROM threads WHERE id = $1`, id)

	thread, err := scanThread(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, apperr.NotFound("thread", id.String())
		}
		return nil, nil, apperr.Internal(err)
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, thread_id, user_id_in_thread, content, media_id, is_op, created_at, metadata
        FROM posts WHERE thread_id = $1
        ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, nil, apperr.Internal(err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, nil, apperr.Internal(err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, apperr.Internal(err)
	}
	return thread, posts, nil
}

func (s *Storage) ThreadExists(ctx context.Context, boardID, threadID uuid.UUID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM threads WHERE id = $1 AND board_id = $2", threadID, boardID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Internal(err)
	}
	return true, nil
}

func (s *Storage) ListThreadsPaginated(ctx context.Context, boardID uuid.UUID, limit, offset int) ([]domain.Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, board_id, last_bump, is_sticky, is_locked, metadata
        FROM threads WHERE board_id = $1
        ORDER BY is_sticky DESC, last_bump DESC, id ASC
        LIMIT $2 OFFSET $3`, boardID, limit, offset)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer rows.Close()

	var threads []domain.Thread
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		threads = append(threads, *thread)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(err)
	}
	return threads, nil
}

func (s *Storage) ThreadsWithOp(ctx context.Context, boardID uuid.UUID) ([]domain.ThreadWithOp, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT t.id, t.board_id, t.last_bump, t.is_sticky, t.is_locked, t.metadata,
               p.id, p.thread_id, p.user_id_in_thread, p.content, p.media_id, p.is_op, p.created_at, p.metadata
        FROM threads t
        JOIN posts p ON p.thread_id = t.id AND p.is_op
        WHERE t.board_id = $1
        ORDER BY t.is_sticky DESC, t.last_bump DESC, t.id ASC`, boardID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer rows.Close()

	var result []domain.ThreadWithOp
	for rows.Next() {
		var (
			entry     domain.ThreadWithOp
			tMetadata []byte
			pMediaID  sql.NullString
			pMetadata []byte
		)
		if err := rows.Scan(
			&entry.Thread.ID, &entry.Thread.BoardID, &entry.Thread.LastBump,
			&entry.Thread.IsSticky, &entry.Thread.IsLocked, &tMetadata,
			&entry.Op.ID, &entry.Op.ThreadID, &entry.Op.UserIDInThread,
			&entry.Op.Content, &pMediaID, &entry.Op.IsOp, &entry.Op.CreatedAt, &pMetadata,
		); err != nil {
			return nil, apperr.Internal(err)
		}

		entry.Thread.Metadata = parseJSONValue(tMetadata)
		entry.Op.Metadata = parseJSONValue(pMetadata)
		if pMediaID.Valid {
			entry.Op.MediaID = &pMediaID.String
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(err)
	}
	return result, nil
}

func scanThread(row scanner) (*domain.Thread, error) {
	var (
		thread   domain.Thread
		metadata []byte
	)
	if err := row.Scan(&thread.ID, &thread.BoardID, &thread.LastBump,
		&thread.IsSticky, &thread.IsLocked, &metadata); err != nil {
		return nil, err
	}
	thread.Metadata = parseJSONValue(metadata)
	return &thread, nil
}
