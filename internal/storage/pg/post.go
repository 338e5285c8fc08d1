package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goban-dev/goban/internal/apperr"
	"github.com/goban-dev/goban/internal/domain"
)

func (s *Storage) CreatePost(ctx context.Context, post *domain.Post) error {
	if post.IsOp {
		return apperr.Validation("reply must not be an op post")
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		// FOR UPDATE holds the thread row so a concurrent lock flip cannot
		// race the insert.
		var isLocked bool
		err := tx.QueryRowContext(ctx,
			"SELECT is_locked FROM threads WHERE id = $1 FOR UPDATE", post.ThreadID,
		).Scan(&isLocked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("thread", post.ThreadID.String())
			}
			return apperr.Internal(fmt.Errorf("validate thread: %w", err))
		}
		if isLocked {
			return apperr.Conflict("thread is locked")
		}

		if err := insertPost(ctx, tx, post); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE threads SET last_bump = $1 WHERE id = $2",
			post.CreatedAt, post.ThreadID,
		); err != nil {
			return apperr.Internal(fmt.Errorf("bump thread: %w", err))
		}
		return nil
	})
}

func insertPost(ctx context.Context, tx *sql.Tx, post *domain.Post) error {
	var mediaID sql.NullString
	if post.MediaID != nil {
		mediaID = sql.NullString{String: *post.MediaID, Valid: true}
	}

	_, err := tx.ExecContext(ctx, `
        INSERT INTO posts (id, thread_id, user_id_in_thread, content, media_id, is_op, created_at, metadata)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		post.ID, post.ThreadID, post.UserIDInThread,
		post.Content, mediaID, post.IsOp, post.CreatedAt, jsonValue(post.Metadata),
	)
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

func scanPost(row scanner) (*domain.Post, error) {
	var (
		post     domain.Post
		mediaID  sql.NullString
		metadata []byte
	)
	if err := row.Scan(&post.ID, &post.ThreadID, &post.UserIDInThread,
		&post.Content, &mediaID, &post.IsOp, &post.CreatedAt, &metadata); err != nil {
		return nil, err
	}
	post.Metadata = parseJSONValue(metadata)
	if mediaID.Valid {
		post.MediaID = &mediaID.String
	}
	return &post, nil
}
