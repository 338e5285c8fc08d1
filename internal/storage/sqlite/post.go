package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goban-dev/goban/internal/apperr"
	"github.com/goban-dev/goban/internal/domain"
)

// CreatePost appends a reply and bumps the parent thread. A locked thread
// rejects the insert; a missing thread is NotFound.
func (s *Storage) CreatePost(ctx context.Context, post *domain.Post) error {
	if post.IsOp {
		return apperr.Validation("reply must not be an op post")
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var isLocked bool
		err := tx.QueryRowContext(ctx,
			"SELECT is_locked FROM threads WHERE id = ?", uuidBlob(post.ThreadID),
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
			"UPDATE threads SET last_bump = ? WHERE id = ?",
			timeText(post.CreatedAt), uuidBlob(post.ThreadID),
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
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuidBlob(post.ID), uuidBlob(post.ThreadID), post.UserIDInThread,
		post.Content, mediaID, post.IsOp, timeText(post.CreatedAt), jsonText(post.Metadata),
	)
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

func scanPost(row scanner) (*domain.Post, error) {
	var (
		id, threadID        []byte
		userID, content     string
		mediaID             sql.NullString
		isOp                bool
		createdAt, metadata string
	)
	if err := row.Scan(&id, &threadID, &userID, &content, &mediaID, &isOp, &createdAt, &metadata); err != nil {
		return nil, err
	}

	post := &domain.Post{
		ID:             blobUUID(id),
		ThreadID:       blobUUID(threadID),
		UserIDInThread: userID,
		Content:        content,
		IsOp:           isOp,
		CreatedAt:      parseTimeText(createdAt),
		Metadata:       parseJSONText(metadata),
	}
	if mediaID.Valid {
		post.MediaID = &mediaID.String
	}
	return post, nil
}
