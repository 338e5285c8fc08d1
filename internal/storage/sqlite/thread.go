package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/goban-dev/goban/internal/apperr"
	"github.com/goban-dev/goban/internal/domain"
)

// CreateThread inserts the thread and its OP post in one transaction so a
// thread without an OP post can never be observed, even across a crash
// between the two inserts.
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
			"SELECT 1 FROM boards WHERE id = ?", uuidBlob(thread.BoardID),
		).Scan(&one)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("board", thread.BoardID.String())
			}
			return apperr.Internal(fmt.Errorf("validate board: %w", err))
		}

		if _, err := tx.ExecContext(ctx, `
            INSERT INTO threads (id, board_id, last_bump, is_sticky, is_locked, metadata)
            VALUES (?, ?, ?, ?, ?, ?)`,
			uuidBlob(thread.ID), uuidBlob(thread.BoardID), timeText(thread.LastBump),
			thread.IsSticky, thread.IsLocked, jsonText(thread.Metadata),
		); err != nil {
			return wrapErr(err)
		}

		if err := insertPost(ctx, tx, op); err != nil {
			return err
		}
		return nil
	})
}

func (s *Storage) GetThread(ctx context.Context, id uuid.UUID) (*domain.Thread, []domain.Post, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, board_id, last_bump, is_sticky, is_locked, metadata
        FROM threads WHERE id = ?`, uuidBlob(id))

	thread, err := scanThread(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, apperr.NotFound("thread", id.String())
		}
		return nil, nil, apperr.Internal(err)
	}

	// created_at ascending with the id blob as tie break: v7 ids sort by
	// creation time, so ties resolve deterministically.
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, thread_id, user_id_in_thread, content, media_id, is_op, created_at, metadata
        FROM posts WHERE thread_id = ?
        ORDER BY created_at ASC, id ASC`, uuidBlob(id))
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
		"SELECT 1 FROM threads WHERE id = ? AND board_id = ?",
		uuidBlob(threadID), uuidBlob(boardID),
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
        FROM threads WHERE board_id = ?
        ORDER BY is_sticky DESC, last_bump DESC, id ASC
        LIMIT ? OFFSET ?`, uuidBlob(boardID), limit, offset)
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
        JOIN posts p ON p.thread_id = t.id AND p.is_op = 1
        WHERE t.board_id = ?
        ORDER BY t.is_sticky DESC, t.last_bump DESC, t.id ASC`, uuidBlob(boardID))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer rows.Close()

	var result []domain.ThreadWithOp
	for rows.Next() {
		var (
			tID, tBoardID         []byte
			tLastBump, tMetadata  string
			tSticky, tLocked      bool
			pID, pThreadID        []byte
			pUserID, pContent     string
			pMediaID              sql.NullString
			pIsOp                 bool
			pCreatedAt, pMetadata string
		)
		if err := rows.Scan(
			&tID, &tBoardID, &tLastBump, &tSticky, &tLocked, &tMetadata,
			&pID, &pThreadID, &pUserID, &pContent, &pMediaID, &pIsOp, &pCreatedAt, &pMetadata,
		); err != nil {
			return nil, apperr.Internal(err)
		}

		entry := domain.ThreadWithOp{
			Thread: domain.Thread{
				ID:       blobUUID(tID),
				BoardID:  blobUUID(tBoardID),
				LastBump: parseTimeText(tLastBump),
				IsSticky: tSticky,
				IsLocked: tLocked,
				Metadata: parseJSONText(tMetadata),
			},
			Op: domain.Post{
				ID:             blobUUID(pID),
				ThreadID:       blobUUID(pThreadID),
				UserIDInThread: pUserID,
				Content:        pContent,
				IsOp:           pIsOp,
				CreatedAt:      parseTimeText(pCreatedAt),
				Metadata:       parseJSONText(pMetadata),
			},
		}
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
		id, boardID        []byte
		lastBump, metadata string
		isSticky, isLocked bool
	)
	if err := row.Scan(&id, &boardID, &lastBump, &isSticky, &isLocked, &metadata); err != nil {
		return nil, err
	}
	return &domain.Thread{
		ID:       blobUUID(id),
		BoardID:  blobUUID(boardID),
		LastBump: parseTimeText(lastBump),
		IsSticky: isSticky,
		IsLocked: isLocked,
		Metadata: parseJSONText(metadata),
	}, nil
}
