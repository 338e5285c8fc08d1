package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/goban-dev/goban/internal/apperr"
	"github.com/goban-dev/goban/internal/domain"
)

func (s *Storage) CreateBan(ctx context.Context, ban *domain.Ban) error {
	var expiresAt sql.NullString
	if ban.ExpiresAt != nil {
		expiresAt = sql.NullString{String: timeText(*ban.ExpiresAt), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO bans (id, ip_address, reason, expires_at, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		uuidBlob(ban.ID), ban.IPAddress, ban.Reason, expiresAt, timeText(ban.CreatedAt),
	)
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

// ActiveBans returns every ban that has not expired yet. Permanent bans
// have a NULL expires_at.
func (s *Storage) ActiveBans(ctx context.Context) ([]domain.Ban, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, ip_address, reason, expires_at, created_at
        FROM bans
        WHERE expires_at IS NULL OR expires_at > ?`, timeText(time.Now()))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer rows.Close()

	var bans []domain.Ban
	for rows.Next() {
		var (
			id        []byte
			ipAddress string
			reason    string
			expiresAt sql.NullString
			createdAt string
		)
		if err := rows.Scan(&id, &ipAddress, &reason, &expiresAt, &createdAt); err != nil {
			return nil, apperr.Internal(err)
		}

		ban := domain.Ban{
			ID:        blobUUID(id),
			IPAddress: ipAddress,
			Reason:    reason,
			CreatedAt: parseTimeText(createdAt),
		}
		if expiresAt.Valid {
			t := parseTimeText(expiresAt.String)
			ban.ExpiresAt = &t
		}
		bans = append(bans, ban)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(err)
	}
	return bans, nil
}
