package pg

import (
	"context"
	"database/sql"

	"github.com/goban-dev/goban/internal/apperr"
	"github.com/goban-dev/goban/internal/domain"
)

func (s *Storage) CreateBan(ctx context.Context, ban *domain.Ban) error {
	var expiresAt sql.NullTime
	if ban.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *ban.ExpiresAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO bans (id, ip_address, reason, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5)`,
		ban.ID, ban.IPAddress, ban.Reason, expiresAt, ban.CreatedAt,
	)
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

func (s *Storage) ActiveBans(ctx context.Context) ([]domain.Ban, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, ip_address, reason, expires_at, created_at
        FROM bans
        WHERE expires_at IS NULL OR expires_at > now()`)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	defer rows.Close()

	var bans []domain.Ban
	for rows.Next() {
		var (
			ban       domain.Ban
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&ban.ID, &ban.IPAddress, &ban.Reason, &expiresAt, &ban.CreatedAt); err != nil {
			return nil, apperr.Internal(err)
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			ban.ExpiresAt = &t
		}
		bans = append(bans, ban)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(err)
	}
	return bans, nil
}
