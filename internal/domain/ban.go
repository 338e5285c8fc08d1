package domain

import (
	"time"

	"github.com/google/uuid"
)

// Ban restricts a client address. IPAddress is an exact IPv4/IPv6 address
// or a CIDR block; a nil ExpiresAt means permanent. The ingestion pipeline
// only ever reads bans.
type Ban struct {
	ID        uuid.UUID
	IPAddress string
	Reason    string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Expired reports whether the ban no longer matches at the given instant.
func (b *Ban) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && b.ExpiresAt.Before(now)
}
