// Package identity derives pseudonymous poster identities and answers
// moderation queries (moderator credentials, ban lookups).
package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/goban-dev/goban/internal/domain"
)

// SecretLen is the size of the per-process session secret.
const SecretLen = 32

// Provider implements domain.IdentityProvider. The session secret is fixed
// for the process lifetime; restarting the server legitimately rotates all
// in-thread identities.
type Provider struct {
	secret []byte
	bans   *BanCache
}

var _ domain.IdentityProvider = (*Provider)(nil)

func New(secret []byte, bans *BanCache) (*Provider, error) {
	if len(secret) != SecretLen {
		return nil, fmt.Errorf("session secret must be %d bytes, got %d", SecretLen, len(secret))
	}
	return &Provider{secret: secret, bans: bans}, nil
}

// NewSecret draws a fresh random session secret. Used when SESSION_SECRET
// is not configured.
func NewSecret() ([]byte, error) {
	secret := make([]byte, SecretLen)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("draw session secret: %w", err)
	}
	return secret, nil
}

// ThreadUserID returns the first 8 hex characters of
// SHA-256(secret || clientAddr || threadID). Stable within a thread,
// unlinkable across threads.
func (p *Provider) ThreadUserID(clientAddr string, threadID uuid.UUID) string {
	h := sha256.New()
	h.Write(p.secret)
	h.Write([]byte(clientAddr))
	h.Write([]byte(threadID.String()))
	return hex.EncodeToString(h.Sum(nil))[:8]
}

// Tripcode derives the public opt-in pseudonym for a password. This is
// deliberately not a password hash: equal passwords give equal tripcodes.
func (p *Provider) Tripcode(password string) string {
	sum := sha256.Sum256([]byte(password))
	return "!" + base64.StdEncoding.EncodeToString(sum[:])[:10]
}

// VerifyModerator checks a password against a stored argon2id PHC string.
// Any parse or verification failure yields false, indistinguishably.
func (p *Provider) VerifyModerator(password, storedHash string) bool {
	return verifyPHC(password, storedHash)
}

func (p *Provider) IsBanned(ctx context.Context, clientAddr string) (bool, error) {
	return p.bans.IsBanned(ctx, clientAddr)
}
