package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Moderator credentials are stored as argon2id strings in PHC format:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<b64 salt>$<b64 key>
//
// Base64 is raw (unpadded) standard encoding, per the PHC string spec.

const (
	phcMemory  uint32 = 64 * 1024
	phcTime    uint32 = 3
	phcThreads uint8  = 2
	phcSaltLen        = 16
	phcKeyLen  uint32 = 32
)

// HashModeratorPassword produces a PHC string with the default parameters.
// Used by cmd/tools/hash-password and by tests.
func HashModeratorPassword(password string) (string, error) {
	salt := make([]byte, phcSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("draw salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, phcTime, phcMemory, phcThreads, phcKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, phcMemory, phcTime, phcThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func verifyPHC(password, phc string) bool {
	parts := strings.Split(phc, "$")
	// leading "$" gives an empty first element
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}
	if memory == 0 || time == 0 || threads == 0 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
