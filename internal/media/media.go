// Package media implements the content-addressed local media store.
// Blobs are identified by their SHA-256 and laid out in a two-level
// sharded directory tree with a WebP thumbnail next to each original.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goban-dev/goban/internal/domain"
	"github.com/goban-dev/goban/internal/logger"
)

// Store is a domain.MediaStore over the local filesystem. It is stateless
// apart from its configuration and safe for concurrent use: writers land
// files via temp-then-rename, and a losing writer discards its temp.
type Store struct {
	root      string
	urlPrefix string
}

var _ domain.MediaStore = (*Store)(nil)

func New(root, urlPrefix string) (*Store, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create upload root %s: %w", root, err)
	}
	return &Store{root: root, urlPrefix: urlPrefix}, nil
}

// Save content-addresses data and persists original plus thumbnail.
// Identical bytes saved twice return the same id without rewriting
// anything. The declared content type is advisory; the sniffed byte stream
// governs decoding.
func (s *Store) Save(ctx context.Context, data []byte, declaredContentType string) (string, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	dir := filepath.Join(s.root, hash[0:2], hash[2:4])
	original := filepath.Join(dir, hash)
	thumb := filepath.Join(dir, thumbName(hash))

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &Error{Code: CodeIO, Err: err}
	}

	// Dedup: the original on disk is authoritative. It only ever exists
	// together with its thumbnail (rollback below keeps that truthful).
	if _, err := os.Stat(original); err == nil {
		return hash, nil
	}

	// Derive the thumbnail before landing anything so a decode failure
	// leaves no trace on disk.
	thumbBytes, err := thumbnailWebP(data)
	if err != nil {
		return "", err
	}

	if err := writeAtomic(dir, original, data); err != nil {
		return "", &Error{Code: CodeIO, Err: err}
	}
	if err := writeAtomic(dir, thumb, thumbBytes); err != nil {
		// Roll the original back so the dedup check stays truthful.
		removeWithRetry(original)
		return "", &Error{Code: CodeIO, Err: err}
	}

	logger.Log.Debug("media saved", "hash", hash, "bytes", len(data),
		"declared_content_type", declaredContentType)
	return hash, nil
}

// URL derives the public path of the original, mirroring the sharded
// on-disk layout.
func (s *Store) URL(mediaID string) string {
	if len(mediaID) < 4 {
		return s.urlPrefix + "/" + mediaID
	}
	return fmt.Sprintf("%s/%s/%s/%s", s.urlPrefix, mediaID[0:2], mediaID[2:4], mediaID)
}

func (s *Store) ThumbnailURL(mediaID string) string {
	if len(mediaID) < 4 {
		return s.urlPrefix + "/" + thumbName(mediaID)
	}
	return fmt.Sprintf("%s/%s/%s/%s", s.urlPrefix, mediaID[0:2], mediaID[2:4], thumbName(mediaID))
}

func thumbName(hash string) string {
	return "thumb_" + hash + ".webp"
}

// writeAtomic writes data to a temp sibling and renames it into place.
// If the destination appears in the meantime another writer won; drop the
// temp and treat the write as done.
func writeAtomic(dir, dst string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if _, err := os.Stat(dst); err == nil {
		os.Remove(tmpName)
		return nil
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// removeWithRetry deletes a file, retrying once on failure.
func removeWithRetry(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Log.Error("media rollback failed", "path", path, "error", err)
		}
	}
}
