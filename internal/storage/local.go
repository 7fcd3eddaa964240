package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hashdrop-io/hashdrop/internal/metrics"
)

// maxExtLen caps the sanitized extension, dots included.
const maxExtLen = 16

// LocalStore implements BlobStore on a single local directory. Files are
// named by the hex sha256 of their content plus a sanitized extension, so
// identical uploads collapse onto one file. An existing file at the target
// path is trusted to match the content without re-reading it.
type LocalStore struct {
	root  string
	mutex sync.Mutex // serializes the exists-check-then-write window
	stats *metrics.Collector
}

// NewLocalStore creates a local content store rooted at root, creating the
// directory if needed. stats may be nil.
func NewLocalStore(root string, stats *metrics.Collector) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		log.Error().Err(err).Str("path", root).Msg("failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	log.Info().Str("path", root).Msg("content store initialized")
	return &LocalStore{
		root:  root,
		stats: stats,
	}, nil
}

// Store writes content to <root>/<sha256-hex><ext> unless a file already
// exists there, and returns that path. New files are written to a temporary
// name and renamed into place, so a concurrent dedup check never observes a
// half-written file under the final name.
func (ls *LocalStore) Store(ctx context.Context, content []byte, ext string) (string, error) {
	startTime := time.Now()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	sum := sha256.Sum256(content)
	name := hex.EncodeToString(sum[:]) + sanitizeExt(ext)
	fullPath := filepath.Join(ls.root, name)

	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	if _, err := os.Stat(fullPath); err == nil {
		if ls.stats != nil {
			ls.stats.DedupHits.Inc()
		}
		log.Info().
			Str("path", fullPath).
			Int("size", len(content)).
			Msg("duplicate content, reusing stored file")
		return fullPath, nil
	} else if !os.IsNotExist(err) {
		log.Error().Err(err).Str("path", fullPath).Msg("failed to check for existing file")
		return "", fmt.Errorf("failed to check for existing file: %w", err)
	}

	tempFile, err := os.CreateTemp(ls.root, ".incoming-*")
	if err != nil {
		log.Error().Err(err).Str("path", fullPath).Msg("failed to create temporary file")
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempPath := tempFile.Name()

	// Ensure cleanup of temp file on failure
	defer func() {
		tempFile.Close()
		if _, err := os.Stat(tempPath); err == nil {
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(content); err != nil {
		log.Error().Err(err).Str("path", fullPath).Msg("failed to write content to temporary file")
		return "", fmt.Errorf("failed to write content: %w", err)
	}

	// Ensure data is flushed to disk
	if err := tempFile.Sync(); err != nil {
		log.Error().Err(err).Str("path", fullPath).Msg("failed to sync temporary file")
		return "", fmt.Errorf("failed to sync temporary file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		return "", fmt.Errorf("failed to set file permissions: %w", err)
	}

	// Atomic move from temp to final location
	if err := os.Rename(tempPath, fullPath); err != nil {
		log.Error().Err(err).Str("path", fullPath).Str("temp_path", tempPath).Msg("failed to move temporary file to final location")
		return "", fmt.Errorf("failed to move file to final location: %w", err)
	}

	log.Info().
		Str("path", fullPath).
		Int("bytes_written", len(content)).
		Dur("duration", time.Since(startTime)).
		Msg("file stored")

	return fullPath, nil
}

// Retrieve opens a stored file. Paths outside the store root are rejected.
func (ls *LocalStore) Retrieve(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if !ls.contains(path) {
		return nil, fmt.Errorf("path escapes storage root: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		log.Error().Err(err).Str("path", path).Msg("failed to open file")
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Exists checks if a stored file exists at the given path.
func (ls *LocalStore) Exists(ctx context.Context, path string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	if !ls.contains(path) {
		return false, fmt.Errorf("path escapes storage root: %s", path)
	}

	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		log.Error().Err(err).Str("path", path).Msg("failed to check file existence")
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}

	return true, nil
}

// contains reports whether path stays inside the store root once cleaned.
func (ls *LocalStore) contains(path string) bool {
	rel, err := filepath.Rel(ls.root, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// sanitizeExt reduces a client-supplied file extension to a safe suffix.
// Only ASCII letters, digits and dots survive; leading and trailing dots
// are collapsed into the single separating dot. The filename it came from
// is attacker-influenced, so nothing else may reach the path.
func sanitizeExt(ext string) string {
	var b strings.Builder
	for _, r := range ext {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" {
		return ""
	}
	if len(cleaned) > maxExtLen-1 {
		cleaned = cleaned[:maxExtLen-1]
	}
	return "." + cleaned
}
