package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashdrop-io/hashdrop/pkg/config"
)

func setupTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir(), nil)
	require.NoError(t, err)
	return store
}

func createTempFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	return path
}

func TestNewLocalStore(t *testing.T) {
	tests := []struct {
		name        string
		root        string
		shouldError bool
	}{
		{
			name:        "valid path",
			root:        t.TempDir(),
			shouldError: false,
		},
		{
			name:        "non-existent nested path",
			root:        filepath.Join(t.TempDir(), "nested", "path"),
			shouldError: false,
		},
		{
			name:        "invalid path (file instead of directory)",
			root:        createTempFile(t),
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewLocalStore(tt.root, nil)

			if tt.shouldError {
				assert.Error(t, err)
				assert.Nil(t, store)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, store)

				info, err := os.Stat(tt.root)
				assert.NoError(t, err)
				assert.True(t, info.IsDir())
			}
		})
	}
}

func TestLocalStore_ContentAddressing(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	content := []byte("helloworld")
	path, err := store.Store(ctx, content, ".txt")
	require.NoError(t, err)

	sum := sha256.Sum256(content)
	wantName := hex.EncodeToString(sum[:]) + ".txt"
	assert.Equal(t, filepath.Join(store.root, wantName), path)

	// Stored bytes round-trip exactly
	reader, err := store.Retrieve(ctx, path)
	require.NoError(t, err)
	defer reader.Close()

	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLocalStore_StoreVariants(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		content []byte
		ext     string
	}{
		{
			name:    "plain text",
			content: []byte("hello world"),
			ext:     ".txt",
		},
		{
			name:    "binary content",
			content: []byte{0x00, 0x01, 0x02, 0xFF},
			ext:     ".bin",
		},
		{
			name:    "empty content",
			content: []byte{},
			ext:     ".txt",
		},
		{
			name:    "no extension",
			content: []byte("extensionless"),
			ext:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := store.Store(ctx, tt.content, tt.ext)
			require.NoError(t, err)

			exists, err := store.Exists(ctx, path)
			require.NoError(t, err)
			assert.True(t, exists)

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.content, got)

			// The stored name never leaves the root directory
			assert.Equal(t, store.root, filepath.Dir(path))
		})
	}
}

func TestLocalStore_DedupWritesOnce(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	content := []byte("duplicate me")
	first, err := store.Store(ctx, content, ".txt")
	require.NoError(t, err)

	// Pin the mtime so a rewrite would be observable
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(first, old, old))

	second, err := store.Store(ctx, content, ".txt")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info, err := os.Stat(first)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "dedup hit must not rewrite the file")

	// Exactly one file in the store, no temp leftovers
	entries, err := os.ReadDir(store.root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalStore_DistinctContentDistinctPaths(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a, err := store.Store(ctx, []byte("content a"), ".txt")
	require.NoError(t, err)
	b, err := store.Store(ctx, []byte("content b"), ".txt")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestLocalStore_PathConfinement(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Hostile extensions collapse to a safe suffix inside the root
	exts := []string{
		"../../../../etc/passwd",
		"..\\..\\evil.exe",
		".txt\x00.exe",
		"./.././",
	}
	for _, ext := range exts {
		path, err := store.Store(ctx, []byte("payload "+ext), ext)
		require.NoError(t, err)
		assert.Equal(t, store.root, filepath.Dir(path), "ext %q escaped the root", ext)
	}

	// Reads outside the root are refused
	_, err := store.Retrieve(ctx, "/etc/passwd")
	assert.Error(t, err)
	_, err = store.Retrieve(ctx, filepath.Join(store.root, "..", "elsewhere"))
	assert.Error(t, err)
	_, err = store.Exists(ctx, filepath.Join(store.root, "..", "elsewhere"))
	assert.Error(t, err)
}

func TestLocalStore_CancelledContext(t *testing.T) {
	store := setupTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Store(ctx, []byte("never written"), ".txt")
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(store.root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSanitizeExt(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		want string
	}{
		{"already clean", ".txt", ".txt"},
		{"missing dot", "txt", ".txt"},
		{"empty", "", ""},
		{"dots only", "..", ""},
		{"double extension", ".tar.gz", ".tar.gz"},
		{"path separators stripped", ".t/x\\t", ".txt"},
		{"null byte stripped", ".ex\x00e", ".exe"},
		{"traversal collapses", "../../x", ".x"},
		{"unicode stripped", ".txét", ".txt"},
		{"overlong truncated", "." + "abcdefghijklmnopqrstuvwxyz", "." + "abcdefghijklmno"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeExt(tt.ext))
		})
	}
}

func TestFactory(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		factory := NewFactory(&config.StorageConfig{Type: "local", LocalPath: t.TempDir()})
		store, err := factory.CreateStore(nil)
		require.NoError(t, err)
		assert.IsType(t, &LocalStore{}, store)
	})

	t.Run("unsupported", func(t *testing.T) {
		factory := NewFactory(&config.StorageConfig{Type: "s3"})
		store, err := factory.CreateStore(nil)
		assert.Error(t, err)
		assert.Nil(t, store)
	})
}
