package descriptions

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashdrop-io/hashdrop/internal/common"
	"github.com/hashdrop-io/hashdrop/pkg/config"
)

func newTestDatabase(t *testing.T) *common.Database {
	t.Helper()
	db, err := common.NewDatabase(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    ":memory:",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordWithoutDatabase(t *testing.T) {
	service := NewService(nil)

	// Log-only mode: recording succeeds, nothing is retrievable
	err := service.Record(context.Background(), "abc123", "holiday pictures")
	assert.NoError(t, err)

	descs, err := service.ForUpload(context.Background(), "abc123")
	assert.NoError(t, err)
	assert.Empty(t, descs)
}

func TestRecordPersists(t *testing.T) {
	service := NewService(newTestDatabase(t))
	ctx := context.Background()

	require.NoError(t, service.Record(ctx, "abc123", "first note"))
	require.NoError(t, service.Record(ctx, "abc123", "second note"))
	require.NoError(t, service.Record(ctx, "other", "unrelated"))

	descs, err := service.ForUpload(ctx, "abc123")
	require.NoError(t, err)
	require.Len(t, descs, 2)
	for _, d := range descs {
		assert.Equal(t, "abc123", d.UploadID)
		assert.NotEqual(t, uuid.Nil, d.ID)
	}

	descs, err = service.ForUpload(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, descs)
}
