package descriptions

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hashdrop-io/hashdrop/internal/common"
	"github.com/hashdrop-io/hashdrop/pkg/types"
)

// Service records free-text descriptions attached to finished uploads.
// Every description is logged; when a database is configured it is
// persisted as well.
type Service struct {
	db *common.Database
}

// NewService creates a description service. db may be nil, in which case
// descriptions are only logged.
func NewService(db *common.Database) *Service {
	return &Service{db: db}
}

// Record stores the description for an upload session.
func (s *Service) Record(ctx context.Context, uploadID, text string) error {
	log.Info().
		Str("uid", uploadID).
		Str("description", text).
		Msg("received a description")

	if s.db == nil {
		return nil
	}

	desc := &types.Description{
		UploadID: uploadID,
		Text:     text,
	}
	if err := s.db.WithContext(ctx).Create(desc).Error; err != nil {
		return fmt.Errorf("persist description: %w", err)
	}
	return nil
}

// ForUpload returns the persisted descriptions for an upload session,
// newest first. Without a database it returns nothing.
func (s *Service) ForUpload(ctx context.Context, uploadID string) ([]types.Description, error) {
	if s.db == nil {
		return nil, nil
	}

	var descs []types.Description
	err := s.db.WithContext(ctx).
		Where("upload_id = ?", uploadID).
		Order("created_at DESC").
		Find(&descs).Error
	if err != nil {
		return nil, fmt.Errorf("load descriptions: %w", err)
	}
	return descs, nil
}
