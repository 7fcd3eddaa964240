package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Description is a free-text note a client attaches to a finished upload.
type Description struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey"`
	UploadID  string    `json:"upload_id" gorm:"index;not null"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate generates a UUID for the description ID
func (d *Description) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
