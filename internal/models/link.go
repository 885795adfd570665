package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FileLink struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	FileID    uuid.UUID  `json:"fileID" gorm:"type:uuid;not null;index"`
	Token     string     `json:"token" gorm:"type:varchar(64);not null;uniqueIndex"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt" gorm:"not null;index"`

	File *File `json:"file,omitempty" gorm:"foreignKey:FileID;references:ID"`
}

func (l *FileLink) BeforeCreate(_ *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (FileLink) TableName() string {
	return "file_links"
}

// IsExpired reports whether the link is past its expiry at now. Links without
// an expiry never expire.
func (l *FileLink) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}
