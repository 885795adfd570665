package models

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type File struct {
	BaseModel
	OwnerID      uuid.UUID `json:"ownerID" gorm:"type:uuid;not null;index"`
	Filename     string    `json:"filename" gorm:"type:text;not null"`
	OriginalName string    `json:"originalName" gorm:"type:varchar(255);not null"`
	MimeType     string    `json:"mimeType" gorm:"type:varchar(255);not null"`
	Size         int64     `json:"size" gorm:"not null;default:0"`

	Owner  *User       `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
	Shares []FileShare `json:"-" gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE"`
	Links  []FileLink  `json:"-" gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE"`
}

func (File) TableName() string {
	return "files"
}

// Extension returns the lower-cased suffix of OriginalName starting at the last dot,
// or "" when the name has none.
func (f *File) Extension() string {
	return NameExtension(f.OriginalName)
}

func NameExtension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
