package models

import (
	"time"

	"github.com/google/uuid"
)

type ShareRole string

const (
	ShareRoleViewer ShareRole = "VIEWER"
	ShareRoleEditor ShareRole = "EDITOR"
)

func (r ShareRole) Valid() bool {
	return r == ShareRoleViewer || r == ShareRoleEditor
}

// FileShare grants a role on one file to a user who is not its owner.
// (FileID, UserID) is the primary key, so a pair can hold at most one row.
type FileShare struct {
	FileID    uuid.UUID `json:"fileID" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"userID" gorm:"type:uuid;primaryKey;index"`
	Role      ShareRole `json:"role" gorm:"type:varchar(20);not null;default:'VIEWER'"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;index"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null"`

	File *File `json:"file,omitempty" gorm:"foreignKey:FileID;references:ID"`
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID"`
}

func (FileShare) TableName() string {
	return "file_shares"
}
