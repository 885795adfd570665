package models

import "github.com/google/uuid"

type User struct {
	BaseModel
	Email        string `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Name         string `json:"name" gorm:"type:varchar(150);not null"`
	PasswordHash string `json:"-" gorm:"type:text;not null"`

	Files  []File      `json:"-" gorm:"foreignKey:OwnerID"`
	Shares []FileShare `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// UserSummary is the owner/recipient snapshot embedded in share listings.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}
