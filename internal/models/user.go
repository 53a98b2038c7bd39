package models

import (
	"time"

	"github.com/google/uuid"
)

type UserType string

const (
	UserTypeBusiness  UserType = "business"
	UserTypeCandidate UserType = "candidate"
)

type User struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Email          string    `gorm:"type:text;uniqueIndex;not null" json:"email"`
	Name           string    `gorm:"type:text;not null" json:"name"`
	UserType       UserType  `gorm:"type:text;not null" json:"user_type"`
	City           string    `gorm:"type:text" json:"city"`
	Country        string    `gorm:"type:text" json:"country"`
	HashedPassword string    `gorm:"type:text;not null" json:"-"`
	CreatedAt      time.Time `gorm:"type:timestamp;default:now()" json:"created_at"`
	UpdatedAt      time.Time `gorm:"type:timestamp;default:now()" json:"updated_at"`
}

func (u *User) TableName() string {
	return "users"
}
