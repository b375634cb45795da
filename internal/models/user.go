package models

import (
	"time"
)

type User struct {
	ID        uint   `gorm:"primarykey" json:"id"`
	Username  string `gorm:"uniqueIndex;not null;size:100" json:"username"`
	Email     string `gorm:"uniqueIndex;not null;size:100" json:"email"`
	Password  string `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

// CreateUserInput carries the fields accepted at registration.
type CreateUserInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
