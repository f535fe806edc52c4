package model

import "time"

// User is the ownership anchor for files and chat sessions. Email is the
// user's external identity and is stored lowercase; writers normalize before
// persisting, readers never do.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:128;not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
