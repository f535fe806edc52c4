package model

import "time"

type Session struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID uint   `gorm:"not null;index" json:"user_id"`
	Title  string `gorm:"size:128;not null" json:"title"`
	// ConversationID is the identifier handed out by the delegated
	// conversation service, obtained once per session. Empty in local mode.
	ConversationID string    `gorm:"size:128" json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
