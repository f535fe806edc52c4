package model

import (
	"time"

	"github.com/google/uuid"
)

// SourceConverge tags files ingested through the upload endpoint.
const SourceConverge = "Converge"

// File is one logical uploaded document. The tuple (owning user, Name,
// MIMEType, Source) is the natural key: uploading a file that matches an
// existing tuple replaces that file's chunks instead of creating a duplicate.
type File struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	Size      int64     `gorm:"not null" json:"size"`
	MIMEType  string    `gorm:"column:mime_type;size:128;not null" json:"mime_type"`
	Source    string    `gorm:"size:64;not null" json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserFile records which user a file belongs to. The association carries its
// own timestamps and is deleted before the File row on a delete request, so
// ownership is the gate for deletion rather than a cascade.
type UserFile struct {
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	FileID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"file_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserFile) TableName() string {
	return "user_files"
}
