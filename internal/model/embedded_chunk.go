package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// EmbeddedChunk is one text segment of a file together with its embedding
// vector. All chunks for a file are replaced as a unit on re-ingest; stale
// chunks from a prior version never coexist with the new set.
type EmbeddedChunk struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	FileID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"file_id"`
	Embedding pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
	Text      string          `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RetrievedChunk is a retrieval result: the chunk's text annotated with the
// display name of the file it came from, for citation.
type RetrievedChunk struct {
	Text       string `json:"text"`
	SourceName string `json:"source_name"`
}
