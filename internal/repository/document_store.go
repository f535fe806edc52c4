package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"converge/internal/model"
)

// DocumentStore owns files, their per-user ownership associations and their
// embedded chunks. Every write path that touches more than one table runs in
// a single transaction; a failed ingest leaves the database untouched.
type DocumentStore struct {
	db *gorm.DB
}

func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// UpsertFileInput carries one fully embedded document. Segments and Vectors
// are parallel: Vectors[i] is the embedding of Segments[i].
type UpsertFileInput struct {
	Email    string
	Name     string
	Size     int64
	MIMEType string
	Source   string
	Segments []string
	Vectors  [][]float32
}

// ListFiles returns all files associated with the user, oldest first for
// stable display ordering.
func (s *DocumentStore) ListFiles(ctx context.Context, email string) ([]model.File, error) {
	var files []model.File
	err := s.db.WithContext(ctx).
		Joins("JOIN user_files ON user_files.file_id = files.id").
		Joins("JOIN users ON users.id = user_files.user_id").
		Where("users.email = ?", strings.ToLower(email)).
		Order("files.created_at ASC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list files failed: %w", err)
	}
	return files, nil
}

// FindFile looks up the user's file by its natural key. The email match is
// case-insensitive through lowercase normalization; name, mime type and
// source are exact.
func (s *DocumentStore) FindFile(ctx context.Context, email, name, mimeType, source string) (*model.File, error) {
	return s.findFile(s.db.WithContext(ctx), email, name, mimeType, source, false)
}

func (s *DocumentStore) findFile(tx *gorm.DB, email, name, mimeType, source string, forUpdate bool) (*model.File, error) {
	q := tx.
		Joins("JOIN user_files ON user_files.file_id = files.id").
		Joins("JOIN users ON users.id = user_files.user_id").
		Where("users.email = ? AND files.name = ? AND files.mime_type = ? AND files.source = ?",
			strings.ToLower(email), name, mimeType, source)
	if forUpdate {
		// serialize concurrent re-uploads of the same natural key
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "files"}})
	}

	var file model.File
	if err := q.First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find file failed: %w", err)
	}
	return &file, nil
}

// UpsertFile persists one embedded document as a single unit of work. A file
// matching the natural key is updated in place and its chunk set replaced;
// otherwise a new file, its ownership association and its chunks are created
// together. Returns nil when the owning user does not exist: uploads never
// implicitly create users.
func (s *DocumentStore) UpsertFile(ctx context.Context, input UpsertFileInput) (*model.File, error) {
	if len(input.Segments) != len(input.Vectors) {
		return nil, fmt.Errorf("upsert file: %d segments for %d vectors", len(input.Segments), len(input.Vectors))
	}

	var saved *model.File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.findFile(tx, input.Email, input.Name, input.MIMEType, input.Source, true)
		if err != nil {
			return err
		}

		if existing != nil {
			existing.Size = input.Size
			existing.UpdatedAt = time.Now()
			if err := tx.Save(existing).Error; err != nil {
				return fmt.Errorf("update file failed: %w", err)
			}
			if err := s.replaceChunks(tx, existing.ID, input.Segments, input.Vectors); err != nil {
				return err
			}
			saved = existing
			return nil
		}

		user, err := s.userByEmail(tx, input.Email)
		if err != nil {
			return err
		}
		if user == nil {
			return nil
		}

		file := &model.File{
			ID:       uuid.New(),
			Name:     input.Name,
			Size:     input.Size,
			MIMEType: input.MIMEType,
			Source:   input.Source,
		}
		if err := tx.Create(file).Error; err != nil {
			return fmt.Errorf("create file failed: %w", err)
		}
		association := &model.UserFile{
			UserID: user.ID,
			FileID: file.ID,
		}
		if err := tx.Create(association).Error; err != nil {
			return fmt.Errorf("create file association failed: %w", err)
		}
		if err := s.insertChunks(tx, file.ID, input.Segments, input.Vectors); err != nil {
			return err
		}
		saved = file
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// replaceChunks deletes every existing chunk for the file before inserting
// the new set, inside the caller's transaction. Ordering matters: stale
// chunks must never survive alongside a new version.
func (s *DocumentStore) replaceChunks(tx *gorm.DB, fileID uuid.UUID, segments []string, vectors [][]float32) error {
	if err := tx.Where("file_id = ?", fileID).Delete(&model.EmbeddedChunk{}).Error; err != nil {
		return fmt.Errorf("delete prior chunks failed: %w", err)
	}
	return s.insertChunks(tx, fileID, segments, vectors)
}

func (s *DocumentStore) insertChunks(tx *gorm.DB, fileID uuid.UUID, segments []string, vectors [][]float32) error {
	chunks := make([]model.EmbeddedChunk, len(segments))
	for i := range segments {
		chunks[i] = model.EmbeddedChunk{
			ID:        uuid.New(),
			FileID:    fileID,
			Embedding: pgvector.NewVector(vectors[i]),
			Text:      segments[i],
		}
	}
	if err := tx.Create(&chunks).Error; err != nil {
		return fmt.Errorf("create chunks failed: %w", err)
	}
	return nil
}

// DeleteFile removes the user's association to the file and, if that
// succeeded, the file row and its chunks. Returns false without side effects
// when the user holds no association for fileID (wrong owner or unknown id).
func (s *DocumentStore) DeleteFile(ctx context.Context, email string, fileID uuid.UUID) (bool, error) {
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userByEmail(tx, email)
		if err != nil {
			return err
		}
		if user == nil {
			return nil
		}

		result := tx.Where("user_id = ? AND file_id = ?", user.ID, fileID).Delete(&model.UserFile{})
		if result.Error != nil {
			return fmt.Errorf("delete file association failed: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if err := tx.Where("file_id = ?", fileID).Delete(&model.EmbeddedChunk{}).Error; err != nil {
			return fmt.Errorf("delete file chunks failed: %w", err)
		}
		if err := tx.Where("id = ?", fileID).Delete(&model.File{}).Error; err != nil {
			return fmt.Errorf("delete file failed: %w", err)
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// SearchChunks returns the k chunks nearest to vector among the user's files,
// nearest first. The ownership join is the isolation boundary: chunks of
// other users' files are never candidates.
func (s *DocumentStore) SearchChunks(ctx context.Context, email string, vector []float32, k int) ([]model.RetrievedChunk, error) {
	if k <= 0 {
		k = 5
	}
	var results []model.RetrievedChunk
	err := s.db.WithContext(ctx).Raw(`
		SELECT embedded_chunks.text AS text, files.name AS source_name
		FROM embedded_chunks
		JOIN files ON files.id = embedded_chunks.file_id
		JOIN user_files ON user_files.file_id = files.id
		JOIN users ON users.id = user_files.user_id
		WHERE users.email = ?
		ORDER BY embedded_chunks.embedding <=> ?
		LIMIT ?`,
		strings.ToLower(email), pgvector.NewVector(vector), k,
	).Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("search chunks failed: %w", err)
	}
	return results, nil
}

func (s *DocumentStore) userByEmail(tx *gorm.DB, email string) (*model.User, error) {
	var user model.User
	if err := tx.Where("email = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by email failed: %w", err)
	}
	return &user, nil
}
