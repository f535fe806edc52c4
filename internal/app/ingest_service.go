package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"converge/internal/chunk"
	"converge/internal/extract"
	"converge/internal/model"
	"converge/internal/repository"
	"converge/internal/scan"
)

// Embedding providers commonly limit how many inputs one call may carry.
const embeddingBatchSize = 10

// DocumentStore is the persistence boundary of the ingestion pipeline.
// Implemented by repository.DocumentStore.
type DocumentStore interface {
	ListFiles(ctx context.Context, email string) ([]model.File, error)
	FindFile(ctx context.Context, email, name, mimeType, source string) (*model.File, error)
	UpsertFile(ctx context.Context, input repository.UpsertFileInput) (*model.File, error)
	DeleteFile(ctx context.Context, email string, fileID uuid.UUID) (bool, error)
	SearchChunks(ctx context.Context, email string, vector []float32, k int) ([]model.RetrievedChunk, error)
}

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ContentExtractor converts a file blob into plain text.
type ContentExtractor interface {
	Extract(ctx context.Context, blob []byte, mime extract.MIMEType) (string, error)
}

// VirusScanner rejects infected uploads before any pipeline work.
type VirusScanner interface {
	Scan(ctx context.Context, filename string, blob []byte) error
}

// IngestService runs the upload pipeline: validate, scan, extract, chunk,
// embed, upsert. A failure at any step aborts the whole unit with no writes.
type IngestService struct {
	store       DocumentStore
	extractor   ContentExtractor
	embedder    Embedder
	scanner     VirusScanner // nil = scanning disabled
	splitter    *chunk.Splitter
	maxFileSize int64
}

func NewIngestService(
	store DocumentStore,
	extractor ContentExtractor,
	embedder Embedder,
	scanner VirusScanner,
	maxFileSize int64,
) *IngestService {
	if maxFileSize <= 0 {
		maxFileSize = 30 << 20
	}
	return &IngestService{
		store:       store,
		extractor:   extractor,
		embedder:    embedder,
		scanner:     scanner,
		splitter:    chunk.NewSplitter(),
		maxFileSize: maxFileSize,
	}
}

type UploadInput struct {
	Email    string
	FileName string
	MIMEType string
	Size     int64
	Blob     []byte
}

type UploadResult struct {
	File       model.File `json:"file"`
	ChunkCount int        `json:"chunk_count"`
}

func (s *IngestService) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	name := strings.TrimSpace(input.FileName)
	if email == "" || name == "" {
		return nil, ErrInvalidInput
	}
	if input.Size > s.maxFileSize || int64(len(input.Blob)) > s.maxFileSize {
		return nil, ErrFileTooLarge
	}
	mime, ok := extract.ParseMIMEType(input.MIMEType)
	if !ok {
		return nil, ErrUnsupportedFileType
	}

	if s.scanner != nil {
		if err := s.scanner.Scan(ctx, name, input.Blob); err != nil {
			if errors.Is(err, scan.ErrInfected) {
				return nil, ErrFileInfected
			}
			log.Printf("virus scan for %q failed: %v", name, err)
			return nil, ErrScanUnavailable
		}
	}

	text, err := s.extractor.Extract(ctx, input.Blob, mime)
	if err != nil {
		log.Printf("extract %q failed: %v", name, err)
		return nil, ErrExtractionFailed
	}

	segments := s.splitter.Split(text)
	if len(segments) == 0 {
		// a file with no extractable text is never silently "ingested"
		return nil, fmt.Errorf("%w: no text segments produced", ErrEmbeddingFailed)
	}

	vectors, err := s.embedSegments(ctx, segments)
	if err != nil {
		log.Printf("embed %q failed: %v", name, err)
		return nil, ErrEmbeddingFailed
	}

	file, err := s.store.UpsertFile(ctx, repository.UpsertFileInput{
		Email:    email,
		Name:     name,
		Size:     input.Size,
		MIMEType: input.MIMEType,
		Source:   model.SourceConverge,
		Segments: segments,
		Vectors:  vectors,
	})
	if err != nil {
		log.Printf("upsert %q failed: %v", name, err)
		return nil, ErrIngestFailed
	}
	if file == nil {
		return nil, ErrUserUnknown
	}

	return &UploadResult{
		File:       *file,
		ChunkCount: len(segments),
	}, nil
}

func (s *IngestService) embedSegments(ctx context.Context, segments []string) ([][]float32, error) {
	var vectors [][]float32
	for i := 0; i < len(segments); i += embeddingBatchSize {
		end := i + embeddingBatchSize
		if end > len(segments) {
			end = len(segments)
		}
		batch, err := s.embedder.EmbedBatch(ctx, segments[i:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	if len(vectors) != len(segments) {
		return nil, fmt.Errorf("embedding count mismatch: %d vectors for %d segments", len(vectors), len(segments))
	}
	return vectors, nil
}

func (s *IngestService) ListFiles(ctx context.Context, email string) ([]model.File, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrInvalidInput
	}
	return s.store.ListFiles(ctx, email)
}

// DeleteFile removes the caller's file. A file the caller does not own is
// reported as not found, never deleted.
func (s *IngestService) DeleteFile(ctx context.Context, email string, fileID uuid.UUID) error {
	if strings.TrimSpace(email) == "" || fileID == uuid.Nil {
		return ErrInvalidInput
	}
	deleted, err := s.store.DeleteFile(ctx, email, fileID)
	if err != nil {
		return fmt.Errorf("delete file failed: %w", err)
	}
	if !deleted {
		return ErrFileNotFound
	}
	return nil
}
