package app

import "errors"

// Sentinel errors returned by the services. Validation and security failures
// carry a specific user-facing reason; extraction, embedding and persistence
// failures are surfaced generically while the cause is logged internally.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrEmailExists         = errors.New("email already exists")
	ErrInvalidCredential   = errors.New("invalid email or password")
	ErrFileTooLarge        = errors.New("file size exceeds the upload limit")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileInfected        = errors.New("file is infected")
	ErrScanUnavailable     = errors.New("unable to scan file for virus")
	ErrExtractionFailed    = errors.New("unable to extract file content")
	ErrEmbeddingFailed     = errors.New("unable to generate embeddings")
	ErrIngestFailed        = errors.New("unable to ingest file")
	ErrUserUnknown         = errors.New("user does not exist")
	ErrFileNotFound        = errors.New("file not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrMessageEmpty        = errors.New("message content is empty")
	ErrMessageEnqueue      = errors.New("message enqueue failed")
)
