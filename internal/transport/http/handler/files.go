package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"converge/internal/app"
	"converge/internal/transport/http/response"
)

type FilesHandler struct {
	ingestService *app.IngestService
	maxFileSize   int64
}

func NewFilesHandler(ingestService *app.IngestService, maxFileSize int64) *FilesHandler {
	if maxFileSize <= 0 {
		maxFileSize = 30 << 20
	}
	return &FilesHandler{
		ingestService: ingestService,
		maxFileSize:   maxFileSize,
	}
}

// Upload accepts a multipart form with "file" and runs the ingestion
// pipeline for the authenticated user.
func (h *FilesHandler) Upload(c *gin.Context) {
	email, ok := getEmailFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if fileHeader.Size > h.maxFileSize {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge,
			"payload too large, file size exceeds the upload limit")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	blob, err := io.ReadAll(io.LimitReader(f, h.maxFileSize+1))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}

	result, err := h.ingestService.Upload(c.Request.Context(), app.UploadInput{
		Email:    email,
		FileName: fileHeader.Filename,
		MIMEType: fileHeader.Header.Get("Content-Type"),
		Size:     fileHeader.Size,
		Blob:     blob,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrFileTooLarge):
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, err.Error())
		case errors.Is(err, app.ErrUnsupportedFileType):
			response.Error(c, http.StatusUnprocessableEntity, response.CodeUnsupportedFile, err.Error())
		case errors.Is(err, app.ErrFileInfected):
			response.Error(c, http.StatusUnprocessableEntity, response.CodeFileInfected, err.Error())
		case errors.Is(err, app.ErrScanUnavailable):
			response.Error(c, http.StatusServiceUnavailable, response.CodeScanUnavailable, err.Error())
		default:
			// internal cause already logged by the service
			response.Error(c, http.StatusUnprocessableEntity, response.CodeIngestFailed, "unable to upload file")
		}
		return
	}

	response.Created(c, result)
}

func (h *FilesHandler) List(c *gin.Context) {
	email, ok := getEmailFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	files, err := h.ingestService.ListFiles(c.Request.Context(), email)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list files failed")
		return
	}
	response.OK(c, files)
}

func (h *FilesHandler) Delete(c *gin.Context) {
	email, ok := getEmailFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid file id")
		return
	}

	if err := h.ingestService.DeleteFile(c.Request.Context(), email, fileID); err != nil {
		switch {
		case errors.Is(err, app.ErrFileNotFound):
			response.Error(c, http.StatusNotFound, response.CodeFileNotFound, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete file failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_file_id": fileID})
}
