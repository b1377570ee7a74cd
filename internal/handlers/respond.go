package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"collab-service/internal/apperr"
	"collab-service/internal/blob"
	"collab-service/internal/middleware"
	"collab-service/internal/models"
)

// formOverhead is the room left for non-file multipart fields.
const formOverhead = 1 << 20

// respondError writes err using the status that matches its kind.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindInvalidState:
		status = http.StatusConflict
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindUnavailable:
		status = http.StatusServiceUnavailable
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "request_id", requestIDFromContext(c), "err", err)
		msg = "service unavailable"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": apperr.CodeOf(err)})
}

func callerOrAbort(c *gin.Context) (models.Caller, bool) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
	}
	return caller, ok
}

func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + strings.ReplaceAll(name, "_", " ")})
		return 0, false
	}
	return id, true
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// limitBody caps the request body at maxBytes plus room for form fields.
func limitBody(c *gin.Context, maxBytes int64) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+formOverhead)
}

// readUpload returns the multipart file under field, or nil when the form has none.
func readUpload(c *gin.Context, field string, maxBytes int64) (*blob.Upload, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Invalid("could not read upload: " + err.Error())
	}
	if header.Size > maxBytes {
		return nil, apperr.Invalid("file exceeds the upload limit")
	}
	return loadUpload(header)
}

func loadUpload(header *multipart.FileHeader) (*blob.Upload, error) {
	f, err := header.Open()
	if err != nil {
		return nil, apperr.Invalid("could not open upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperr.Invalid("could not read upload")
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &blob.Upload{Name: header.Filename, ContentType: contentType, Data: data}, nil
}

// messageInput is the body of a message write, sent as JSON or as a multipart form
// with an optional "file" part.
type messageInput struct {
	Body   string `json:"body" form:"body"`
	UserID int    `json:"user_id" form:"user_id"`
}

func bindMessage(c *gin.Context, maxBytes int64) (messageInput, *blob.Upload, bool) {
	var in messageInput
	limitBody(c, maxBytes)
	if err := c.ShouldBind(&in); err != nil {
		respondError(c, apperr.Invalid("invalid request payload"))
		return in, nil, false
	}
	if !isMultipart(c) {
		return in, nil, true
	}
	upload, err := readUpload(c, "file", maxBytes)
	if err != nil {
		respondError(c, err)
		return in, nil, false
	}
	return in, upload, true
}
