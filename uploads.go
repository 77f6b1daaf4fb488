package main

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/clearview_backend/ingest"
)

const (
	maxUploadSizeBytes int64 = 10 * 1024 * 1024
	uploadFieldName          = "file"
	defaultUploadName        = "upload.csv"
)

var csvMimeTypes = map[string]bool{
	"text/csv":        true,
	"application/csv": true,
	"text/plain":      true,
}

var (
	errNoFileUploaded = badRequest("No file uploaded. Use field name 'file'")
	errFileTooLarge   = badRequest("file size exceeds 10MB limit")
	errNotCsvFile     = badRequest("Only CSV files are allowed")
)

type csvUpload struct {
	Filename string
	Encoding string
	Text     string
}

// readCsvUpload reads the multipart "file" field, enforcing the size limit
// and the CSV content types, and decodes it to UTF-8 text.
func readCsvUpload(c *gin.Context) (*csvUpload, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSizeBytes+1<<20)
	header, err := c.FormFile(uploadFieldName)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errFileTooLarge
		}
		return nil, errNoFileUploaded
	}
	if header.Size > maxUploadSizeBytes {
		return nil, errFileTooLarge
	}
	if !isCsvUpload(header.Header.Get("Content-Type"), header.Filename) {
		return nil, errNotCsvFile
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("could not read uploaded file: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadSizeBytes+1))
	if err != nil {
		return nil, fmt.Errorf("could not read uploaded file: %w", err)
	}
	if int64(len(data)) > maxUploadSizeBytes {
		return nil, errFileTooLarge
	}

	text, encoding := ingest.DecodeText(data)
	return &csvUpload{
		Filename: uploadFilename(header.Filename),
		Encoding: encoding,
		Text:     text,
	}, nil
}

func isCsvUpload(contentType, filename string) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && csvMimeTypes[mediaType] {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".csv")
}

// uploadFilename keeps only the base name with a safe character set.
func uploadFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(base))
	stem := sanitizeSegment(strings.ReplaceAll(strings.TrimSuffix(base, filepath.Ext(base)), " ", "_"))
	if stem == "" {
		return defaultUploadName
	}
	return stem + sanitizeSegment(ext)
}

func sanitizeSegment(input string) string {
	var out strings.Builder
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func logUploadError(logger *logrus.Logger, err error, filename string, requestID string) {
	logger.WithFields(logrus.Fields{
		"error":      err.Error(),
		"filename":   filename,
		"request_id": requestID,
	}).Error("[upload.error]")
}
