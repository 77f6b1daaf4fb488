package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	// If you need to provide explicit JSON (e.g. locally), set GCS_CREDENTIALS_JSON.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// GCSArchiver copies rendered exports into a bucket. It opens a client per
// call.
type GCSArchiver struct {
	Bucket string
	Prefix string
}

func NewGCSArchiver(bucket string) *GCSArchiver {
	return &GCSArchiver{Bucket: bucket, Prefix: "exports"}
}

// ExportObjectName builds <prefix>/<yyyy>/<mm>/<dd>/<sessionId>/<filename>.
func (a *GCSArchiver) ExportObjectName(sessionId, filename string, at time.Time) string {
	u := at.UTC()
	return path.Join(a.Prefix, u.Format("2006"), u.Format("01"), u.Format("02"), sessionId, filename)
}

func (a *GCSArchiver) Archive(ctx context.Context, objectName string, data []byte, contentType string) error {
	if a == nil || strings.TrimSpace(a.Bucket) == "" {
		return errors.New("EXPORT_ARCHIVE_BUCKET is required")
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(a.Bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to upload export to Google Cloud Storage: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}
