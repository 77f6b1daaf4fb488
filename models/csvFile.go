package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mmdatafocus/clearview_backend/config"
)

// Batch groups the files of one upload.
type Batch struct {
	ID        string    `gorm:"size:36;primary_key" json:"id"`
	Kind      BatchKind `gorm:"size:32;not null;index" json:"kind"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// CsvFile is the metadata kept for an uploaded CSV. The raw text itself
// lives only in the session store.
type CsvFile struct {
	ID          string         `gorm:"size:64;primary_key" json:"id"`
	BatchID     string         `gorm:"size:36;not null;index" json:"batchId"`
	Filename    string         `gorm:"size:255;not null" json:"filename"`
	Encoding    string         `gorm:"size:16" json:"encoding"`
	HeadersJSON datatypes.JSON `json:"headers"`
	RowCount    int            `gorm:"not null" json:"rowCount"`
	SampleJSON  datatypes.JSON `json:"sampleRows"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"createdAt"`
}

type PreviewMetadata struct {
	BatchID   string
	CsvFileID string
	Kind      BatchKind
	Filename  string
	Encoding  string
	Headers   []string
	RowCount  int
	Sample    any
}

// PreviewRecorder persists upload metadata.
type PreviewRecorder interface {
	RecordPreview(ctx context.Context, meta PreviewMetadata) error
}

// NoopPreviewRecorder is used when no database is configured.
type NoopPreviewRecorder struct{}

func (NoopPreviewRecorder) RecordPreview(ctx context.Context, meta PreviewMetadata) error {
	return nil
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// GormPreviewRecorder writes a Batch and its CsvFile in one transaction.
// Recording the same upload twice is a no-op.
type GormPreviewRecorder struct {
	// DB overrides config.GetDB() when set.
	DB *gorm.DB
}

func (r GormPreviewRecorder) db() *gorm.DB {
	if r.DB != nil {
		return r.DB
	}
	return config.GetDB()
}

func (r GormPreviewRecorder) RecordPreview(ctx context.Context, meta PreviewMetadata) error {
	headers, err := json.Marshal(meta.Headers)
	if err != nil {
		return err
	}
	sample, err := json.Marshal(meta.Sample)
	if err != nil {
		return err
	}

	db := r.db()
	if db == nil {
		return config.ErrDatabaseNotReady
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch := Batch{ID: meta.BatchID, Kind: meta.Kind}
		if err := tx.Create(&batch).Error; err != nil {
			return err
		}
		file := CsvFile{
			ID:          meta.CsvFileID,
			BatchID:     meta.BatchID,
			Filename:    meta.Filename,
			Encoding:    meta.Encoding,
			HeadersJSON: datatypes.JSON(headers),
			RowCount:    meta.RowCount,
			SampleJSON:  datatypes.JSON(sample),
		}
		return tx.Create(&file).Error
	})
	if isDuplicateKeyErr(err) {
		return nil
	}
	return err
}
