package models

import (
	"github.com/mmdatafocus/clearview_backend/config"
)

// MigrateTable creates or updates the metadata tables.
func MigrateTable() error {
	db := config.GetDB()
	if db == nil {
		return config.ErrDatabaseNotReady
	}
	return db.AutoMigrate(
		&Batch{}, &CsvFile{},
	)
}
