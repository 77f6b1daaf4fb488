package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		err      error
		expected bool
	}{
		{&mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{fmt.Errorf("create: %w", &mysqlDriver.MySQLError{Number: 1062}), true},
		{&mysqlDriver.MySQLError{Number: 1146}, false},
		{errors.New("Duplicate entry"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := isDuplicateKeyErr(tc.err); got != tc.expected {
			t.Fatalf("isDuplicateKeyErr(%v) expected %v, got %v", tc.err, tc.expected, got)
		}
	}
}

func TestNoopPreviewRecorder(t *testing.T) {
	if err := (NoopPreviewRecorder{}).RecordPreview(context.Background(), PreviewMetadata{CsvFileID: "csv_1"}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
