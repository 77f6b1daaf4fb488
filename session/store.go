package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("csv not found in session")

// Store keeps the raw CSV text of an upload, keyed by its session id.
type Store interface {
	Get(ctx context.Context, id string) (string, error)
	Set(ctx context.Context, id string, text string) error
	Evict(ctx context.Context, id string) error
}

func NewID() string {
	return "csv_" + uuid.NewString()
}
