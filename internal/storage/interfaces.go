package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no object exists at path.
var ErrNotFound = errors.New("object not found")

// Storage persists exported reports.
type Storage interface {
	Save(ctx context.Context, path string, data []byte) error
	Load(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}
