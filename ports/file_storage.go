package ports

import (
	"context"
	"io"
)

// FileStorage stores opaque uploaded files under generated keys
type FileStorage interface {
	// Store saves the content and returns the key it is stored under
	Store(ctx context.Context, r io.Reader, filename string) (string, error)
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
