package entity

import "context"

// FileStore holds staged intermediates and finished tracks between jobs.
type FileStore interface {
	GetFile(ctx context.Context, url string) ([]byte, error)
	WriteFile(ctx context.Context, url string, fileContent []byte) error
	DeleteFile(ctx context.Context, url string) error
}
