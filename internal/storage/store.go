// Package storage — blob-хранилище артефактов (входные файлы и
// результаты трансформации).
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound — объект не найден в хранилище.
var ErrNotFound = errors.New("object not found")

// BlobStore — контракт хранилища бинарных объектов.
type BlobStore interface {
	// Upload сохраняет объект под ключом.
	Upload(ctx context.Context, key string, data []byte, contentType string) error

	// Download возвращает содержимое объекта.
	Download(ctx context.Context, key string) ([]byte, error)

	// Presign возвращает временную ссылку на скачивание объекта.
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
}
