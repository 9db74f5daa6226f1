package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore — in-memory BlobStore для тестов и локального режима.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject

	// BaseURL — префикс для "presigned" ссылок.
	BaseURL string
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore создаёт пустое in-memory хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		BaseURL: "memory://",
	}
}

// Upload сохраняет объект.
func (s *MemoryStore) Upload(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[key] = memoryObject{data: buf, contentType: contentType}
	return nil
}

// Download возвращает содержимое объекта.
func (s *MemoryStore) Download(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	return buf, nil
}

// Presign возвращает синтетическую ссылку.
func (s *MemoryStore) Presign(_ context.Context, key string, _ time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return s.BaseURL + key, nil
}

// Len возвращает количество объектов (для тестов).
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
