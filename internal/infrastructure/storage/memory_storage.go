package storage

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cryptonexus/backend/internal/domain/shared"
)

// MemoryStorage keeps objects in process memory. It issues URLs under
// BaseURL that nothing serves; Put stands in for the client upload.
// Development and tests only.
type MemoryStorage struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

type memoryObject struct {
	contentType string
	data        []byte
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage(baseURL string) *MemoryStorage {
	if baseURL == "" {
		baseURL = "http://localhost:9000/cryptonexus"
	}
	return &MemoryStorage{
		BaseURL: baseURL,
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

// Put stores an object as if a client had uploaded it
func (m *MemoryStorage) Put(key, contentType string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = memoryObject{contentType: contentType, data: append([]byte(nil), data...)}
	m.mu.Unlock()
	return nil
}

// GenerateUploadURL returns a URL carrying the key, content type and expiry
func (m *MemoryStorage) GenerateUploadURL(_ context.Context, storageKey, contentType string, expiresIn time.Duration) (string, time.Time, error) {
	if err := validateKey(storageKey); err != nil {
		return "", time.Time{}, err
	}
	expiresAt := m.now().Add(expiresIn)
	q := url.Values{}
	q.Set("content_type", contentType)
	q.Set("expires", strconv.FormatInt(expiresAt.Unix(), 10))
	return m.BaseURL + "/" + storageKey + "?" + q.Encode(), expiresAt, nil
}

// GenerateDownloadURL returns a URL for the key
func (m *MemoryStorage) GenerateDownloadURL(_ context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	if err := validateKey(storageKey); err != nil {
		return "", time.Time{}, err
	}
	expiresAt := m.now().Add(expiresIn)
	return m.BaseURL + "/" + storageKey + "?expires=" + strconv.FormatInt(expiresAt.Unix(), 10), expiresAt, nil
}

// DeleteObject removes the key if present
func (m *MemoryStorage) DeleteObject(_ context.Context, storageKey string) error {
	if err := validateKey(storageKey); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.objects, storageKey)
	m.mu.Unlock()
	return nil
}

// ObjectExists reports whether Put stored the key
func (m *MemoryStorage) ObjectExists(_ context.Context, storageKey string) (bool, error) {
	if err := validateKey(storageKey); err != nil {
		return false, err
	}
	m.mu.RLock()
	_, ok := m.objects[storageKey]
	m.mu.RUnlock()
	return ok, nil
}

var _ shared.ObjectStorage = (*MemoryStorage)(nil)
