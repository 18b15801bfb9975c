package memory

import (
	"context"
	"sort"
	"sync"

	"photometry-lab/internal/domain"
	"photometry-lab/internal/storage"
)

// ImageStore is an in-memory implementation of storage.ImageStore.
type ImageStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ImageRecord // keyed by image_id
}

// NewImageStore creates a new in-memory image store.
func NewImageStore() *ImageStore {
	return &ImageStore{
		data: make(map[string]*domain.ImageRecord),
	}
}

// Insert adds a new image record. Returns ErrDuplicateKey if image_id exists.
func (s *ImageStore) Insert(_ context.Context, rec *domain.ImageRecord) error {
	if rec == nil || rec.ImageID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[rec.ImageID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	recCopy := *rec
	s.data[rec.ImageID] = &recCopy
	return nil
}

// GetByID retrieves an image by its ID. Returns ErrNotFound if not exists.
func (s *ImageStore) GetByID(_ context.Context, imageID string) (*domain.ImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.data[imageID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recCopy := *rec
	return &recCopy, nil
}

// GetByObject retrieves all images of an object, ordered by observed_at ASC.
func (s *ImageStore) GetByObject(_ context.Context, object string) ([]*domain.ImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ImageRecord
	for _, rec := range s.data {
		if rec.Object == object {
			recCopy := *rec
			result = append(result, &recCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt < result[j].ObservedAt
	})

	return result, nil
}

// GetByTimeRange retrieves images observed within [start, end] (inclusive).
func (s *ImageStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.ImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ImageRecord
	for _, rec := range s.data {
		if rec.ObservedAt >= start && rec.ObservedAt <= end {
			recCopy := *rec
			result = append(result, &recCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt < result[j].ObservedAt
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.ImageStore = (*ImageStore)(nil)
