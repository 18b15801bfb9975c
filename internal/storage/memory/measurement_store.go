package memory

import (
	"context"
	"sort"
	"sync"

	"photometry-lab/internal/domain"
	"photometry-lab/internal/storage"
)

type measurementKey struct {
	imageID string
	starID  string
}

// MeasurementStore is an in-memory implementation of storage.MeasurementStore.
type MeasurementStore struct {
	mu   sync.RWMutex
	data map[measurementKey]*domain.MeasurementRecord
}

// NewMeasurementStore creates a new in-memory measurement store.
func NewMeasurementStore() *MeasurementStore {
	return &MeasurementStore{
		data: make(map[measurementKey]*domain.MeasurementRecord),
	}
}

// Insert adds a new measurement. Returns ErrDuplicateKey if (image_id, star_id) exists.
func (s *MeasurementStore) Insert(_ context.Context, m *domain.MeasurementRecord) error {
	if m == nil || m.ImageID == "" || m.StarID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(m)
}

// InsertBulk adds multiple measurements atomically. Fails entire batch on any duplicate.
func (s *MeasurementStore) InsertBulk(_ context.Context, ms []*domain.MeasurementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before touching the map
	for _, m := range ms {
		if m == nil || m.ImageID == "" || m.StarID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[measurementKey{m.ImageID, m.StarID}]; exists {
			return storage.ErrDuplicateKey
		}
	}
	for _, m := range ms {
		if err := s.insertLocked(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *MeasurementStore) insertLocked(m *domain.MeasurementRecord) error {
	key := measurementKey{m.ImageID, m.StarID}
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	mCopy := *m
	s.data[key] = &mCopy
	return nil
}

// GetByImageID retrieves all measurements taken on an image, ordered by star_id ASC.
func (s *MeasurementStore) GetByImageID(_ context.Context, imageID string) ([]*domain.MeasurementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MeasurementRecord
	for _, m := range s.data {
		if m.ImageID == imageID {
			mCopy := *m
			result = append(result, &mCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StarID < result[j].StarID
	})

	return result, nil
}

// GetByStarID retrieves all measurements of a star across images.
func (s *MeasurementStore) GetByStarID(_ context.Context, starID string) ([]*domain.MeasurementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MeasurementRecord
	for _, m := range s.data {
		if m.StarID == starID {
			mCopy := *m
			result = append(result, &mCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ImageID < result[j].ImageID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.MeasurementStore = (*MeasurementStore)(nil)
