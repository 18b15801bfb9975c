package memory

import (
	"context"
	"sort"
	"sync"

	"photometry-lab/internal/domain"
	"photometry-lab/internal/storage"
)

type lightCurveKey struct {
	starID     string
	observedAt int64
}

// LightCurveStore is an in-memory implementation of storage.LightCurveStore.
// Duplicate (star_id, observed_at) points replace the previous one,
// mirroring the deduplication of the ClickHouse backing table.
type LightCurveStore struct {
	mu   sync.RWMutex
	data map[lightCurveKey]*domain.LightCurvePoint
}

// NewLightCurveStore creates a new in-memory light curve store.
func NewLightCurveStore() *LightCurveStore {
	return &LightCurveStore{
		data: make(map[lightCurveKey]*domain.LightCurvePoint),
	}
}

// InsertBulk adds multiple points, replacing duplicates.
func (s *LightCurveStore) InsertBulk(_ context.Context, points []*domain.LightCurvePoint) error {
	for _, p := range points {
		if p == nil || p.StarID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		pCopy := *p
		s.data[lightCurveKey{p.StarID, p.ObservedAt}] = &pCopy
	}
	return nil
}

// GetByStarID retrieves all points of a star, ordered by observed_at ASC.
func (s *LightCurveStore) GetByStarID(_ context.Context, starID string) ([]*domain.LightCurvePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LightCurvePoint
	for _, p := range s.data {
		if p.StarID == starID {
			pCopy := *p
			result = append(result, &pCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt < result[j].ObservedAt
	})

	return result, nil
}

// GetByTimeRange retrieves points of a star within [start, end] (inclusive).
func (s *LightCurveStore) GetByTimeRange(_ context.Context, starID string, start, end int64) ([]*domain.LightCurvePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LightCurvePoint
	for _, p := range s.data {
		if p.StarID == starID && p.ObservedAt >= start && p.ObservedAt <= end {
			pCopy := *p
			result = append(result, &pCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt < result[j].ObservedAt
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.LightCurveStore = (*LightCurveStore)(nil)
