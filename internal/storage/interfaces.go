package storage

import (
	"context"

	"photometry-lab/internal/domain"
)

// ImageStore provides access to images storage.
type ImageStore interface {
	// Insert adds a new image record. Returns ErrDuplicateKey if image_id exists.
	Insert(ctx context.Context, rec *domain.ImageRecord) error

	// GetByID retrieves an image by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, imageID string) (*domain.ImageRecord, error)

	// GetByObject retrieves all images of an object, ordered by observed_at ASC.
	GetByObject(ctx context.Context, object string) ([]*domain.ImageRecord, error)

	// GetByTimeRange retrieves images observed within [start, end] (inclusive),
	// ordered by observed_at ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ImageRecord, error)
}

// MeasurementStore provides access to measurements storage.
type MeasurementStore interface {
	// Insert adds a new measurement. Returns ErrDuplicateKey if
	// (image_id, star_id) exists.
	Insert(ctx context.Context, m *domain.MeasurementRecord) error

	// InsertBulk adds multiple measurements atomically. Fails entire batch
	// on any duplicate.
	InsertBulk(ctx context.Context, ms []*domain.MeasurementRecord) error

	// GetByImageID retrieves all measurements taken on an image, ordered
	// by star_id ASC.
	GetByImageID(ctx context.Context, imageID string) ([]*domain.MeasurementRecord, error)

	// GetByStarID retrieves all measurements of a star across images.
	GetByStarID(ctx context.Context, starID string) ([]*domain.MeasurementRecord, error)
}

// LightCurveStore provides access to light_curve_points storage.
type LightCurveStore interface {
	// InsertBulk adds multiple points. Duplicates are tolerated; the
	// backing table deduplicates on (star_id, observed_at).
	InsertBulk(ctx context.Context, points []*domain.LightCurvePoint) error

	// GetByStarID retrieves all points of a star, ordered by observed_at ASC.
	GetByStarID(ctx context.Context, starID string) ([]*domain.LightCurvePoint, error)

	// GetByTimeRange retrieves points of a star within [start, end]
	// (inclusive), ordered by observed_at ASC.
	GetByTimeRange(ctx context.Context, starID string, start, end int64) ([]*domain.LightCurvePoint, error)
}
