package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"photometry-lab/internal/domain"
	"photometry-lab/internal/storage"
)

// ImageStore implements storage.ImageStore using PostgreSQL.
type ImageStore struct {
	pool *Pool
}

// NewImageStore creates a new ImageStore.
func NewImageStore(pool *Pool) *ImageStore {
	return &ImageStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ImageStore = (*ImageStore)(nil)

// Insert adds a new image record. Returns ErrDuplicateKey if image_id exists.
func (s *ImageStore) Insert(ctx context.Context, rec *domain.ImageRecord) error {
	query := `
		INSERT INTO images (
			image_id, path, object, filter, observed_at, exptime, gain, airmass, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		rec.ImageID,
		rec.Path,
		rec.Object,
		rec.Filter,
		rec.ObservedAt,
		rec.ExpTime,
		rec.Gain,
		rec.Airmass,
		rec.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

// GetByID retrieves an image by its ID. Returns ErrNotFound if not exists.
func (s *ImageStore) GetByID(ctx context.Context, imageID string) (*domain.ImageRecord, error) {
	query := `
		SELECT image_id, path, object, filter, observed_at, exptime, gain, airmass, created_at
		FROM images
		WHERE image_id = $1
	`

	row := s.pool.QueryRow(ctx, query, imageID)
	rec, err := scanImage(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get image by id: %w", err)
	}
	return rec, nil
}

// GetByObject retrieves all images of an object, ordered by observed_at ASC.
func (s *ImageStore) GetByObject(ctx context.Context, object string) ([]*domain.ImageRecord, error) {
	query := `
		SELECT image_id, path, object, filter, observed_at, exptime, gain, airmass, created_at
		FROM images
		WHERE object = $1
		ORDER BY observed_at ASC, image_id ASC
	`

	rows, err := s.pool.Query(ctx, query, object)
	if err != nil {
		return nil, fmt.Errorf("get images by object: %w", err)
	}
	defer rows.Close()

	return scanImages(rows)
}

// GetByTimeRange retrieves images observed within [start, end] (inclusive).
func (s *ImageStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ImageRecord, error) {
	query := `
		SELECT image_id, path, object, filter, observed_at, exptime, gain, airmass, created_at
		FROM images
		WHERE observed_at >= $1 AND observed_at <= $2
		ORDER BY observed_at ASC, image_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get images by time range: %w", err)
	}
	defer rows.Close()

	return scanImages(rows)
}

// scanImage scans a single row into an ImageRecord.
func scanImage(row pgx.Row) (*domain.ImageRecord, error) {
	var rec domain.ImageRecord
	err := row.Scan(
		&rec.ImageID,
		&rec.Path,
		&rec.Object,
		&rec.Filter,
		&rec.ObservedAt,
		&rec.ExpTime,
		&rec.Gain,
		&rec.Airmass,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// scanImages scans multiple rows into a slice of ImageRecord.
func scanImages(rows pgx.Rows) ([]*domain.ImageRecord, error) {
	var images []*domain.ImageRecord

	for rows.Next() {
		rec, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		images = append(images, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image rows: %w", err)
	}

	return images, nil
}
