package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"photometry-lab/internal/domain"
	"photometry-lab/internal/observability"
	"photometry-lab/internal/storage"
)

// MeasurementStore implements storage.MeasurementStore using PostgreSQL.
type MeasurementStore struct {
	pool *Pool
}

// NewMeasurementStore creates a new MeasurementStore.
func NewMeasurementStore(pool *Pool) *MeasurementStore {
	return &MeasurementStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MeasurementStore = (*MeasurementStore)(nil)

const insertMeasurementQuery = `
	INSERT INTO measurements (
		image_id, star_id, x, y, status, magnitude, sky_sum, flux, sky_stddev, snr, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// Insert adds a new measurement. Returns ErrDuplicateKey if (image_id, star_id) exists.
func (s *MeasurementStore) Insert(ctx context.Context, m *domain.MeasurementRecord) error {
	_, err := s.pool.Exec(ctx, insertMeasurementQuery,
		m.ImageID,
		m.StarID,
		m.X,
		m.Y,
		string(m.Status),
		m.Magnitude,
		m.SkySum,
		m.Flux,
		m.SkyStdDev,
		m.SNR,
		m.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert measurement: %w", err)
	}
	return nil
}

// InsertBulk adds multiple measurements atomically. Fails entire batch on any duplicate.
func (s *MeasurementStore) InsertBulk(ctx context.Context, ms []*domain.MeasurementRecord) (err error) {
	if len(ms) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "insert_measurements_bulk", time.Since(start).Seconds(), err)
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, m := range ms {
		_, err := tx.Exec(ctx, insertMeasurementQuery,
			m.ImageID,
			m.StarID,
			m.X,
			m.Y,
			string(m.Status),
			m.Magnitude,
			m.SkySum,
			m.Flux,
			m.SkyStdDev,
			m.SNR,
			m.CreatedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert measurement in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByImageID retrieves all measurements taken on an image, ordered by star_id ASC.
func (s *MeasurementStore) GetByImageID(ctx context.Context, imageID string) ([]*domain.MeasurementRecord, error) {
	query := `
		SELECT image_id, star_id, x, y, status, magnitude, sky_sum, flux, sky_stddev, snr, created_at
		FROM measurements
		WHERE image_id = $1
		ORDER BY star_id ASC
	`

	rows, err := s.pool.Query(ctx, query, imageID)
	if err != nil {
		return nil, fmt.Errorf("get measurements by image: %w", err)
	}
	defer rows.Close()

	return scanMeasurements(rows)
}

// GetByStarID retrieves all measurements of a star across images.
func (s *MeasurementStore) GetByStarID(ctx context.Context, starID string) ([]*domain.MeasurementRecord, error) {
	query := `
		SELECT image_id, star_id, x, y, status, magnitude, sky_sum, flux, sky_stddev, snr, created_at
		FROM measurements
		WHERE star_id = $1
		ORDER BY image_id ASC
	`

	rows, err := s.pool.Query(ctx, query, starID)
	if err != nil {
		return nil, fmt.Errorf("get measurements by star: %w", err)
	}
	defer rows.Close()

	return scanMeasurements(rows)
}

// scanMeasurements scans multiple rows into a slice of MeasurementRecord.
func scanMeasurements(rows pgx.Rows) ([]*domain.MeasurementRecord, error) {
	var ms []*domain.MeasurementRecord

	for rows.Next() {
		var m domain.MeasurementRecord
		var status string

		err := rows.Scan(
			&m.ImageID,
			&m.StarID,
			&m.X,
			&m.Y,
			&status,
			&m.Magnitude,
			&m.SkySum,
			&m.Flux,
			&m.SkyStdDev,
			&m.SNR,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan measurement row: %w", err)
		}

		m.Status = domain.MagnitudeStatus(status)
		ms = append(ms, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurement rows: %w", err)
	}

	return ms, nil
}
