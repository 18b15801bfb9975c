package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"photometry-lab/internal/domain"
	"photometry-lab/internal/observability"
	"photometry-lab/internal/storage"
)

// LightCurveStore implements storage.LightCurveStore using ClickHouse.
// The backing table is a ReplacingMergeTree keyed on (star_id,
// observed_at); re-inserting a point replaces it instead of failing.
type LightCurveStore struct {
	conn *Conn
}

// NewLightCurveStore creates a new LightCurveStore.
func NewLightCurveStore(conn *Conn) *LightCurveStore {
	return &LightCurveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.LightCurveStore = (*LightCurveStore)(nil)

// InsertBulk adds multiple points.
func (s *LightCurveStore) InsertBulk(ctx context.Context, points []*domain.LightCurvePoint) (err error) {
	if len(points) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_light_curve_bulk", time.Since(start).Seconds(), err)
	}()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO light_curve_points (
			star_id, observed_at, image_id, magnitude, snr
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if p.StarID == "" {
			return storage.ErrInvalidInput
		}
		err = batch.Append(p.StarID, p.ObservedAt, p.ImageID, p.Magnitude, p.SNR)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByStarID retrieves all points of a star, ordered by observed_at ASC.
func (s *LightCurveStore) GetByStarID(ctx context.Context, starID string) ([]*domain.LightCurvePoint, error) {
	query := `
		SELECT star_id, observed_at, image_id, magnitude, snr
		FROM light_curve_points FINAL
		WHERE star_id = ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, starID)
	if err != nil {
		return nil, fmt.Errorf("query by star id: %w", err)
	}
	defer rows.Close()

	return scanLightCurvePoints(rows)
}

// GetByTimeRange retrieves points of a star within [start, end] (inclusive).
func (s *LightCurveStore) GetByTimeRange(ctx context.Context, starID string, start, end int64) ([]*domain.LightCurvePoint, error) {
	query := `
		SELECT star_id, observed_at, image_id, magnitude, snr
		FROM light_curve_points FINAL
		WHERE star_id = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, starID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanLightCurvePoints(rows)
}

func scanLightCurvePoints(rows driver.Rows) ([]*domain.LightCurvePoint, error) {
	var points []*domain.LightCurvePoint

	for rows.Next() {
		var p domain.LightCurvePoint
		if err := rows.Scan(&p.StarID, &p.ObservedAt, &p.ImageID, &p.Magnitude, &p.SNR); err != nil {
			return nil, fmt.Errorf("scan light curve row: %w", err)
		}
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate light curve rows: %w", err)
	}

	return points, nil
}
