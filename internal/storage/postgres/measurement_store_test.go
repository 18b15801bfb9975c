package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photometry-lab/internal/domain"
	"photometry-lab/internal/storage"
)

func testMeasurement(imageID, starID string) *domain.MeasurementRecord {
	return &domain.MeasurementRecord{
		ImageID:   imageID,
		StarID:    starID,
		X:         184.312,
		Y:         207.056,
		Status:    domain.MagnitudeOK,
		Magnitude: ptr(14.217),
		SkySum:    1000,
		Flux:      500,
		SkyStdDev: ptr(2.5),
		SNR:       15.8,
		CreatedAt: 1700000000,
	}
}

func TestMeasurementStore_InsertAndGetByImage(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMeasurementStore(pool)
	ctx := context.Background()

	m := testMeasurement("img-1", "star-a")
	require.NoError(t, store.Insert(ctx, m))

	retrieved, err := store.GetByImageID(ctx, "img-1")
	require.NoError(t, err)
	require.Len(t, retrieved, 1)

	got := retrieved[0]
	assert.Equal(t, m.StarID, got.StarID)
	assert.Equal(t, m.X, got.X)
	assert.Equal(t, m.Y, got.Y)
	assert.Equal(t, domain.MagnitudeOK, got.Status)
	require.NotNil(t, got.Magnitude)
	assert.Equal(t, 14.217, *got.Magnitude)
	require.NotNil(t, got.SkyStdDev)
	assert.Equal(t, 2.5, *got.SkyStdDev)
	assert.Equal(t, 15.8, got.SNR)
}

func TestMeasurementStore_NullableFields(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMeasurementStore(pool)
	ctx := context.Background()

	// An undefined measurement has neither magnitude nor sky stddev.
	m := testMeasurement("img-1", "star-undef")
	m.Status = domain.MagnitudeUndefined
	m.Magnitude = nil
	m.SkyStdDev = nil
	require.NoError(t, store.Insert(ctx, m))

	retrieved, err := store.GetByStarID(ctx, "star-undef")
	require.NoError(t, err)
	require.Len(t, retrieved, 1)
	assert.Equal(t, domain.MagnitudeUndefined, retrieved[0].Status)
	assert.Nil(t, retrieved[0].Magnitude)
	assert.Nil(t, retrieved[0].SkyStdDev)
}

func TestMeasurementStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMeasurementStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testMeasurement("img-1", "star-a")))
	err := store.Insert(ctx, testMeasurement("img-1", "star-a"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestMeasurementStore_InsertBulkAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMeasurementStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testMeasurement("img-1", "star-b")))

	err := store.InsertBulk(ctx, []*domain.MeasurementRecord{
		testMeasurement("img-1", "star-a"),
		testMeasurement("img-1", "star-b"), // duplicate, must roll back the batch
	})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	retrieved, err := store.GetByImageID(ctx, "img-1")
	require.NoError(t, err)
	assert.Len(t, retrieved, 1)
}

func TestMeasurementStore_GetByImageOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMeasurementStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.MeasurementRecord{
		testMeasurement("img-1", "star-c"),
		testMeasurement("img-1", "star-a"),
		testMeasurement("img-2", "star-a"),
	}))

	retrieved, err := store.GetByImageID(ctx, "img-1")
	require.NoError(t, err)
	require.Len(t, retrieved, 2)
	assert.Equal(t, "star-a", retrieved[0].StarID)
	assert.Equal(t, "star-c", retrieved[1].StarID)
}
