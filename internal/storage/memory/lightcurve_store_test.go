package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photometry-lab/internal/domain"
	"photometry-lab/internal/storage"
)

func TestLightCurveStore_ReplacesDuplicates(t *testing.T) {
	s := NewLightCurveStore()
	ctx := context.Background()

	mag1, mag2 := 14.2, 14.4
	require.NoError(t, s.InsertBulk(ctx, []*domain.LightCurvePoint{
		{StarID: "starA", ObservedAt: 2000, ImageID: "img2", Magnitude: &mag2, SNR: 12},
		{StarID: "starA", ObservedAt: 1000, ImageID: "img1", Magnitude: &mag1, SNR: 15},
	}))
	// Same (star, time) point again: replaces, does not duplicate.
	require.NoError(t, s.InsertBulk(ctx, []*domain.LightCurvePoint{
		{StarID: "starA", ObservedAt: 1000, ImageID: "img1", Magnitude: &mag1, SNR: 16},
	}))

	got, err := s.GetByStarID(ctx, "starA")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[0].ObservedAt)
	assert.Equal(t, 16.0, got[0].SNR)

	ranged, err := s.GetByTimeRange(ctx, "starA", 1500, 2500)
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "img2", ranged[0].ImageID)
}

func TestLightCurveStore_GetByStarIDFiltersAndOrders(t *testing.T) {
	s := NewLightCurveStore()
	ctx := context.Background()

	mag := 13.9
	require.NoError(t, s.InsertBulk(ctx, []*domain.LightCurvePoint{
		{StarID: "starA", ObservedAt: 3000, ImageID: "img3", Magnitude: &mag, SNR: 9},
		{StarID: "starB", ObservedAt: 1000, ImageID: "img1", Magnitude: &mag, SNR: 11},
		{StarID: "starA", ObservedAt: 1000, ImageID: "img1", Magnitude: nil, SNR: -2.5},
	}))

	got, err := s.GetByStarID(ctx, "starA")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[0].ObservedAt)
	assert.Nil(t, got[0].Magnitude)
	assert.Equal(t, int64(3000), got[1].ObservedAt)

	none, err := s.GetByStarID(ctx, "starC")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLightCurveStore_InvalidInput(t *testing.T) {
	s := NewLightCurveStore()
	ctx := context.Background()

	err := s.InsertBulk(ctx, []*domain.LightCurvePoint{nil})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = s.InsertBulk(ctx, []*domain.LightCurvePoint{{ObservedAt: 1000}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	// A rejected batch stores nothing.
	got, err := s.GetByStarID(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLightCurveStore_ReturnsCopies(t *testing.T) {
	s := NewLightCurveStore()
	ctx := context.Background()

	mag := 15.5
	p := &domain.LightCurvePoint{StarID: "starA", ObservedAt: 1000, ImageID: "img1", Magnitude: &mag, SNR: 7}
	require.NoError(t, s.InsertBulk(ctx, []*domain.LightCurvePoint{p}))
	p.SNR = 99

	got, err := s.GetByStarID(ctx, "starA")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 7.0, got[0].SNR)

	got[0].SNR = 42
	again, err := s.GetByStarID(ctx, "starA")
	require.NoError(t, err)
	assert.Equal(t, 7.0, again[0].SNR)
}
