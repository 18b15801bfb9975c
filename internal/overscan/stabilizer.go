// Package overscan finds the stable part of a detector overscan strip.
//
// A candidate rectangle is shrunk symmetrically until its pixel
// statistics stop changing between iterations. When the rectangle runs
// out before converging, the search restarts from the original
// rectangle with the convergence threshold doubled, up to a configured
// number of relaxations.
package overscan

import (
	"context"
	"fmt"
	"math"

	"photometry-lab/internal/domain"
	"photometry-lab/internal/events"
	"photometry-lab/internal/iraf"
)

// DefaultMaxRelaxations bounds the threshold doubling. Sixteen doublings
// multiply the threshold by 65536; statistics that have not converged by
// then never will.
const DefaultMaxRelaxations = 16

// Options configures a Stabilizer.
type Options struct {
	// MaxRelaxations is how many times the threshold may be doubled
	// before giving up. Zero means DefaultMaxRelaxations.
	MaxRelaxations int
	// Reporter receives a warning each time the threshold is relaxed.
	Reporter events.Reporter
}

// Stabilizer shrinks overscan rectangles to statistical stability.
type Stabilizer struct {
	stats iraf.RegionStats
	opts  Options
}

// NewStabilizer creates a stabilizer over the given statistics tool.
func NewStabilizer(stats iraf.RegionStats, opts Options) *Stabilizer {
	if opts.MaxRelaxations <= 0 {
		opts.MaxRelaxations = DefaultMaxRelaxations
	}
	if opts.Reporter == nil {
		opts.Reporter = events.NopReporter{}
	}
	return &Stabilizer{stats: stats, opts: opts}
}

// Stabilize shrinks region by step pixels on each side per iteration
// until the fractional change of both the mean and the standard
// deviation between consecutive iterations falls within threshold. At
// least one shrink is always performed before the first convergence
// test. Exhausting the rectangle doubles the threshold and restarts
// from the original region; a region that is inverted from the start
// relaxes before a single shrink. Returns ErrNoStableRegion once the
// relaxation bound is exceeded.
func (s *Stabilizer) Stabilize(ctx context.Context, image string, region domain.Region, threshold float64, step int) (*domain.StableRegion, error) {
	if threshold <= 0 || step <= 0 {
		return nil, fmt.Errorf("%w: threshold=%g step=%d", ErrInvalidParams, threshold, step)
	}

	th := threshold
	for relax := 0; ; relax++ {
		stable, err := s.attempt(ctx, image, region, th, step)
		if err != nil {
			return nil, err
		}
		if stable != nil {
			stable.Threshold = th
			stable.Relaxations = relax
			return stable, nil
		}
		if relax == s.opts.MaxRelaxations {
			break
		}

		s.opts.Reporter.Report(events.Event{
			Level:   events.LevelWarning,
			Stage:   "overscan",
			Image:   image,
			Message: fmt.Sprintf("region %s exhausted, doubling threshold to %g", region.String(), th*2),
		})
		th *= 2
	}
	return nil, fmt.Errorf("%w: %s after %d relaxations", ErrNoStableRegion, region.String(), s.opts.MaxRelaxations)
}

// attempt runs one full shrink pass at a fixed threshold. A nil result
// with a nil error means the rectangle was exhausted.
func (s *Stabilizer) attempt(ctx context.Context, image string, region domain.Region, threshold float64, step int) (*domain.StableRegion, error) {
	if region.Inverted() {
		return nil, nil
	}

	prev, err := s.stats.Stats(ctx, image, region)
	if err != nil {
		return nil, fmt.Errorf("statistics for %s%s: %w", image, region.String(), err)
	}

	current := region
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current = current.Shrink(step)
		if current.Inverted() {
			return nil, nil
		}

		stats, err := s.stats.Stats(ctx, image, current)
		if err != nil {
			return nil, fmt.Errorf("statistics for %s%s: %w", image, current.String(), err)
		}

		if fracChange(prev.Mean, stats.Mean) <= threshold && fracChange(prev.StdDev, stats.StdDev) <= threshold {
			return &domain.StableRegion{Region: current, Stats: stats}, nil
		}
		prev = stats
	}
}

// fracChange is |new-old| / |old|, with the 0/0 case counting as stable.
func fracChange(old, new float64) float64 {
	if old == new {
		return 0
	}
	if old == 0 {
		return math.Inf(1)
	}
	return math.Abs(new-old) / math.Abs(old)
}
