package iraf

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"photometry-lab/internal/domain"
	"photometry-lab/internal/observability"
)

// Options configures an ExecToolchain.
type Options struct {
	QphotBin    string // aperture photometry binary
	StarfindBin string // source detection binary
	ImexprBin   string // pixel expression binary
	ImstatBin   string // image statistics binary
	Logger      *log.Logger
}

// ExecToolchain runs the pixel-level tools as external processes.
// Implements the Toolchain interface.
type ExecToolchain struct {
	opts Options
}

// NewExecToolchain creates a toolchain with the given options,
// applying defaults for unset fields.
func NewExecToolchain(opts Options) *ExecToolchain {
	if opts.QphotBin == "" {
		opts.QphotBin = "qphot"
	}
	if opts.StarfindBin == "" {
		opts.StarfindBin = "starfind"
	}
	if opts.ImexprBin == "" {
		opts.ImexprBin = "imexpr"
	}
	if opts.ImstatBin == "" {
		opts.ImstatBin = "imstat"
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[iraf] ", log.LstdFlags)
	}
	return &ExecToolchain{opts: opts}
}

var _ Toolchain = (*ExecToolchain)(nil)

// Measure writes the coordinates to a temporary list file and runs the
// photometry binary once for the whole batch.
func (t *ExecToolchain) Measure(ctx context.Context, image string, coords []domain.Coordinate, params domain.ApertureParams) ([]string, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	listFile, err := os.CreateTemp("", "coords-*.txt")
	if err != nil {
		return nil, fmt.Errorf("creating coordinates file: %w", err)
	}
	defer os.Remove(listFile.Name())

	for _, c := range coords {
		if _, err := fmt.Fprintf(listFile, "%.3f\t%.3f\n", c.X, c.Y); err != nil {
			listFile.Close()
			return nil, fmt.Errorf("writing coordinates file: %w", err)
		}
	}
	if err := listFile.Close(); err != nil {
		return nil, fmt.Errorf("closing coordinates file: %w", err)
	}

	args := []string{
		"--coords", listFile.Name(),
		"--cbox", "0", // no centering, measure exactly where told
		"--annulus", formatFloat(params.Annulus),
		"--dannulus", formatFloat(params.Dannulus),
		"--aperture", formatFloat(params.Aperture),
		"--exptimek", params.ExpTimeK,
		image,
	}

	out, err := t.run(ctx, t.opts.QphotBin, args...)
	if err != nil {
		return nil, err
	}
	return recordLines(out), nil
}

// Detect runs the source detection binary and parses one "x y" pair per line.
func (t *ExecToolchain) Detect(ctx context.Context, image string, margin int) ([]domain.Coordinate, error) {
	out, err := t.run(ctx, t.opts.StarfindBin, "--margin", strconv.Itoa(margin), image)
	if err != nil {
		return nil, err
	}

	var coords []domain.Coordinate
	for _, line := range recordLines(out) {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: detection record %q", ErrMalformedOutput, line)
		}
		x, errX := strconv.ParseFloat(fields[0], 64)
		y, errY := strconv.ParseFloat(fields[1], 64)
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("%w: detection record %q", ErrMalformedOutput, line)
		}
		coords = append(coords, domain.Coordinate{X: x, Y: y})
	}
	return coords, nil
}

// Threshold evaluates "a > level ? 1 : 0" over the image into a
// temporary FITS file and returns its path.
func (t *ExecToolchain) Threshold(ctx context.Context, image string, level float64) (string, func() error, error) {
	maskFile, err := os.CreateTemp("", "mask-*.fits")
	if err != nil {
		return "", nil, fmt.Errorf("creating mask file: %w", err)
	}
	mask := maskFile.Name()
	maskFile.Close()

	expr := fmt.Sprintf("a > %s ? 1 : 0", formatFloat(level))
	if _, err := t.run(ctx, t.opts.ImexprBin, "--overwrite", expr, mask, image); err != nil {
		os.Remove(mask)
		return "", nil, err
	}
	return mask, func() error { return os.Remove(mask) }, nil
}

// Stats runs the statistics binary over an image section. The output is
// a single record of five fields: mean, stddev, npix, min, max.
func (t *ExecToolchain) Stats(ctx context.Context, image string, region domain.Region) (domain.RegionStats, error) {
	out, err := t.run(ctx, t.opts.ImstatBin, image+region.String())
	if err != nil {
		return domain.RegionStats{}, err
	}

	lines := recordLines(out)
	if len(lines) != 1 {
		return domain.RegionStats{}, fmt.Errorf("%w: expected one statistics record, got %d", ErrMalformedOutput, len(lines))
	}
	fields := strings.Fields(lines[0])
	if len(fields) != 5 {
		return domain.RegionStats{}, fmt.Errorf("%w: statistics record %q", ErrMalformedOutput, lines[0])
	}

	var stats domain.RegionStats
	var parseErr error
	parse := func(s string) float64 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil && parseErr == nil {
			parseErr = err
		}
		return v
	}
	stats.Mean = parse(fields[0])
	stats.StdDev = parse(fields[1])
	npix, err := strconv.Atoi(fields[2])
	if err != nil {
		return domain.RegionStats{}, fmt.Errorf("%w: statistics record %q", ErrMalformedOutput, lines[0])
	}
	stats.NPix = npix
	stats.Min = parse(fields[3])
	stats.Max = parse(fields[4])
	if parseErr != nil {
		return domain.RegionStats{}, fmt.Errorf("%w: statistics record %q", ErrMalformedOutput, lines[0])
	}
	return stats, nil
}

func (t *ExecToolchain) run(ctx context.Context, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	start := time.Now()
	out, err := cmd.Output()
	observability.RecordToolRun(filepath.Base(bin), time.Since(start).Seconds(), err)
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s: %s", ErrToolFailed, bin, msg)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrToolFailed, bin, err)
	}
	return string(out), nil
}

// recordLines drops blank lines and '#' comments from tool output.
func recordLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
