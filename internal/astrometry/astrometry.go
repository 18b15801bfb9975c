// Package astrometry aligns images onto a common coordinate grid by
// chaining the external tools: catalog extraction, astrometric solving
// and resampling. The tools are opaque; the package only owns the
// plumbing and the temporary files between them.
package astrometry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
)

var (
	// ErrSolveFailed indicates the astrometric solver could not produce
	// a solution for the image.
	ErrSolveFailed = errors.New("astrometric solution failed")

	// ErrResampleFailed indicates the resampler could not warp the image.
	ErrResampleFailed = errors.New("image resampling failed")
)

// Solver produces a WCS header solution for an image. The cleanup
// function removes the solution and any intermediate files; callers
// must invoke it once the solution is no longer needed.
type Solver interface {
	Solve(ctx context.Context, image string) (head string, cleanup func() error, err error)
}

// Resampler warps an image onto the reference grid described by a
// solution header, returning the path of the resampled image.
type Resampler interface {
	Resample(ctx context.Context, image, head string) (string, error)
}

// Aligner runs the full solve-then-resample chain for one image.
type Aligner struct {
	solver    Solver
	resampler Resampler
	logger    *log.Logger
}

// NewAligner creates an aligner. A nil logger falls back to stderr.
func NewAligner(solver Solver, resampler Resampler, logger *log.Logger) *Aligner {
	if logger == nil {
		logger = log.New(os.Stderr, "[astrometry] ", log.LstdFlags)
	}
	return &Aligner{solver: solver, resampler: resampler, logger: logger}
}

// Align solves and resamples image, returning the path of the aligned
// copy. The solution header is removed before Align returns, on every
// path.
func (a *Aligner) Align(ctx context.Context, image string) (string, error) {
	head, cleanup, err := a.solver.Solve(ctx, image)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrSolveFailed, image, err)
	}
	defer cleanup()

	out, err := a.resampler.Resample(ctx, image, head)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrResampleFailed, image, err)
	}
	a.logger.Printf("aligned %s -> %s", image, out)
	return out, nil
}

// ExecOptions configures the external solver and resampler binaries.
type ExecOptions struct {
	ExtractorBin string // source catalog extractor
	SolverBin    string // astrometric solver
	ResamplerBin string // image resampler
}

// ExecSolver runs the extractor and solver as external processes.
type ExecSolver struct {
	opts ExecOptions
}

// NewExecSolver creates a solver with defaults for unset binaries.
func NewExecSolver(opts ExecOptions) *ExecSolver {
	if opts.ExtractorBin == "" {
		opts.ExtractorBin = "sex"
	}
	if opts.SolverBin == "" {
		opts.SolverBin = "scamp"
	}
	return &ExecSolver{opts: opts}
}

var _ Solver = (*ExecSolver)(nil)

// Solve extracts a source catalog from the image and solves it. The
// solver writes its solution next to the catalog with a .head suffix.
func (s *ExecSolver) Solve(ctx context.Context, image string) (string, func() error, error) {
	catFile, err := os.CreateTemp("", "catalog-*.ldac")
	if err != nil {
		return "", nil, fmt.Errorf("creating catalog file: %w", err)
	}
	catFile.Close()
	catalog := catFile.Name()

	if err := runTool(ctx, s.opts.ExtractorBin, "-CATALOG_NAME", catalog, image); err != nil {
		os.Remove(catalog)
		return "", nil, err
	}
	if err := runTool(ctx, s.opts.SolverBin, catalog); err != nil {
		os.Remove(catalog)
		return "", nil, err
	}

	head := strings.TrimSuffix(catalog, ".ldac") + ".head"
	cleanup := func() error {
		errCat := os.Remove(catalog)
		errHead := os.Remove(head)
		if errCat != nil {
			return errCat
		}
		return errHead
	}
	return head, cleanup, nil
}

// ExecResampler runs the resampler as an external process.
type ExecResampler struct {
	opts ExecOptions
}

// NewExecResampler creates a resampler with a default binary.
func NewExecResampler(opts ExecOptions) *ExecResampler {
	if opts.ResamplerBin == "" {
		opts.ResamplerBin = "swarp"
	}
	return &ExecResampler{opts: opts}
}

var _ Resampler = (*ExecResampler)(nil)

// Resample warps the image using the solution header and returns the
// path of the output image.
func (r *ExecResampler) Resample(ctx context.Context, image, head string) (string, error) {
	outFile, err := os.CreateTemp("", "resampled-*.fits")
	if err != nil {
		return "", fmt.Errorf("creating output file: %w", err)
	}
	outFile.Close()
	out := outFile.Name()

	if err := runTool(ctx, r.opts.ResamplerBin, "-HEADER_NAME", head, "-IMAGEOUT_NAME", out, image); err != nil {
		os.Remove(out)
		return "", err
	}
	return out, nil
}

func runTool(ctx context.Context, bin string, args ...string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %s", bin, msg)
		}
		return fmt.Errorf("%s: %w", bin, err)
	}
	return nil
}
