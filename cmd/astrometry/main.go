// Package main provides the astrometric alignment entry point.
// Each frame is solved against the sky and resampled onto the common
// grid; the path of every aligned copy is printed to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"photometry-lab/internal/astrometry"
)

func main() {
	extractorBin := flag.String("extractor", "", "Source catalog extractor binary (default sex)")
	solverBin := flag.String("solver", "", "Astrometric solver binary (default scamp)")
	resamplerBin := flag.String("resampler", "", "Image resampler binary (default swarp)")
	flag.Parse()

	logger := log.New(os.Stdout, "[astrometry] ", log.LstdFlags)

	if flag.NArg() == 0 {
		logger.Fatal("No images given")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	opts := astrometry.ExecOptions{
		ExtractorBin: *extractorBin,
		SolverBin:    *solverBin,
		ResamplerBin: *resamplerBin,
	}
	aligner := astrometry.NewAligner(
		astrometry.NewExecSolver(opts),
		astrometry.NewExecResampler(opts),
		logger,
	)

	failed := false
	for _, image := range flag.Args() {
		out, err := aligner.Align(ctx, image)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", image, err)
			failed = true
			continue
		}
		fmt.Println(out)
	}

	if failed {
		os.Exit(1)
	}
}
