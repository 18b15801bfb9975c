// Package main provides the overscan stable-region search entry point.
// For each frame it shrinks the given section until the pixel statistics
// settle, printing the stable region and its statistics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"photometry-lab/internal/domain"
	"photometry-lab/internal/events"
	"photometry-lab/internal/iraf"
	"photometry-lab/internal/observability"
	"photometry-lab/internal/overscan"
)

func main() {
	section := flag.String("section", "", "Initial section to search, e.g. 1:40,1:2048")
	threshold := flag.Float64("threshold", 0.01, "Maximum fractional change of mean and stddev between iterations")
	step := flag.Int("step", 2, "Pixels trimmed from each section side per iteration")
	maxRelaxations := flag.Int("max-relaxations", overscan.DefaultMaxRelaxations, "Threshold doublings before giving up")
	flag.Parse()

	logger := log.New(os.Stdout, "[overscan] ", log.LstdFlags)

	if *section == "" {
		logger.Fatal("--section is required")
	}
	if flag.NArg() == 0 {
		logger.Fatal("No images given")
	}

	region, err := parseSection(*section)
	if err != nil {
		logger.Fatalf("Bad section %q: %v", *section, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	tools := iraf.NewExecToolchain(iraf.Options{})
	stabilizer := overscan.NewStabilizer(tools, overscan.Options{
		MaxRelaxations: *maxRelaxations,
		Reporter:       events.NewLogReporter(logger),
	})

	failed := false
	for _, image := range flag.Args() {
		stable, err := stabilizer.Stabilize(ctx, image, region, *threshold, *step)
		if err != nil {
			if errors.Is(err, overscan.ErrNoStableRegion) {
				fmt.Fprintf(os.Stderr, "%s: no stable region within %s\n", image, region)
				failed = true
				continue
			}
			logger.Fatalf("Stabilize %s: %v", image, err)
		}

		observability.RecordOverscan(stable.Relaxations)
		fmt.Printf("%s: %s mean=%.4f stddev=%.4f npix=%d",
			image, stable.Region, stable.Stats.Mean, stable.Stats.StdDev, stable.Stats.NPix)
		if stable.Relaxations > 0 {
			fmt.Printf(" (threshold relaxed to %g)", stable.Threshold)
		}
		fmt.Println()
	}

	if failed {
		os.Exit(1)
	}
}

// parseSection parses "x1:x2,y1:y2", with or without surrounding brackets.
func parseSection(s string) (domain.Region, error) {
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	axes := strings.Split(s, ",")
	if len(axes) != 2 {
		return domain.Region{}, fmt.Errorf("expected two axes, got %d", len(axes))
	}

	var bounds [4]int
	for i, axis := range axes {
		parts := strings.Split(strings.TrimSpace(axis), ":")
		if len(parts) != 2 {
			return domain.Region{}, fmt.Errorf("axis %q is not of the form lo:hi", axis)
		}
		for j, part := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return domain.Region{}, fmt.Errorf("axis %q: %w", axis, err)
			}
			bounds[2*i+j] = v
		}
	}

	region := domain.Region{X1: bounds[0], X2: bounds[1], Y1: bounds[2], Y2: bounds[3]}
	if region.Inverted() {
		return domain.Region{}, fmt.Errorf("section %s is inverted", region)
	}
	return region, nil
}
