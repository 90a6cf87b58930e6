// Command simrun launches one simulation from a TOML settings bundle,
// streams its progress to the console, collects the result files and
// cleans up the staged inputs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beamlab/erdsim/internal/config"
	"github.com/beamlab/erdsim/internal/logging"
	"github.com/beamlab/erdsim/internal/mcerd"
	"github.com/beamlab/erdsim/internal/sim"
	"github.com/pelletier/go-toml/v2"
)

func main() {
	settingsPath := flag.String("settings", "", "Path to TOML settings bundle (required)")
	dest := flag.String("dest", "", "Directory to copy result files into (optional)")
	base := flag.String("base", "", "Base name for shared staged files (default: settings file stem)")
	quiet := flag.Bool("quiet", false, "Suppress progress echo")
	flag.Parse()

	if *settingsPath == "" {
		fmt.Fprintln(os.Stderr, "simrun: -settings is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*settingsPath, *dest, *base, *quiet); err != nil {
		fmt.Fprintf(os.Stderr, "simrun: %v\n", err)
		os.Exit(1)
	}
}

func run(settingsPath, dest, base string, quiet bool) error {
	raw, err := os.ReadFile(settingsPath)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	var settings sim.Settings
	if err := toml.Unmarshal(raw, &settings); err != nil {
		return fmt.Errorf("parse settings: %w", err)
	}
	if base == "" {
		name := filepath.Base(settingsPath)
		base = strings.TrimSuffix(name, filepath.Ext(name))
	}

	cfg := config.LoadOrDefault()
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: true,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	proc, err := mcerd.NewProcess(&settings, base, mcerd.Options{
		BinDir:       cfg.Sim.BinDir,
		PollInterval: cfg.Sim.PollInterval,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	records, err := proc.Run(context.Background())
	if err != nil {
		return err
	}

	var last mcerd.Record
	for rec := range records {
		last = rec
		if !quiet {
			fmt.Printf("[seed %d] presim=%t %d/%d (%d%%) %s\n",
				rec.Seed, rec.Presim, rec.Calculated, rec.Total, rec.Percentage, rec.Msg)
		}
	}

	proc.DeleteUnneededFiles()

	if dest != "" {
		if err := proc.CopyResults(dest); err != nil {
			return fmt.Errorf("collect: %w", err)
		}
		fmt.Printf("results copied to %s\n", dest)
	}

	if !mcerd.IsTerminal(last.Msg) {
		return fmt.Errorf("simulation ended without terminal marker (last message: %q)", last.Msg)
	}
	return nil
}
