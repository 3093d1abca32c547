// Package main implements gencerts, a one-shot batch generator that renders
// a certificate for every roster record and exits. It shares the data
// directory layout and configuration of the certforged daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/certforge/certforge/internal/certify"
	"github.com/certforge/certforge/internal/config"
	"github.com/certforge/certforge/internal/logger"
	"github.com/certforge/certforge/internal/paths"
	"github.com/certforge/certforge/internal/roster"
)

func main() {
	dataDirFlag := flag.String("data-dir", "", "Data directory for config, roster, templates, and output")
	profile := flag.String("profile", "", "Profile to generate with (default: base config)")
	force := flag.Bool("force", false, "Rerender certificates that already exist")
	quiet := flag.Bool("quiet", false, "Suppress per-certificate log output")
	flag.Parse()

	if err := run(*dataDirFlag, *profile, *force, *quiet); err != nil {
		fmt.Fprintf(os.Stderr, "gencerts: %v\n", err)
		os.Exit(1)
	}
}

func run(dataDirFlag, profile string, force, quiet bool) error {
	dataDir, err := paths.DataDir(dataDirFlag)
	if err != nil {
		return err
	}
	cfg, err := config.Load(dataDir)
	if err != nil {
		return err
	}

	var log *slog.Logger
	if quiet {
		log = slog.New(slog.DiscardHandler)
	} else {
		log = slog.New(logger.NewHandler(os.Stderr, logger.ParseLevel(cfg.Log.Level)))
	}

	source, closer, err := openRoster(cfg, dataDir)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	gen, err := certify.New(cfg, dataDir, source, log)
	if err != nil {
		return err
	}

	start := time.Now()
	sum, err := gen.GenerateAll(context.Background(), profile, force)
	if err != nil {
		return err
	}

	fmt.Printf("profile %s: %d generated, %d skipped, %d failed in %s\n",
		sum.Profile, sum.Generated, sum.Skipped, sum.Failed,
		time.Since(start).Round(time.Millisecond))
	for _, f := range sum.Failures {
		fmt.Printf("  %s: %s\n", f.ID, f.Error)
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d certificates failed", sum.Failed)
	}
	return nil
}

// openRoster opens the configured record source without file watching; a
// one-shot run reads the roster exactly once.
func openRoster(cfg *config.Config, dataDir string) (roster.Store, io.Closer, error) {
	switch cfg.Roster.Source {
	case "sqlite":
		store, err := roster.OpenSQLite(paths.Resolve(dataDir, cfg.Roster.Path))
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case "remote":
		ttl := time.Duration(cfg.Roster.CacheTTLMinutes) * time.Minute
		cachePath := filepath.Join(dataDir, paths.RosterCacheFile)
		return roster.NewRemoteStore(cfg.Roster.URL, cachePath, ttl), nil, nil
	default:
		return roster.NewCSVStore(paths.Resolve(dataDir, cfg.Roster.Path)), nil, nil
	}
}
