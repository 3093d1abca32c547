// Package main implements the certforged daemon, which serves certificate
// verification and generation over HTTP from a single data directory.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	rootpkg "github.com/certforge/certforge"
	"github.com/certforge/certforge/internal/certify"
	"github.com/certforge/certforge/internal/config"
	"github.com/certforge/certforge/internal/logger"
	"github.com/certforge/certforge/internal/paths"
	"github.com/certforge/certforge/internal/roster"
	"github.com/certforge/certforge/internal/server"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//
//	-X main.version=0.1.0
//
// When ldflags are not set (bare go build), resolveVersion reads the VCS info
// that Go embeds automatically, so dev builds get a useful version string
// without needing git at runtime.
var version = "dev"

// resolveVersion returns the build version string. If [version] was set via
// ldflags at build time it is returned as-is; otherwise VCS revision and dirty
// state embedded by the Go toolchain are used to construct a "dev+<hash>" tag.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken generates a random 16-character hex token used to prove ownership
// of the PID file, so [removePID] only deletes the file if this instance wrote it.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID creates or opens the PID file in the data directory, acquires an
// advisory file lock, and writes "PID:TOKEN" content. The returned file handle
// must be kept open for the lifetime of the daemon to hold the lock; pass it
// to [removePID] on shutdown.
func writePID(pidPath, token string) (*os.File, error) {
	f, err := os.OpenFile(pidPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	content := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if _, err := f.WriteString(content); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// removePID releases the advisory lock, closes the file handle, and removes the
// PID file only if the stored token matches, preventing accidental removal of a
// file owned by a different daemon instance.
func removePID(pidPath, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return
	}
	parts := strings.SplitN(string(data), ":", 2)
	if len(parts) == 2 && parts[1] == token {
		os.Remove(pidPath)
	}
}

// checkStalePID checks whether another daemon instance is running. It attempts
// to acquire the advisory lock on the PID file; if the lock fails, another
// instance holds it. If the lock succeeds, any previous instance is dead and
// the stale file is cleaned up.
func checkStalePID(pidPath string) (alive bool, pid int) {
	f, err := os.OpenFile(pidPath, os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(pidPath)
		f.Close()
		parts := strings.SplitN(string(data), ":", 2)
		if len(parts) >= 1 {
			if p, convErr := strconv.Atoi(parts[0]); convErr == nil {
				return true, p
			}
		}
		return true, 0
	}

	// Lock acquired -- previous instance is dead. Clean up stale file.
	_ = unlockFile(f)
	f.Close()
	os.Remove(pidPath)
	return false, 0
}

// ///////////////////////////////////////////////
// Roster Construction
// ///////////////////////////////////////////////

// buildRoster constructs the configured record source. For CSV sources with
// watching enabled a file watcher invalidates the in-memory cache on change.
// The returned closers must be closed on shutdown, in order.
func buildRoster(cfg *config.Config, dataDir string) (roster.Store, []io.Closer, error) {
	var closers []io.Closer

	switch cfg.Roster.Source {
	case "sqlite":
		store, err := roster.OpenSQLite(paths.Resolve(dataDir, cfg.Roster.Path))
		if err != nil {
			return nil, nil, err
		}
		return store, []io.Closer{store}, nil

	case "remote":
		ttl := time.Duration(cfg.Roster.CacheTTLMinutes) * time.Minute
		cachePath := filepath.Join(dataDir, paths.RosterCacheFile)
		return roster.NewRemoteStore(cfg.Roster.URL, cachePath, ttl), nil, nil

	default: // csv
		path := paths.Resolve(dataDir, cfg.Roster.Path)
		store := roster.NewCSVStore(path)
		if !cfg.Roster.Watch {
			return store, nil, nil
		}
		watcher, err := roster.NewWatcher(path)
		if err != nil {
			return nil, nil, fmt.Errorf("watch roster: %w", err)
		}
		if watcher.Polling() {
			slog.Info("using polling mode for roster watching")
		}
		go func() {
			for range watcher.Events() {
				slog.Info("roster changed, reloading", "path", path)
				store.Invalidate()
			}
		}()
		closers = append(closers, watcher)
		return store, closers, nil
	}
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	dataDirFlag := flag.String("data-dir", "", "Data directory for config, roster, templates, and output")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(resolveVersion())
		return
	}

	dataDir, err := paths.DataDir(*dataDirFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	pidPath := filepath.Join(dataDir, paths.PIDFile)

	if alive, pid := checkStalePID(pidPath); alive {
		fmt.Fprintf(os.Stderr, "daemon already running (pid %d)\n", pid)
		os.Exit(1)
	}

	configPath := filepath.Join(dataDir, paths.ConfigFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if writeErr := os.WriteFile(configPath, rootpkg.DefaultConfigTOML, 0o644); writeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", writeErr)
		}
	}

	cfg, err := config.Load(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		os.Exit(1)
	}

	logLevel := logger.ParseLevel(cfg.Log.Level)
	log, logCloser := logger.New(filepath.Join(dataDir, paths.LogFile), logLevel, cfg.Log.MaxSizeMB)
	defer logCloser.Close()
	slog.SetDefault(log)

	ver := resolveVersion()
	slog.Info("certforged starting", "version", ver, "data_dir", dataDir)

	token := pidToken()
	pidFile, err := writePID(pidPath, token)
	if err != nil {
		slog.Error("failed to write PID file", "error", err)
		os.Exit(1)
	}
	defer removePID(pidPath, token, pidFile)

	source, closers, err := buildRoster(cfg, dataDir)
	if err != nil {
		slog.Error("failed to open roster source", "error", err)
		os.Exit(1)
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	gen, err := certify.New(cfg, dataDir, source, log)
	if err != nil {
		slog.Error("failed to initialize generator", "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg, gen, source, dataDir, log)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Server.Listen)
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := signalChannel()
	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Warn("shutdown did not finish cleanly", "error", err)
	}
	slog.Info("certforged stopped")
}
