package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/certforge/certforge/internal/config"
)

// ///////////////////////////////////////////////
// PID Management Tests
// ///////////////////////////////////////////////

func TestPidTokenFormat(t *testing.T) {
	tok := pidToken()
	if len(tok) != 16 {
		t.Errorf("token length = %d, want 16", len(tok))
	}
	if tok == pidToken() {
		t.Error("two tokens should not collide")
	}
}

func TestWriteAndRemovePID(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "certforged.pid")
	token := pidToken()

	f, err := writePID(pidPath, token)
	if err != nil {
		t.Fatalf("writePID: %v", err)
	}

	data, err := os.ReadFile(pidPath)
	if err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if string(data) != want {
		t.Errorf("PID file content = %q, want %q", data, want)
	}

	removePID(pidPath, token, f)
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Error("PID file not removed")
	}
}

func TestRemovePIDKeepsForeignFile(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "certforged.pid")
	if err := os.WriteFile(pidPath, []byte("12345:othertoken"), 0o600); err != nil {
		t.Fatal(err)
	}

	removePID(pidPath, pidToken(), nil)
	if _, err := os.Stat(pidPath); err != nil {
		t.Error("PID file owned by another instance was removed")
	}
}

func TestCheckStalePIDCleansUp(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "certforged.pid")
	// A file nobody holds a lock on is stale.
	if err := os.WriteFile(pidPath, []byte("99999:deadtoken"), 0o600); err != nil {
		t.Fatal(err)
	}

	alive, _ := checkStalePID(pidPath)
	if alive {
		t.Error("stale PID reported as alive")
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Error("stale PID file not cleaned up")
	}
}

func TestCheckStalePIDDetectsRunningInstance(t *testing.T) {
	pidPath := filepath.Join(t.TempDir(), "certforged.pid")
	token := pidToken()
	f, err := writePID(pidPath, token)
	if err != nil {
		t.Fatal(err)
	}
	defer removePID(pidPath, token, f)

	// flock locks are per file handle on some platforms, so re-locking from
	// the same process can succeed; only assert the reported PID when the
	// lock conflict is visible.
	if alive, pid := checkStalePID(pidPath); alive && pid != os.Getpid() {
		t.Errorf("reported pid = %d, want %d", pid, os.Getpid())
	}
}

// ///////////////////////////////////////////////
// Roster Construction Tests
// ///////////////////////////////////////////////

func TestBuildRosterCSV(t *testing.T) {
	dir := t.TempDir()
	csv := "name,id\nAlex Johnson,R001\n"
	if err := os.WriteFile(filepath.Join(dir, "roster.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Roster.Watch = false

	store, closers, err := buildRoster(cfg, dir)
	if err != nil {
		t.Fatalf("buildRoster: %v", err)
	}
	if len(closers) != 0 {
		t.Errorf("unwatched CSV store should need no closers, got %d", len(closers))
	}

	rec, err := store.Lookup(context.Background(), "alex johnson", "r001")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec.Name != "Alex Johnson" {
		t.Errorf("Name = %q", rec.Name)
	}
}

func TestBuildRosterSQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Roster.Source = "sqlite"
	cfg.Roster.Path = "roster.db"

	store, closers, err := buildRoster(cfg, dir)
	if err != nil {
		t.Fatalf("buildRoster: %v", err)
	}
	if len(closers) != 1 {
		t.Fatalf("sqlite store should return one closer, got %d", len(closers))
	}
	defer closers[0].Close()

	if _, err := store.All(context.Background()); err != nil {
		t.Errorf("All on empty database: %v", err)
	}
}

// ///////////////////////////////////////////////
// Version Tests
// ///////////////////////////////////////////////

func TestResolveVersionLdflags(t *testing.T) {
	old := version
	defer func() { version = old }()

	version = "1.2.3"
	if got := resolveVersion(); got != "1.2.3" {
		t.Errorf("resolveVersion = %q, want 1.2.3", got)
	}
}

func TestResolveVersionDev(t *testing.T) {
	old := version
	defer func() { version = old }()

	version = "dev"
	got := resolveVersion()
	if got != "dev" && !strings.HasPrefix(got, "dev+") {
		t.Errorf("resolveVersion = %q, want dev or dev+<hash>", got)
	}
}
