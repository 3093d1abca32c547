package certstore

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "certificates"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestGenerateWritesOnce(t *testing.T) {
	s := newStore(t)
	var calls atomic.Int32
	fn := func() ([]byte, error) {
		calls.Add(1)
		return []byte("doc"), nil
	}

	path, err := s.Generate("CERT-1", "pdf", false, fn)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got, _ := os.ReadFile(path); string(got) != "doc" {
		t.Errorf("content = %q", got)
	}

	// Cached on disk: second call must not re-render.
	if _, err := s.Generate("CERT-1", "pdf", false, fn); err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("fn called %d times, want 1", calls.Load())
	}
}

func TestGenerateForceRerenders(t *testing.T) {
	s := newStore(t)
	version := "v1"
	fn := func() ([]byte, error) { return []byte(version), nil }

	if _, err := s.Generate("CERT-1", "pdf", false, fn); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	version = "v2"
	path, err := s.Generate("CERT-1", "pdf", true, fn)
	if err != nil {
		t.Fatalf("forced Generate: %v", err)
	}
	if got, _ := os.ReadFile(path); string(got) != "v2" {
		t.Errorf("content = %q, want v2", got)
	}
}

func TestGenerateConcurrentSharesOneRender(t *testing.T) {
	s := newStore(t)
	var calls atomic.Int32
	var once sync.Once
	started := make(chan struct{})
	gate := make(chan struct{})
	fn := func() ([]byte, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-gate
		return []byte("doc"), nil
	}

	first := make(chan error, 1)
	go func() {
		_, err := s.Generate("CERT-1", "pdf", true, fn)
		first <- err
	}()
	<-started

	// Joins the render already in flight instead of starting another.
	second := make(chan error, 1)
	go func() {
		_, err := s.Generate("CERT-1", "pdf", true, fn)
		second <- err
	}()
	time.Sleep(100 * time.Millisecond)
	close(gate)

	if err := <-first; err != nil {
		t.Errorf("first caller: %v", err)
	}
	if err := <-second; err != nil {
		t.Errorf("second caller: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fn called %d times, want 1", got)
	}
}

func TestGenerateErrorPropagates(t *testing.T) {
	s := newStore(t)
	wantErr := errors.New("render failed")
	if _, err := s.Generate("CERT-1", "pdf", false, func() ([]byte, error) {
		return nil, wantErr
	}); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if s.Exists("CERT-1", "pdf") {
		t.Error("failed generation left a file behind")
	}
}

func TestPathAndExists(t *testing.T) {
	s := newStore(t)
	if s.Exists("CERT-9", "pdf") {
		t.Error("Exists true before write")
	}
	want := filepath.Join(s.Dir(), "CERT-9.pdf")
	if got := s.Path("CERT-9", "pdf"); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
}
