// Package certstore manages the directory of generated certificate
// documents: one file per certificate ID, written atomically, generated at
// most once even under concurrent requests.
package certstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/certforge/certforge/internal/atomicfile"
)

// Store is the on-disk certificate cache.
type Store struct {
	dir string

	mu       sync.Mutex
	inflight map[string]*generation
}

// generation tracks one in-flight render so duplicate requests wait for its
// result instead of rendering again.
type generation struct {
	done chan struct{}
	err  error
}

// New creates the output directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create certificates dir: %w", err)
	}
	return &Store{dir: dir, inflight: make(map[string]*generation)}, nil
}

// Dir returns the output directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the document path for a certificate ID and extension
// ("pdf" or "png").
func (s *Store) Path(id, ext string) string {
	return filepath.Join(s.dir, id+"."+ext)
}

// Exists reports whether the document is already on disk.
func (s *Store) Exists(id, ext string) bool {
	_, err := os.Stat(s.Path(id, ext))
	return err == nil
}

// Generate returns the document path for id, producing the file with fn
// when it is absent or force is set. Concurrent calls for the same id share
// one fn invocation; later callers block until the first finishes and see
// its result.
func (s *Store) Generate(id, ext string, force bool, fn func() ([]byte, error)) (string, error) {
	path := s.Path(id, ext)
	if !force && s.Exists(id, ext) {
		return path, nil
	}

	s.mu.Lock()
	if g, ok := s.inflight[id]; ok {
		s.mu.Unlock()
		<-g.done
		if g.err != nil {
			return "", g.err
		}
		return path, nil
	}
	g := &generation{done: make(chan struct{})}
	s.inflight[id] = g
	s.mu.Unlock()

	data, err := fn()
	if err == nil {
		err = atomicfile.WriteFile(path, data, 0o644)
	}
	g.err = err

	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
	close(g.done)

	if err != nil {
		return "", err
	}
	return path, nil
}
