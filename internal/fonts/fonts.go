// Package fonts resolves the TrueType/OpenType font used for rendering and
// hands out font faces at requested sizes.
package fonts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/certforge/certforge/internal/fit"
)

// Builtin selects the Go Regular font compiled into the binary.
const Builtin = "builtin"

// ErrNoFont means no usable font resource could be resolved or parsed.
// Fatal for a deployment; there is no fallback rendering.
var ErrNoFont = errors.New("fonts: no usable font resource")

// defaultPatterns match font files during directory scans.
var defaultPatterns = []string{"**/*.{ttf,otf}"}

// Resolve picks the font file to use. An explicit path wins and must exist;
// otherwise the configured directories (or the OS font directories) are
// scanned with the glob patterns and the first match in sorted order is
// taken. When nothing matches, the embedded font is used.
func Resolve(explicit string, dirs, patterns []string) (string, error) {
	if explicit == Builtin {
		return Builtin, nil
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", ErrNoFont, explicit)
		}
		return explicit, nil
	}
	if len(patterns) == 0 {
		patterns = defaultPatterns
	}
	search := dirs
	if len(search) == 0 {
		search = systemFontDirs()
	}
	for _, dir := range search {
		for _, pat := range patterns {
			matches, err := doublestar.FilepathGlob(filepath.Join(dir, pat))
			if err != nil || len(matches) == 0 {
				continue
			}
			sort.Strings(matches)
			return matches[0], nil
		}
	}
	return Builtin, nil
}

// Library parses font files once and caches the result. Parsed fonts are
// immutable and safe to share across goroutines; faces are not, so every
// loader call creates a fresh face.
type Library struct {
	mu     sync.Mutex
	parsed map[string]*opentype.Font
}

func NewLibrary() *Library {
	return &Library{parsed: make(map[string]*opentype.Font)}
}

// Open parses the font at path, or the embedded font for Builtin. Results
// are cached by path.
func (l *Library) Open(path string) (*opentype.Font, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := l.parsed[path]; ok {
		return f, nil
	}
	data := goregular.TTF
	if path != Builtin {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoFont, err)
		}
		data = b
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrNoFont, path, err)
	}
	l.parsed[path] = f
	return f, nil
}

// Loader binds path into a fit.LoadFunc. The font is parsed on first use.
func (l *Library) Loader(path string) fit.LoadFunc {
	return func(size int) (font.Face, error) {
		f, err := l.Open(path)
		if err != nil {
			return nil, err
		}
		return opentype.NewFace(f, &opentype.FaceOptions{
			Size:    float64(size),
			DPI:     72,
			Hinting: font.HintingFull,
		})
	}
}

func systemFontDirs() []string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/System/Library/Fonts",
			"/Library/Fonts",
			filepath.Join(home, "Library", "Fonts"),
		}
	case "windows":
		return []string{`C:\Windows\Fonts`}
	default:
		return []string{
			"/usr/share/fonts",
			"/usr/local/share/fonts",
			filepath.Join(home, ".fonts"),
			filepath.Join(home, ".local", "share", "fonts"),
		}
	}
}
