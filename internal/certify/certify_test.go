package certify

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/certforge/certforge/internal/config"
	"github.com/certforge/certforge/internal/fit"
	"github.com/certforge/certforge/internal/fonts"
	"github.com/certforge/certforge/internal/roster"
)

const testCSV = `name,id,email,course,code
Alex Johnson,R001,alex@example.com,Go Systems,GS1
Priya Patel,R002,priya@example.com,Go Systems,GS1
Sam Lee,R003,sam@example.com,Go Systems,GS1
`

func writeTemplate(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 600, 400))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func testConfig(format string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Output.Format = format
	cfg.Roster.Watch = false
	return cfg
}

func newTestGenerator(t *testing.T, cfg *config.Config) (*Generator, string) {
	t.Helper()
	dir := t.TempDir()
	writeTemplate(t, filepath.Join(dir, cfg.Output.Template))
	if err := os.WriteFile(filepath.Join(dir, cfg.Roster.Path), []byte(testCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	src := roster.NewCSVStore(filepath.Join(dir, cfg.Roster.Path))
	gen, err := New(cfg, dir, src, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return gen, dir
}

func TestGenerateWritesDocument(t *testing.T) {
	gen, _ := newTestGenerator(t, testConfig("png"))

	doc, err := gen.Generate(context.Background(), "alex johnson", "r001", "", false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if doc.CertificateID != "CERT-R001" {
		t.Errorf("CertificateID = %q, want CERT-R001", doc.CertificateID)
	}
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("document is not a PNG")
	}
}

func TestGeneratePDF(t *testing.T) {
	gen, _ := newTestGenerator(t, testConfig("pdf"))

	doc, err := gen.Generate(context.Background(), "Priya Patel", "R002", "", false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("document is not a PDF")
	}
}

func TestGenerateReusesCachedDocument(t *testing.T) {
	gen, _ := newTestGenerator(t, testConfig("png"))
	ctx := context.Background()

	doc, err := gen.Generate(ctx, "Alex Johnson", "R001", "", false)
	if err != nil {
		t.Fatal(err)
	}
	sentinel := []byte("sentinel")
	if err := os.WriteFile(doc.Path, sentinel, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := gen.Generate(ctx, "Alex Johnson", "R001", "", false); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(doc.Path)
	if !bytes.Equal(data, sentinel) {
		t.Error("cached document was rerendered without force")
	}

	if _, err := gen.Generate(ctx, "Alex Johnson", "R001", "", true); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(doc.Path)
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("force did not rerender the document")
	}
}

func TestGenerateUnknownRegistrant(t *testing.T) {
	gen, _ := newTestGenerator(t, testConfig("png"))

	_, err := gen.Generate(context.Background(), "Nobody Here", "R999", "", false)
	if !errors.Is(err, roster.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// fixedStore returns a canned record regardless of the lookup arguments.
type fixedStore struct{ rec roster.Record }

func (s fixedStore) Lookup(context.Context, string, string) (roster.Record, error) {
	return s.rec, nil
}
func (s fixedStore) All(context.Context) ([]roster.Record, error) {
	return []roster.Record{s.rec}, nil
}

func TestGenerateBlankNameRejected(t *testing.T) {
	cfg := testConfig("png")
	dir := t.TempDir()
	writeTemplate(t, filepath.Join(dir, cfg.Output.Template))
	gen, err := New(cfg, dir, fixedStore{roster.Record{Name: "   ", ID: "R001"}}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatal(err)
	}

	_, err = gen.Generate(context.Background(), "   ", "R001", "", false)
	if !errors.Is(err, fit.ErrEmptyText) {
		t.Fatalf("err = %v, want ErrEmptyText", err)
	}
	if gen.Store().Exists("CERT-R001", "png") {
		t.Error("document written despite placement error")
	}
}

func TestGenerateProfileOverrides(t *testing.T) {
	cfg := testConfig("png")
	cfg.Profiles = map[string]config.ProfileConfig{
		"workshop": {IDPrefix: "WS-", Subtitle: true},
	}
	gen, _ := newTestGenerator(t, cfg)

	doc, err := gen.Generate(context.Background(), "Sam Lee", "R003", "workshop", false)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if doc.CertificateID != "WS-R003" {
		t.Errorf("CertificateID = %q, want WS-R003", doc.CertificateID)
	}
}

func TestGenerateUnknownProfile(t *testing.T) {
	gen, _ := newTestGenerator(t, testConfig("png"))

	if _, err := gen.Generate(context.Background(), "Sam Lee", "R003", "nope", false); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestGenerateAll(t *testing.T) {
	gen, _ := newTestGenerator(t, testConfig("png"))
	ctx := context.Background()

	// Pre-generate one so the batch run skips it.
	if _, err := gen.Generate(ctx, "Alex Johnson", "R001", "", false); err != nil {
		t.Fatal(err)
	}

	sum, err := gen.GenerateAll(ctx, "", false)
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if sum.Generated != 2 || sum.Skipped != 1 || sum.Failed != 0 {
		t.Errorf("summary = %+v, want 2 generated, 1 skipped, 0 failed", sum)
	}
	for _, id := range []string{"CERT-R001", "CERT-R002", "CERT-R003"} {
		if !gen.Store().Exists(id, "png") {
			t.Errorf("document %s missing after batch run", id)
		}
	}
}

func TestNewMissingFontFatal(t *testing.T) {
	cfg := testConfig("png")
	cfg.Font.Path = "no-such-font.ttf"
	dir := t.TempDir()
	writeTemplate(t, filepath.Join(dir, cfg.Output.Template))

	_, err := New(cfg, dir, fixedStore{}, slog.New(slog.DiscardHandler))
	if !errors.Is(err, fonts.ErrNoFont) {
		t.Fatalf("err = %v, want ErrNoFont", err)
	}
}
