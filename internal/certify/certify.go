// Package certify ties the roster, font, placement, and rendering layers
// into the certificate generation pipeline: look a registrant up, place
// their name on the template, and write the finished document through the
// certificate store.
package certify

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/certforge/certforge/internal/certstore"
	"github.com/certforge/certforge/internal/config"
	"github.com/certforge/certforge/internal/fit"
	"github.com/certforge/certforge/internal/fonts"
	"github.com/certforge/certforge/internal/paths"
	"github.com/certforge/certforge/internal/render"
	"github.com/certforge/certforge/internal/roster"
)

// Document describes one generated (or cached) certificate file.
type Document struct {
	CertificateID string
	Path          string
	Ext           string
	Record        roster.Record
}

// Summary reports the outcome of a batch generation run.
type Summary struct {
	Profile   string    `json:"profile"`
	Generated int       `json:"generated"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Failure is one registrant a batch run could not generate for.
type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Generator renders certificates. It is safe for concurrent use; the
// underlying store collapses duplicate renders for the same certificate ID.
type Generator struct {
	cfg     *config.Config
	dataDir string
	source  roster.Store
	store   *certstore.Store
	library *fonts.Library
	load    fit.LoadFunc
	log     *slog.Logger

	mu        sync.Mutex
	templates map[string]image.Image
}

// New wires a Generator from the loaded configuration. The font is resolved
// here so a broken font setup fails at startup, not on the first request.
func New(cfg *config.Config, dataDir string, source roster.Store, log *slog.Logger) (*Generator, error) {
	store, err := certstore.New(paths.Resolve(dataDir, cfg.Output.Dir))
	if err != nil {
		return nil, err
	}

	explicit := cfg.Font.Path
	if explicit != "" && explicit != fonts.Builtin {
		explicit = paths.Resolve(dataDir, explicit)
	}
	dirs := make([]string, len(cfg.Font.Dirs))
	for i, d := range cfg.Font.Dirs {
		dirs[i] = paths.Resolve(dataDir, d)
	}
	fontPath, err := fonts.Resolve(explicit, dirs, cfg.Font.Patterns)
	if err != nil {
		return nil, err
	}

	library := fonts.NewLibrary()
	load := library.Loader(fontPath)
	// Parse eagerly; a corrupt font file is as fatal as a missing one.
	if _, err := library.Open(fontPath); err != nil {
		return nil, err
	}
	log.Info("font resolved", "path", fontPath)

	return &Generator{
		cfg:       cfg,
		dataDir:   dataDir,
		source:    source,
		store:     store,
		library:   library,
		load:      load,
		log:       log,
		templates: make(map[string]image.Image),
	}, nil
}

// Store exposes the certificate store, used by the HTTP layer to locate
// existing documents.
func (g *Generator) Store() *certstore.Store { return g.store }

// Ext returns the configured document extension ("pdf" or "png").
func (g *Generator) Ext() string { return g.cfg.Output.Format }

// Generate produces (or returns the cached) certificate for the registrant
// matching name and id. Roster errors pass through unwrapped so callers can
// distinguish an unknown registrant from an unavailable source.
func (g *Generator) Generate(ctx context.Context, name, id, profileName string, force bool) (Document, error) {
	rec, err := g.source.Lookup(ctx, name, id)
	if err != nil {
		return Document{}, err
	}
	return g.generateRecord(rec, profileName, force)
}

// GenerateAll renders a certificate for every roster record, skipping those
// already on disk unless force is set.
func (g *Generator) GenerateAll(ctx context.Context, profileName string, force bool) (Summary, error) {
	profile, err := g.cfg.ResolveProfile(profileName)
	if err != nil {
		return Summary{}, err
	}
	records, err := g.source.All(ctx)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Profile: profile.Name}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		certID := roster.CertificateID(profile.IDPrefix, rec.ID)
		if !force && g.store.Exists(certID, g.Ext()) {
			sum.Skipped++
			continue
		}
		if _, err := g.generateRecord(rec, profileName, force); err != nil {
			sum.Failed++
			sum.Failures = append(sum.Failures, Failure{ID: rec.ID, Error: err.Error()})
			g.log.Warn("batch generation failed", "id", rec.ID, "error", err)
			continue
		}
		sum.Generated++
	}
	g.log.Info("batch generation finished",
		"profile", profile.Name,
		"generated", sum.Generated, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

func (g *Generator) generateRecord(rec roster.Record, profileName string, force bool) (Document, error) {
	profile, err := g.cfg.ResolveProfile(profileName)
	if err != nil {
		return Document{}, err
	}
	certID := roster.CertificateID(profile.IDPrefix, rec.ID)
	ext := g.Ext()

	path, err := g.store.Generate(certID, ext, force, func() ([]byte, error) {
		return g.renderDocument(rec, profile)
	})
	if err != nil {
		return Document{}, err
	}
	return Document{CertificateID: certID, Path: path, Ext: ext, Record: rec}, nil
}

// renderDocument runs the full placement and paint pipeline for one record.
func (g *Generator) renderDocument(rec roster.Record, profile config.Profile) ([]byte, error) {
	tmpl, err := g.template(paths.Resolve(g.dataDir, profile.Template))
	if err != nil {
		return nil, err
	}
	bounds := tmpl.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	subtitle := ""
	if profile.Subtitle {
		subtitle = rec.Course
	}

	placer := fit.Placer{Load: g.load, Measure: render.Measure}
	pl, err := placer.Place(rec.Name, subtitle, w, h, profile.Style)
	if err != nil {
		return nil, err
	}

	img, err := render.Draw(tmpl, g.load, pl, profile.Style)
	if err != nil {
		return nil, err
	}
	data, err := render.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	if g.Ext() == "pdf" {
		data, err = render.EncodePDF(data, w, h, g.cfg.Output.DPI)
		if err != nil {
			return nil, err
		}
	}

	g.log.Info("certificate generated",
		"id", roster.CertificateID(profile.IDPrefix, rec.ID),
		"profile", profile.Name,
		"text", pl.Primary.Text,
		"size", pl.Primary.Size)
	return data, nil
}

// template decodes a background image once and caches it by path.
func (g *Generator) template(path string) (image.Image, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if img, ok := g.templates[path]; ok {
		return img, nil
	}
	img, err := render.LoadTemplate(path)
	if err != nil {
		return nil, fmt.Errorf("profile template: %w", err)
	}
	g.templates[path] = img
	return img, nil
}
