// Package config provides configuration loading and defaults for the
// certforged daemon.
//
// Configuration is loaded from a TOML file in the data directory, with
// environment variable overrides for deploy-time tuning. Text style is
// resolved once into a fit.Style value and passed into every placement
// call; nothing in the rendering path reads the environment.
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/certforge/certforge/internal/atomicfile"
	"github.com/certforge/certforge/internal/fit"
	"github.com/certforge/certforge/internal/paths"
	"github.com/certforge/certforge/internal/render"
)

// DefaultProfile is the profile used when a request names none.
const DefaultProfile = "default"

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Server holds HTTP listener settings.
	Server ServerConfig `toml:"server"`
	// Roster holds registrant record source settings.
	Roster RosterConfig `toml:"roster"`
	// Output holds certificate output settings.
	Output OutputConfig `toml:"output"`
	// Font holds font resolution settings.
	Font FontConfig `toml:"font"`
	// Style holds the base text placement style.
	Style StyleConfig `toml:"style"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
	// Profiles holds per-variant overrides keyed by profile name.
	Profiles map[string]ProfileConfig `toml:"profiles,omitempty"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	// Listen is the address the HTTP server binds to.
	Listen string `toml:"listen"`
	// AdminKey protects the batch generation endpoint. Empty disables the
	// endpoint's protection check entirely.
	AdminKey string `toml:"admin_key,omitempty"`
	// CORSOrigins lists origins allowed to call the API. "*" allows any.
	CORSOrigins []string `toml:"cors_origins"`
	// TemplatesDir is the directory serving the search page and static assets.
	TemplatesDir string `toml:"templates_dir"`
}

// RosterConfig holds registrant record source settings.
type RosterConfig struct {
	// Source selects the record source: "csv", "sqlite", or "remote".
	Source string `toml:"source"`
	// Path is the CSV file or SQLite database, relative to the data dir.
	Path string `toml:"path"`
	// URL is the published CSV export address for source = "remote".
	URL string `toml:"url,omitempty"`
	// CacheTTLMinutes is how long remote rows are served before refetching.
	CacheTTLMinutes int `toml:"cache_ttl_minutes"`
	// Watch reloads the CSV file automatically when it changes on disk.
	Watch bool `toml:"watch"`
}

// OutputConfig holds certificate output settings.
type OutputConfig struct {
	// Dir is where generated certificates are written.
	Dir string `toml:"dir"`
	// Format is the document format: "pdf" or "png".
	Format string `toml:"format"`
	// DPI is the print resolution used to size the PDF page.
	DPI int `toml:"dpi"`
	// IDPrefix is prepended to registrant IDs to form certificate IDs.
	IDPrefix string `toml:"id_prefix"`
	// Template is the certificate background image (PNG or JPEG).
	Template string `toml:"template"`
}

// FontConfig holds font resolution settings.
type FontConfig struct {
	// Path is a font file, or "builtin" for the embedded Go font.
	Path string `toml:"path"`
	// Dirs are scanned for font files when Path is empty.
	Dirs []string `toml:"dirs,omitempty"`
	// Patterns are the glob patterns used during directory scans.
	Patterns []string `toml:"patterns,omitempty"`
}

// StyleConfig holds text placement style. Zero values fall back to the
// built-in defaults, which also lets profile overrides inherit the base
// style field by field.
type StyleConfig struct {
	// FontSize is the largest size tried; 0 derives it from the canvas width.
	FontSize int `toml:"font_size"`
	// MinFontSize is the floor below which truncation engages.
	MinFontSize int `toml:"min_font_size"`
	// MarginPx is a fixed horizontal margin; 0 derives from MarginRatio.
	MarginPx int `toml:"margin_px"`
	// MarginRatio is the margin as a fraction of canvas width.
	MarginRatio float64 `toml:"margin_ratio"`
	// YRatio anchors the text vertically as a fraction of canvas height.
	YRatio float64 `toml:"y_ratio"`
	// YOffset nudges the vertical anchor in pixels.
	YOffset float64 `toml:"y_offset"`
	// XOffset nudges the horizontal position in pixels, after clamping.
	XOffset float64 `toml:"x_offset"`
	// Color is the ink color as #RRGGBB or #RRGGBBAA.
	Color string `toml:"color"`
	// LetterSpacing adds per-glyph spacing as a fraction of glyph width.
	LetterSpacing float64 `toml:"letter_spacing"`
	// SubtitleScale sizes the subtitle relative to the primary start size.
	SubtitleScale float64 `toml:"subtitle_scale"`
	// GapRatio spaces the subtitle below the name as a fraction of its height.
	GapRatio float64 `toml:"gap_ratio"`
}

// ProfileConfig holds per-variant overrides (for example a management
// certificate with its own template and ID prefix).
type ProfileConfig struct {
	// Template overrides the background image for this profile.
	Template string `toml:"template,omitempty"`
	// IDPrefix overrides the certificate ID prefix for this profile.
	IDPrefix string `toml:"id_prefix,omitempty"`
	// Subtitle renders the registrant's course as a second line.
	Subtitle bool `toml:"subtitle"`
	// Style overrides base style fields; zero fields inherit.
	Style StyleConfig `toml:"style,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:       ":8088",
			CORSOrigins:  []string{"*"},
			TemplatesDir: "templates",
		},
		Roster: RosterConfig{
			Source:          "csv",
			Path:            "roster.csv",
			CacheTTLMinutes: 5,
			Watch:           true,
		},
		Output: OutputConfig{
			Dir:      "certificates",
			Format:   "pdf",
			DPI:      300,
			IDPrefix: "CERT-",
			Template: "template.png",
		},
		Font: FontConfig{
			Path: "builtin",
		},
		Style: StyleConfig{
			MinFontSize:   14,
			MarginRatio:   0.12,
			YRatio:        0.62,
			Color:         "#000000",
			SubtitleScale: 0.6,
			GapRatio:      0.25,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ExampleConfig returns a Config suitable for generating
// config.default.toml. A commented example profile is added so the
// override mechanism is discoverable.
func ExampleConfig() *Config {
	return DefaultConfig()
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads dataDir/config.toml, applies environment overrides, and
// validates. A missing file yields the defaults (plus overrides).
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
		// defaults
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to disk as TOML using an atomic file write.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.WriteFile(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Environment Overrides
// ///////////////////////////////////////////////

// applyEnvOverrides layers the historical environment variable names over
// the file values. Unparseable numbers are logged and skipped rather than
// failing startup.
func (c *Config) applyEnvOverrides() {
	setStr := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		v, ok := os.LookupEnv(name)
		if !ok {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			slog.Warn("ignoring unparseable env override", "name", name, "value", v)
			return
		}
		*dst = n
	}
	setFloat := func(name string, dst *float64) {
		v, ok := os.LookupEnv(name)
		if !ok {
			return
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			slog.Warn("ignoring unparseable env override", "name", name, "value", v)
			return
		}
		*dst = f
	}

	setStr("ADMIN_KEY", &c.Server.AdminKey)
	setStr("CSV_PATH", &c.Roster.Path)
	setStr("CERTIFICATES_DIR", &c.Output.Dir)
	setStr("CERTIFICATE_TEMPLATE_IMAGE", &c.Output.Template)
	setStr("CERTIFICATE_ID_PREFIX", &c.Output.IDPrefix)
	setStr("CERT_FONT_PATH", &c.Font.Path)

	setInt("CERT_NAME_FONT_SIZE", &c.Style.FontSize)
	setInt("CERT_NAME_MIN_FONT_SIZE", &c.Style.MinFontSize)
	setInt("CERT_NAME_MARGIN_PX", &c.Style.MarginPx)
	setFloat("CERT_NAME_MARGIN_RATIO", &c.Style.MarginRatio)
	setFloat("CERT_NAME_Y_RATIO", &c.Style.YRatio)
	setFloat("CERT_NAME_Y_OFFSET", &c.Style.YOffset)
	setFloat("CERT_NAME_X_OFFSET", &c.Style.XOffset)
	setStr("CERT_NAME_COLOR", &c.Style.Color)
	setFloat("CERT_NAME_LETTER_SPACING", &c.Style.LetterSpacing)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	switch c.Roster.Source {
	case "csv", "sqlite", "remote":
	default:
		return fmt.Errorf("invalid roster.source %q: must be csv, sqlite, or remote", c.Roster.Source)
	}
	if c.Roster.Source == "remote" && c.Roster.URL == "" {
		return fmt.Errorf("roster.url is required when roster.source is remote")
	}
	if c.Roster.Source != "remote" && c.Roster.Path == "" {
		return fmt.Errorf("roster.path is required for roster.source %q", c.Roster.Source)
	}

	switch c.Output.Format {
	case "pdf", "png":
	default:
		return fmt.Errorf("invalid output.format %q: must be pdf or png", c.Output.Format)
	}
	if c.Output.DPI <= 0 {
		return fmt.Errorf("output.dpi must be > 0, got %d", c.Output.DPI)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be debug, info, warn, or error", c.Log.Level)
	}

	if err := validateStyle("style", c.Style); err != nil {
		return err
	}
	for name, p := range c.Profiles {
		if name == "" {
			return fmt.Errorf("profile with empty name")
		}
		if err := validateStyle("profiles."+name+".style", p.Style); err != nil {
			return err
		}
	}
	return nil
}

func validateStyle(where string, s StyleConfig) error {
	if s.YRatio < 0 || s.YRatio > 1 {
		return fmt.Errorf("%s.y_ratio must be in [0, 1], got %v", where, s.YRatio)
	}
	if s.MarginRatio < 0 || s.MarginRatio >= 0.5 {
		return fmt.Errorf("%s.margin_ratio must be in [0, 0.5), got %v", where, s.MarginRatio)
	}
	if s.FontSize < 0 || s.MinFontSize < 0 {
		return fmt.Errorf("%s font sizes must be >= 0", where)
	}
	if s.FontSize > 0 && s.MinFontSize > s.FontSize {
		return fmt.Errorf("%s.min_font_size %d exceeds font_size %d", where, s.MinFontSize, s.FontSize)
	}
	if s.SubtitleScale < 0 || s.SubtitleScale > 1 {
		return fmt.Errorf("%s.subtitle_scale must be in [0, 1], got %v", where, s.SubtitleScale)
	}
	if s.Color != "" {
		if _, err := render.ParseHexColor(s.Color); err != nil {
			return fmt.Errorf("%s.color: %w", where, err)
		}
	}
	return nil
}

// ///////////////////////////////////////////////
// Profile Resolution
// ///////////////////////////////////////////////

// Profile is a fully resolved per-variant view of the configuration.
type Profile struct {
	Name     string
	Template string
	IDPrefix string
	Subtitle bool
	Style    fit.Style
}

// ResolveProfile merges the named profile over the base configuration and
// resolves the style into a fit.Style. The name "" or "default" yields the
// base configuration; any other unknown name is an error.
func (c *Config) ResolveProfile(name string) (Profile, error) {
	p := Profile{
		Name:     DefaultProfile,
		Template: c.Output.Template,
		IDPrefix: c.Output.IDPrefix,
	}
	styleCfg := c.Style

	if name != "" && name != DefaultProfile {
		override, ok := c.Profiles[name]
		if !ok {
			return Profile{}, fmt.Errorf("unknown profile %q", name)
		}
		p.Name = name
		p.Subtitle = override.Subtitle
		if override.Template != "" {
			p.Template = override.Template
		}
		if override.IDPrefix != "" {
			p.IDPrefix = override.IDPrefix
		}
		styleCfg = mergeStyle(styleCfg, override.Style)
	}

	style, err := styleCfg.resolve()
	if err != nil {
		return Profile{}, err
	}
	p.Style = style
	return p, nil
}

// ProfileNames returns the configured profile names plus "default".
func (c *Config) ProfileNames() []string {
	names := []string{DefaultProfile}
	for name := range c.Profiles {
		names = append(names, name)
	}
	return names
}

// mergeStyle layers non-zero override fields over the base style.
func mergeStyle(base, o StyleConfig) StyleConfig {
	if o.FontSize != 0 {
		base.FontSize = o.FontSize
	}
	if o.MinFontSize != 0 {
		base.MinFontSize = o.MinFontSize
	}
	if o.MarginPx != 0 {
		base.MarginPx = o.MarginPx
	}
	if o.MarginRatio != 0 {
		base.MarginRatio = o.MarginRatio
	}
	if o.YRatio != 0 {
		base.YRatio = o.YRatio
	}
	if o.YOffset != 0 {
		base.YOffset = o.YOffset
	}
	if o.XOffset != 0 {
		base.XOffset = o.XOffset
	}
	if o.Color != "" {
		base.Color = o.Color
	}
	if o.LetterSpacing != 0 {
		base.LetterSpacing = o.LetterSpacing
	}
	if o.SubtitleScale != 0 {
		base.SubtitleScale = o.SubtitleScale
	}
	if o.GapRatio != 0 {
		base.GapRatio = o.GapRatio
	}
	return base
}

// resolve converts the TOML style into the placement engine's Style value.
func (s StyleConfig) resolve() (fit.Style, error) {
	style := fit.Style{
		StartSize:     s.FontSize,
		MinSize:       s.MinFontSize,
		MarginPx:      s.MarginPx,
		MarginRatio:   s.MarginRatio,
		YAnchorRatio:  s.YRatio,
		YOffset:       s.YOffset,
		XOffset:       s.XOffset,
		LetterSpacing: s.LetterSpacing,
		SubtitleScale: s.SubtitleScale,
		GapRatio:      s.GapRatio,
	}
	if s.Color != "" {
		ink, err := render.ParseHexColor(s.Color)
		if err != nil {
			return fit.Style{}, fmt.Errorf("style color: %w", err)
		}
		style.Color = ink
	}
	return style, nil
}
