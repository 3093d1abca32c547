package config

// FieldDoc holds documentation and alternative examples for a single config
// field. The genconfig tool uses [FieldDoc] values to annotate the generated
// config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ConfigDocs maps TOML field paths (dot-separated, e.g. "output.dpi") to
// their [FieldDoc] entries.
var ConfigDocs = map[string]FieldDoc{
	// ── Server ───────────────────────────────────────────────────
	"server.listen": {
		Comment: "Address the HTTP server binds to.",
		Alternatives: []string{
			`listen = "127.0.0.1:8088"`,
		},
	},
	"server.admin_key": {
		Comment: "Shared secret for the /generate-all endpoint.\nEmpty leaves batch generation open — set this in production.\nAlso settable via the ADMIN_KEY environment variable.",
		Alternatives: []string{
			`admin_key = "change-me"`,
		},
	},
	"server.cors_origins": {
		Comment: "Origins allowed to call the API from a browser. \"*\" allows any.",
	},
	"server.templates_dir": {
		Comment: "Directory serving the search page (index.html) and /static/ assets.",
	},

	// ── Roster ───────────────────────────────────────────────────
	"roster.source": {
		Comment: "Where registrant records come from. Options: \"csv\", \"sqlite\", \"remote\"\n  csv:    a local CSV file (path)\n  sqlite: a local SQLite database (path)\n  remote: a published CSV export fetched over HTTP (url)",
		Alternatives: []string{
			`source = "sqlite"`,
			`source = "remote"`,
		},
	},
	"roster.path": {
		Comment: "CSV file or SQLite database, relative to the data directory.\nAlso settable via the CSV_PATH environment variable.",
	},
	"roster.url": {
		Comment: "Published CSV export URL (for source = \"remote\").",
		Alternatives: []string{
			`url = "https://docs.google.com/spreadsheets/d/e/…/pub?output=csv"`,
		},
	},
	"roster.cache_ttl_minutes": {
		Comment: "How long remote rows are served before refetching.",
	},
	"roster.watch": {
		Comment: "Reload the CSV file automatically when it changes on disk.",
	},

	// ── Output ───────────────────────────────────────────────────
	"output.dir": {
		Comment: "Where generated certificates are written.\nAlso settable via the CERTIFICATES_DIR environment variable.",
	},
	"output.format": {
		Comment: "Document format. Options: \"pdf\", \"png\"",
		Alternatives: []string{
			`format = "png"`,
		},
	},
	"output.dpi": {
		Comment: "Print resolution used to size the PDF page from the template pixels.",
	},
	"output.id_prefix": {
		Comment: "Prepended to registrant IDs to form certificate IDs and file names.\nAlso settable via the CERTIFICATE_ID_PREFIX environment variable.",
	},
	"output.template": {
		Comment: "Certificate background image (PNG or JPEG), relative to the data dir.\nAlso settable via the CERTIFICATE_TEMPLATE_IMAGE environment variable.",
	},

	// ── Font ─────────────────────────────────────────────────────
	"font.path": {
		Comment: "Font file to render with, or \"builtin\" for the embedded Go font.\nAlso settable via the CERT_FONT_PATH environment variable.",
		Alternatives: []string{
			`path = "fonts/GreatVibes-Regular.ttf"`,
		},
	},
	"font.dirs": {
		Comment: "Directories scanned for fonts when path is empty.\nThe OS font directories are scanned when this is empty too.",
		Alternatives: []string{
			`dirs = ["fonts"]`,
		},
	},
	"font.patterns": {
		Comment: "Glob patterns used during directory scans.",
		Alternatives: []string{
			`patterns = ["**/*.{ttf,otf}"]`,
		},
	},

	// ── Style ────────────────────────────────────────────────────
	"style": {
		Comment: "Text placement style. Every field has a working default; profiles\ncan override individual fields under [profiles.<name>.style].\nThe CERT_NAME_* environment variables override these at deploy time.",
	},
	"style.font_size": {
		Comment: "Largest font size tried. 0 derives max(24, 6% of template width).",
	},
	"style.min_font_size": {
		Comment: "Smallest size before the name is truncated with an ellipsis.",
	},
	"style.margin_px": {
		Comment: "Fixed horizontal margin in pixels. 0 derives from margin_ratio.",
	},
	"style.margin_ratio": {
		Comment: "Horizontal margin as a fraction of template width.",
	},
	"style.y_ratio": {
		Comment: "Vertical anchor as a fraction of template height (0 = top).",
	},
	"style.y_offset": {
		Comment: "Pixel nudge applied to the vertical anchor.",
	},
	"style.x_offset": {
		Comment: "Cosmetic horizontal nudge in pixels, applied after margin clamping.",
	},
	"style.color": {
		Comment: "Ink color as #RRGGBB or #RRGGBBAA.",
		Alternatives: []string{
			`color = "#1F2937"`,
		},
	},
	"style.letter_spacing": {
		Comment: "Extra spacing between glyphs as a fraction of glyph width.\n0.015 is a subtle widening; 0 disables per-glyph drawing.",
	},
	"style.subtitle_scale": {
		Comment: "Subtitle start size as a fraction of the name's start size.",
	},
	"style.gap_ratio": {
		Comment: "Gap between name and subtitle as a fraction of the name's height.",
	},

	// ── Log ──────────────────────────────────────────────────────
	"log": {
		Comment: "Logging configuration",
	},
	"log.level": {
		Comment: "Minimum log level. Options: \"debug\", \"info\", \"warn\", \"error\"",
		Alternatives: []string{
			`level = "debug"`,
		},
	},
	"log.max_size_mb": {
		Comment: "Maximum log file size in megabytes before rotation.",
	},

	// ── Profiles ─────────────────────────────────────────────────
	"profiles": {
		Comment: "Per-variant overrides keyed by profile name. Requests select a\nprofile with ?profile=<name>; unset fields inherit the base config.\n# [profiles.management]\n# template = \"template-management.png\"\n# id_prefix = \"MGMT-\"\n# subtitle = true\n# [profiles.management.style]\n# y_ratio = 0.58",
	},
}
