// Package certforge provides embedded assets for the certforged daemon.
//
// The root package exists solely to embed config.default.toml via
// [DefaultConfigTOML]. The daemon copies it into the data directory on
// first run so deployments start from a fully commented config.
package certforge

import _ "embed"

// DefaultConfigTOML holds the raw bytes of config.default.toml, embedded
// at build time. Regenerate with go generate ./internal/config.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
