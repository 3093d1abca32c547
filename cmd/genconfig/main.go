// Package main implements the genconfig tool that writes
// config.default.toml from config.ExampleConfig().
//
// It is invoked by go generate via the directive in
// internal/config/config.go.
package main

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/certforge/certforge/internal/config"
)

func main() {
	var raw bytes.Buffer
	if err := toml.NewEncoder(&raw).Encode(config.ExampleConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "marshal: %v\n", err)
		os.Exit(1)
	}

	out := []string{
		"# ///////////////////////////////////////////////",
		"# Certforge Configuration",
		"# ///////////////////////////////////////////////",
		"",
	}

	var section []string
	emitted := map[string]bool{}

	for _, line := range strings.Split(raw.String(), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		// Section headers: [foo] or [foo.bar]
		if strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "[[") {
			appendOmitted(&out, section, emitted)

			name := strings.Trim(trimmed, "[] ")
			section = strings.Split(name, ".")

			out = append(out, "", fmt.Sprintf("# ///// %s /////", titleOf(name)), "")
			if doc, ok := config.ConfigDocs[name]; ok && doc.Comment != "" {
				out = append(out, commentLines(doc.Comment)...)
			}
			out = append(out, trimmed)
			continue
		}

		if !strings.Contains(trimmed, "=") || strings.HasPrefix(trimmed, "#") {
			out = append(out, trimmed)
			continue
		}

		key := strings.TrimSpace(strings.SplitN(trimmed, "=", 2)[0])
		path := key
		if len(section) > 0 {
			path = strings.Join(section, ".") + "." + key
		}
		emitted[path] = true

		if doc, ok := config.ConfigDocs[path]; ok {
			out = append(out, commentLines(doc.Comment)...)
			out = append(out, trimmed)
			for _, alt := range doc.Alternatives {
				out = append(out, "# "+alt)
			}
		} else {
			out = append(out, trimmed)
		}
	}
	appendOmitted(&out, section, emitted)

	// Document the profiles table even though no profile is configured by
	// default.
	if doc, ok := config.ConfigDocs["profiles"]; ok && !emitted["profiles"] {
		out = append(out, "", "# ///// Profiles /////", "")
		out = append(out, commentLines(doc.Comment)...)
	}

	result := strings.TrimRight(strings.Join(out, "\n"), "\n") + "\n"

	// go generate runs from internal/config/; the repo root embeds the file.
	const outPath = "../../config.default.toml"
	if err := os.WriteFile(outPath, []byte(result), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", outPath, err)
		os.Exit(1)
	}
	fmt.Println("wrote config.default.toml")
}

// appendOmitted emits commented documentation for fields of the current
// section that the encoder skipped (omitempty zero values), so every
// documented option appears in the generated file.
func appendOmitted(out *[]string, section []string, emitted map[string]bool) {
	if len(section) == 0 {
		return
	}
	prefix := strings.Join(section, ".") + "."

	var missing []string
	for path := range config.ConfigDocs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(rest, ".") || emitted[path] {
			continue
		}
		missing = append(missing, path)
	}
	sort.Strings(missing)

	for _, path := range missing {
		doc := config.ConfigDocs[path]
		*out = append(*out, "")
		*out = append(*out, commentLines(doc.Comment)...)
		for _, alt := range doc.Alternatives {
			*out = append(*out, "# "+alt)
		}
		emitted[path] = true
	}
}

func commentLines(comment string) []string {
	if comment == "" {
		return nil
	}
	var lines []string
	for _, l := range strings.Split(comment, "\n") {
		lines = append(lines, "# "+l)
	}
	return lines
}

// titleOf turns "roster" or "profiles.management" into "Roster" or
// "Management" for the section banner.
func titleOf(section string) string {
	parts := strings.Split(section, ".")
	last := parts[len(parts)-1]
	if last == "" {
		return ""
	}
	return strings.ToUpper(last[:1]) + last[1:]
}
