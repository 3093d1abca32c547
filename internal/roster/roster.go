// Package roster looks registrants up in a tabular record source. Sources
// are CSV files, SQLite databases, or a remote CSV export; all implement
// [Store].
//
// Matching is forgiving: names are compared case-insensitively with internal
// whitespace collapsed, identifiers case-insensitively after trimming.
package roster

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound means no registrant matched the (name, id) pair.
	ErrNotFound = errors.New("roster: registrant not found")
	// ErrUnavailable means the record source could not be read at all.
	ErrUnavailable = errors.New("roster: record source unavailable")
)

// Record is one registrant row.
type Record struct {
	Name   string
	ID     string
	Email  string
	Course string
	Code   string
}

// Store is a registrant source.
type Store interface {
	// Lookup finds the record matching name and id after normalization.
	Lookup(ctx context.Context, name, id string) (Record, error)
	// All returns every record in the source.
	All(ctx context.Context) ([]Record, error)
}

// NormalizeName lowercases and collapses runs of whitespace, so "  Alex
// Johnson " and "alex johnson" compare equal.
func NormalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NormalizeID trims surrounding whitespace and lowercases.
func NormalizeID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CertificateID derives the stable output identifier for a registrant ID.
// Characters unsafe in filenames are replaced with underscores.
func CertificateID(prefix, id string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return prefix + b.String()
}

// match reports whether rec matches the normalized (name, id) pair.
func match(rec Record, name, id string) bool {
	return NormalizeName(rec.Name) == NormalizeName(name) &&
		NormalizeID(rec.ID) == NormalizeID(id)
}

// lookup scans records for the first match.
func lookup(records []Record, name, id string) (Record, error) {
	for _, rec := range records {
		if match(rec, name, id) {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}
