package roster

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// headerAliases maps canonicalized CSV header names to record fields.
// Exports from different form tools disagree on column naming; all known
// spellings are accepted.
var headerAliases = map[string]string{
	"name":         "name",
	"full name":    "name",
	"student name": "name",

	"id":         "id",
	"student id": "id",
	"studentid":  "id",
	"roll no":    "id",
	"reg no":     "id",

	"email":         "email",
	"email address": "email",
	"e mail":        "email",

	"course":  "course",
	"program": "course",
	"branch":  "course",

	"code":     "code",
	"workshop": "code",
	"event":    "code",
	"batch":    "code",
}

// canonHeader lowercases a header and folds separators to single spaces, so
// "Student_Id", "student-id", and "Student ID" all canonicalize alike.
func canonHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// ParseCSV reads registrant records from r. The first row is the header;
// unknown columns are ignored, a UTF-8 BOM is tolerated, and rows with a
// blank name and id are skipped.
func ParseCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		if field, ok := headerAliases[canonHeader(h)]; ok {
			if _, taken := cols[field]; !taken {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["name"]; !ok {
		return nil, fmt.Errorf("csv has no recognizable name column (header %v)", header)
	}

	get := func(row []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		rec := Record{
			Name:   get(row, "name"),
			ID:     get(row, "id"),
			Email:  get(row, "email"),
			Course: get(row, "course"),
			Code:   get(row, "code"),
		}
		if rec.Name == "" && rec.ID == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// CSVStore serves lookups from a CSV file on disk, parsed once and cached
// until Invalidate is called (typically from a file watcher).
type CSVStore struct {
	path string

	mu      sync.RWMutex
	records []Record
	loaded  bool
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Invalidate drops the cached rows; the next lookup re-reads the file.
func (s *CSVStore) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.records = nil
	s.mu.Unlock()
}

func (s *CSVStore) load() ([]Record, error) {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.records, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.records, nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer f.Close()
	records, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.records = records
	s.loaded = true
	return records, nil
}

func (s *CSVStore) Lookup(ctx context.Context, name, id string) (Record, error) {
	records, err := s.load()
	if err != nil {
		return Record{}, err
	}
	return lookup(records, name, id)
}

func (s *CSVStore) All(ctx context.Context) ([]Record, error) {
	return s.load()
}
