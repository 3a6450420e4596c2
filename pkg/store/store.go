// Package store persists the archive's metadata: one JSON document,
// one record per archived image. The document is the single source of
// truth for which images have already been downloaded.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	errs "imgarc/pkg/errors"
)

// ImageRecord is the persisted representation of one archived image.
// Core fields (ID, LocalFilename, SourceURL, CreatedAt) are immutable
// after creation; only Tags may be updated in place.
type ImageRecord struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	CreatedAt     int64  `json:"created_at"`
	LocalFilename string `json:"local_filename"`
	SourceURL     string `json:"source_url"`

	Tags []string `json:"tags,omitempty"`

	// Fields carried from the remote descriptor when available
	Prompt           string `json:"prompt,omitempty"`
	Width            int    `json:"width,omitempty"`
	Height           int    `json:"height,omitempty"`
	ConversationID   string `json:"conversation_id,omitempty"`
	MessageID        string `json:"message_id,omitempty"`
	ConversationLink string `json:"conversation_link,omitempty"`
}

// Store reads and writes the metadata document. Every run loads the
// whole document, mutates in memory and rewrites it; there is no
// partial update path.
type Store struct {
	path string
}

// New creates a store backed by the given metadata.json path
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the metadata file location
func (s *Store) Path() string {
	return s.path
}

// Load reads the full document into a map keyed by record id. A missing
// file is a first run and yields an empty map; an unparseable file is a
// corrupt-store error and the caller must abort before mutating anything.
func (s *Store) Load() (map[string]*ImageRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*ImageRecord), nil
		}
		return nil, fmt.Errorf("failed to read metadata store: %w", err)
	}

	var list []*ImageRecord
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, errs.Newf(errs.ErrorTypeCorruptStore, 0,
			"metadata store %s is not valid JSON: %v", s.path, err)
	}

	records := make(map[string]*ImageRecord, len(list))
	for _, rec := range list {
		if rec.ID == "" {
			return nil, errs.Newf(errs.ErrorTypeCorruptStore, 0,
				"metadata store %s contains a record without an id", s.path)
		}
		if _, dup := records[rec.ID]; dup {
			return nil, errs.Newf(errs.ErrorTypeCorruptStore, 0,
				"metadata store %s contains duplicate id %s", s.path, rec.ID)
		}
		records[rec.ID] = rec
	}
	return records, nil
}

// Save writes the full record set atomically (write to a temp file in
// the same directory, then rename). Records are sorted newest-first by
// created_at so the viewer renders without client-side sorting.
func (s *Store) Save(records map[string]*ImageRecord) error {
	list := Sorted(records)

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary store file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close metadata file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace metadata file: %w", err)
	}
	return nil
}

// Sorted returns the records as a slice ordered newest-first by
// created_at, with id as the tie-breaker for deterministic output.
func Sorted(records map[string]*ImageRecord) []*ImageRecord {
	list := make([]*ImageRecord, 0, len(records))
	for _, rec := range records {
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt > list[j].CreatedAt
		}
		return list[i].ID < list[j].ID
	})
	return list
}
