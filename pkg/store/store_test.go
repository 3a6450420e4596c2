package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "imgarc/pkg/errors"
)

func record(id string, createdAt int64) *ImageRecord {
	return &ImageRecord{
		ID:            id,
		Title:         "title " + id,
		CreatedAt:     createdAt,
		LocalFilename: id + ".png",
		SourceURL:     "https://example.com/" + id,
	}
}

func TestLoadFirstRun(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "metadata.json"))

	records, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "metadata.json"))

	records := map[string]*ImageRecord{
		"a": record("a", 100),
		"b": record("b", 200),
	}
	records["a"].Tags = []string{"sunset", "beach"}

	require.NoError(t, s.Save(records))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "title a", loaded["a"].Title)
	assert.Equal(t, []string{"sunset", "beach"}, loaded["a"].Tags)
	assert.Equal(t, int64(200), loaded["b"].CreatedAt)
}

func TestLoadCorruptStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, os.WriteFile(path, []byte("{ this is not json"), 0644))

	_, err := New(path).Load()
	require.Error(t, err)
	assert.True(t, errs.IsCorruptStore(err))
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	doc := `[{"id":"x","created_at":1,"local_filename":"x.png","source_url":"u","title":""},
	         {"id":"x","created_at":2,"local_filename":"x2.png","source_url":"u","title":""}]`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	_, err := New(path).Load()
	require.Error(t, err)
	assert.True(t, errs.IsCorruptStore(err))
}

func TestLoadRejectsMissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"title":"no id"}]`), 0644))

	_, err := New(path).Load()
	require.Error(t, err)
	assert.True(t, errs.IsCorruptStore(err))
}

func TestSaveSortsNewestFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	s := New(path)

	records := map[string]*ImageRecord{
		"old":    record("old", 100),
		"newest": record("newest", 300),
		"mid":    record("mid", 200),
	}
	require.NoError(t, s.Save(records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var list []*ImageRecord
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list, 3)
	assert.Equal(t, "newest", list[0].ID)
	assert.Equal(t, "mid", list[1].ID)
	assert.Equal(t, "old", list[2].ID)
}

func TestSaveIsByteStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	s := New(path)

	records := map[string]*ImageRecord{
		"a": record("a", 100),
		"b": record("b", 100), // same timestamp: id tie-break keeps output stable
		"c": record("c", 300),
	}

	require.NoError(t, s.Save(records))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	loaded, err := s.Load()
	require.NoError(t, err)
	require.NoError(t, s.Save(loaded))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "metadata.json"))
	require.NoError(t, s.Save(map[string]*ImageRecord{"a": record("a", 1)}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "metadata.json", entries[0].Name())
}

func TestSaveCreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "gallery", "metadata.json"))
	require.NoError(t, s.Save(map[string]*ImageRecord{"a": record("a", 1)}))

	_, err := os.Stat(filepath.Join(dir, "gallery", "metadata.json"))
	assert.NoError(t, err)
}

func TestSortedTieBreak(t *testing.T) {
	list := Sorted(map[string]*ImageRecord{
		"b": record("b", 100),
		"a": record("a", 100),
	})
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}
