package gallery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgarc/pkg/store"
)

func testRecords() map[string]*store.ImageRecord {
	return map[string]*store.ImageRecord{
		"a": {ID: "a", Title: "older", CreatedAt: 100, LocalFilename: "a.png", SourceURL: "https://example.com/a"},
		"b": {ID: "b", Title: "newer", CreatedAt: 200, LocalFilename: "b.png", SourceURL: "https://example.com/b"},
	}
}

func TestRenderWritesViewerFiles(t *testing.T) {
	root := t.TempDir()
	renderer := NewRenderer(root, nil)

	require.NoError(t, renderer.Render(testRecords()))

	for _, name := range []string{"index.html", "app.js", "style.css", "metadata.json"} {
		_, err := os.Stat(filepath.Join(root, name))
		assert.NoError(t, err, name)
	}
}

func TestRenderMetadataSortedNewestFirst(t *testing.T) {
	root := t.TempDir()
	renderer := NewRenderer(root, nil)

	require.NoError(t, renderer.Render(testRecords()))

	data, err := os.ReadFile(filepath.Join(root, "metadata.json"))
	require.NoError(t, err)

	var records []store.ImageRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[0].ID)
	assert.Equal(t, "a", records[1].ID)
}

func TestRenderIsIdempotent(t *testing.T) {
	root := t.TempDir()
	renderer := NewRenderer(root, nil)
	records := testRecords()

	require.NoError(t, renderer.Render(records))

	first := map[string][]byte{}
	for _, name := range []string{"index.html", "app.js", "style.css", "metadata.json"} {
		data, err := os.ReadFile(filepath.Join(root, name))
		require.NoError(t, err)
		first[name] = data
	}

	require.NoError(t, renderer.Render(records))

	for name, before := range first {
		after, err := os.ReadFile(filepath.Join(root, name))
		require.NoError(t, err)
		assert.Equal(t, before, after, "%s changed across identical renders", name)
	}
}

func TestRenderLeavesImagesAlone(t *testing.T) {
	root := t.TempDir()
	imagesDir := filepath.Join(root, "images")
	require.NoError(t, os.MkdirAll(imagesDir, 0755))

	imagePath := filepath.Join(imagesDir, "a.png")
	require.NoError(t, os.WriteFile(imagePath, []byte("original bytes"), 0644))

	renderer := NewRenderer(root, nil)
	require.NoError(t, renderer.Render(testRecords()))

	data, err := os.ReadFile(imagePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("original bytes"), data)

	entries, err := os.ReadDir(imagesDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRenderEmptyLibrary(t *testing.T) {
	root := t.TempDir()
	renderer := NewRenderer(root, nil)

	require.NoError(t, renderer.Render(map[string]*store.ImageRecord{}))

	data, err := os.ReadFile(filepath.Join(root, "metadata.json"))
	require.NoError(t, err)

	var records []store.ImageRecord
	require.NoError(t, json.Unmarshal(data, &records))
	assert.Empty(t, records)
}

func TestRenderCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "gallery")
	renderer := NewRenderer(root, nil)

	require.NoError(t, renderer.Render(testRecords()))

	_, err := os.Stat(filepath.Join(root, "index.html"))
	assert.NoError(t, err)
}
