package importer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgarc/pkg/store"
)

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("bytes of "+name), 0644))
	return path
}

func newTestImporter(root string) *Importer {
	imp := New(root, nil)
	imp.now = func() time.Time { return time.Unix(1700000000, 0) }
	return imp
}

func TestImportCopiesFile(t *testing.T) {
	srcDir := t.TempDir()
	root := t.TempDir()
	source := writeImage(t, srcDir, "Sunset Over Water.png")

	imported, err := newTestImporter(root).Import([]string{source}, Options{Copy: true})
	require.NoError(t, err)
	require.Len(t, imported, 1)

	rec := imported[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "sunset-over-water.png", rec.LocalFilename)
	assert.Equal(t, "Sunset Over Water", rec.Title)
	assert.Equal(t, int64(1700000000), rec.CreatedAt)

	// Copy leaves the source in place
	_, err = os.Stat(source)
	assert.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "images", rec.LocalFilename))
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes of Sunset Over Water.png"), data)
}

func TestImportMovesByDefault(t *testing.T) {
	srcDir := t.TempDir()
	root := t.TempDir()
	source := writeImage(t, srcDir, "photo.jpg")

	_, err := newTestImporter(root).Import([]string{source}, Options{})
	require.NoError(t, err)

	_, err = os.Stat(source)
	assert.True(t, os.IsNotExist(err), "source should be moved away")
	_, err = os.Stat(filepath.Join(root, "images", "photo.jpg"))
	assert.NoError(t, err)
}

func TestImportAppendsToExistingStore(t *testing.T) {
	srcDir := t.TempDir()
	root := t.TempDir()
	source := writeImage(t, srcDir, "new.png")

	existing := map[string]*store.ImageRecord{
		"old": {ID: "old", CreatedAt: 100, LocalFilename: "old.png", SourceURL: "u"},
	}
	metadataStore := store.New(filepath.Join(root, "metadata.json"))
	require.NoError(t, metadataStore.Save(existing))

	_, err := newTestImporter(root).Import([]string{source}, Options{Copy: true})
	require.NoError(t, err)

	records, err := metadataStore.Load()
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Contains(t, records, "old")
}

func TestImportDeduplicatesFilenames(t *testing.T) {
	srcA := t.TempDir()
	srcB := t.TempDir()
	root := t.TempDir()
	a := writeImage(t, srcA, "cat.png")
	b := writeImage(t, srcB, "cat.png")

	imported, err := newTestImporter(root).Import([]string{a, b}, Options{Copy: true})
	require.NoError(t, err)
	require.Len(t, imported, 2)

	names := map[string]bool{}
	for _, rec := range imported {
		names[rec.LocalFilename] = true
	}
	assert.True(t, names["cat.png"])
	assert.True(t, names["cat-2.png"])
}

func TestImportTagsAndTitle(t *testing.T) {
	srcDir := t.TempDir()
	root := t.TempDir()
	source := writeImage(t, srcDir, "img.png")

	imported, err := newTestImporter(root).Import([]string{source}, Options{
		Copy:  true,
		Tags:  []string{"holiday", "beach"},
		Title: "Custom Title",
	})
	require.NoError(t, err)
	require.Len(t, imported, 1)
	assert.Equal(t, []string{"holiday", "beach"}, imported[0].Tags)
	assert.Equal(t, "Custom Title", imported[0].Title)
}

func TestImportDirectoryRequiresRecursive(t *testing.T) {
	srcDir := t.TempDir()
	writeImage(t, srcDir, "a.png")

	_, err := newTestImporter(t.TempDir()).Import([]string{srcDir}, Options{Copy: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--recursive")
}

func TestImportRecursiveWalk(t *testing.T) {
	srcDir := t.TempDir()
	nested := filepath.Join(srcDir, "nested")
	require.NoError(t, os.MkdirAll(nested, 0755))
	writeImage(t, srcDir, "a.png")
	writeImage(t, nested, "b.jpg")
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "notes.txt"), []byte("skip me"), 0644))

	root := t.TempDir()
	imported, err := newTestImporter(root).Import([]string{srcDir}, Options{Copy: true, Recursive: true})
	require.NoError(t, err)
	assert.Len(t, imported, 2)
}

func TestImportRendersGallery(t *testing.T) {
	srcDir := t.TempDir()
	root := t.TempDir()
	source := writeImage(t, srcDir, "a.png")

	_, err := newTestImporter(root).Import([]string{source}, Options{Copy: true})
	require.NoError(t, err)

	for _, name := range []string{"index.html", "app.js", "style.css"} {
		_, err := os.Stat(filepath.Join(root, name))
		assert.NoError(t, err, name)
	}
}

func TestImportMissingInput(t *testing.T) {
	_, err := newTestImporter(t.TempDir()).Import([]string{"/does/not/exist.png"}, Options{})
	require.Error(t, err)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sunset Over Water", "sunset-over-water"},
		{"IMG_1234", "img-1234"},
		{"  spaces  ", "spaces"},
		{"***", "image"},
		{"", "image"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}
