// Package importer brings local image files into the gallery: copy or
// move them under images/, append records for them and re-render.
package importer

import (
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"imgarc/pkg/gallery"
	"imgarc/pkg/logger"
	"imgarc/pkg/store"
)

// imageExtensions are the file types accepted for import
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
}

// Options control one import run
type Options struct {
	// Copy leaves the source files in place; the default moves them
	Copy bool
	// Recursive allows directory inputs, walked for image files
	Recursive bool
	// Tags are applied to every imported record
	Tags []string
	// Title overrides the slug-derived title for all imported images
	Title string
}

// Importer appends local images to a gallery
type Importer struct {
	root   string
	logger logger.Logger
	now    func() time.Time
}

// New creates an importer for the given gallery root
func New(root string, log logger.Logger) *Importer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Importer{root: root, logger: log, now: time.Now}
}

// Import brings the given files or directories into the gallery and
// re-renders it. It returns the records created.
func (imp *Importer) Import(inputs []string, opts Options) ([]*store.ImageRecord, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs supplied for import")
	}

	sources, err := collectSources(inputs, opts.Recursive)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no importable images found")
	}

	metadataStore := store.New(filepath.Join(imp.root, "metadata.json"))
	records, err := metadataStore.Load()
	if err != nil {
		return nil, err
	}

	imagesDir := filepath.Join(imp.root, "images")
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}

	taken := make(map[string]bool, len(records))
	for _, rec := range records {
		taken[rec.LocalFilename] = true
	}

	var imported []*store.ImageRecord
	for _, source := range sources {
		rec, err := imp.importOne(source, imagesDir, taken, opts)
		if err != nil {
			return nil, err
		}
		records[rec.ID] = rec
		imported = append(imported, rec)
	}

	if err := metadataStore.Save(records); err != nil {
		return nil, err
	}
	if err := gallery.NewRenderer(imp.root, imp.logger).Render(records); err != nil {
		return nil, err
	}

	imp.logger.InfoWithFields("import complete", map[string]interface{}{
		"imported": len(imported),
		"total":    len(records),
	})
	return imported, nil
}

// importOne places a single file under images/ and builds its record
func (imp *Importer) importOne(source, imagesDir string, taken map[string]bool, opts Options) (*store.ImageRecord, error) {
	base := filepath.Base(source)
	ext := strings.ToLower(filepath.Ext(base))
	if ext == "" {
		ext = ".jpg"
	}
	slug := Slugify(strings.TrimSuffix(base, filepath.Ext(base)))

	filename := uniqueFilename(slug, ext, taken)
	dest := filepath.Join(imagesDir, filename)

	if opts.Copy {
		if err := copyFile(source, dest); err != nil {
			return nil, err
		}
	} else {
		if err := moveFile(source, dest); err != nil {
			return nil, err
		}
	}

	title := opts.Title
	if title == "" {
		title = titleFromSlug(slug)
	}

	return &store.ImageRecord{
		ID:            uuid.New().String(),
		Title:         title,
		CreatedAt:     imp.now().Unix(),
		LocalFilename: filename,
		Tags:          append([]string(nil), opts.Tags...),
	}, nil
}

// collectSources expands the inputs into a flat, ordered file list
func collectSources(inputs []string, recursive bool) ([]string, error) {
	var sources []string
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("input path not found: %s", input)
		}

		if !info.IsDir() {
			if !isImageFile(input) {
				return nil, fmt.Errorf("not an image file: %s", input)
			}
			sources = append(sources, input)
			continue
		}

		if !recursive {
			return nil, fmt.Errorf("directory %s given without --recursive", input)
		}
		err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isImageFile(path) {
				sources = append(sources, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", input, err)
		}
	}
	sort.Strings(sources)
	return sources, nil
}

// isImageFile accepts known image extensions, falling back to the mime
// registry for anything else.
func isImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if imageExtensions[ext] {
		return true
	}
	return strings.HasPrefix(mime.TypeByExtension(ext), "image/")
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify reduces a name to lowercase ascii words joined by dashes
func Slugify(text string) string {
	slug := slugCleaner.ReplaceAllString(strings.ToLower(text), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "image"
	}
	return slug
}

// uniqueFilename appends -2, -3, ... until the name is free
func uniqueFilename(base, ext string, taken map[string]bool) string {
	candidate := base + ext
	for counter := 2; taken[candidate]; counter++ {
		candidate = fmt.Sprintf("%s-%d%s", base, counter, ext)
	}
	taken[candidate] = true
	return candidate
}

func titleFromSlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

func copyFile(source, dest string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", source, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("failed to copy %s: %w", source, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("failed to close %s: %w", dest, err)
	}
	return nil
}

// moveFile renames when possible and falls back to copy+remove for
// cross-device moves.
func moveFile(source, dest string) error {
	if err := os.Rename(source, dest); err == nil {
		return nil
	}
	if err := copyFile(source, dest); err != nil {
		return err
	}
	return os.Remove(source)
}
