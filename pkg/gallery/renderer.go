// Package gallery renders the static viewer into the gallery directory.
// The viewer is a self-contained page reading metadata.json at runtime,
// so rendering only has to keep the metadata document and the embedded
// assets in place. Image files are never touched here.
package gallery

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"imgarc/pkg/logger"
	"imgarc/pkg/store"
)

//go:embed assets
var assets embed.FS

// assetFiles are the viewer files installed at the gallery root
var assetFiles = []string{"index.html", "app.js", "style.css"}

// Renderer writes the gallery viewer under a root directory
type Renderer struct {
	root   string
	logger logger.Logger
}

// NewRenderer creates a renderer for the given gallery root
func NewRenderer(root string, log logger.Logger) *Renderer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Renderer{root: root, logger: log}
}

// Render writes metadata.json from the given records and installs the
// viewer assets. Rendering the same records twice produces identical
// bytes, so it is safe to call on every run.
func (r *Renderer) Render(records map[string]*store.ImageRecord) error {
	if err := os.MkdirAll(r.root, 0755); err != nil {
		return fmt.Errorf("failed to create gallery directory: %w", err)
	}

	metadataStore := store.New(filepath.Join(r.root, "metadata.json"))
	if err := metadataStore.Save(records); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	for _, name := range assetFiles {
		if err := r.installAsset(name); err != nil {
			return err
		}
	}

	r.logger.InfoWithFields("gallery rendered", map[string]interface{}{
		"root":   r.root,
		"images": len(records),
	})
	return nil
}

// installAsset writes one embedded viewer file, skipping the write when
// the on-disk copy already matches.
func (r *Renderer) installAsset(name string) error {
	content, err := assets.ReadFile("assets/" + name)
	if err != nil {
		return fmt.Errorf("missing embedded asset %s: %w", name, err)
	}

	path := filepath.Join(r.root, name)
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, content) {
		return nil
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
