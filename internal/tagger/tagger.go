// Package tagger edits the tags of archived images. Tags are the only
// mutable field of a record; everything else is append-only.
package tagger

import (
	"fmt"
	"path/filepath"
	"strings"

	"imgarc/pkg/gallery"
	"imgarc/pkg/logger"
	"imgarc/pkg/store"
)

// Changes describes one tag edit applied to a set of records
type Changes struct {
	// Clear empties the tag list before Add is applied
	Clear  bool
	Add    []string
	Remove []string
}

func (c Changes) empty() bool {
	return !c.Clear && len(c.Add) == 0 && len(c.Remove) == 0
}

// Apply edits the tags of the given record ids, saves the store and
// re-renders the gallery. It returns how many records changed.
func Apply(root string, ids []string, changes Changes, log logger.Logger) (int, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("no record ids given")
	}
	if changes.empty() {
		return 0, fmt.Errorf("nothing to change: give --add, --remove or --clear")
	}

	metadataStore := store.New(filepath.Join(root, "metadata.json"))
	records, err := metadataStore.Load()
	if err != nil {
		return 0, err
	}

	var missing []string
	for _, id := range ids {
		if _, ok := records[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return 0, fmt.Errorf("unknown record ids: %s", strings.Join(missing, ", "))
	}

	changed := 0
	for _, id := range ids {
		rec := records[id]
		updated := edit(rec.Tags, changes)
		if !equal(rec.Tags, updated) {
			rec.Tags = updated
			changed++
		}
	}

	if changed == 0 {
		return 0, nil
	}

	if err := metadataStore.Save(records); err != nil {
		return 0, err
	}
	if err := gallery.NewRenderer(root, log).Render(records); err != nil {
		return 0, err
	}

	log.InfoWithFields("tags updated", map[string]interface{}{
		"records": changed,
	})
	return changed, nil
}

// edit applies clear, then remove, then add, deduplicating while
// keeping first-seen order.
func edit(tags []string, changes Changes) []string {
	var out []string
	if !changes.Clear {
		out = append(out, tags...)
	}

	for _, tag := range changes.Remove {
		for i, existing := range out {
			if existing == tag {
				out = append(out[:i], out[i+1:]...)
				break
			}
		}
	}

	for _, tag := range changes.Add {
		tag = strings.TrimSpace(tag)
		if tag == "" || contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

func contains(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
