// Package overlay enumerates the static frame templates that can be
// composited onto acquired video. Templates are externally supplied image
// assets with a transparent region; the registry never creates or mutates
// them at runtime.
package overlay

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/frameshare/api/internal/model"
)

// Template is one selectable frame.
type Template struct {
	ID        string
	Name      string
	AssetPath string
}

// Registry holds the loaded templates, keyed by id.
type Registry struct {
	templates map[string]Template
	order     []string
}

// Load scans dir for PNG assets. The file stem becomes the template id;
// "gold_frame.png" is listed as id "gold_frame", name "Gold Frame".
func Load(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read overlay dir: %w", err)
	}

	r := &Registry{templates: make(map[string]Template)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		r.templates[id] = Template{
			ID:        id,
			Name:      displayName(id),
			AssetPath: filepath.Join(dir, entry.Name()),
		}
		r.order = append(r.order, id)
	}
	sort.Strings(r.order)
	return r, nil
}

// Get looks up a template by id.
func (r *Registry) Get(id string) (Template, bool) {
	t, ok := r.templates[id]
	return t, ok
}

// List returns all templates in stable id order.
func (r *Registry) List() []model.OverlayInfo {
	infos := make([]model.OverlayInfo, 0, len(r.order))
	for _, id := range r.order {
		t := r.templates[id]
		infos = append(infos, model.OverlayInfo{
			ID:       t.ID,
			Name:     t.Name,
			AssetRef: filepath.Base(t.AssetPath),
		})
	}
	return infos
}

func displayName(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
