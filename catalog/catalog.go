package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"chthabserver/models"
)

//go:embed locations.json
var embedded []byte

// Catalog maps category names to their ordered location entries. Read-only after load.
type Catalog struct {
	defaultCategory string
	categories      map[string][]models.LocationEntry
}

type catalogFile struct {
	Default    string            `json:"default"`
	Categories []models.Category `json:"categories"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(embedded)
}

// Load reads a catalog file, falling back to the embedded catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes catalog JSON. Entry names must be unique within a category.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c := &Catalog{
		defaultCategory: file.Default,
		categories:      make(map[string][]models.LocationEntry, len(file.Categories)),
	}
	for _, cat := range file.Categories {
		seen := make(map[string]bool, len(cat.Locations))
		for _, loc := range cat.Locations {
			if seen[loc.Name] {
				return nil, fmt.Errorf("category %q: duplicate location %q", cat.Name, loc.Name)
			}
			seen[loc.Name] = true
		}
		c.categories[cat.Name] = append([]models.LocationEntry(nil), cat.Locations...)
	}
	if _, ok := c.categories[c.defaultCategory]; !ok {
		return nil, fmt.Errorf("default category %q has no entries", c.defaultCategory)
	}
	return c, nil
}

// DefaultCategory is used when a room never selected one.
func (c *Catalog) DefaultCategory() string {
	return c.defaultCategory
}

// Entries returns a copy of the category's entries, or nil for an unknown category.
func (c *Catalog) Entries(category string) []models.LocationEntry {
	entries, ok := c.categories[category]
	if !ok {
		return nil
	}
	return append([]models.LocationEntry(nil), entries...)
}

// Categories lists every category sorted by name.
func (c *Catalog) Categories() []models.Category {
	out := make([]models.Category, 0, len(c.categories))
	for name, entries := range c.categories {
		out = append(out, models.Category{Name: name, Locations: append([]models.LocationEntry(nil), entries...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
