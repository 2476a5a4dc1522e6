package labinterp

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FieldDefinition describes one laboratory measurement.
type FieldDefinition struct {
	Key         string `yaml:"key" json:"key"`
	Label       string `yaml:"label" json:"label"`
	NormalRange string `yaml:"normal_range" json:"normalRange"`
	Group       string `yaml:"group" json:"group"`
}

// CategoryDefinition is a clinical grouping of fields.
type CategoryDefinition struct {
	ID     string            `yaml:"id" json:"id"`
	Title  string            `yaml:"title" json:"title"`
	Fields []FieldDefinition `yaml:"fields" json:"fields"`
}

// Catalog is the ordered, read-only table of categories and their fields.
type Catalog struct {
	categories []CategoryDefinition
	byID       map[string]int
	byKey      map[string]FieldDefinition
}

var ErrUnknownCategory = errors.New("unknown lab category")

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type catalogFile struct {
	Categories []CategoryDefinition `yaml:"categories"`
}

// NewCatalog validates the categories and copies them into an immutable catalog.
func NewCatalog(categories ...CategoryDefinition) (*Catalog, error) {
	c := &Catalog{
		categories: make([]CategoryDefinition, 0, len(categories)),
		byID:       make(map[string]int, len(categories)),
		byKey:      make(map[string]FieldDefinition),
	}
	for _, cat := range categories {
		if cat.ID == "" {
			return nil, fmt.Errorf("category %q: id is required", cat.Title)
		}
		if _, dup := c.byID[cat.ID]; dup {
			return nil, fmt.Errorf("duplicate category id: %s", cat.ID)
		}
		fields := make([]FieldDefinition, len(cat.Fields))
		for i, f := range cat.Fields {
			if f.Key == "" {
				return nil, fmt.Errorf("category %s: field %d has no key", cat.ID, i)
			}
			if _, dup := c.byKey[f.Key]; dup {
				return nil, fmt.Errorf("duplicate field key: %s", f.Key)
			}
			if f.Label == "" {
				f.Label = f.Key
			}
			c.byKey[f.Key] = f
			fields[i] = f
		}
		c.byID[cat.ID] = len(c.categories)
		c.categories = append(c.categories, CategoryDefinition{ID: cat.ID, Title: cat.Title, Fields: fields})
	}
	return c, nil
}

// ParseCatalog decodes the YAML catalog format.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("catalog has no categories")
	}
	return NewCatalog(file.Categories...)
}

// LoadCatalogFile reads a YAML catalog from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the built-in catalog. A fresh value is returned on
// every call so callers never share state.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("labinterp: embedded catalog is invalid: %v", err))
	}
	return c
}

// Categories returns a copy of the categories in display order.
func (c *Catalog) Categories() []CategoryDefinition {
	if c == nil {
		return nil
	}
	out := make([]CategoryDefinition, len(c.categories))
	for i, cat := range c.categories {
		out[i] = CategoryDefinition{ID: cat.ID, Title: cat.Title, Fields: append([]FieldDefinition(nil), cat.Fields...)}
	}
	return out
}

// Category looks up a category by id.
func (c *Catalog) Category(id string) (CategoryDefinition, bool) {
	if c == nil {
		return CategoryDefinition{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return CategoryDefinition{}, false
	}
	cat := c.categories[i]
	return CategoryDefinition{ID: cat.ID, Title: cat.Title, Fields: append([]FieldDefinition(nil), cat.Fields...)}, true
}

// Field looks up a field by key across all categories.
func (c *Catalog) Field(key string) (FieldDefinition, bool) {
	if c == nil {
		return FieldDefinition{}, false
	}
	f, ok := c.byKey[key]
	return f, ok
}

// Len returns the number of categories.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.categories)
}

// Subset returns a catalog restricted to a single category.
func (c *Catalog) Subset(id string) (*Catalog, error) {
	cat, ok := c.Category(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, id)
	}
	return NewCatalog(cat)
}

// each walks categories without copying; only used inside the package.
func (c *Catalog) each(fn func(cat *CategoryDefinition)) {
	if c == nil {
		return
	}
	for i := range c.categories {
		fn(&c.categories[i])
	}
}
