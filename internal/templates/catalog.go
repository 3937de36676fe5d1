// Package templates loads the content template catalog from YAML. Templates
// are named layouts a generated outline may recommend; the catalog is the
// authority on which names exist and what they look like.
package templates

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template is one catalog entry.
type Template struct {
	Name         string   `yaml:"name" json:"name"`
	ContentTypes []string `yaml:"content_types" json:"contentTypes"`
	Description  string   `yaml:"description" json:"description"`
	Structure    []string `yaml:"structure,omitempty" json:"structure,omitempty"`
}

type catalogFile struct {
	Templates []Template `yaml:"templates"`
}

// Catalog is the loaded, validated template set.
type Catalog struct {
	templates []Template
	byName    map[string]Template
}

// ParseYAML decodes and validates a catalog payload.
func ParseYAML(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("templates: catalog payload is empty")
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("templates: decode catalog: %w", err)
	}

	c := &Catalog{byName: make(map[string]Template)}
	for i, tpl := range file.Templates {
		tpl.Name = strings.TrimSpace(tpl.Name)
		if tpl.Name == "" {
			return nil, fmt.Errorf("templates: entry %d has no name", i)
		}
		if _, dup := c.byName[tpl.Name]; dup {
			return nil, fmt.Errorf("templates: duplicate template %q", tpl.Name)
		}
		c.byName[tpl.Name] = tpl
		c.templates = append(c.templates, tpl)
	}
	sort.Slice(c.templates, func(i, j int) bool {
		return c.templates[i].Name < c.templates[j].Name
	})
	return c, nil
}

// Load reads a catalog from a YAML file. A missing file yields an empty
// catalog so the service can run without one configured.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return &Catalog{byName: make(map[string]Template)}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Catalog{byName: make(map[string]Template)}, nil
		}
		return nil, fmt.Errorf("templates: read %s: %w", path, err)
	}
	c, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("templates: %s: %w", path, err)
	}
	return c, nil
}

// All lists the catalog in name order.
func (c *Catalog) All() []Template {
	return append([]Template(nil), c.templates...)
}

// Get looks up a template by name.
func (c *Catalog) Get(name string) (Template, bool) {
	tpl, ok := c.byName[name]
	return tpl, ok
}

// ForContentType lists templates usable with a content type. Templates that
// declare no content types are usable with any.
func (c *Catalog) ForContentType(contentType string) []Template {
	matched := make([]Template, 0)
	for _, tpl := range c.templates {
		if len(tpl.ContentTypes) == 0 {
			matched = append(matched, tpl)
			continue
		}
		for _, ct := range tpl.ContentTypes {
			if ct == contentType {
				matched = append(matched, tpl)
				break
			}
		}
	}
	return matched
}
