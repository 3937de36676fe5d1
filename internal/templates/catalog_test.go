package templates

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleCatalog = `
templates:
  - name: listicle
    content_types: [post, linkedin_article]
    description: Numbered list of takeaways.
    structure:
      - Hook
      - Numbered points
      - CTA
  - name: case-study
    content_types: [seo_article]
    description: Problem, intervention, outcome.
  - name: universal
    description: Usable for any content type.
`

func TestParseYAML(t *testing.T) {
	c, err := ParseYAML([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}

	if len(c.All()) != 3 {
		t.Fatalf("expected 3 templates, got %d", len(c.All()))
	}

	tpl, ok := c.Get("listicle")
	if !ok {
		t.Fatal("listicle not found")
	}
	if len(tpl.Structure) != 3 || tpl.Structure[0] != "Hook" {
		t.Errorf("structure not parsed: %+v", tpl.Structure)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("lookup of unknown template succeeded")
	}
}

func TestForContentType(t *testing.T) {
	c, err := ParseYAML([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}

	got := c.ForContentType("post")
	names := make([]string, 0, len(got))
	for _, tpl := range got {
		names = append(names, tpl.Name)
	}
	// Typed match plus the untyped universal template.
	if len(names) != 2 || names[0] != "listicle" || names[1] != "universal" {
		t.Errorf("post templates = %v", names)
	}

	if got := c.ForContentType("seo_article"); len(got) != 2 {
		t.Errorf("seo_article templates = %v", got)
	}
}

func TestParseRejectsDuplicatesAndBlanks(t *testing.T) {
	if _, err := ParseYAML([]byte("templates:\n  - name: a\n  - name: a\n")); err == nil {
		t.Error("duplicate name accepted")
	}
	if _, err := ParseYAML([]byte("templates:\n  - description: no name\n")); err == nil {
		t.Error("blank name accepted")
	}
	if _, err := ParseYAML([]byte("  \n")); err == nil {
		t.Error("empty payload accepted")
	}
}

func TestLoadMissingFileYieldsEmptyCatalog(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.All()) != 0 {
		t.Errorf("expected empty catalog, got %d entries", len(c.All()))
	}

	c, err = Load("")
	if err != nil {
		t.Fatalf("Load empty path: %v", err)
	}
	if len(c.All()) != 0 {
		t.Errorf("expected empty catalog for empty path")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := c.Get("case-study"); !ok {
		t.Error("case-study not loaded")
	}
}
