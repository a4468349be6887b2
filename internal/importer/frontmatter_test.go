package importer

import "testing"

func TestParseFrontMatter(t *testing.T) {
	content := `---
title: My Doc
category: guides
tags:
  - setup
  - intro
related:
  - other.md
---
# Heading

Body text.
`
	fm, body := parseFrontMatter(content)
	if fm.Title != "My Doc" || fm.Category != "guides" {
		t.Errorf("unexpected front matter: %+v", fm)
	}
	if len(fm.Tags) != 2 || fm.Tags[0] != "setup" {
		t.Errorf("unexpected tags: %v", fm.Tags)
	}
	if len(fm.Related) != 1 || fm.Related[0] != "other.md" {
		t.Errorf("unexpected related: %v", fm.Related)
	}
	if body[:9] != "# Heading" {
		t.Errorf("body should start after the block, got %q", body[:20])
	}
}

func TestParseFrontMatter_None(t *testing.T) {
	content := "# Just a doc\n\nNo front matter here.\n"
	fm, body := parseFrontMatter(content)
	if fm.Title != "" || fm.Category != "" {
		t.Errorf("expected empty front matter, got %+v", fm)
	}
	if body != content {
		t.Error("body should be the full content")
	}
}

func TestParseFrontMatter_Malformed(t *testing.T) {
	content := "---\n\t: not yaml [\n---\nBody.\n"
	fm, body := parseFrontMatter(content)
	if fm.Title != "" {
		t.Errorf("malformed yaml should yield empty front matter, got %+v", fm)
	}
	if body != content {
		t.Error("malformed yaml should keep the full content as body")
	}
}

func TestExtractTitle(t *testing.T) {
	if got := extractTitle("intro\n\n# The Title\n\nmore"); got != "The Title" {
		t.Errorf("expected 'The Title', got %q", got)
	}
	if got := extractTitle("## only subheadings\n"); got != "" {
		t.Errorf("subheadings are not titles, got %q", got)
	}
}
