package importer

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	frontMatterRe = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---\s*\n?(.*)$`)
	headingRe     = regexp.MustCompile(`(?m)^#\s+(.+)$`)
)

// FrontMatter holds the recognized keys of a markdown front matter block.
// Unknown keys are ignored.
type FrontMatter struct {
	Title    string   `yaml:"title"`
	Category string   `yaml:"category"`
	Tags     []string `yaml:"tags"`
	// Related lists paths of related documents, relative to the file.
	Related []string `yaml:"related"`
}

// parseFrontMatter splits an optional YAML front matter block off the content.
// Malformed YAML is treated as no front matter; the full content is returned
// as the body.
func parseFrontMatter(content string) (FrontMatter, string) {
	var fm FrontMatter
	m := frontMatterRe.FindStringSubmatch(content)
	if m == nil {
		return fm, content
	}
	if err := yaml.Unmarshal([]byte(m[1]), &fm); err != nil {
		return FrontMatter{}, content
	}
	return fm, m[2]
}

// extractTitle returns the first level-one heading in the body, or "".
func extractTitle(body string) string {
	m := headingRe.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
