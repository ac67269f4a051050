// Package canon defines the canonical YAML shape every ingestor normalizes
// content into, and the chunk-expansion format the search engine reads it
// back with.
package canon

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FAQ is one question/answer pair within a Section.
type FAQ struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

// Section is a titled group of FAQs. The search engine emits one
// SearchResult per Section when expanding a fused parent document.
type Section struct {
	Title string `yaml:"title"`
	FAQs  []FAQ  `yaml:"faqs"`
}

// Content is the canonical, ground-truth structure both ingestion and
// search chunk-expansion agree on.
type Content struct {
	Sections []Section `yaml:"sections"`
}

// Marshal serializes a Content to its canonical YAML text.
func Marshal(c Content) (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("canon: marshal: %w", err)
	}
	return string(out), nil
}

// MarshalSection serializes a single Section as a standalone Content
// document containing just that one section. Used by the ingestion
// pipeline's Stage 3, which persists one chunk document per Section.
func MarshalSection(s Section) (string, error) {
	return Marshal(Content{Sections: []Section{s}})
}

// Parse parses raw text as canonical YAML. Callers that need a fallback on
// failure (restructure, chunk expansion) must handle the error themselves;
// this function does not swallow parse errors.
func Parse(raw string) (Content, error) {
	var c Content
	if err := yaml.Unmarshal([]byte(raw), &c); err != nil {
		return Content{}, fmt.Errorf("canon: parse: %w", err)
	}
	return c, nil
}

// ExpandSection renders a Section's Markdown-ish chunk body used as a
// SearchResult's description: "## {title}\n\n" followed by each FAQ as
// "### Q: {question}\n\n{answer}", joined with blank lines.
func ExpandSection(s Section) string {
	var b strings.Builder
	b.WriteString("## ")
	b.WriteString(s.Title)
	b.WriteString("\n\n")

	parts := make([]string, 0, len(s.FAQs))
	for _, f := range s.FAQs {
		parts = append(parts, fmt.Sprintf("### Q: %s\n\n%s", f.Question, f.Answer))
	}
	b.WriteString(strings.Join(parts, "\n\n"))
	return b.String()
}
