// Package document parses the guide's markdown source into the section and
// code-block model the checks, sequencer, and sandbox operate on.
package document

import (
	"strings"
)

// Document is the parsed guide.
type Document struct {
	Path     string
	Title    string
	TOC      []TOCEntry
	Sections []Section
	// Preamble holds code blocks that appear before the first numbered
	// section. They are kept so the structure check can flag them.
	Preamble []CodeBlock
	// Anchors lists the derived anchor of every heading in document order,
	// including unnumbered headings, for ToC link validation.
	Anchors []string
}

// Section is one numbered guide topic.
type Section struct {
	Ordinal int
	Title   string
	Heading string
	Anchor  string
	Line    int
	Blocks  []CodeBlock
}

// CodeBlock is a fenced code block inside a section.
type CodeBlock struct {
	// Language is the first word of the fence info string ("sql", "shell").
	Language string
	// Info is the full fence info string, preserving modifiers such as "skip".
	Info    string
	Ordinal int
	Line    int
	Text    string
}

// Skip reports whether the block carries the "skip" info-string modifier,
// used for examples that are illustrative only (cluster-level DDL and the
// like) and must not run in the sandbox.
func (b CodeBlock) Skip() bool {
	fields := strings.Fields(b.Info)
	for i, field := range fields {
		if i > 0 && field == "skip" {
			return true
		}
	}
	return false
}

// TOCEntry is one link in the guide's table of contents.
type TOCEntry struct {
	Text   string
	Anchor string
	Line   int
}

// Section returns the section with the given ordinal, if present.
func (d Document) Section(ordinal int) (Section, bool) {
	for _, sec := range d.Sections {
		if sec.Ordinal == ordinal {
			return sec, true
		}
	}
	return Section{}, false
}

// Anchorize derives the GitHub-style anchor for a heading: lowercase, with
// punctuation removed and spaces replaced by hyphens.
func Anchorize(heading string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(heading)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	return b.String()
}
