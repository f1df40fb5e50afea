// Package checks implements the documentation-quality checks run against the
// parsed guide: section structure, SQL block syntax screening, within-section
// referential consistency, and table-of-contents link integrity.
package checks

import (
	"fmt"
	"strings"

	"sqlguide/internal/document"
	"sqlguide/internal/sqltext"
	"sqlguide/pkg/report"
)

// LanguageSQL and LanguageShell are the block labels the toolchain understands.
const (
	LanguageSQL   = "sql"
	LanguageShell = "shell"
)

// Run executes every check against doc and returns the combined findings.
func Run(doc document.Document) []report.Finding {
	var findings []report.Finding
	findings = append(findings, Structure(doc)...)
	findings = append(findings, Syntax(doc)...)
	findings = append(findings, References(doc)...)
	findings = append(findings, TOC(doc)...)
	return findings
}

// Structure verifies the section skeleton: ordinals unique and increasing,
// no code blocks ahead of the first numbered section, and every block labeled.
func Structure(doc document.Document) []report.Finding {
	var findings []report.Finding
	add := func(section, line int, format string, args ...any) {
		findings = append(findings, report.Finding{
			Check:   report.CheckStructure,
			File:    doc.Path,
			Section: section,
			Line:    line,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if len(doc.Sections) == 0 {
		add(0, 0, "guide has no numbered sections")
		return findings
	}
	for _, block := range doc.Preamble {
		add(0, block.Line, "code block appears before the first numbered section")
	}

	seen := map[int]int{}
	prev := 0
	for _, sec := range doc.Sections {
		if first, dup := seen[sec.Ordinal]; dup {
			add(sec.Ordinal, sec.Line, "section ordinal %d already used at line %d", sec.Ordinal, first)
		}
		seen[sec.Ordinal] = sec.Line
		if sec.Ordinal <= prev {
			add(sec.Ordinal, sec.Line, "section ordinal %d does not increase (previous was %d)", sec.Ordinal, prev)
		}
		prev = sec.Ordinal
		for _, block := range sec.Blocks {
			if block.Language == "" {
				add(sec.Ordinal, block.Line, "code block is missing a language label")
			}
		}
	}
	return findings
}

// Syntax runs the permissive lexical screen over every sql block.
func Syntax(doc document.Document) []report.Finding {
	var findings []report.Finding
	for _, sec := range doc.Sections {
		for _, block := range sec.Blocks {
			if block.Language != LanguageSQL {
				continue
			}
			for _, issue := range sqltext.Screen(block.Text, block.Line+1) {
				findings = append(findings, report.Finding{
					Check:   report.CheckSyntax,
					File:    doc.Path,
					Section: sec.Ordinal,
					Block:   block.Ordinal,
					Line:    issue.Line,
					Message: issue.Message,
				})
			}
		}
	}
	return findings
}

// References verifies that within each section every relation a statement
// references was introduced by an earlier statement of the same section.
// Sections are independent: the sandbox gives each one a fresh schema, so a
// reference reaching across sections is a defect, not a convenience.
func References(doc document.Document) []report.Finding {
	var findings []report.Finding
	for _, sec := range doc.Sections {
		introduced := map[string]bool{}
		for _, block := range sec.Blocks {
			if block.Language != LanguageSQL {
				continue
			}
			for _, stmt := range sqltext.Split(block.Text, block.Line+1) {
				rel, err := sqltext.RelationsOf(stmt)
				if err != nil {
					continue // the syntax check reports this statement
				}
				fresh := map[string]bool{}
				for _, use := range rel.Introduced {
					fresh[use.Name] = true
					fresh[baseName(use.Name)] = true
				}
				for _, use := range rel.Referenced {
					if introduced[use.Name] || introduced[baseName(use.Name)] ||
						fresh[use.Name] || fresh[baseName(use.Name)] || systemRelation(use.Name) {
						continue
					}
					findings = append(findings, report.Finding{
						Check:   report.CheckReferences,
						File:    doc.Path,
						Section: sec.Ordinal,
						Block:   block.Ordinal,
						Line:    use.Line,
						Message: fmt.Sprintf("relation %q is referenced before being introduced in section %d", use.Name, sec.Ordinal),
					})
				}
				for name := range fresh {
					introduced[name] = true
				}
			}
		}
	}
	return findings
}

// TOC validates link integrity in both directions: every ToC anchor resolves
// to a heading and every section appears in the ToC.
func TOC(doc document.Document) []report.Finding {
	var findings []report.Finding
	if len(doc.Sections) > 0 && len(doc.TOC) == 0 {
		findings = append(findings, report.Finding{
			Check:   report.CheckTOC,
			File:    doc.Path,
			Message: "guide has no table of contents",
		})
		return findings
	}

	headings := map[string]bool{}
	for _, anchor := range doc.Anchors {
		headings[anchor] = true
	}
	linked := map[string]bool{}
	for _, entry := range doc.TOC {
		linked[entry.Anchor] = true
		if !headings[entry.Anchor] {
			findings = append(findings, report.Finding{
				Check:   report.CheckTOC,
				File:    doc.Path,
				Line:    entry.Line,
				Message: fmt.Sprintf("toc links to #%s but no heading produces that anchor", entry.Anchor),
			})
		}
	}
	for _, sec := range doc.Sections {
		if !linked[sec.Anchor] {
			findings = append(findings, report.Finding{
				Check:   report.CheckTOC,
				File:    doc.Path,
				Section: sec.Ordinal,
				Line:    sec.Line,
				Message: fmt.Sprintf("section %d (%s) is missing from the table of contents", sec.Ordinal, sec.Title),
			})
		}
	}
	return findings
}

func baseName(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// systemRelation reports names the engine provides: system catalogs and
// information_schema views need no introduction.
func systemRelation(name string) bool {
	return strings.HasPrefix(name, "pg_") ||
		strings.HasPrefix(name, "pg_catalog.") ||
		strings.HasPrefix(name, "information_schema.")
}
