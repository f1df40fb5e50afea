package document

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var (
	headingRE    = regexp.MustCompile(`^(#{1,6})\s+(.*\S)\s*$`)
	sectionRE    = regexp.MustCompile(`^(\d+)\.\s+(.*\S)\s*$`)
	tocEntryRE   = regexp.MustCompile(`^\s*[-*]\s+\[([^\]]+)\]\(#([^)]+)\)\s*$`)
	fenceOpenRE  = regexp.MustCompile("^```(.*)$")
	fenceCloseRE = regexp.MustCompile("^```\\s*$")
)

// Parse reads markdown from r and builds the Document model. path is recorded
// for finding locations only; no file IO happens here.
func Parse(r io.Reader, path string) (Document, error) {
	doc := Document{Path: path}
	anchors := newAnchorSet()

	var (
		current   *Section
		inFence   bool
		fenceInfo string
		fenceLine int
		fenceBody strings.Builder
		line      int
	)

	flushBlock := func() {
		block := CodeBlock{
			Language: firstField(fenceInfo),
			Info:     strings.TrimSpace(fenceInfo),
			Line:     fenceLine,
			Text:     fenceBody.String(),
		}
		if current != nil {
			block.Ordinal = len(current.Blocks) + 1
			current.Blocks = append(current.Blocks, block)
		} else {
			block.Ordinal = len(doc.Preamble) + 1
			doc.Preamble = append(doc.Preamble, block)
		}
		fenceBody.Reset()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line++
		text := scanner.Text()

		if inFence {
			if fenceCloseRE.MatchString(text) {
				inFence = false
				flushBlock()
				continue
			}
			fenceBody.WriteString(text)
			fenceBody.WriteByte('\n')
			continue
		}

		if m := fenceOpenRE.FindStringSubmatch(text); m != nil {
			inFence = true
			fenceInfo = m[1]
			fenceLine = line
			continue
		}

		if m := headingRE.FindStringSubmatch(text); m != nil {
			level, heading := len(m[1]), m[2]
			anchor := anchors.add(heading)
			if level == 1 && doc.Title == "" {
				doc.Title = heading
				continue
			}
			sm := sectionRE.FindStringSubmatch(heading)
			if level == 2 && sm != nil {
				if current != nil {
					doc.Sections = append(doc.Sections, *current)
				}
				ordinal, err := strconv.Atoi(sm[1])
				if err != nil {
					return Document{}, fmt.Errorf("line %d: section ordinal %q: %w", line, sm[1], err)
				}
				current = &Section{
					Ordinal: ordinal,
					Title:   sm[2],
					Heading: heading,
					Anchor:  anchor,
					Line:    line,
				}
			}
			continue
		}

		// ToC entries are only collected ahead of the first numbered section;
		// link lists inside section prose stay prose.
		if current == nil {
			if m := tocEntryRE.FindStringSubmatch(text); m != nil {
				doc.TOC = append(doc.TOC, TOCEntry{Text: m[1], Anchor: m[2], Line: line})
				continue
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Document{}, fmt.Errorf("scan %s: %w", path, err)
	}
	if inFence {
		return Document{}, fmt.Errorf("%s:%d: unclosed code fence", path, fenceLine)
	}
	if current != nil {
		doc.Sections = append(doc.Sections, *current)
	}
	doc.Anchors = anchors.all
	return doc, nil
}

// anchorSet derives anchors with GitHub's duplicate suffix rule: the second
// occurrence of a heading gets "-1", the third "-2", and so on.
type anchorSet struct {
	seen map[string]int
	all  []string
}

func newAnchorSet() *anchorSet {
	return &anchorSet{seen: make(map[string]int)}
}

func (a *anchorSet) add(heading string) string {
	base := Anchorize(heading)
	anchor := base
	if n, ok := a.seen[base]; ok {
		anchor = fmt.Sprintf("%s-%d", base, n)
	}
	a.seen[base]++
	a.all = append(a.all, anchor)
	return anchor
}

func firstField(info string) string {
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
