package sqltext

import (
	"strings"
)

// Statement is one semicolon-terminated statement extracted from a block.
type Statement struct {
	Text string
	// Line is the absolute guide line of the statement's first character.
	Line int
	// Terminated records whether the statement ended with a semicolon.
	Terminated bool
}

// Preview returns the first line of the statement, truncated for reports.
func (s Statement) Preview() string {
	text := strings.TrimSpace(s.Text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx] + " ..."
	}
	const max = 120
	if len(text) > max {
		text = text[:max-4] + " ..."
	}
	return text
}

// Split divides src into statements at top-level semicolons, honoring line
// comments, nested block comments, string literals with doubled-quote
// escapes, quoted identifiers, and dollar-quoted bodies so function and
// trigger definitions stay whole. baseLine is the absolute guide line of the
// first line of src. The split is best effort: an unterminated construct
// swallows the rest of the block and the lexical screen reports it.
func Split(src string, baseLine int) []Statement {
	var stmts []Statement
	runes := []rune(src)
	line := baseLine
	i := 0
	start := -1
	startLine := 0
	hasCode := false

	flush := func(end int, terminated bool) {
		if start < 0 || !hasCode {
			start, hasCode = -1, false
			return
		}
		text := strings.TrimSpace(string(runes[start:end]))
		if text != "" {
			stmts = append(stmts, Statement{Text: text, Line: startLine, Terminated: terminated})
		}
		start, hasCode = -1, false
	}

	for i < len(runes) {
		r := runes[i]
		if r == '\n' {
			line++
			i++
			continue
		}
		if r == ' ' || r == '\t' || r == '\r' {
			i++
			continue
		}
		if start < 0 {
			start, startLine = i, line
		}
		switch {
		case r == '-' && peek(runes, i+1) == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == '/' && peek(runes, i+1) == '*':
			i, line, _ = skipBlockComment(runes, i, line)
		case r == '\'':
			_, i, line, _ = scanString(runes, i, line)
			hasCode = true
		case (r == 'e' || r == 'E') && peek(runes, i+1) == '\'':
			_, i, line, _ = scanEscapeString(runes, i, line)
			hasCode = true
		case r == '"':
			_, i, line, _ = scanQuoted(runes, i, line, '"')
			hasCode = true
		case r == '$':
			if tag, ok := dollarTag(runes, i); ok {
				_, i, line, _ = scanDollar(runes, i, line, tag)
			} else {
				i++
			}
			hasCode = true
		case r == ';':
			i++
			hasCode = true
			flush(i, true)
		default:
			hasCode = true
			i++
		}
	}
	flush(len(runes), false)
	return stmts
}
