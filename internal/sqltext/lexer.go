// Package sqltext provides the lexical SQL handling the toolchain needs:
// splitting fenced blocks into statements, a permissive token scan used to
// screen examples for obvious defects, and table-level relation analysis for
// the referential-consistency check. It deliberately stops short of parsing
// SQL grammar; the external engine remains the authority on semantics.
package sqltext

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenKind classifies a scanned token.
type TokenKind int

// Token kinds produced by Lex.
const (
	TokenWord        TokenKind = iota // bare identifier or keyword
	TokenQuotedIdent                  // "Mixed Case"
	TokenString                       // 'text', E'text', $$body$$
	TokenNumber
	TokenOperator
	TokenPunct // ( ) [ ] , ; .
	TokenParam // $1
	TokenMeta  // \d and other psql meta-commands
)

// Token is one lexical unit of a statement.
type Token struct {
	Kind TokenKind
	Text string
	// Upper is the uppercased text for word tokens, empty otherwise.
	Upper string
	Line  int
}

// ScanError reports a lexical defect with its line in the guide.
type ScanError struct {
	Line    int
	Message string
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

const operatorRunes = "+-*/<>=~!@#%^&|`?:"

// Lex scans src into tokens. line is the absolute guide line of the first
// character of src and is carried onto tokens for finding locations. Comments
// are consumed and not emitted. The scan is permissive: anything the engine
// might accept lexes; only unterminated constructs fail.
func Lex(src string, line int) ([]Token, error) {
	var tokens []Token
	runes := []rune(src)
	i := 0
	atLineStart := true

	emit := func(kind TokenKind, text string, tokLine int) {
		tok := Token{Kind: kind, Text: text, Line: tokLine}
		if kind == TokenWord {
			tok.Upper = strings.ToUpper(text)
		}
		tokens = append(tokens, tok)
	}

	for i < len(runes) {
		r := runes[i]
		switch {
		case r == '\n':
			line++
			atLineStart = true
			i++
			continue
		case unicode.IsSpace(r):
			i++
			continue
		case r == '-' && peek(runes, i+1) == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			continue
		case r == '/' && peek(runes, i+1) == '*':
			var err *ScanError
			i, line, err = skipBlockComment(runes, i, line)
			if err != nil {
				return nil, err
			}
			continue
		case r == '\\' && atLineStart:
			start := i
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			emit(TokenMeta, string(runes[start:i]), line)
			continue
		case r == '\'':
			text, next, endLine, ok := scanString(runes, i, line)
			if !ok {
				return nil, &ScanError{Line: line, Message: "unterminated string literal"}
			}
			emit(TokenString, text, line)
			i, line = next, endLine
		case (r == 'e' || r == 'E') && peek(runes, i+1) == '\'':
			text, next, endLine, ok := scanEscapeString(runes, i, line)
			if !ok {
				return nil, &ScanError{Line: line, Message: "unterminated string literal"}
			}
			emit(TokenString, text, line)
			i, line = next, endLine
		case r == '"':
			text, next, endLine, ok := scanQuoted(runes, i, line, '"')
			if !ok {
				return nil, &ScanError{Line: line, Message: "unterminated quoted identifier"}
			}
			emit(TokenQuotedIdent, text, line)
			i, line = next, endLine
		case r == '$':
			if tag, ok := dollarTag(runes, i); ok {
				text, next, endLine, found := scanDollar(runes, i, line, tag)
				if !found {
					return nil, &ScanError{Line: line, Message: fmt.Sprintf("unterminated dollar-quoted string %s", tag)}
				}
				emit(TokenString, text, line)
				i, line = next, endLine
			} else if isDigit(peek(runes, i+1)) {
				start := i
				i++
				for i < len(runes) && isDigit(runes[i]) {
					i++
				}
				emit(TokenParam, string(runes[start:i]), line)
			} else {
				emit(TokenOperator, "$", line)
				i++
			}
		case isWordStart(r):
			start := i
			for i < len(runes) && isWordRune(runes[i]) {
				i++
			}
			emit(TokenWord, string(runes[start:i]), line)
		case isDigit(r):
			start := i
			for i < len(runes) && (isDigit(runes[i]) || runes[i] == '.' || runes[i] == 'e' || runes[i] == 'E') {
				i++
			}
			emit(TokenNumber, string(runes[start:i]), line)
		case strings.ContainsRune("()[],;.", r):
			emit(TokenPunct, string(r), line)
			i++
		case strings.ContainsRune(operatorRunes, r):
			start := i
			for i < len(runes) && strings.ContainsRune(operatorRunes, runes[i]) {
				i++
			}
			emit(TokenOperator, string(runes[start:i]), line)
		default:
			return nil, &ScanError{Line: line, Message: fmt.Sprintf("unexpected character %q", r)}
		}
		atLineStart = false
	}
	return tokens, nil
}

func peek(runes []rune, i int) rune {
	if i < 0 || i >= len(runes) {
		return 0
	}
	return runes[i]
}

func skipBlockComment(runes []rune, i, line int) (int, int, *ScanError) {
	startLine := line
	depth := 0
	for i < len(runes) {
		switch {
		case runes[i] == '\n':
			line++
			i++
		case runes[i] == '/' && peek(runes, i+1) == '*':
			depth++
			i += 2
		case runes[i] == '*' && peek(runes, i+1) == '/':
			depth--
			i += 2
			if depth == 0 {
				return i, line, nil
			}
		default:
			i++
		}
	}
	return i, line, &ScanError{Line: startLine, Message: "unterminated block comment"}
}

// scanString handles standard single-quoted literals with '' escapes.
func scanString(runes []rune, i, line int) (string, int, int, bool) {
	start := i
	i++
	for i < len(runes) {
		switch {
		case runes[i] == '\n':
			line++
			i++
		case runes[i] == '\'' && peek(runes, i+1) == '\'':
			i += 2
		case runes[i] == '\'':
			i++
			return string(runes[start:i]), i, line, true
		default:
			i++
		}
	}
	return "", i, line, false
}

// scanEscapeString handles E'...' literals where backslash escapes a quote.
func scanEscapeString(runes []rune, i, line int) (string, int, int, bool) {
	start := i
	i += 2
	for i < len(runes) {
		switch {
		case runes[i] == '\n':
			line++
			i++
		case runes[i] == '\\':
			i += 2
		case runes[i] == '\'' && peek(runes, i+1) == '\'':
			i += 2
		case runes[i] == '\'':
			i++
			return string(runes[start:i]), i, line, true
		default:
			i++
		}
	}
	return "", i, line, false
}

func scanQuoted(runes []rune, i, line int, quote rune) (string, int, int, bool) {
	start := i
	i++
	for i < len(runes) {
		switch {
		case runes[i] == '\n':
			line++
			i++
		case runes[i] == quote && peek(runes, i+1) == quote:
			i += 2
		case runes[i] == quote:
			i++
			return string(runes[start:i]), i, line, true
		default:
			i++
		}
	}
	return "", i, line, false
}

// dollarTag reports whether runes[i:] opens a dollar quote and returns the
// full opener, e.g. "$$" or "$body$".
func dollarTag(runes []rune, i int) (string, bool) {
	if peek(runes, i) != '$' {
		return "", false
	}
	j := i + 1
	// Tag characters are word runes, but '$' itself closes the tag.
	for j < len(runes) && runes[j] != '$' && isWordRune(runes[j]) {
		j++
	}
	if peek(runes, j) != '$' {
		return "", false
	}
	return string(runes[i : j+1]), true
}

func scanDollar(runes []rune, i, line int, tag string) (string, int, int, bool) {
	start := i
	i += len([]rune(tag))
	closer := []rune(tag)
	for i < len(runes) {
		if runes[i] == '\n' {
			line++
			i++
			continue
		}
		if runes[i] == '$' && hasPrefixRunes(runes[i:], closer) {
			i += len(closer)
			return string(runes[start:i]), i, line, true
		}
		i++
	}
	return "", i, line, false
}

func hasPrefixRunes(runes, prefix []rune) bool {
	if len(runes) < len(prefix) {
		return false
	}
	for k := range prefix {
		if runes[k] != prefix[k] {
			return false
		}
	}
	return true
}

func isWordStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isWordRune(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
