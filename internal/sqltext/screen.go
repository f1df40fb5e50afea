package sqltext

import (
	"errors"
	"fmt"
	"strings"
)

// Issue is a lexical defect found by the permissive screen.
type Issue struct {
	Line    int
	Message string
}

// headKeywords lists the words a PostgreSQL statement may begin with. The
// screen is permissive about everything after the head; an example that opens
// with anything else is almost certainly a typo or a misplaced fragment.
var headKeywords = map[string]struct{}{
	"ABORT": {}, "ALTER": {}, "ANALYZE": {}, "BEGIN": {}, "CALL": {},
	"CHECKPOINT": {}, "CLOSE": {}, "CLUSTER": {}, "COMMENT": {}, "COMMIT": {},
	"COPY": {}, "CREATE": {}, "DEALLOCATE": {}, "DECLARE": {}, "DELETE": {},
	"DISCARD": {}, "DO": {}, "DROP": {}, "END": {}, "EXECUTE": {},
	"EXPLAIN": {}, "FETCH": {}, "GRANT": {}, "IMPORT": {}, "INSERT": {},
	"LISTEN": {}, "LOCK": {}, "MERGE": {}, "MOVE": {}, "NOTIFY": {},
	"PREPARE": {}, "REASSIGN": {}, "REFRESH": {}, "REINDEX": {}, "RELEASE": {},
	"RESET": {}, "REVOKE": {}, "ROLLBACK": {}, "SAVEPOINT": {}, "SELECT": {},
	"SET": {}, "SHOW": {}, "START": {}, "TABLE": {}, "TRUNCATE": {},
	"UNLISTEN": {}, "UPDATE": {}, "VACUUM": {}, "VALUES": {}, "WITH": {},
}

// Screen splits src into statements and reports lexical defects: anything
// that fails to lex, unbalanced parentheses, an unknown head keyword, psql
// meta-commands that belong in a shell block, and a missing terminating
// semicolon. baseLine is the absolute guide line of src's first line.
func Screen(src string, baseLine int) []Issue {
	var issues []Issue
	for _, stmt := range Split(src, baseLine) {
		issues = append(issues, screenStatement(stmt)...)
	}
	return issues
}

func screenStatement(stmt Statement) []Issue {
	tokens, err := Lex(stmt.Text, stmt.Line)
	if err != nil {
		var scanErr *ScanError
		if errors.As(err, &scanErr) {
			return []Issue{{Line: scanErr.Line, Message: scanErr.Message}}
		}
		return []Issue{{Line: stmt.Line, Message: err.Error()}}
	}
	if len(tokens) == 0 {
		return nil
	}

	var issues []Issue
	if tokens[0].Kind == TokenMeta {
		name := strings.Fields(tokens[0].Text)[0]
		issues = append(issues, Issue{
			Line:    tokens[0].Line,
			Message: fmt.Sprintf("psql meta-command %s belongs in a shell block", name),
		})
		return issues
	}

	if tokens[0].Kind != TokenWord {
		issues = append(issues, Issue{
			Line:    tokens[0].Line,
			Message: fmt.Sprintf("statement starts with %q, not a SQL keyword", tokens[0].Text),
		})
	} else if _, ok := headKeywords[tokens[0].Upper]; !ok {
		issues = append(issues, Issue{
			Line:    tokens[0].Line,
			Message: fmt.Sprintf("%q is not a known statement head keyword", tokens[0].Text),
		})
	}

	depth := 0
	for _, tok := range tokens {
		if tok.Kind != TokenPunct {
			continue
		}
		switch tok.Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth < 0 {
				issues = append(issues, Issue{Line: tok.Line, Message: "unmatched closing parenthesis"})
				depth = 0
			}
		}
	}
	if depth > 0 {
		issues = append(issues, Issue{Line: stmt.Line, Message: "unclosed parenthesis"})
	}

	if !stmt.Terminated {
		issues = append(issues, Issue{Line: stmt.Line, Message: "statement missing terminating semicolon"})
	}
	return issues
}
