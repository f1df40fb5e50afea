package sqltext

import (
	"strings"
)

// RelationUse is a relation name observed in a statement.
type RelationUse struct {
	Name string
	Line int
}

// StatementRelations summarizes the table-level relation analysis of a single
// statement: names it introduces into the schema and names it expects to
// already exist. CTE names are resolved statement-locally and never escape.
type StatementRelations struct {
	Head       string
	Introduced []RelationUse
	Referenced []RelationUse
}

var createModifiers = wordSet("OR", "REPLACE", "TEMP", "TEMPORARY", "UNLOGGED",
	"GLOBAL", "LOCAL", "MATERIALIZED", "UNIQUE", "RECURSIVE", "FOREIGN")

var fromStopWords = wordSet("WHERE", "JOIN", "INNER", "LEFT", "RIGHT", "FULL",
	"CROSS", "NATURAL", "ON", "USING", "GROUP", "ORDER", "HAVING", "LIMIT",
	"OFFSET", "UNION", "INTERSECT", "EXCEPT", "WINDOW", "FOR", "RETURNING",
	"SET", "WHEN", "AND", "OR", "NOT", "FETCH", "TABLESAMPLE")

var cteMainVerbs = wordSet("SELECT", "INSERT", "UPDATE", "DELETE", "TABLE", "VALUES", "MERGE")

// fromOperandFuncs take FROM as an argument separator inside their call
// parentheses: EXTRACT(YEAR FROM ts), SUBSTRING(s FROM 2), TRIM(' ' FROM s).
var fromOperandFuncs = wordSet("EXTRACT", "SUBSTRING", "TRIM", "OVERLAY", "POSITION")

// RelationsOf lexes stmt and extracts the relations it introduces and
// references. The analysis is lexical: it follows the handful of clause
// shapes that name relations (CREATE, FROM/JOIN, INSERT INTO, UPDATE,
// TRUNCATE, ALTER, DROP, REFERENCES, COPY, COMMENT ON, PARTITION OF) and
// leaves everything else to the engine.
func RelationsOf(stmt Statement) (StatementRelations, error) {
	tokens, err := Lex(stmt.Text, stmt.Line)
	if err != nil {
		return StatementRelations{}, err
	}
	if len(tokens) == 0 || tokens[0].Kind != TokenWord {
		return StatementRelations{}, nil
	}

	rel := StatementRelations{Head: tokens[0].Upper}
	local := map[string]bool{}
	if rel.Head == "WITH" {
		local = cteNames(tokens)
	}
	neutral := fromNeutral(tokens)

	introduce := func(use RelationUse) {
		if use.Name != "" {
			rel.Introduced = append(rel.Introduced, use)
		}
	}
	reference := func(use RelationUse) {
		if use.Name == "" || local[use.Name] {
			return
		}
		rel.Referenced = append(rel.Referenced, use)
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Kind != TokenWord {
			continue
		}
		switch tok.Upper {
		case "CREATE":
			if i == 0 {
				i = analyzeCreate(tokens, introduce, reference)
			}
		case "FROM", "JOIN":
			if tok.Upper == "FROM" {
				if rel.Head == "COPY" {
					continue // COPY ... FROM 'file'
				}
				// EXTRACT(YEAR FROM ts) and IS [NOT] DISTINCT FROM compare
				// operands; neither starts a relation list.
				if neutral[i] || (i > 0 && wordIs(tokens[i-1], "DISTINCT")) {
					continue
				}
			}
			i = collectList(tokens, i+1, reference) - 1
		case "USING":
			// Relation lists only in DELETE ... USING and MERGE ... USING;
			// elsewhere USING names columns or index methods.
			if rel.Head == "DELETE" || rel.Head == "MERGE" || rel.Head == "WITH" {
				i = collectList(tokens, i+1, reference) - 1
			}
		case "INTO":
			switch rel.Head {
			case "INSERT", "MERGE":
				i = collectOne(tokens, i+1, reference) - 1
			case "SELECT", "WITH", "EXPLAIN":
				i = collectOne(tokens, skipWords(tokens, i+1, "TEMP", "TEMPORARY", "UNLOGGED", "TABLE"), introduce) - 1
			}
		case "UPDATE":
			if i == 0 {
				i = collectOne(tokens, skipWords(tokens, 1, "ONLY"), reference) - 1
			}
		case "TRUNCATE":
			if i == 0 {
				i = collectList(tokens, skipWords(tokens, 1, "TABLE", "ONLY"), reference) - 1
			}
		case "ALTER":
			if i == 0 {
				i = analyzeAlter(tokens, introduce, reference)
			}
		case "DROP":
			if i == 0 {
				i = analyzeDrop(tokens, reference)
			}
		case "REFERENCES":
			i = collectOne(tokens, i+1, reference) - 1
		case "COPY":
			if i == 0 {
				i = collectOne(tokens, 1, reference) - 1
			}
		case "COMMENT":
			if i == 0 {
				i = analyzeComment(tokens, reference)
			}
		case "OF":
			if i > 0 && tokens[i-1].Kind == TokenWord && tokens[i-1].Upper == "PARTITION" {
				i = collectOne(tokens, i+1, reference) - 1
			}
		}
	}
	return rel, nil
}

// cteNames collects the names defined by a WITH clause so references to them
// are not mistaken for missing tables.
func cteNames(tokens []Token) map[string]bool {
	names := map[string]bool{}
	depth := 0
	lastName := ""
	for _, tok := range tokens {
		if tok.Kind == TokenPunct {
			switch tok.Text {
			case "(":
				depth++
			case ")":
				depth--
			}
			continue
		}
		if depth != 0 || tok.Kind != TokenWord {
			continue
		}
		switch {
		case cteMainVerbs[tok.Upper]:
			return names
		case tok.Upper == "AS":
			if lastName != "" {
				names[lastName] = true
				lastName = ""
			}
		case tok.Upper == "WITH" || tok.Upper == "RECURSIVE" || tok.Upper == "NOT" || tok.Upper == "MATERIALIZED":
		default:
			lastName = foldWord(tok)
		}
	}
	return names
}

// fromNeutral marks the tokens inside fromOperandFuncs call parentheses so
// the main scan does not mistake their FROM separators for relation lists.
func fromNeutral(tokens []Token) []bool {
	neutral := make([]bool, len(tokens))
	for i := 0; i < len(tokens)-1; i++ {
		if tokens[i].Kind != TokenWord || !fromOperandFuncs[tokens[i].Upper] || !isPunct(tokens, i+1, "(") {
			continue
		}
		depth := 0
		for j := i + 1; j < len(tokens); j++ {
			if tokens[j].Kind == TokenPunct {
				switch tokens[j].Text {
				case "(":
					depth++
				case ")":
					depth--
				}
			}
			neutral[j] = true
			if depth == 0 {
				break
			}
		}
	}
	return neutral
}

func analyzeCreate(tokens []Token, introduce, reference func(RelationUse)) int {
	j := 1
	for j < len(tokens) && tokens[j].Kind == TokenWord && createModifiers[tokens[j].Upper] {
		j++
	}
	if j >= len(tokens) || tokens[j].Kind != TokenWord {
		return j
	}
	kind := tokens[j].Upper
	j++
	j = skipWords(tokens, j, "CONCURRENTLY")
	j = skipIfNotExists(tokens, j)

	switch kind {
	case "INDEX":
		// Index names are optional: CREATE INDEX ON t (...).
		if j < len(tokens) && !(tokens[j].Kind == TokenWord && tokens[j].Upper == "ON") {
			var use RelationUse
			use, j = relationName(tokens, j)
			introduce(use)
		}
		j = skipWords(tokens, j, "ON")
		j = skipWords(tokens, j, "ONLY")
		var use RelationUse
		use, j = relationName(tokens, j)
		reference(use)
	case "TRIGGER", "POLICY", "RULE":
		var use RelationUse
		use, j = relationName(tokens, j)
		introduce(use)
		for j < len(tokens) {
			if tokens[j].Kind == TokenWord && tokens[j].Upper == "ON" {
				var target RelationUse
				target, j = relationName(tokens, j+1)
				reference(target)
				break
			}
			j++
		}
	default:
		var use RelationUse
		use, j = relationName(tokens, j)
		introduce(use)
	}
	return j - 1
}

func analyzeAlter(tokens []Token, introduce, reference func(RelationUse)) int {
	j := skipWords(tokens, 1, "TABLE", "INDEX", "SEQUENCE", "VIEW", "MATERIALIZED", "TYPE", "SCHEMA", "FUNCTION", "TRIGGER")
	j = skipIfExists(tokens, j)
	j = skipWords(tokens, j, "ONLY")
	use, j := relationName(tokens, j)
	reference(use)
	// ALTER ... RENAME TO introduces the new name.
	for j < len(tokens)-1 {
		if tokens[j].Kind == TokenWord && tokens[j].Upper == "RENAME" &&
			tokens[j+1].Kind == TokenWord && tokens[j+1].Upper == "TO" {
			var renamed RelationUse
			renamed, j = relationName(tokens, j+2)
			introduce(renamed)
			break
		}
		j++
	}
	return j - 1
}

func analyzeDrop(tokens []Token, reference func(RelationUse)) int {
	j := skipWords(tokens, 1, "TABLE", "INDEX", "SEQUENCE", "VIEW", "MATERIALIZED", "TYPE",
		"SCHEMA", "FUNCTION", "PROCEDURE", "TRIGGER", "EXTENSION", "ROLE", "USER", "DATABASE",
		"DOMAIN", "POLICY", "RULE", "CONCURRENTLY")
	guarded := false
	if j+1 < len(tokens) && tokens[j].Kind == TokenWord && tokens[j].Upper == "IF" &&
		tokens[j+1].Kind == TokenWord && tokens[j+1].Upper == "EXISTS" {
		guarded = true
		j += 2
	}
	sink := reference
	if guarded {
		// DROP ... IF EXISTS is a legitimate reset idiom; it neither
		// requires nor introduces the relation.
		sink = func(RelationUse) {}
	}
	return collectList(tokens, j, sink) - 1
}

func analyzeComment(tokens []Token, reference func(RelationUse)) int {
	// COMMENT ON <kind> <name> IS '...'
	j := skipWords(tokens, 1, "ON")
	if j >= len(tokens) || tokens[j].Kind != TokenWord {
		return j
	}
	kind := tokens[j].Upper
	j++
	use, j := relationName(tokens, j)
	if kind == "COLUMN" {
		// The relation is the qualifier of table.column.
		if idx := strings.LastIndexByte(use.Name, '.'); idx > 0 {
			use.Name = use.Name[:idx]
		}
	}
	reference(use)
	return j - 1
}

// collectList gathers a comma-separated list of relation names starting at j,
// skipping aliases and stopping at clause keywords or subqueries.
func collectList(tokens []Token, j int, sink func(RelationUse)) int {
	for {
		j = skipWords(tokens, j, "ONLY", "LATERAL")
		if j >= len(tokens) || isPunct(tokens, j, "(") {
			return j
		}
		use, next := relationName(tokens, j)
		if use.Name == "" {
			return j
		}
		if isPunct(tokens, next, "(") {
			// Function call in a FROM list: skip its argument list and
			// do not record a relation.
			next = skipParens(tokens, next)
		} else {
			sink(use)
		}
		j = skipAlias(tokens, next)
		if !isPunct(tokens, j, ",") {
			return j
		}
		j++
	}
}

func collectOne(tokens []Token, j int, sink func(RelationUse)) int {
	use, next := relationName(tokens, j)
	sink(use)
	return next
}

// relationName consumes a possibly schema-qualified name at j. Unquoted parts
// fold to lowercase the way the engine does; quoted parts keep their case.
func relationName(tokens []Token, j int) (RelationUse, int) {
	if j >= len(tokens) {
		return RelationUse{}, j
	}
	tok := tokens[j]
	if tok.Kind != TokenWord && tok.Kind != TokenQuotedIdent {
		return RelationUse{}, j
	}
	name := foldWord(tok)
	line := tok.Line
	j++
	for j+1 < len(tokens) && isPunct(tokens, j, ".") &&
		(tokens[j+1].Kind == TokenWord || tokens[j+1].Kind == TokenQuotedIdent) {
		name += "." + foldWord(tokens[j+1])
		j += 2
	}
	return RelationUse{Name: name, Line: line}, j
}

func skipAlias(tokens []Token, j int) int {
	if j < len(tokens) && tokens[j].Kind == TokenWord && tokens[j].Upper == "AS" {
		j++
	}
	if j < len(tokens) && tokens[j].Kind == TokenWord && !fromStopWords[tokens[j].Upper] {
		j++
		// Column aliases: FROM generate_series(1, 3) AS g(n).
		if isPunct(tokens, j, "(") {
			j = skipParens(tokens, j)
		}
	}
	return j
}

func skipParens(tokens []Token, j int) int {
	if !isPunct(tokens, j, "(") {
		return j
	}
	depth := 0
	for ; j < len(tokens); j++ {
		if tokens[j].Kind != TokenPunct {
			continue
		}
		switch tokens[j].Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return j + 1
			}
		}
	}
	return j
}

func skipWords(tokens []Token, j int, words ...string) int {
	set := wordSet(words...)
	for j < len(tokens) && tokens[j].Kind == TokenWord && set[tokens[j].Upper] {
		j++
	}
	return j
}

func skipIfNotExists(tokens []Token, j int) int {
	if j+2 < len(tokens) &&
		wordIs(tokens[j], "IF") && wordIs(tokens[j+1], "NOT") && wordIs(tokens[j+2], "EXISTS") {
		return j + 3
	}
	return j
}

func skipIfExists(tokens []Token, j int) int {
	if j+1 < len(tokens) && wordIs(tokens[j], "IF") && wordIs(tokens[j+1], "EXISTS") {
		return j + 2
	}
	return j
}

func wordIs(tok Token, upper string) bool {
	return tok.Kind == TokenWord && tok.Upper == upper
}

func isPunct(tokens []Token, j int, text string) bool {
	return j < len(tokens) && tokens[j].Kind == TokenPunct && tokens[j].Text == text
}

func foldWord(tok Token) string {
	if tok.Kind == TokenQuotedIdent {
		return strings.ReplaceAll(strings.Trim(tok.Text, `"`), `""`, `"`)
	}
	return strings.ToLower(tok.Text)
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
