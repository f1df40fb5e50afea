package checks

import (
	"strings"
	"testing"

	"sqlguide/internal/document"
	"sqlguide/pkg/report"
)

func parse(t *testing.T, src string) document.Document {
	t.Helper()
	doc, err := document.Parse(strings.NewReader(src), "GUIDE.md")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func byCheck(findings []report.Finding, check string) []report.Finding {
	var out []report.Finding
	for _, f := range findings {
		if f.Check == check {
			out = append(out, f)
		}
	}
	return out
}

const cleanGuide = `# Guide

- [1. Tables](#1-tables)
- [2. Queries](#2-queries)

## 1. Tables

` + "```sql" + `
CREATE TABLE employees (id SERIAL PRIMARY KEY, name TEXT NOT NULL);
INSERT INTO employees (name) VALUES ('Ada');
` + "```" + `

## 2. Queries

` + "```sql" + `
CREATE TABLE orders (id SERIAL PRIMARY KEY, total NUMERIC);
SELECT * FROM orders WHERE total > 10;
` + "```" + `
`

func TestRunCleanGuide(t *testing.T) {
	findings := Run(parse(t, cleanGuide))
	if len(findings) != 0 {
		t.Fatalf("clean guide produced findings: %+v", findings)
	}
}

func TestStructureDuplicateAndDecreasingOrdinals(t *testing.T) {
	src := "# G\n\n- [1. A](#1-a)\n- [3. B](#3-b)\n- [2. C](#2-c)\n\n## 1. A\n\n## 3. B\n\n## 2. C\n"
	findings := byCheck(Run(parse(t, src)), report.CheckStructure)
	if len(findings) != 1 {
		t.Fatalf("expected one structure finding, got %+v", findings)
	}
	if !strings.Contains(findings[0].Message, "does not increase") {
		t.Fatalf("finding: %+v", findings[0])
	}

	src = "# G\n\n- [1. A](#1-a)\n- [1. A](#1-a-1)\n\n## 1. A\n\n## 1. A\n"
	findings = byCheck(Run(parse(t, src)), report.CheckStructure)
	found := false
	for _, f := range findings {
		if strings.Contains(f.Message, "already used") {
			found = true
		}
	}
	if !found {
		t.Fatalf("duplicate ordinal not flagged: %+v", findings)
	}
}

func TestStructurePreambleBlockFlagged(t *testing.T) {
	src := "# G\n\n```sql\nSELECT 1;\n```\n\n- [1. A](#1-a)\n\n## 1. A\n"
	findings := byCheck(Run(parse(t, src)), report.CheckStructure)
	if len(findings) != 1 || !strings.Contains(findings[0].Message, "before the first numbered section") {
		t.Fatalf("findings: %+v", findings)
	}
}

func TestStructureUnlabeledBlock(t *testing.T) {
	src := "# G\n\n- [1. A](#1-a)\n\n## 1. A\n\n```\nSELECT 1;\n```\n"
	findings := byCheck(Run(parse(t, src)), report.CheckStructure)
	if len(findings) != 1 || !strings.Contains(findings[0].Message, "language label") {
		t.Fatalf("findings: %+v", findings)
	}
}

func TestSyntaxFindingCarriesLocation(t *testing.T) {
	src := "# G\n\n- [1. A](#1-a)\n\n## 1. A\n\n```sql\nSELETC 1;\n```\n"
	findings := byCheck(Run(parse(t, src)), report.CheckSyntax)
	if len(findings) != 1 {
		t.Fatalf("findings: %+v", findings)
	}
	f := findings[0]
	if f.Section != 1 || f.Block != 1 || f.Line != 8 {
		t.Fatalf("location: %+v", f)
	}
}

func TestReferencesMissingRelation(t *testing.T) {
	src := "# G\n\n- [1. A](#1-a)\n\n## 1. A\n\n```sql\nSELECT * FROM employees;\n```\n"
	findings := byCheck(Run(parse(t, src)), report.CheckReferences)
	if len(findings) != 1 {
		t.Fatalf("findings: %+v", findings)
	}
	if !strings.Contains(findings[0].Message, `"employees"`) {
		t.Fatalf("finding: %+v", findings[0])
	}
}

func TestReferencesIntroductionCrossesBlocksWithinSection(t *testing.T) {
	src := "# G\n\n- [1. A](#1-a)\n\n## 1. A\n\n```sql\nCREATE TABLE t (id INT);\n```\n\nMore prose.\n\n```sql\nSELECT * FROM t;\n```\n"
	if findings := byCheck(Run(parse(t, src)), report.CheckReferences); len(findings) != 0 {
		t.Fatalf("introduction should carry across blocks: %+v", findings)
	}
}

func TestReferencesDoNotCrossSections(t *testing.T) {
	src := "# G\n\n- [1. A](#1-a)\n- [2. B](#2-b)\n\n## 1. A\n\n```sql\nCREATE TABLE t (id INT);\n```\n\n## 2. B\n\n```sql\nSELECT * FROM t;\n```\n"
	findings := byCheck(Run(parse(t, src)), report.CheckReferences)
	if len(findings) != 1 {
		t.Fatalf("cross-section reference not flagged: %+v", findings)
	}
	if findings[0].Section != 2 {
		t.Fatalf("finding section: %+v", findings[0])
	}
}

func TestReferencesIgnoreFromOperands(t *testing.T) {
	src := "# G\n\n- [1. A](#1-a)\n\n## 1. A\n\n```sql\nCREATE TABLE t (ts TIMESTAMPTZ, a INT, b INT);\nSELECT EXTRACT(YEAR FROM ts) FROM t;\nSELECT * FROM t WHERE a IS DISTINCT FROM b;\n```\n"
	if findings := byCheck(Run(parse(t, src)), report.CheckReferences); len(findings) != 0 {
		t.Fatalf("operand FROM treated as relation list: %+v", findings)
	}
}

func TestReferencesSystemCatalogsAllowed(t *testing.T) {
	src := "# G\n\n- [1. A](#1-a)\n\n## 1. A\n\n```sql\nSELECT * FROM pg_indexes WHERE schemaname = 'public';\nSELECT * FROM information_schema.tables;\n```\n"
	if findings := byCheck(Run(parse(t, src)), report.CheckReferences); len(findings) != 0 {
		t.Fatalf("system relations flagged: %+v", findings)
	}
}

func TestReferencesShellBlocksIgnored(t *testing.T) {
	src := "# G\n\n- [1. A](#1-a)\n\n## 1. A\n\n```shell\npsql -c 'SELECT * FROM nowhere;'\n```\n"
	if findings := byCheck(Run(parse(t, src)), report.CheckReferences); len(findings) != 0 {
		t.Fatalf("shell block analyzed: %+v", findings)
	}
}

func TestTOCDanglingLink(t *testing.T) {
	src := "# G\n\n- [1. A](#1-a)\n- [9. Gone](#9-gone)\n\n## 1. A\n"
	findings := byCheck(Run(parse(t, src)), report.CheckTOC)
	if len(findings) != 1 || !strings.Contains(findings[0].Message, "#9-gone") {
		t.Fatalf("findings: %+v", findings)
	}
}

func TestTOCMissingSectionEntry(t *testing.T) {
	src := "# G\n\n- [1. A](#1-a)\n\n## 1. A\n\n## 2. B\n"
	findings := byCheck(Run(parse(t, src)), report.CheckTOC)
	if len(findings) != 1 || !strings.Contains(findings[0].Message, "section 2") {
		t.Fatalf("findings: %+v", findings)
	}
}

func TestTOCAbsent(t *testing.T) {
	src := "# G\n\n## 1. A\n"
	findings := byCheck(Run(parse(t, src)), report.CheckTOC)
	if len(findings) != 1 || !strings.Contains(findings[0].Message, "no table of contents") {
		t.Fatalf("findings: %+v", findings)
	}
}
