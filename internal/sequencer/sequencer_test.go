package sequencer

import (
	"strings"
	"testing"

	"sqlguide/internal/document"
)

const planGuide = `# G

- [1. Tables](#1-tables)
- [2. Admin](#2-admin)

## 1. Tables

` + "```sql" + `
CREATE TABLE t (id INT);
INSERT INTO t VALUES (1);
` + "```" + `

## 2. Admin

` + "```sql skip" + `
CREATE DATABASE sandbox;
` + "```" + `

` + "```shell" + `
pg_dump sandbox > backup.sql
` + "```" + `
`

func buildPlan(t *testing.T) Plan {
	t.Helper()
	doc, err := document.Parse(strings.NewReader(planGuide), "GUIDE.md")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return Build(doc)
}

func TestBuildOrdersStatements(t *testing.T) {
	plan := buildPlan(t)
	if len(plan.Sections) != 2 {
		t.Fatalf("sections: %+v", plan.Sections)
	}
	first := plan.Sections[0]
	if first.Schema != "sqlguide_check_1" {
		t.Fatalf("schema: %q", first.Schema)
	}
	if len(first.Steps) != 2 {
		t.Fatalf("steps: %+v", first.Steps)
	}
	if !strings.HasPrefix(first.Steps[0].Statement.Text, "CREATE TABLE") ||
		!strings.HasPrefix(first.Steps[1].Statement.Text, "INSERT INTO") {
		t.Fatalf("declared order lost: %+v", first.Steps)
	}
	if first.Steps[0].Ordinal != 1 || first.Steps[1].Ordinal != 2 {
		t.Fatalf("ordinals: %+v", first.Steps)
	}
}

func TestBuildSkipsShellAndMarkedBlocks(t *testing.T) {
	plan := buildPlan(t)
	admin := plan.Sections[1]
	if len(admin.Steps) != 2 {
		t.Fatalf("steps: %+v", admin.Steps)
	}
	if !admin.Steps[0].Skip || admin.Steps[0].SkipReason != SkipMarkedSkip {
		t.Fatalf("skip block: %+v", admin.Steps[0])
	}
	if !admin.Steps[1].Skip || admin.Steps[1].SkipReason != SkipShellBlock {
		t.Fatalf("shell block: %+v", admin.Steps[1])
	}
}

func TestFilterSelectsSections(t *testing.T) {
	plan := buildPlan(t)
	filtered, err := plan.Filter([]int{2})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(filtered.Sections) != 1 || filtered.Sections[0].Ordinal != 2 {
		t.Fatalf("filtered: %+v", filtered.Sections)
	}
	if _, err := plan.Filter([]int{7}); err == nil || !strings.Contains(err.Error(), "[7]") {
		t.Fatalf("unknown section not rejected: %v", err)
	}
	full, err := plan.Filter(nil)
	if err != nil || len(full.Sections) != 2 {
		t.Fatalf("empty filter: %v %+v", err, full.Sections)
	}
}
