// Package sequencer turns a parsed guide into an execution plan: sections in
// ordinal order, statements in the order the document declares them. Later
// examples in a section assume the schema and data earlier ones created, so
// declared order is the dependency order.
package sequencer

import (
	"fmt"
	"sort"

	"sqlguide/internal/checks"
	"sqlguide/internal/document"
	"sqlguide/internal/sqltext"
)

// Skip reasons recorded on plan steps.
const (
	SkipShellBlock   = "shell block"
	SkipMarkedSkip   = "block marked skip"
	SkipUnknownLabel = "unrecognized block language"
)

// Plan is an ordered execution plan for the sandbox.
type Plan struct {
	Guide    string
	Sections []SectionPlan
}

// SectionPlan is the unit of isolation: the sandbox gives each one a fresh
// scratch schema.
type SectionPlan struct {
	Ordinal int
	Title   string
	Schema  string
	Steps   []Step
}

// Step is one statement (or one skipped block) in a section plan.
type Step struct {
	Block      int
	Ordinal    int
	Statement  sqltext.Statement
	Skip       bool
	SkipReason string
}

// Build creates the execution plan for doc. Every block appears in the plan:
// runnable sql blocks contribute one step per statement, everything else
// contributes a single skipped step so reports account for it.
func Build(doc document.Document) Plan {
	plan := Plan{Guide: doc.Path}
	for _, sec := range doc.Sections {
		sp := SectionPlan{
			Ordinal: sec.Ordinal,
			Title:   sec.Title,
			Schema:  SchemaName(sec.Ordinal),
		}
		for _, block := range sec.Blocks {
			switch {
			case block.Language == checks.LanguageShell:
				sp.Steps = append(sp.Steps, skippedStep(block, SkipShellBlock))
			case block.Language != checks.LanguageSQL:
				sp.Steps = append(sp.Steps, skippedStep(block, SkipUnknownLabel))
			case block.Skip():
				sp.Steps = append(sp.Steps, skippedStep(block, SkipMarkedSkip))
			default:
				for i, stmt := range sqltext.Split(block.Text, block.Line+1) {
					sp.Steps = append(sp.Steps, Step{
						Block:     block.Ordinal,
						Ordinal:   i + 1,
						Statement: stmt,
					})
				}
			}
		}
		plan.Sections = append(plan.Sections, sp)
	}
	return plan
}

// Filter returns a copy of the plan limited to the given section ordinals.
// An empty filter keeps everything. Unknown ordinals are an error so typos in
// --sections do not silently validate nothing.
func (p Plan) Filter(ordinals []int) (Plan, error) {
	if len(ordinals) == 0 {
		return p, nil
	}
	want := make(map[int]bool, len(ordinals))
	for _, n := range ordinals {
		want[n] = true
	}
	filtered := Plan{Guide: p.Guide}
	for _, sp := range p.Sections {
		if want[sp.Ordinal] {
			filtered.Sections = append(filtered.Sections, sp)
			delete(want, sp.Ordinal)
		}
	}
	if len(want) > 0 {
		missing := make([]int, 0, len(want))
		for n := range want {
			missing = append(missing, n)
		}
		sort.Ints(missing)
		return Plan{}, fmt.Errorf("sections not in guide: %v", missing)
	}
	return filtered, nil
}

// SchemaName is the scratch schema a section executes in.
func SchemaName(ordinal int) string {
	return fmt.Sprintf("sqlguide_check_%d", ordinal)
}

func skippedStep(block document.CodeBlock, reason string) Step {
	return Step{
		Block:      block.Ordinal,
		Ordinal:    1,
		Statement:  sqltext.Statement{Line: block.Line, Text: block.Text},
		Skip:       true,
		SkipReason: reason,
	}
}
