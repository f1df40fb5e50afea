package baseline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sqlguide/pkg/report"
)

func sampleFindings() []report.Finding {
	return []report.Finding{
		{Check: report.CheckSyntax, File: "GUIDE.md", Section: 3, Line: 120, Message: "statement missing terminating semicolon"},
		{Check: report.CheckTOC, File: "GUIDE.md", Line: 5, Message: "toc links to #gone but no heading produces that anchor"},
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	if err := Write(path, DefaultMeta("GUIDE.md"), sampleFindings()); err != nil {
		t.Fatalf("write: %v", err)
	}
	file, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if file.Meta.Tool != "guide-check" || file.Meta.Guide != "GUIDE.md" {
		t.Fatalf("meta: %+v", file.Meta)
	}
	if len(file.Findings) != 2 {
		t.Fatalf("findings: %+v", file.Findings)
	}
	// Normalize sorts by section, so the toc finding (section 0) comes first.
	if file.Findings[0].Check != report.CheckTOC {
		t.Fatalf("sort order: %+v", file.Findings)
	}
}

func TestLoadMissingBaseline(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil || !strings.Contains(err.Error(), "--update") {
		t.Fatalf("expected guidance error, got %v", err)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNormalizeDedupesAndDropsEmpty(t *testing.T) {
	f := sampleFindings()[0]
	in := []report.Finding{f, f, {Check: report.CheckSyntax}, {Message: "no check"}}
	out := Normalize(in)
	if len(out) != 1 {
		t.Fatalf("normalized: %+v", out)
	}
}

func TestDiffReportsOnlyNewFindings(t *testing.T) {
	accepted := sampleFindings()
	current := append(sampleFindings(), report.Finding{
		Check: report.CheckReferences, File: "GUIDE.md", Section: 9, Line: 300,
		Message: `relation "orders" is referenced before being introduced in section 9`,
	})
	delta := Diff(current, accepted)
	if len(delta) != 1 || delta[0].Check != report.CheckReferences {
		t.Fatalf("delta: %+v", delta)
	}
	if len(Diff(accepted, accepted)) != 0 {
		t.Fatal("identical sets should produce no delta")
	}
	if len(Diff(nil, accepted)) != 0 {
		t.Fatal("empty current should produce no delta")
	}
}

func TestMergeMetaKeepsExistingFields(t *testing.T) {
	existing := Meta{Notes: "working down section 27", NextReviewDate: "2026-10-01"}
	merged := MergeMeta(existing, DefaultMeta("GUIDE.md"))
	if merged.Notes != existing.Notes || merged.NextReviewDate != existing.NextReviewDate {
		t.Fatalf("merged: %+v", merged)
	}
	if merged.Tool != "guide-check" {
		t.Fatalf("defaults lost: %+v", merged)
	}
}
