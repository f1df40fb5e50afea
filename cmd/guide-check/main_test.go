package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sqlguide/pkg/report"
)

const cleanGuide = "# Test Guide\n" +
	"\n" +
	"- [1. Creating Tables](#1-creating-tables)\n" +
	"- [2. Querying](#2-querying)\n" +
	"\n" +
	"## 1. Creating Tables\n" +
	"\n" +
	"```sql\n" +
	"CREATE TABLE employees (id serial PRIMARY KEY, name text NOT NULL);\n" +
	"INSERT INTO employees (name) VALUES ('Ada');\n" +
	"```\n" +
	"\n" +
	"## 2. Querying\n" +
	"\n" +
	"```sql\n" +
	"CREATE TABLE projects (id serial PRIMARY KEY, title text);\n" +
	"SELECT id, title FROM projects;\n" +
	"```\n"

const brokenGuide = cleanGuide +
	"\n" +
	"## 3. Reporting\n" +
	"\n" +
	"```sql\n" +
	"SELECT count(*) FROM quarterly_totals;\n" +
	"```\n"

func writeGuide(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "GUIDE.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write guide: %v", err)
	}
	return path
}

func TestCLICleanGuidePasses(t *testing.T) {
	guide := writeGuide(t, cleanGuide)
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-guide", guide}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit = %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "guide-check: ok") {
		t.Fatalf("unexpected output: %s", stdout.String())
	}
}

func TestCLIReportsFindings(t *testing.T) {
	guide := writeGuide(t, brokenGuide)
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-guide", guide}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit = %d, stderr: %s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "quarterly_totals") {
		t.Fatalf("finding not reported: %s", out)
	}
	// The section 3 heading is missing from the ToC as well.
	if !strings.Contains(out, "table of contents") {
		t.Fatalf("toc finding not reported: %s", out)
	}
}

func TestCLIJSONFormat(t *testing.T) {
	guide := writeGuide(t, brokenGuide)
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-guide", guide, "-format", "json"}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit = %d, stderr: %s", code, stderr.String())
	}
	rep, err := report.Decode(stdout.Bytes())
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if rep.GuidePath != guide || rep.GuideDigest == "" {
		t.Fatalf("report metadata missing: %+v", rep)
	}
	if len(rep.Findings) == 0 {
		t.Fatal("expected findings in json report")
	}
}

func TestCLIBaselineWorkflow(t *testing.T) {
	guide := writeGuide(t, brokenGuide)
	baselinePath := filepath.Join(filepath.Dir(guide), "baseline.json")

	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-guide", guide, "-baseline", baselinePath, "-update"}, &stdout, &stderr); code != 0 {
		t.Fatalf("update exit = %d, stderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "baseline updated") {
		t.Fatalf("unexpected update output: %s", stdout.String())
	}

	stdout.Reset()
	stderr.Reset()
	if code := cli([]string{"-guide", guide, "-baseline", baselinePath}, &stdout, &stderr); code != 0 {
		t.Fatalf("baselined check exit = %d, output: %s", code, stdout.String())
	}

	worse := brokenGuide +
		"\n```sql\n" +
		"UPDATE missing_rollup SET total = 0;\n" +
		"```\n"
	if err := os.WriteFile(guide, []byte(worse), 0o644); err != nil {
		t.Fatalf("rewrite guide: %v", err)
	}
	stdout.Reset()
	stderr.Reset()
	if code := cli([]string{"-guide", guide, "-baseline", baselinePath}, &stdout, &stderr); code != 1 {
		t.Fatalf("regression exit = %d, output: %s", code, stdout.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "missing_rollup") {
		t.Fatalf("new finding not reported: %s", out)
	}
	if strings.Contains(out, "quarterly_totals") {
		t.Fatalf("baselined finding reported as new: %s", out)
	}
}

func TestCLIUsageErrors(t *testing.T) {
	guide := writeGuide(t, cleanGuide)
	cases := []struct {
		name string
		args []string
	}{
		{"bad flag", []string{"-nope"}},
		{"bad format", []string{"-guide", guide, "-format", "yaml"}},
		{"update without baseline", []string{"-guide", guide, "-update"}},
		{"missing guide", []string{"-guide", filepath.Join(t.TempDir(), "absent.md")}},
		{"missing baseline", []string{"-guide", guide, "-baseline", filepath.Join(t.TempDir(), "absent.json")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := cli(tc.args, &stdout, &stderr); code != 2 {
				t.Fatalf("exit = %d, stderr: %s", code, stderr.String())
			}
		})
	}
}
