// Command guide-check runs the static document checks against the guide:
// section structure, SQL block syntax screening, relation references, and
// table-of-contents consistency. Findings are compared against an optional
// baseline file so CI fails only on regressions.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"sqlguide/internal/baseline"
	"sqlguide/internal/checks"
	"sqlguide/internal/document"
	"sqlguide/pkg/report"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("guide-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		guidePath    string
		baselinePath string
		update       bool
		format       string
	)
	fs.StringVar(&guidePath, "guide", "GUIDE.md", "path to the guide document")
	fs.StringVar(&baselinePath, "baseline", "", "baseline file of accepted findings")
	fs.BoolVar(&update, "update", false, "rewrite the baseline from current findings")
	fs.StringVar(&format, "format", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if format != "text" && format != "json" {
		fmt.Fprintf(stderr, "guide-check: unknown format %q\n", format)
		return 2
	}
	if update && baselinePath == "" {
		fmt.Fprintln(stderr, "guide-check: --update requires --baseline")
		return 2
	}

	started := time.Now().UTC()
	// #nosec G304 -- guide path comes from the --guide flag; this CLI accepts user-supplied paths.
	source, err := os.ReadFile(guidePath)
	if err != nil {
		fmt.Fprintf(stderr, "guide-check: read guide: %v\n", err)
		return 2
	}
	doc, err := document.Parse(bytes.NewReader(source), guidePath)
	if err != nil {
		fmt.Fprintf(stderr, "guide-check: parse guide: %v\n", err)
		return 2
	}
	findings := baseline.Normalize(checks.Run(doc))

	if update {
		meta := baseline.DefaultMeta(guidePath)
		if existing, err := baseline.Load(baselinePath); err == nil {
			meta = baseline.MergeMeta(existing.Meta, meta)
		}
		if err := baseline.Write(baselinePath, meta, findings); err != nil {
			fmt.Fprintf(stderr, "guide-check: write baseline: %v\n", err)
			return 2
		}
		fmt.Fprintf(stdout, "baseline updated: %d findings recorded in %s\n", len(findings), baselinePath)
		return 0
	}

	failing := findings
	if baselinePath != "" {
		accepted, err := baseline.Load(baselinePath)
		if err != nil {
			fmt.Fprintf(stderr, "guide-check: %v\n", err)
			return 2
		}
		failing = baseline.Diff(findings, accepted.Findings)
	}

	rep := report.Report{
		GuidePath:   guidePath,
		GuideDigest: report.Digest(source),
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
		Findings:    failing,
	}
	if err := printCheckReport(stdout, rep, format, len(findings)); err != nil {
		fmt.Fprintf(stderr, "guide-check: %v\n", err)
		return 2
	}
	if len(failing) > 0 {
		return 1
	}
	return 0
}

func printCheckReport(w io.Writer, rep report.Report, format string, total int) error {
	if format == "json" {
		data, err := rep.Encode()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	for _, f := range rep.Findings {
		fmt.Fprintln(w, f.String())
	}
	if len(rep.Findings) == 0 {
		fmt.Fprintf(w, "guide-check: ok (%d baselined finding(s))\n", total)
		return nil
	}
	fmt.Fprintf(w, "guide-check: %d new finding(s)\n", len(rep.Findings))
	return nil
}
