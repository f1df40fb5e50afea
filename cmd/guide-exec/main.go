// Command guide-exec executes the guide's SQL examples against a disposable
// PostgreSQL database. Each section runs in its own scratch schema, failures
// are recorded in the report rather than aborting the run, and results can be
// logged to the local run history and published to an artifact store.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"sqlguide/internal/artifact"
	"sqlguide/internal/document"
	"sqlguide/internal/history"
	"sqlguide/internal/metrics"
	"sqlguide/internal/sandbox"
	"sqlguide/internal/sequencer"
	"sqlguide/pkg/report"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("guide-exec", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		guidePath   string
		dsn         string
		sections    string
		keep        bool
		historyPath string
		metricsAddr string
		format      string
	)
	fs.StringVar(&guidePath, "guide", "GUIDE.md", "path to the guide document")
	fs.StringVar(&dsn, "dsn", "", "sandbox database DSN (default: local sqlguide_check database)")
	fs.StringVar(&sections, "sections", "", "section ordinals to run, e.g. 3 or 1,5-9 (default: all)")
	fs.BoolVar(&keep, "keep", false, "keep scratch schemas after the run for inspection")
	fs.StringVar(&historyPath, "history", "", "record the run in this SQLite history database")
	fs.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	fs.StringVar(&format, "format", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if format != "text" && format != "json" {
		fmt.Fprintf(stderr, "guide-exec: unknown format %q\n", format)
		return 2
	}

	ordinals, err := parseSections(sections)
	if err != nil {
		fmt.Fprintf(stderr, "guide-exec: %v\n", err)
		return 2
	}

	// #nosec G304 -- guide path comes from the --guide flag; this CLI accepts user-supplied paths.
	source, err := os.ReadFile(guidePath)
	if err != nil {
		fmt.Fprintf(stderr, "guide-exec: read guide: %v\n", err)
		return 2
	}
	doc, err := document.Parse(bytes.NewReader(source), guidePath)
	if err != nil {
		fmt.Fprintf(stderr, "guide-exec: parse guide: %v\n", err)
		return 2
	}
	plan := sequencer.Build(doc)
	if len(ordinals) > 0 {
		plan, err = plan.Filter(ordinals)
		if err != nil {
			fmt.Fprintf(stderr, "guide-exec: %v\n", err)
			return 2
		}
	}

	ctx := context.Background()
	opts := sandbox.Options{Keep: keep}
	if metricsAddr != "" {
		rec := metrics.NewRecorder()
		addr, shutdown, err := rec.Serve(metricsAddr)
		if err != nil {
			fmt.Fprintf(stderr, "guide-exec: metrics listener: %v\n", err)
			return 2
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
		fmt.Fprintf(stderr, "serving metrics on http://%s/metrics\n", addr)
		opts.Metrics = rec
	}

	runner, err := sandbox.Open(ctx, dsn, opts)
	if err != nil {
		fmt.Fprintf(stderr, "guide-exec: %v\n", err)
		return 2
	}
	defer func() { _ = runner.Close() }()

	rep, err := runner.Execute(ctx, plan, report.Digest(source))
	if err != nil {
		fmt.Fprintf(stderr, "guide-exec: %v\n", err)
		return 2
	}

	if historyPath != "" {
		if err := recordHistory(ctx, historyPath, rep); err != nil {
			fmt.Fprintf(stderr, "guide-exec: record history: %v\n", err)
			return 2
		}
	}
	if err := publishArtifact(ctx, rep, stderr); err != nil {
		fmt.Fprintf(stderr, "guide-exec: publish artifact: %v\n", err)
		return 2
	}

	if err := printExecReport(stdout, rep, format); err != nil {
		fmt.Fprintf(stderr, "guide-exec: %v\n", err)
		return 2
	}
	if rep.Summarize().Failures > 0 {
		return 1
	}
	return 0
}

// parseSections parses comma-separated ordinals and ranges: "3", "1,5-9".
func parseSections(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	seen := map[int]bool{}
	var ordinals []int
	add := func(n int) {
		if !seen[n] {
			seen[n] = true
			ordinals = append(ordinals, n)
		}
	}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("invalid section range %q", part)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || end < start {
				return nil, fmt.Errorf("invalid section range %q", part)
			}
			for n := start; n <= end; n++ {
				add(n)
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid section %q", part)
		}
		add(n)
	}
	sort.Ints(ordinals)
	return ordinals, nil
}

func recordHistory(ctx context.Context, path string, rep report.Report) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	_, err = store.Record(ctx, rep)
	return err
}

// publishArtifact uploads the report when an artifact driver is configured in
// the environment; an unset driver disables publishing silently.
func publishArtifact(ctx context.Context, rep report.Report, stderr io.Writer) error {
	store, err := artifact.Open(ctx)
	if errors.Is(err, artifact.ErrNotConfigured) {
		return nil
	}
	if err != nil {
		return err
	}
	info, err := artifact.Publish(ctx, store, rep)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "report published to %s (%s)\n", info.Key, store.Driver())
	return nil
}

func printExecReport(w io.Writer, rep report.Report, format string) error {
	if format == "json" {
		data, err := rep.Encode()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	for _, sec := range rep.Sections {
		fmt.Fprintf(w, "section %d (%s): %d statements, %d failures\n",
			sec.Ordinal, sec.Title, len(sec.Statements), sec.Failures())
		for _, st := range sec.Statements {
			if st.Error != "" {
				fmt.Fprintf(w, "  line %d: %s\n    %s\n", st.Line, st.Preview, st.Error)
			}
		}
	}
	sum := rep.Summarize()
	fmt.Fprintf(w, "guide-exec: %d sections, %d executed, %d skipped, %d failures (%s)\n",
		sum.Sections, sum.Executed, sum.Skipped, sum.Failures, rep.EngineVersion)
	return nil
}
