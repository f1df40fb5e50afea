// Package sandbox executes a guide plan against a disposable PostgreSQL
// instance. Each section runs on its own connection inside a freshly created
// scratch schema, so sections cannot observe one another and reruns start
// clean. Statement failures are captured in the report rather than aborting
// the run; only infrastructure failures (connect, schema setup) are errors.
package sandbox

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"sqlguide/internal/metrics"
	"sqlguide/internal/sequencer"
	"sqlguide/pkg/report"
)

const (
	defaultDriver = "pgx"
	// Default DSN targets a local throwaway database; override with --dsn.
	defaultDSN = "postgres://localhost/sqlguide_check?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// OverrideSQLOpen swaps the database opener for tests and returns a restore
// function.
func OverrideSQLOpen(fn func(driver, dsn string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}

// Options configures a Runner.
type Options struct {
	// Keep leaves scratch schemas in place after the run for inspection.
	Keep bool
	// Metrics, when set, receives per-statement and per-section counts.
	Metrics *metrics.Recorder
}

// Runner executes plans against one database handle.
type Runner struct {
	db   *sql.DB
	opts Options
}

// Open connects to the sandbox database, falling back to the default local
// DSN when dsn is empty.
func Open(ctx context.Context, dsn string, opts Options) (*Runner, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open sandbox database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sandbox database: %w", err)
	}
	return &Runner{db: db, opts: opts}, nil
}

// Close releases the database handle.
func (r *Runner) Close() error {
	return r.db.Close()
}

// EngineVersion reports the server version string recorded on reports.
func (r *Runner) EngineVersion(ctx context.Context) (string, error) {
	var version string
	if err := r.db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("query engine version: %w", err)
	}
	return version, nil
}

// Execute runs the plan and returns the report. digest is the guide source
// digest recorded for run history.
func (r *Runner) Execute(ctx context.Context, plan sequencer.Plan, digest string) (report.Report, error) {
	rep := report.Report{
		GuidePath:   plan.Guide,
		GuideDigest: digest,
		StartedAt:   time.Now().UTC(),
	}
	version, err := r.EngineVersion(ctx)
	if err != nil {
		return rep, err
	}
	rep.EngineVersion = version

	for _, sp := range plan.Sections {
		result, err := r.runSection(ctx, sp)
		if err != nil {
			return rep, err
		}
		rep.Sections = append(rep.Sections, result)
		if r.opts.Metrics != nil {
			r.opts.Metrics.IncSection()
			r.opts.Metrics.AddFindings(report.CheckExecution, result.Failures())
		}
	}
	rep.FinishedAt = time.Now().UTC()
	return rep, nil
}

func (r *Runner) runSection(ctx context.Context, sp sequencer.SectionPlan) (report.SectionResult, error) {
	result := report.SectionResult{Ordinal: sp.Ordinal, Title: sp.Title, Schema: sp.Schema}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return result, fmt.Errorf("section %d: acquire connection: %w", sp.Ordinal, err)
	}
	defer func() { _ = conn.Close() }()

	schema := quoteIdent(sp.Schema)
	setup := []string{
		"DROP SCHEMA IF EXISTS " + schema + " CASCADE",
		"CREATE SCHEMA " + schema,
		"SET search_path TO " + schema,
	}
	for _, stmt := range setup {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return result, fmt.Errorf("section %d: %s: %w", sp.Ordinal, stmt, err)
		}
	}

	for _, step := range sp.Steps {
		result.Statements = append(result.Statements, r.runStep(ctx, conn, step))
	}

	if !r.opts.Keep {
		if _, err := conn.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			return result, fmt.Errorf("section %d: drop scratch schema: %w", sp.Ordinal, err)
		}
	}
	return result, nil
}

func (r *Runner) runStep(ctx context.Context, conn *sql.Conn, step sequencer.Step) report.StatementResult {
	sr := report.StatementResult{
		Block:   step.Block,
		Ordinal: step.Ordinal,
		Line:    step.Statement.Line,
		Preview: step.Statement.Preview(),
	}
	if step.Skip {
		sr.Skipped = true
		sr.SkipReason = step.SkipReason
		if r.opts.Metrics != nil {
			r.opts.Metrics.ObserveStatement(metrics.OutcomeSkipped, 0)
		}
		return sr
	}

	start := time.Now()
	_, execErr := conn.ExecContext(ctx, step.Statement.Text)
	elapsed := time.Since(start)
	sr.DurationMS = float64(elapsed) / float64(time.Millisecond)

	outcome := metrics.OutcomeOK
	if execErr != nil {
		sr.Error = engineError(execErr)
		outcome = metrics.OutcomeError
		// Reset any transaction the failed statement left aborted so the
		// section's remaining statements still run.
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
	}
	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveStatement(outcome, elapsed)
	}
	return sr
}

// engineError flattens driver errors to a single line for reports.
func engineError(err error) string {
	return strings.Join(strings.Fields(err.Error()), " ")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
