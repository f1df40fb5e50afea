// Package report defines the run report model shared by the guide toolchain:
// findings from static checks, per-statement execution results from the
// sandbox, and the summary consumed by CI, the run history, and artifact
// publishing.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Check names used by findings across the toolchain.
const (
	CheckStructure  = "structure"
	CheckSyntax     = "syntax"
	CheckReferences = "references"
	CheckTOC        = "toc"
	CheckExecution  = "execution"
)

// Finding describes one documentation defect located in the guide.
type Finding struct {
	Check   string `json:"check"`
	File    string `json:"file,omitempty"`
	Section int    `json:"section,omitempty"`
	Block   int    `json:"block,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// String renders the finding in the file:line form printed by the CLIs.
func (f Finding) String() string {
	loc := f.File
	if f.Line > 0 {
		loc = fmt.Sprintf("%s:%d", f.File, f.Line)
	}
	return fmt.Sprintf("%s [%s] %s", loc, f.Check, f.Message)
}

// StatementResult records the outcome of one statement executed in the sandbox.
type StatementResult struct {
	Block      int     `json:"block"`
	Ordinal    int     `json:"ordinal"`
	Line       int     `json:"line"`
	Preview    string  `json:"preview"`
	DurationMS float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
	Skipped    bool    `json:"skipped,omitempty"`
	SkipReason string  `json:"skip_reason,omitempty"`
}

// SectionResult aggregates statement results for one guide section.
type SectionResult struct {
	Ordinal    int               `json:"ordinal"`
	Title      string            `json:"title"`
	Schema     string            `json:"schema,omitempty"`
	Statements []StatementResult `json:"statements,omitempty"`
}

// Failures counts statements in the section that returned an engine error.
func (s SectionResult) Failures() int {
	n := 0
	for _, st := range s.Statements {
		if st.Error != "" {
			n++
		}
	}
	return n
}

// Report is the full outcome of a validation or sandbox run.
type Report struct {
	GuidePath     string          `json:"guide_path"`
	GuideDigest   string          `json:"guide_digest,omitempty"`
	EngineVersion string          `json:"engine_version,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	Sections      []SectionResult `json:"sections,omitempty"`
	Findings      []Finding       `json:"findings,omitempty"`
}

// Summary holds the roll-up counters for a report.
type Summary struct {
	Sections   int `json:"sections"`
	Statements int `json:"statements"`
	Executed   int `json:"executed"`
	Failures   int `json:"failures"`
	Skipped    int `json:"skipped"`
	Findings   int `json:"findings"`
}

// Summarize computes the roll-up counters across all sections and findings.
func (r Report) Summarize() Summary {
	sum := Summary{Sections: len(r.Sections), Findings: len(r.Findings)}
	for _, sec := range r.Sections {
		for _, st := range sec.Statements {
			sum.Statements++
			switch {
			case st.Skipped:
				sum.Skipped++
			case st.Error != "":
				sum.Executed++
				sum.Failures++
			default:
				sum.Executed++
			}
		}
	}
	return sum
}

// Failed reports whether the run produced any statement failures or findings.
func (r Report) Failed() bool {
	sum := r.Summarize()
	return sum.Failures > 0 || sum.Findings > 0
}

// Encode renders the report as indented JSON with a trailing newline.
func (r Report) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decode parses a JSON report previously produced by Encode.
func Decode(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}

// Digest returns the hex SHA-256 of the guide source, recorded on reports so
// history entries can be tied to the exact document revision they ran against.
func Digest(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}
