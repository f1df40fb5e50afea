// Package baseline stores accepted findings so the check CLI fails only on
// regressions. The guide accumulates known defects that are being worked down
// over time; the baseline file records them with enough metadata for review.
package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"sqlguide/pkg/report"
)

// Meta describes how and when the baseline was produced.
type Meta struct {
	Tool           string `json:"tool,omitempty"`
	Guide          string `json:"guide,omitempty"`
	Notes          string `json:"notes,omitempty"`
	Owner          string `json:"baseline_owner,omitempty"`
	NextReviewDate string `json:"next_review_date,omitempty"`
}

// File is the on-disk baseline format.
type File struct {
	Meta     Meta             `json:"meta"`
	Findings []report.Finding `json:"findings"`
}

// DefaultMeta returns the metadata written into freshly updated baselines.
func DefaultMeta(guide string) Meta {
	return Meta{
		Tool:  "guide-check",
		Guide: guide,
		Owner: "Guide Maintainers",
	}
}

// Load reads a baseline file. A missing file is an error so check mode cannot
// silently pass against nothing; create one with --update first.
func Load(path string) (File, error) {
	// #nosec G304 -- baseline path comes from the --baseline flag; this CLI tool accepts user-supplied paths.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{}, fmt.Errorf("baseline not found (%s); run guide-check --update first", path)
		}
		return File{}, err
	}
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("parse baseline: %w", err)
	}
	return file, nil
}

// Write persists meta and the normalized findings to path.
func Write(path string, meta Meta, findings []report.Finding) error {
	payload := File{Meta: meta, Findings: Normalize(findings)}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	// #nosec G306 -- baseline is a non-sensitive repo artifact that should be readable.
	return os.WriteFile(path, data, 0o644)
}

// MergeMeta keeps fields of an existing baseline's metadata when updating, so
// operator-maintained notes survive --update.
func MergeMeta(existing, defaults Meta) Meta {
	merged := defaults
	if existing.Tool != "" {
		merged.Tool = existing.Tool
	}
	if existing.Guide != "" {
		merged.Guide = existing.Guide
	}
	if existing.Notes != "" {
		merged.Notes = existing.Notes
	}
	if existing.Owner != "" {
		merged.Owner = existing.Owner
	}
	if existing.NextReviewDate != "" {
		merged.NextReviewDate = existing.NextReviewDate
	}
	return merged
}

// Normalize drops empty findings, deduplicates, and sorts for stable diffs.
func Normalize(findings []report.Finding) []report.Finding {
	seen := make(map[report.Finding]struct{}, len(findings))
	normalized := make([]report.Finding, 0, len(findings))
	for _, f := range findings {
		if strings.TrimSpace(f.Check) == "" || strings.TrimSpace(f.Message) == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		normalized = append(normalized, f)
	}
	sort.Slice(normalized, func(i, j int) bool {
		a, b := normalized[i], normalized[j]
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Check != b.Check {
			return a.Check < b.Check
		}
		return a.Message < b.Message
	})
	return normalized
}

// Diff returns the findings in current that the baseline does not cover.
func Diff(current, accepted []report.Finding) []report.Finding {
	if len(current) == 0 {
		return nil
	}
	acceptedSet := make(map[report.Finding]struct{}, len(accepted))
	for _, f := range Normalize(accepted) {
		acceptedSet[f] = struct{}{}
	}
	var delta []report.Finding
	for _, f := range Normalize(current) {
		if _, ok := acceptedSet[f]; !ok {
			delta = append(delta, f)
		}
	}
	return delta
}
