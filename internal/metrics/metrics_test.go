package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	rec := NewRecorder()
	rec.IncSection()
	rec.IncSection()
	rec.ObserveStatement(OutcomeOK, 2*time.Millisecond)
	rec.ObserveStatement(OutcomeError, time.Millisecond)
	rec.ObserveStatement(OutcomeSkipped, 0)
	rec.AddFindings("syntax", 3)
	rec.AddFindings("toc", 0)

	if got := testutil.ToFloat64(rec.sections); got != 2 {
		t.Fatalf("sections: %v", got)
	}
	if got := testutil.ToFloat64(rec.statements.WithLabelValues(OutcomeOK)); got != 1 {
		t.Fatalf("ok statements: %v", got)
	}
	if got := testutil.ToFloat64(rec.statements.WithLabelValues(OutcomeSkipped)); got != 1 {
		t.Fatalf("skipped statements: %v", got)
	}
	if got := testutil.ToFloat64(rec.findings.WithLabelValues("syntax")); got != 3 {
		t.Fatalf("syntax findings: %v", got)
	}
	if got := testutil.CollectAndCount(rec.duration); got != 1 {
		t.Fatalf("duration metric families: %v", got)
	}
}

func TestServeExposesMetrics(t *testing.T) {
	rec := NewRecorder()
	rec.ObserveStatement(OutcomeOK, time.Millisecond)

	addr, shutdown, err := rec.Serve("127.0.0.1:0")
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = shutdown(ctx)
	}()

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "sqlguide_statements_total") {
		t.Fatalf("exposition missing counter: %s", body)
	}
}
