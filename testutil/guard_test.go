package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInternalImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"sqlguide/internal/sandbox", true},
		{"internal/sqltext", true},
		{"sqlguide/pkg/report", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestDatabaseDriverImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"github.com/jackc/pgx/v5/stdlib", true},
		{"modernc.org/sqlite", true},
		{"database/sql", false},
		{"github.com/prometheus/client_golang/prometheus", false},
	}
	for _, c := range cases {
		if got := DatabaseDriverImportForbidden(c.in); got != c.want {
			t.Fatalf("DatabaseDriverImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestCloudSDKImportForbiddenPredicate(t *testing.T) {
	if !CloudSDKImportForbidden("github.com/aws/aws-sdk-go-v2/service/s3") {
		t.Fatal("aws sdk import not matched")
	}
	if CloudSDKImportForbidden("github.com/aws/smithy-go") {
		t.Fatal("smithy runtime wrongly matched")
	}
}

// TestAssertNoDirectImports exercises the scanner against a tiny temp package:
// safe imports pass, test files and subdirectories are ignored.
func TestAssertNoDirectImports(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	testSrc := []byte("package tmp\nimport \"forbidden/pkg\"\nvar _ = 1")
	if err := os.WriteFile(filepath.Join(dir, "x_test.go"), testSrc, 0o600); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	AssertNoDirectImports(t, dir, func(path string) bool { return path == "forbidden/pkg" }, "non-test files only")
}

func TestDirectImportViolationsReportsForbidden(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport _ \"forbidden/pkg\"\n")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	viols, err := directImportViolations(dir, func(path string) bool { return path == "forbidden/pkg" })
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.Contains(viols[0], "forbidden/pkg") {
		t.Fatalf("violations = %v", viols)
	}
}

func TestTransitiveDependencyViolations(t *testing.T) {
	prev := goListDeps
	goListDeps = func(string) ([]byte, error) {
		return []byte("fmt\nsqlguide/internal/sandbox\nos\n"), nil
	}
	defer func() { goListDeps = prev }()

	viols, _, err := transitiveDependencyViolations("./...", InternalImportForbidden)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(viols) != 1 || viols[0] != "sqlguide/internal/sandbox" {
		t.Fatalf("violations = %v", viols)
	}
}

func TestAssertNoTransitiveDependency(t *testing.T) {
	prev := goListDeps
	goListDeps = func(string) ([]byte, error) { return []byte("fmt\nos\n"), nil }
	defer func() { goListDeps = prev }()
	AssertNoTransitiveDependency(t, "./...", func(string) bool { return false }, "none")
}
