package artifact

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyArtifactPackageImportsAWSSDK ensures the AWS SDK stays behind the
// Store interface. Other packages must publish through artifact.Open and
// artifact.Publish instead of talking to S3 directly.
func TestOnlyArtifactPackageImportsAWSSDK(t *testing.T) {
	const (
		sdkPrefix     = "github.com/aws/aws-sdk-go-v2"
		allowedPrefix = "sqlguide/internal/artifact"
	)

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "sqlguide/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		if strings.HasPrefix(pkg.PkgPath, allowedPrefix) {
			continue
		}
		for importPath := range pkg.Imports {
			if importPath == sdkPrefix || strings.HasPrefix(importPath, sdkPrefix+"/") {
				seen[pkg.PkgPath+": "+importPath] = struct{}{}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden aws sdk import: %s", v)
		}
		t.Fatalf("found %d forbidden aws sdk imports", len(violations))
	}
}
