package artifact

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"sqlguide/pkg/report"
)

// Open selects a Store from process environment. SQLGUIDE_ARTIFACT_DRIVER
// chooses the backend; when it is unset publishing is disabled and Open
// returns ErrNotConfigured.
func Open(ctx context.Context) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("SQLGUIDE_ARTIFACT_DRIVER")))
	switch driver {
	case "":
		return nil, ErrNotConfigured
	case string(DriverFilesystem), "filesystem":
		return NewFilesystem(os.Getenv("SQLGUIDE_ARTIFACT_FS_ROOT"))
	case string(DriverMemory):
		return NewMemory(), nil
	case string(DriverS3):
		return openS3FromEnv(ctx)
	default:
		return nil, fmt.Errorf("unknown artifact driver %q", driver)
	}
}

// Publish writes a run report to the store under runs/<timestamp>-<digest>.json.
// The key embeds the guide digest prefix so concurrent runs against different
// revisions never collide.
func Publish(ctx context.Context, store Store, r report.Report) (Info, error) {
	data, err := r.Encode()
	if err != nil {
		return Info{}, err
	}
	digest := r.GuideDigest
	if len(digest) > 8 {
		digest = digest[:8]
	}
	if digest == "" {
		digest = "unknown"
	}
	key := fmt.Sprintf("runs/%s-%s.json", r.StartedAt.UTC().Format("20060102T150405Z"), digest)
	meta := map[string]string{"guide-path": r.GuidePath}
	if r.EngineVersion != "" {
		meta["engine-version"] = r.EngineVersion
	}
	return store.Put(ctx, key, bytes.NewReader(data), PutOptions{ContentType: "application/json", Metadata: meta})
}
