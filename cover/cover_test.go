package cover

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/eternalrp/eternalrp/metrics"
)

// countingUploader hands out sequential URLs and remembers how often it ran.
type countingUploader struct {
	calls int
	err   error
}

func (u *countingUploader) Upload(_ context.Context, key string, _ []byte) (string, error) {
	u.calls++
	if u.err != nil {
		return "", u.err
	}
	return fmt.Sprintf("https://files.example/%s.jpg", key), nil
}

func TestResolver_UploadsOncePerContent(t *testing.T) {
	up := &countingUploader{}
	mc := metrics.NewCollector()
	r := NewResolver(up, "", mc)
	ctx := context.Background()

	url1, err := r.Resolve(ctx, []byte("cover-a"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	url2, err := r.Resolve(ctx, []byte("cover-a"))
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if url1 != url2 {
		t.Errorf("URLs differ for identical bytes: %q vs %q", url1, url2)
	}
	if up.calls != 1 {
		t.Errorf("uploader ran %d times, want 1", up.calls)
	}

	// Different content means a fresh upload.
	if _, err := r.Resolve(ctx, []byte("cover-b")); err != nil {
		t.Fatalf("Resolve for new content failed: %v", err)
	}
	if up.calls != 2 {
		t.Errorf("uploader ran %d times, want 2", up.calls)
	}

	snap := mc.Snapshot()
	if snap.CoverUploads != 2 || snap.CoverCacheHits != 1 {
		t.Errorf("uploads/hits = %d/%d, want 2/1", snap.CoverUploads, snap.CoverCacheHits)
	}
}

func TestResolver_EmptyBytesResolveEmpty(t *testing.T) {
	up := &countingUploader{}
	r := NewResolver(up, "", metrics.NewCollector())

	url, err := r.Resolve(context.Background(), nil)
	if err != nil || url != "" {
		t.Errorf("Resolve(nil) = (%q, %v), want empty", url, err)
	}
	if up.calls != 0 {
		t.Errorf("uploader ran %d times for empty input", up.calls)
	}
}

func TestResolver_UploadFailureNotCached(t *testing.T) {
	up := &countingUploader{err: errors.New("host down")}
	r := NewResolver(up, "", metrics.NewCollector())
	ctx := context.Background()

	if _, err := r.Resolve(ctx, []byte("cover-a")); err == nil {
		t.Fatal("expected upload error")
	}

	// The host recovers; the same bytes must be retried, not served from a
	// poisoned cache entry.
	up.err = nil
	url, err := r.Resolve(ctx, []byte("cover-a"))
	if err != nil || url == "" {
		t.Fatalf("retry = (%q, %v), want a URL", url, err)
	}
	if up.calls != 2 {
		t.Errorf("uploader ran %d times, want 2", up.calls)
	}
}

func TestResolver_CachePersistsAcrossRestarts(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "state", "covers.msgpack")
	ctx := context.Background()

	up1 := &countingUploader{}
	r1 := NewResolver(up1, cachePath, metrics.NewCollector())
	url1, err := r1.Resolve(ctx, []byte("cover-a"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// A fresh resolver over the same cache file must not re-upload.
	up2 := &countingUploader{}
	r2 := NewResolver(up2, cachePath, metrics.NewCollector())
	url2, err := r2.Resolve(ctx, []byte("cover-a"))
	if err != nil {
		t.Fatalf("Resolve after restart failed: %v", err)
	}
	if url2 != url1 {
		t.Errorf("URL after restart = %q, want %q", url2, url1)
	}
	if up2.calls != 0 {
		t.Errorf("uploader ran %d times after restart, want 0", up2.calls)
	}
}
