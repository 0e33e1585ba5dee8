// Package cover resolves raw cover-art bytes to a public image URL. Uploads
// are keyed by a SHA-1 content hash so an unchanged cover is never uploaded
// twice, and the hash-to-URL map persists across restarts.
package cover

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/eternalrp/eternalrp/log"
	"github.com/eternalrp/eternalrp/metrics"
)

// Uploader pushes image bytes to a public host and returns the public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte) (string, error)
}

// cacheFile is the on-disk shape of the hash-to-URL map.
type cacheFile struct {
	Entries map[string]string `msgpack:"entries"`
}

// Resolver turns cover bytes into a URL through the configured uploader,
// consulting the content-hash cache first.
type Resolver struct {
	uploader  Uploader
	cachePath string
	logger    *log.Logger
	mc        *metrics.Collector

	mu      sync.Mutex
	entries map[string]string
}

// NewResolver creates a resolver. cachePath may be empty to keep the cache
// in memory only; a corrupt or missing cache file starts empty.
func NewResolver(uploader Uploader, cachePath string, mc *metrics.Collector) *Resolver {
	r := &Resolver{
		uploader:  uploader,
		cachePath: cachePath,
		logger:    log.NewLogger("cover.resolver"),
		mc:        mc,
		entries:   make(map[string]string),
	}
	r.load()
	return r
}

// Resolve returns the public URL for the given cover bytes, uploading only
// when the content hash has not been seen before. Empty input resolves to
// an empty URL; an upload failure returns the error and caches nothing.
func (r *Resolver) Resolve(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	sum := sha1.Sum(data)
	key := hex.EncodeToString(sum[:])

	r.mu.Lock()
	url, hit := r.entries[key]
	r.mu.Unlock()
	if hit {
		r.mc.IncCoverCacheHits()
		return url, nil
	}

	url, err := r.uploader.Upload(ctx, key, data)
	if err != nil {
		return "", err
	}
	r.mc.IncCoverUploads()
	r.logger.Debug("cover uploaded",
		zap.String("hash", key[:8]), zap.String("url", url))

	r.mu.Lock()
	r.entries[key] = url
	r.mu.Unlock()
	r.persist()
	return url, nil
}

func (r *Resolver) load() {
	if r.cachePath == "" {
		return
	}
	data, err := os.ReadFile(r.cachePath)
	if err != nil {
		return
	}
	var file cacheFile
	if err := msgpack.Unmarshal(data, &file); err != nil {
		r.logger.Warn("cover cache unreadable, starting empty", zap.Error(err))
		return
	}
	if file.Entries != nil {
		r.entries = file.Entries
	}
}

func (r *Resolver) persist() {
	if r.cachePath == "" {
		return
	}
	r.mu.Lock()
	snapshot := make(map[string]string, len(r.entries))
	for k, v := range r.entries {
		snapshot[k] = v
	}
	r.mu.Unlock()

	data, err := msgpack.Marshal(cacheFile{Entries: snapshot})
	if err != nil {
		r.logger.Warn("cover cache encode failed", zap.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.cachePath), 0o755); err != nil {
		r.logger.Warn("cover cache dir", zap.Error(err))
		return
	}
	if err := os.WriteFile(r.cachePath, data, 0o644); err != nil {
		r.logger.Warn("cover cache write failed", zap.Error(err))
	}
}
