// Package modeldir resolves the directory where model weights live on disk.
package modeldir

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// DefaultDir is used when no directory was ever configured. It matches the
// cache directory existing deployments already populate.
const DefaultDir = ".fastembed_cache"

const modelsSubdir = "models"

// Resolver holds a directory that may be set once for the life of the process.
type Resolver struct {
	setOnce sync.Once
	logOnce sync.Once
	mu      sync.RWMutex
	dir     string
}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Set establishes the directory. Only the first call has an effect; it reports
// whether this call was the one applied.
func (r *Resolver) Set(dir string) bool {
	applied := false
	r.setOnce.Do(func() {
		r.mu.Lock()
		r.dir = dir
		r.mu.Unlock()
		applied = true
	})
	return applied
}

// Get returns the configured directory or DefaultDir.
func (r *Resolver) Get(ctx context.Context) string {
	r.mu.RLock()
	dir := r.dir
	r.mu.RUnlock()
	configured := dir != ""
	if !configured {
		dir = DefaultDir
	}
	r.logOnce.Do(func() {
		logutil.GetLogger(ctx).Info("model cache directory resolved",
			zap.String("dir", dir), zap.Bool("configured", configured))
	})
	return dir
}

// FromRoot derives the model directory from a host root directory.
func FromRoot(root string) string {
	return filepath.Join(root, modelsSubdir)
}
