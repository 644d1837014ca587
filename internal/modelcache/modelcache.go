// Package modelcache keeps one lazily constructed model instance per model
// identifier and serializes access to it.
//
// A Cache never evicts. Handles live as long as the Cache that created them,
// which in practice is the life of the process.
package modelcache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xxxsen/vectors/internal/metrics"
	appErr "github.com/xxxsen/vectors/internal/pkg/errors"
)

// Constructor builds the model for identifier. It may be slow and may touch disk
// or network.
type Constructor[M any] func(ctx context.Context, identifier string) (M, error)

type ConstructionError struct {
	Cache      string
	Identifier string
	Err        error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("failed to init %s model '%s': %v", e.Cache, e.Identifier, e.Err)
}

func (e *ConstructionError) Unwrap() []error {
	return []error{appErr.ErrConstruction, e.Err}
}

type PoisonedError struct {
	Cache      string
	Identifier string
}

func (e *PoisonedError) Error() string {
	return fmt.Sprintf("%s model mutex poisoned: '%s'", e.Cache, e.Identifier)
}

func (e *PoisonedError) Unwrap() error {
	return appErr.ErrPoisoned
}

// Handle is a shared model instance. Callers must go through With.
type Handle[M any] struct {
	cache      string
	identifier string

	mu       sync.Mutex
	poisoned bool
	model    M
}

func (h *Handle[M]) Identifier() string {
	return h.identifier
}

// With runs fn with exclusive access to the model, blocking until any other
// holder is done. A panic inside fn marks the handle poisoned before it keeps
// unwinding; every later call returns a PoisonedError.
func (h *Handle[M]) With(fn func(m M) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.poisoned {
		return &PoisonedError{Cache: h.cache, Identifier: h.identifier}
	}
	defer func() {
		if r := recover(); r != nil {
			h.poisoned = true
			panic(r)
		}
	}()
	return fn(h.model)
}

type Cache[M any] struct {
	name      string
	construct Constructor[M]

	mu      sync.RWMutex
	entries map[string]*Handle[M]
	group   singleflight.Group
}

// New creates an empty cache. name ("text", "image") is used in errors, logs and
// metric labels.
func New[M any](name string, construct Constructor[M]) *Cache[M] {
	return &Cache[M]{
		name:      name,
		construct: construct,
		entries:   make(map[string]*Handle[M]),
	}
}

func (c *Cache[M]) Name() string {
	return c.name
}

// GetOrInit returns the handle for identifier, constructing the model on first
// use. Concurrent first calls for the same identifier share one construction.
// A failed construction is not remembered, so the next call retries.
func (c *Cache[M]) GetOrInit(ctx context.Context, identifier string) (*Handle[M], error) {
	if h, ok := c.lookup(identifier); ok {
		metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
		return h, nil
	}
	metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()

	v, err, _ := c.group.Do(identifier, func() (interface{}, error) {
		if h, ok := c.lookup(identifier); ok {
			return h, nil
		}
		return c.build(ctx, identifier)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle[M]), nil
}

func (c *Cache[M]) build(ctx context.Context, identifier string) (*Handle[M], error) {
	logger := logutil.GetLogger(ctx).With(zap.String("cache", c.name), zap.String("model", identifier))
	logger.Info("initializing model")
	start := time.Now()
	// shared by every waiter; must outlive the first caller's ctx
	m, err := c.construct(context.WithoutCancel(ctx), identifier)
	if err != nil {
		metrics.ModelConstructions.WithLabelValues(c.name, "error").Inc()
		logger.Error("model init failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return nil, &ConstructionError{Cache: c.name, Identifier: identifier, Err: err}
	}
	h := &Handle[M]{cache: c.name, identifier: identifier, model: m}
	c.mu.Lock()
	c.entries[identifier] = h
	c.mu.Unlock()
	metrics.ModelConstructions.WithLabelValues(c.name, "ok").Inc()
	logger.Info("model ready", zap.Duration("duration", time.Since(start)))
	return h, nil
}

func (c *Cache[M]) lookup(identifier string) (*Handle[M], bool) {
	c.mu.RLock()
	h, ok := c.entries[identifier]
	c.mu.RUnlock()
	return h, ok
}

func (c *Cache[M]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Identifiers lists the loaded identifiers in sorted order.
func (c *Cache[M]) Identifiers() []string {
	c.mu.RLock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
