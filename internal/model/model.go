// Package model defines the encoder contracts held by the model caches and the
// registry of backends able to construct them.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xxxsen/vectors/internal/modelkind"
)

// TextModel encodes strings into fixed length vectors. Implementations are not
// required to be safe for concurrent use; the model cache serializes calls.
// Embed must return exactly one vector per input, in input order.
type TextModel interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// ImageModel encodes raw encoded images (PNG, JPEG, ...) into vectors.
type ImageModel interface {
	EmbedBytes(ctx context.Context, images [][]byte) ([][]float32, error)
	Dimensions() int
}

type TextOptions struct {
	Identifier string
	Kind       modelkind.TextKind
	CacheDir   string
}

type ImageOptions struct {
	Identifier string
	Kind       modelkind.ImageKind
	CacheDir   string
}

type Backend interface {
	Name() string
	NewTextModel(ctx context.Context, opts TextOptions) (TextModel, error)
	NewImageModel(ctx context.Context, opts ImageOptions) (ImageModel, error)
}

type BackendFactory func(args interface{}) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]BackendFactory{}
)

func Register(name string, factory BackendFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func NewBackend(name string, args interface{}) (Backend, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("backend name is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported model backend: %s", name)
	}
	return factory(args)
}

// Backends lists the registered backend names.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode backend config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode backend config: %w", err)
	}
	return nil
}

func checkCount(got, want int) error {
	if got != want {
		return fmt.Errorf("encoder returned %d vectors for %d inputs", got, want)
	}
	return nil
}
