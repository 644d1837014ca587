package vectorizer

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/vectors/internal/model"
	"github.com/xxxsen/vectors/internal/modelcache"
	"github.com/xxxsen/vectors/internal/modeldir"
	"github.com/xxxsen/vectors/internal/modelkind"
)

type (
	TextCache  = modelcache.Cache[model.TextModel]
	ImageCache = modelcache.Cache[model.ImageModel]
)

// TextWrapper decorates a freshly constructed text model, e.g. with a memo.
type TextWrapper func(identifier string, m model.TextModel) model.TextModel

// NewTextCache builds models on miss by resolving the model directory, parsing
// the identifier and asking backend for the encoder.
func NewTextCache(resolver *modeldir.Resolver, backend model.Backend, wrappers ...TextWrapper) *TextCache {
	return modelcache.New("text", func(ctx context.Context, identifier string) (model.TextModel, error) {
		dir := resolver.Get(ctx)
		kind := modelkind.ParseText(ctx, identifier)
		logutil.GetLogger(ctx).Info("loading text model",
			zap.String("model", identifier),
			zap.String("kind", kind.String()),
			zap.String("backend", backend.Name()),
			zap.String("cache_dir", dir),
		)
		m, err := backend.NewTextModel(ctx, model.TextOptions{Identifier: identifier, Kind: kind, CacheDir: dir})
		if err != nil {
			return nil, err
		}
		for _, wrap := range wrappers {
			m = wrap(identifier, m)
		}
		return m, nil
	})
}

func NewImageCache(resolver *modeldir.Resolver, backend model.Backend) *ImageCache {
	return modelcache.New("image", func(ctx context.Context, identifier string) (model.ImageModel, error) {
		dir := resolver.Get(ctx)
		kind := modelkind.ParseImage(ctx, identifier)
		logutil.GetLogger(ctx).Info("loading image model",
			zap.String("model", identifier),
			zap.String("kind", kind.String()),
			zap.String("backend", backend.Name()),
			zap.String("cache_dir", dir),
		)
		return backend.NewImageModel(ctx, model.ImageOptions{Identifier: identifier, Kind: kind, CacheDir: dir})
	})
}
