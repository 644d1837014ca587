package embedcache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/vectors/internal/metrics"
	"github.com/xxxsen/vectors/internal/model"
	"github.com/xxxsen/vectors/internal/repo"
)

// Store is the persistence used by the database tier.
type Store interface {
	GetMany(ctx context.Context, modelName string, contentHashes []string) (map[string][]float32, error)
	SaveMany(ctx context.Context, items []*repo.EmbeddingCache) error
}

// WrapDB memoizes vectors in a shared table, scoped by backend and identifier.
// Lookup and write failures are logged and fall through to the model.
func WrapDB(next model.TextModel, backend, identifier string, store Store) model.TextModel {
	if next == nil || store == nil {
		return next
	}
	return &dbTextModel{
		next:       next,
		identifier: identifier,
		modelName:  memoModelName(backend, identifier),
		store:      store,
	}
}

type dbTextModel struct {
	next       model.TextModel
	identifier string
	modelName  string
	store      Store
}

func (d *dbTextModel) Dimensions() int {
	return d.next.Dimensions()
}

func (d *dbTextModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return d.next.Embed(ctx, texts)
	}
	logger := logutil.GetLogger(ctx)
	hashes := make([]string, len(texts))
	for i, text := range texts {
		hashes[i] = contentHash(text)
	}
	found, err := d.store.GetMany(ctx, d.modelName, hashes)
	if err != nil {
		logger.Warn("embedding cache lookup failed", zap.String("model", d.identifier), zap.Error(err))
		found = nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if values, ok := found[hashes[i]]; ok && len(values) == d.next.Dimensions() {
			out[i] = values
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	hits := len(texts) - len(missIdx)
	metrics.MemoLookups.WithLabelValues("db", "hit").Add(float64(hits))
	metrics.MemoLookups.WithLabelValues("db", "miss").Add(float64(len(missIdx)))
	if hits > 0 {
		logger.Debug("embedding cache hit (db)", zap.String("model", d.identifier), zap.Int("hits", hits))
	}
	if len(missIdx) == 0 {
		return out, nil
	}

	res, err := d.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if err := checkCount(len(res), len(missTexts)); err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	items := make([]*repo.EmbeddingCache, 0, len(missIdx))
	for j, i := range missIdx {
		out[i] = res[j]
		items = append(items, &repo.EmbeddingCache{
			ModelName:   d.modelName,
			ContentHash: hashes[i],
			Embedding:   res[j],
			Ctime:       now,
		})
	}
	if err := d.store.SaveMany(ctx, items); err != nil {
		logger.Warn("failed to cache embedding", zap.String("model", d.identifier), zap.Error(err))
	}
	return out, nil
}
