package embedcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/vectors/internal/metrics"
	"github.com/xxxsen/vectors/internal/model"
)

// WrapLRU memoizes vectors in process. A non-positive size or ttl disables it.
func WrapLRU(next model.TextModel, identifier string, size int, ttl time.Duration) model.TextModel {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &lruTextModel{
		next:       next,
		identifier: identifier,
		cache:      expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruTextModel struct {
	next       model.TextModel
	identifier string
	cache      *expirable.LRU[string, []float32]
}

func (l *lruTextModel) Dimensions() int {
	return l.next.Dimensions()
}

func (l *lruTextModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	var missKeys []string
	for i, text := range texts {
		key := buildCacheKey(l.identifier, text)
		if cached, ok := l.cache.Get(key); ok {
			out[i] = cloneEmbedding(cached)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
		missKeys = append(missKeys, key)
	}
	hits := len(texts) - len(missIdx)
	metrics.MemoLookups.WithLabelValues("lru", "hit").Add(float64(hits))
	metrics.MemoLookups.WithLabelValues("lru", "miss").Add(float64(len(missIdx)))
	if hits > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit (lru)", zap.String("model", l.identifier), zap.Int("hits", hits))
	}
	if len(missIdx) == 0 {
		return out, nil
	}
	res, err := l.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if err := checkCount(len(res), len(missTexts)); err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = res[j]
		l.cache.Add(missKeys[j], cloneEmbedding(res[j]))
	}
	return out, nil
}
