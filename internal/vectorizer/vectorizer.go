// Package vectorizer turns mapped record fields into embedding vectors using
// the cached text and image models.
package vectorizer

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/vectors/internal/metrics"
	"github.com/xxxsen/vectors/internal/model"
	"github.com/xxxsen/vectors/internal/modelkind"
	appErr "github.com/xxxsen/vectors/internal/pkg/errors"
	"github.com/xxxsen/vectors/internal/record"
)

const (
	FieldTypeText     = "text"
	FieldTypeImage    = "image"
	FieldTypeMarkdown = "markdown"
)

// FieldMapping declares one transformation: read Source, encode it with Model
// according to FieldType, write the vector to Target.
type FieldMapping struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	FieldType string `json:"field_type"`
	Model     string `json:"model"`
}

// IsText reports whether the mapping takes the batched text path. An empty
// field type means text.
func (m FieldMapping) IsText() bool {
	return m.FieldType == "" || m.FieldType == FieldTypeText
}

type Option func(*Vectorizer)

// WithStrictBatch makes the per-record batch fallback for non-text mappings
// fail on the first error instead of leaving the field unset.
func WithStrictBatch(strict bool) Option {
	return func(v *Vectorizer) {
		v.strictBatch = strict
	}
}

type Vectorizer struct {
	texts       *TextCache
	images      *ImageCache
	strictBatch bool
}

func New(texts *TextCache, images *ImageCache, opts ...Option) *Vectorizer {
	v := &Vectorizer{texts: texts, images: images}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Vectorizer) TextModels() []string {
	return v.texts.Identifiers()
}

func (v *Vectorizer) ImageModels() []string {
	return v.images.Identifiers()
}

// VectorizeText embeds a single string with the text model named modelID.
func (v *Vectorizer) VectorizeText(ctx context.Context, text string, modelID string) ([]float32, error) {
	vecs, err := v.embedTexts(ctx, modelID, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, appErr.New(appErr.ErrInvocation, nil, "text embedding returned empty result")
	}
	return vecs[0], nil
}

// VectorizeImage embeds one encoded image with the image model named modelID.
func (v *Vectorizer) VectorizeImage(ctx context.Context, data []byte, modelID string) ([]float32, error) {
	h, err := v.images.GetOrInit(ctx, modelID)
	if err != nil {
		return nil, err
	}
	var vecs [][]float32
	err = h.With(func(m model.ImageModel) error {
		start := time.Now()
		defer observe(v.images.Name(), imageKindLabel(modelID), 1, start)
		out, err := m.EmbedBytes(ctx, [][]byte{data})
		if err != nil {
			return appErr.New(appErr.ErrInvocation, err, "image embedding failed")
		}
		vecs = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, appErr.New(appErr.ErrInvocation, nil, "image embedding returned empty result")
	}
	return vecs[0], nil
}

// VectorizeFields applies mappings in order to a copy of rec. The first failing
// mapping aborts the call; rec itself is never modified.
func (v *Vectorizer) VectorizeFields(ctx context.Context, rec record.Record, mappings []FieldMapping) (record.Record, error) {
	out := rec.Clone()
	if out == nil {
		out = record.Record{}
	}
	for _, m := range mappings {
		if err := v.applyMapping(ctx, out, m); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// VectorizeFieldsBatch applies mappings to copies of recs. Text mappings are
// encoded with one model call per mapping across all records. Other mappings
// run per record and, unless strict, leave the target unset on failure.
func (v *Vectorizer) VectorizeFieldsBatch(ctx context.Context, recs []record.Record, mappings []FieldMapping) ([]record.Record, error) {
	out := make([]record.Record, len(recs))
	for i, rec := range recs {
		out[i] = rec.Clone()
		if out[i] == nil {
			out[i] = record.Record{}
		}
	}
	for _, m := range mappings {
		if !m.IsText() {
			if err := v.fallback(ctx, out, m); err != nil {
				return nil, err
			}
			continue
		}
		if err := v.batchText(ctx, out, m); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (v *Vectorizer) fallback(ctx context.Context, recs []record.Record, m FieldMapping) error {
	for i, rec := range recs {
		err := v.applyMapping(ctx, rec, m)
		if err == nil {
			continue
		}
		if v.strictBatch {
			return appErr.NewField(nil, m.Source, err, "record %d", i)
		}
		metrics.SwallowedErrors.Inc()
		logutil.GetLogger(ctx).Warn("batch field left unset",
			zap.Int("index", i), zap.String("field", m.Source), zap.String("field_type", m.FieldType), zap.Error(err))
	}
	return nil
}

func (v *Vectorizer) batchText(ctx context.Context, recs []record.Record, m FieldMapping) error {
	indices := make([]int, 0, len(recs))
	texts := make([]string, 0, len(recs))
	for i, rec := range recs {
		if s, ok := rec[m.Source].(string); ok && s != "" {
			indices = append(indices, i)
			texts = append(texts, s)
		}
	}
	if len(texts) == 0 {
		return nil
	}
	vecs, err := v.embedTexts(ctx, m.Model, texts)
	if err != nil {
		return appErr.NewField(nil, m.Source, err, "batch text embedding failed for model '%s'", m.Model)
	}
	for j, idx := range indices {
		recs[idx][m.Target] = record.Vector(vecs[j])
	}
	return nil
}

// embedTexts holds the model once for the whole list. The result has one
// vector per text, in order.
func (v *Vectorizer) embedTexts(ctx context.Context, modelID string, texts []string) ([][]float32, error) {
	h, err := v.texts.GetOrInit(ctx, modelID)
	if err != nil {
		return nil, err
	}
	var vecs [][]float32
	err = h.With(func(m model.TextModel) error {
		start := time.Now()
		defer observe(v.texts.Name(), textKindLabel(modelID), len(texts), start)
		out, err := m.Embed(ctx, texts)
		if err != nil {
			return appErr.New(appErr.ErrInvocation, err, "text embedding failed")
		}
		if len(out) != len(texts) {
			return appErr.New(appErr.ErrInvocation, nil, "text embedding returned %d vectors for %d inputs", len(out), len(texts))
		}
		vecs = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vecs, nil
}

// applyMapping runs one mapping against rec in place. Missing, null and empty
// text sources are skipped silently.
func (v *Vectorizer) applyMapping(ctx context.Context, rec record.Record, m FieldMapping) error {
	val, ok := rec[m.Source]
	if !ok {
		return nil
	}
	kind := record.KindOf(val)
	if kind == record.KindNull {
		return nil
	}

	var (
		vec []float32
		err error
	)
	switch m.FieldType {
	case FieldTypeImage:
		s, isString := val.(string)
		if !isString {
			return appErr.NewField(appErr.ErrInputShape, m.Source, nil,
				"image field '%s' must be a base64 string, got %s", m.Source, kind)
		}
		data, derr := base64.StdEncoding.DecodeString(s)
		if derr != nil {
			return appErr.NewField(appErr.ErrDecode, m.Source, derr, "failed to decode base64 from '%s'", m.Source)
		}
		vec, err = v.VectorizeImage(ctx, data, m.Model)
	default:
		s, isString := val.(string)
		if !isString {
			return appErr.NewField(appErr.ErrInputShape, m.Source, nil,
				"text field '%s' must be a string, got %s", m.Source, kind)
		}
		if m.FieldType == FieldTypeMarkdown {
			s = markdownText(s)
		}
		if s == "" {
			return nil
		}
		vec, err = v.VectorizeText(ctx, s, m.Model)
	}
	if err != nil {
		return appErr.NewField(nil, m.Source, err, "failed to vectorize field '%s'", m.Source)
	}
	rec[m.Target] = record.Vector(vec)
	return nil
}

// textKindLabel maps a caller supplied identifier to the canonical name of the
// model that serves it, keeping metric label values bounded.
func textKindLabel(modelID string) string {
	kind, ok := modelkind.LookupText(modelID)
	if !ok {
		kind = modelkind.DefaultText
	}
	return kind.String()
}

func imageKindLabel(modelID string) string {
	kind, ok := modelkind.LookupImage(modelID)
	if !ok {
		kind = modelkind.DefaultImage
	}
	return kind.String()
}

func observe(cache, kind string, inputs int, start time.Time) {
	metrics.EncodeDuration.WithLabelValues(cache, kind).Observe(time.Since(start).Seconds())
	metrics.EncodeInputs.WithLabelValues(cache, kind).Add(float64(inputs))
}
