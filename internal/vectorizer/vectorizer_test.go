package vectorizer

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/vectors/internal/model"
	"github.com/xxxsen/vectors/internal/modeldir"
	"github.com/xxxsen/vectors/internal/modelkind"
	appErr "github.com/xxxsen/vectors/internal/pkg/errors"
	"github.com/xxxsen/vectors/internal/record"
)

const fakeDims = 3

type fakeBackend struct {
	textBuilds  atomic.Int64
	imageBuilds atomic.Int64
	embedCalls  atomic.Int64
	failBuild   bool

	mu      sync.Mutex
	batches [][]string
	dirs    []string
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) NewTextModel(ctx context.Context, opts model.TextOptions) (model.TextModel, error) {
	b.textBuilds.Add(1)
	b.mu.Lock()
	b.dirs = append(b.dirs, opts.CacheDir)
	b.mu.Unlock()
	if b.failBuild {
		return nil, errors.New("weights missing")
	}
	return &fakeText{b: b}, nil
}

func (b *fakeBackend) NewImageModel(ctx context.Context, opts model.ImageOptions) (model.ImageModel, error) {
	b.imageBuilds.Add(1)
	return &fakeImage{}, nil
}

type fakeText struct {
	b *fakeBackend
}

func (m *fakeText) Dimensions() int { return fakeDims }

func (m *fakeText) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.b.embedCalls.Add(1)
	m.b.mu.Lock()
	m.b.batches = append(m.b.batches, append([]string(nil), texts...))
	m.b.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, s := range texts {
		if s == "explode" {
			return nil, errors.New("encoder rejected input")
		}
		if s == "panic" {
			panic("encoder crashed")
		}
		out[i] = textVec(s)
	}
	return out, nil
}

func textVec(s string) []float32 {
	return []float32{float32(len(s)), float32(s[0]), 1}
}

type fakeImage struct{}

func (m *fakeImage) Dimensions() int { return 2 }

func (m *fakeImage) EmbedBytes(ctx context.Context, images [][]byte) ([][]float32, error) {
	out := make([][]float32, len(images))
	for i, data := range images {
		if string(data) == "not an image" {
			return nil, errors.New("decode image: unknown format")
		}
		out[i] = []float32{float32(len(data)), 0}
	}
	return out, nil
}

func newTestVectorizer(t *testing.T, opts ...Option) (*Vectorizer, *fakeBackend) {
	t.Helper()
	b := &fakeBackend{}
	resolver := modeldir.NewResolver()
	resolver.Set("/tmp/host/models")
	return New(NewTextCache(resolver, b), NewImageCache(resolver, b), opts...), b
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestVectorizeFields_RoundTripShape(t *testing.T) {
	v, b := newTestVectorizer(t)
	in := record.Record{
		"title": "hello world",
		"id":    42.0,
		"tags":  []interface{}{"a", "b"},
		"meta":  map[string]interface{}{"k": "v"},
	}
	out, err := v.VectorizeFields(context.Background(), in, []FieldMapping{
		{Source: "title", Target: "title_vec", FieldType: "text", Model: "bge-small-en-v1.5"},
	})
	require.NoError(t, err)
	require.Equal(t, record.Vector(textVec("hello world")), out["title_vec"])
	require.Len(t, out["title_vec"], fakeDims)
	for _, k := range []string{"title", "id", "tags", "meta"} {
		require.Equal(t, in[k], out[k])
	}
	require.NotContains(t, in, "title_vec")
	require.Equal(t, []string{"/tmp/host/models"}, b.dirs)
}

func TestVectorizeFields_SkipsMissingNullAndEmpty(t *testing.T) {
	v, b := newTestVectorizer(t)
	mappings := []FieldMapping{
		{Source: "missing", Target: "v1", FieldType: "text", Model: "m"},
		{Source: "null", Target: "v2", FieldType: "text", Model: "m"},
		{Source: "empty", Target: "v3", FieldType: "text", Model: "m"},
		{Source: "nullimg", Target: "v4", FieldType: "image", Model: "clip-ViT-B-32"},
	}
	in := record.Record{"null": nil, "empty": "", "nullimg": nil}
	out, err := v.VectorizeFields(context.Background(), in, mappings)
	require.NoError(t, err)
	require.Equal(t, in, out)
	require.EqualValues(t, 0, b.embedCalls.Load())
	require.EqualValues(t, 0, b.textBuilds.Load())
}

func TestVectorizeFields_OverwritesTarget(t *testing.T) {
	v, _ := newTestVectorizer(t)
	out, err := v.VectorizeFields(context.Background(), record.Record{"t": "abc", "v": "stale"}, []FieldMapping{
		{Source: "t", Target: "v", Model: "m"},
	})
	require.NoError(t, err)
	require.Equal(t, record.Vector(textVec("abc")), out["v"])
}

func TestVectorizeFields_TypeMismatch(t *testing.T) {
	v, _ := newTestVectorizer(t)
	in := record.Record{"ok": "fine", "count": 7.0}
	out, err := v.VectorizeFields(context.Background(), in, []FieldMapping{
		{Source: "ok", Target: "ok_vec", FieldType: "text", Model: "m"},
		{Source: "count", Target: "count_vec", FieldType: "text", Model: "m"},
	})
	require.Error(t, err)
	require.Nil(t, out)
	require.True(t, appErr.IsInputShape(err))
	require.Equal(t, "count", appErr.FieldOf(err))
	require.Contains(t, err.Error(), "text field 'count' must be a string")
	require.Equal(t, record.Record{"ok": "fine", "count": 7.0}, in)
}

func TestVectorizeFields_ImageDecodeError(t *testing.T) {
	v, b := newTestVectorizer(t)
	_, err := v.VectorizeFields(context.Background(), record.Record{"photo": "***not base64***"}, []FieldMapping{
		{Source: "photo", Target: "photo_vec", FieldType: "image", Model: "clip-ViT-B-32"},
	})
	require.Error(t, err)
	require.True(t, appErr.IsDecode(err))
	require.Equal(t, "photo", appErr.FieldOf(err))
	require.Contains(t, err.Error(), "failed to decode base64 from 'photo'")
	require.EqualValues(t, 0, b.imageBuilds.Load())
}

func TestVectorizeFields_ImageMustBeString(t *testing.T) {
	v, _ := newTestVectorizer(t)
	_, err := v.VectorizeFields(context.Background(), record.Record{"photo": []interface{}{1.0}}, []FieldMapping{
		{Source: "photo", Target: "photo_vec", FieldType: "image", Model: "clip-ViT-B-32"},
	})
	require.True(t, appErr.IsInputShape(err))
}

func TestVectorizeFields_Image(t *testing.T) {
	v, b := newTestVectorizer(t)
	out, err := v.VectorizeFields(context.Background(), record.Record{"photo": b64("pixels")}, []FieldMapping{
		{Source: "photo", Target: "photo_vec", FieldType: "image", Model: "clip-ViT-B-32"},
	})
	require.NoError(t, err)
	require.Equal(t, []interface{}{6.0, 0.0}, out["photo_vec"])
	require.EqualValues(t, 1, b.imageBuilds.Load())
}

func TestVectorizeFields_EncodeFailureNamesField(t *testing.T) {
	v, _ := newTestVectorizer(t)
	_, err := v.VectorizeFields(context.Background(), record.Record{"body": "explode"}, []FieldMapping{
		{Source: "body", Target: "body_vec", Model: "m"},
	})
	require.Error(t, err)
	require.True(t, appErr.IsInvocation(err))
	require.Equal(t, "body", appErr.FieldOf(err))
	require.Contains(t, err.Error(), "encoder rejected input")
}

func TestVectorizeFields_ConstructionFailureRetries(t *testing.T) {
	v, b := newTestVectorizer(t)
	b.failBuild = true
	_, err := v.VectorizeFields(context.Background(), record.Record{"t": "x"}, []FieldMapping{{Source: "t", Target: "v", Model: "m"}})
	require.True(t, appErr.IsConstruction(err))
	require.Contains(t, err.Error(), "failed to init text model 'm'")

	b.failBuild = false
	_, err = v.VectorizeFields(context.Background(), record.Record{"t": "x"}, []FieldMapping{{Source: "t", Target: "v", Model: "m"}})
	require.NoError(t, err)
	require.EqualValues(t, 2, b.textBuilds.Load())
}

func TestVectorizeFields_Markdown(t *testing.T) {
	v, _ := newTestVectorizer(t)
	out, err := v.VectorizeFields(context.Background(), record.Record{"md": "# Title\n\nSome *bold* text", "blank": "   "}, []FieldMapping{
		{Source: "md", Target: "md_vec", FieldType: "markdown", Model: "m"},
		{Source: "blank", Target: "blank_vec", FieldType: "markdown", Model: "m"},
	})
	require.NoError(t, err)
	require.Equal(t, record.Vector(textVec("Title Some bold text")), out["md_vec"])
	require.NotContains(t, out, "blank_vec")
}

func TestVectorizeText_ModelIsCached(t *testing.T) {
	v, b := newTestVectorizer(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		vec, err := v.VectorizeText(ctx, "abc", "bge-small-en-v1.5")
		require.NoError(t, err)
		require.Equal(t, textVec("abc"), vec)
	}
	require.EqualValues(t, 1, b.textBuilds.Load())
	require.Equal(t, []string{"bge-small-en-v1.5"}, v.TextModels())
}

func TestKindLabels(t *testing.T) {
	require.Equal(t, "BAAI/bge-small-en-v1.5", textKindLabel("bge-small-en-v1.5"))
	require.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", textKindLabel("all-MiniLM-L6-v2"))
	for _, id := range []string{"m", "user-supplied-1", "user-supplied-2 ", ""} {
		require.Equal(t, modelkind.DefaultText.String(), textKindLabel(id))
		require.Equal(t, modelkind.DefaultImage.String(), imageKindLabel(id))
	}
	require.Equal(t, "Qdrant/clip-ViT-B-32-vision", imageKindLabel("CLIP-ViT-B-32"))
}

func TestVectorizeText_PoisonedHandle(t *testing.T) {
	v, _ := newTestVectorizer(t)
	ctx := context.Background()
	require.Panics(t, func() {
		_, _ = v.VectorizeText(ctx, "panic", "m")
	})
	_, err := v.VectorizeText(ctx, "fine", "m")
	require.Error(t, err)
	require.True(t, appErr.IsPoisoned(err))

	// other identifiers are unaffected
	_, err = v.VectorizeText(ctx, "fine", "other")
	require.NoError(t, err)
}

func TestVectorizeFieldsBatch_ScatterCorrectness(t *testing.T) {
	v, b := newTestVectorizer(t)
	in := []record.Record{{"t": "a"}, {"t": ""}, {"t": "b"}}
	out, err := v.VectorizeFieldsBatch(context.Background(), in, []FieldMapping{
		{Source: "t", Target: "v", FieldType: "text", Model: "X"},
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, record.Vector(textVec("a")), out[0]["v"])
	require.NotContains(t, out[1], "v")
	require.Equal(t, record.Vector(textVec("b")), out[2]["v"])

	require.EqualValues(t, 1, b.embedCalls.Load())
	require.Equal(t, [][]string{{"a", "b"}}, b.batches)
	require.NotContains(t, in[0], "v")
}

func TestVectorizeFieldsBatch_OneCallPerTextMapping(t *testing.T) {
	v, b := newTestVectorizer(t)
	in := []record.Record{
		{"title": "t1", "body": "b1", "n": 1.0},
		{"title": "t2", "body": nil},
		{"body": "b3"},
		{"title": 5.0, "body": "b4"},
	}
	out, err := v.VectorizeFieldsBatch(context.Background(), in, []FieldMapping{
		{Source: "title", Target: "title_vec", Model: "m"},
		{Source: "body", Target: "body_vec", FieldType: "text", Model: "m"},
		{Source: "absent", Target: "absent_vec", Model: "m"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, b.embedCalls.Load())
	require.Equal(t, [][]string{{"t1", "t2"}, {"b1", "b3", "b4"}}, b.batches)
	require.Contains(t, out[0], "title_vec")
	require.Contains(t, out[1], "title_vec")
	require.NotContains(t, out[1], "body_vec")
	require.NotContains(t, out[3], "title_vec")
	require.Equal(t, record.Vector(textVec("b4")), out[3]["body_vec"])
	for _, rec := range out {
		require.NotContains(t, rec, "absent_vec")
	}
}

func TestVectorizeFieldsBatch_EncodeFailureFailsWholeBatch(t *testing.T) {
	v, _ := newTestVectorizer(t)
	_, err := v.VectorizeFieldsBatch(context.Background(), []record.Record{{"t": "ok"}, {"t": "explode"}}, []FieldMapping{
		{Source: "t", Target: "v", Model: "X"},
	})
	require.Error(t, err)
	require.True(t, appErr.IsInvocation(err))
	require.Contains(t, err.Error(), "model 'X'")
}

func TestVectorizeFieldsBatch_ImageFallbackIsBestEffort(t *testing.T) {
	v, _ := newTestVectorizer(t)
	in := []record.Record{
		{"img": b64("abcd")},
		{"img": "%%%"},
		{"img": b64("not an image")},
		{"img": nil},
		{"img": b64("xy")},
	}
	out, err := v.VectorizeFieldsBatch(context.Background(), in, []FieldMapping{
		{Source: "img", Target: "img_vec", FieldType: "image", Model: "clip-ViT-B-32"},
	})
	require.NoError(t, err)
	require.Equal(t, []interface{}{4.0, 0.0}, out[0]["img_vec"])
	require.NotContains(t, out[1], "img_vec")
	require.NotContains(t, out[2], "img_vec")
	require.NotContains(t, out[3], "img_vec")
	require.Equal(t, []interface{}{2.0, 0.0}, out[4]["img_vec"])
}

func TestVectorizeFieldsBatch_StrictFallback(t *testing.T) {
	v, _ := newTestVectorizer(t, WithStrictBatch(true))
	_, err := v.VectorizeFieldsBatch(context.Background(), []record.Record{{"img": b64("ok")}, {"img": "%%%"}}, []FieldMapping{
		{Source: "img", Target: "img_vec", FieldType: "image", Model: "clip-ViT-B-32"},
	})
	require.Error(t, err)
	require.True(t, appErr.IsDecode(err))
	require.Contains(t, err.Error(), "record 1")
}

func TestVectorizeFieldsBatch_MarkdownFallsBackPerRecord(t *testing.T) {
	v, b := newTestVectorizer(t)
	out, err := v.VectorizeFieldsBatch(context.Background(), []record.Record{{"md": "**x**"}, {"md": 3.0}}, []FieldMapping{
		{Source: "md", Target: "md_vec", FieldType: "markdown", Model: "m"},
	})
	require.NoError(t, err)
	require.Equal(t, record.Vector(textVec("x")), out[0]["md_vec"])
	require.NotContains(t, out[1], "md_vec")
	require.EqualValues(t, 1, b.embedCalls.Load())
}

func TestVectorizeFieldsBatch_Concurrent(t *testing.T) {
	v, b := newTestVectorizer(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := v.VectorizeFieldsBatch(context.Background(), []record.Record{{"t": "a"}, {"t": "bb"}}, []FieldMapping{
				{Source: "t", Target: "v", Model: "shared"},
			})
			require.NoError(t, err)
			require.Equal(t, record.Vector(textVec("bb")), out[1]["v"])
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, b.textBuilds.Load())
	require.EqualValues(t, 8, b.embedCalls.Load())
}
