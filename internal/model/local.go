package model

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	appErr "github.com/xxxsen/vectors/internal/pkg/errors"
)

const (
	localManifestFile = "config.json"
	defaultLocalSeed  = 0x5eed
	imageGrid         = 8
	imageHistBins     = 64
	imageMaxSamples   = 256
	// decoded images above this many pixels are rejected before allocation
	imageMaxPixels    = 40_000_000
)

type localConfig struct {
	Seed uint64 `json:"seed"`
}

// localManifest is what the local backend keeps on disk per model.
type localManifest struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Seed       uint64 `json:"seed"`
}

type localBackend struct {
	seed uint64
}

func init() {
	Register("local", createLocalBackend)
}

func createLocalBackend(args interface{}) (Backend, error) {
	cfg := &localConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = defaultLocalSeed
	}
	return &localBackend{seed: cfg.Seed}, nil
}

func (b *localBackend) Name() string {
	return "local"
}

func (b *localBackend) NewTextModel(ctx context.Context, opts TextOptions) (TextModel, error) {
	m, err := loadLocalManifest(opts.CacheDir, opts.Kind.String(), opts.Kind.Dimensions(), b.seed)
	if err != nil {
		return nil, err
	}
	return &hashTextModel{dims: m.Dimensions, seed: modelSeed(m.Seed, m.Model)}, nil
}

func (b *localBackend) NewImageModel(ctx context.Context, opts ImageOptions) (ImageModel, error) {
	m, err := loadLocalManifest(opts.CacheDir, opts.Kind.String(), opts.Kind.Dimensions(), b.seed)
	if err != nil {
		return nil, err
	}
	return &histImageModel{dims: m.Dimensions}, nil
}

func manifestDir(cacheDir, name string) string {
	return filepath.Join(cacheDir, strings.ReplaceAll(name, "/", "--"))
}

// loadLocalManifest reads the model manifest, creating it on first use.
func loadLocalManifest(cacheDir, name string, dims int, seed uint64) (*localManifest, error) {
	dir := manifestDir(cacheDir, name)
	path := filepath.Join(dir, localManifestFile)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		m := &localManifest{}
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("corrupt model manifest %s: %w", path, err)
		}
		if m.Model != name || m.Dimensions != dims {
			return nil, fmt.Errorf("model manifest %s describes %s/%d, want %s/%d", path, m.Model, m.Dimensions, name, dims)
		}
		return m, nil
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read model manifest: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}
	m := &localManifest{Model: name, Dimensions: dims, Seed: seed}
	data, err = json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, localManifestFile+".*")
	if err != nil {
		return nil, fmt.Errorf("write model manifest: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write model manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write model manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("write model manifest: %w", err)
	}
	return m, nil
}

// hashTextModel embeds unigrams and adjacent bigrams with signed feature hashing.
type hashTextModel struct {
	dims int
	seed uint64
}

func (m *hashTextModel) Dimensions() int {
	return m.dims
}

func (m *hashTextModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out[i] = m.encode(text)
	}
	return out, nil
}

func (m *hashTextModel) encode(text string) []float32 {
	vec := make([]float64, m.dims)
	tokens := tokenize(text)
	for i, tok := range tokens {
		addHashed(vec, m.seed, tok, 1.0)
		if i > 0 {
			addHashed(vec, m.seed, tokens[i-1]+" "+tok, 0.5)
		}
	}
	return normalize(vec)
}

// modelSeed gives each model kind its own hash space.
func modelSeed(seed uint64, name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return seed ^ h.Sum64()
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func addHashed(vec []float64, seed uint64, term string, weight float64) {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(term))
	sum := h.Sum64()
	idx := int(sum % uint64(len(vec)))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// histImageModel embeds coarse spatial color layout and per channel histograms.
type histImageModel struct {
	dims int
}

func (m *histImageModel) Dimensions() int {
	return m.dims
}

func (m *histImageModel) EmbedBytes(ctx context.Context, images [][]byte) ([][]float32, error) {
	out := make([][]float32, len(images))
	for i, data := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := m.encode(data)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (m *histImageModel) encode(data []byte) ([]float32, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > imageMaxPixels {
		return nil, appErr.New(appErr.ErrInvocation, nil,
			"image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, imageMaxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("decode image: empty bounds")
	}
	stepX := max(1, w/imageMaxSamples)
	stepY := max(1, h/imageMaxSamples)

	var cells [imageGrid * imageGrid][4]float64
	var cellCounts [imageGrid * imageGrid]float64
	var hist [4][imageHistBins]float64
	var samples float64
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl, _ := img.At(x, y).RGBA()
			ch := [4]float64{float64(r) / 0xffff, float64(g) / 0xffff, float64(bl) / 0xffff, 0}
			ch[3] = 0.299*ch[0] + 0.587*ch[1] + 0.114*ch[2]
			cell := ((y-b.Min.Y)*imageGrid/h)*imageGrid + (x-b.Min.X)*imageGrid/w
			for c := 0; c < 4; c++ {
				cells[cell][c] += ch[c]
				bin := min(int(ch[c]*imageHistBins), imageHistBins-1)
				hist[c][bin]++
			}
			cellCounts[cell]++
			samples++
		}
	}

	vec := make([]float64, m.dims)
	i := 0
	for cell := range cells {
		for c := 0; c < 4; c++ {
			v := 0.0
			if cellCounts[cell] > 0 {
				v = cells[cell][c] / cellCounts[cell]
			}
			vec[i%m.dims] += v
			i++
		}
	}
	for c := 0; c < 4; c++ {
		for bin := 0; bin < imageHistBins; bin++ {
			vec[i%m.dims] += hist[c][bin] / samples
			i++
		}
	}
	return normalize(vec), nil
}

func normalize(vec []float64) []float32 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(vec))
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}
