package model

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	appErr "github.com/xxxsen/vectors/internal/pkg/errors"
)

const defaultGeminiModel = "gemini-embedding-001"

type geminiConfig struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// geminiBackend serves every text kind from one hosted model at the kind's
// output dimensionality.
type geminiBackend struct {
	apiKey string
	model  string
}

func init() {
	Register("gemini", createGeminiBackend)
}

func createGeminiBackend(args interface{}) (Backend, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api_key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &geminiBackend{apiKey: apiKey, model: model}, nil
}

func (b *geminiBackend) Name() string {
	return "gemini"
}

func (b *geminiBackend) NewTextModel(ctx context.Context, opts TextOptions) (TextModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  b.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &geminiTextModel{client: client, model: b.model, dims: opts.Kind.Dimensions()}, nil
}

func (b *geminiBackend) NewImageModel(ctx context.Context, opts ImageOptions) (ImageModel, error) {
	return nil, fmt.Errorf("%w: gemini backend has no image encoder", appErr.ErrUnsupported)
}

type geminiTextModel struct {
	client *genai.Client
	model  string
	dims   int
}

func (m *geminiTextModel) Dimensions() int {
	return m.dims
}

func (m *geminiTextModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: text}}})
	}
	dims := int32(m.dims)
	resp, err := m.client.Models.EmbedContent(ctx, m.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, err
	}
	if err := checkCount(len(resp.Embeddings), len(texts)); err != nil {
		return nil, err
	}
	out := make([][]float32, 0, len(texts))
	for _, e := range resp.Embeddings {
		if e == nil || len(e.Values) != m.dims {
			return nil, fmt.Errorf("model %s returned an embedding of unexpected size", m.model)
		}
		out = append(out, e.Values)
	}
	return out, nil
}
