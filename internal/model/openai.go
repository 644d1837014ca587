package model

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	appErr "github.com/xxxsen/vectors/internal/pkg/errors"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAITimeout = 30
)

// openAIConfig also serves TEI and LocalAI, which speak the same embeddings API.
type openAIConfig struct {
	APIKey         string            `json:"api_key"`
	BaseURL        string            `json:"base_url"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	Models         map[string]string `json:"models"`
}

type openAIBackend struct {
	client *openai.Client
	models map[string]string
}

func init() {
	Register("openai", createOpenAIBackend)
}

func createOpenAIBackend(args interface{}) (Backend, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		if baseURL == defaultOpenAIBaseURL {
			return nil, fmt.Errorf("openai api_key is required")
		}
		apiKey = "none"
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultOpenAITimeout
	}
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = baseURL
	clientCfg.HTTPClient = &http.Client{Timeout: time.Duration(timeout) * time.Second}
	return &openAIBackend{
		client: openai.NewClientWithConfig(clientCfg),
		models: cfg.Models,
	}, nil
}

func (b *openAIBackend) Name() string {
	return "openai"
}

func (b *openAIBackend) NewTextModel(ctx context.Context, opts TextOptions) (TextModel, error) {
	served := opts.Kind.String()
	if name, ok := b.models[opts.Identifier]; ok && name != "" {
		served = name
	}
	return &openAITextModel{client: b.client, model: served, dims: opts.Kind.Dimensions()}, nil
}

func (b *openAIBackend) NewImageModel(ctx context.Context, opts ImageOptions) (ImageModel, error) {
	return nil, fmt.Errorf("%w: openai backend has no image encoder", appErr.ErrUnsupported)
}

type openAITextModel struct {
	client *openai.Client
	model  string
	dims   int
}

func (m *openAITextModel) Dimensions() int {
	return m.dims
}

func (m *openAITextModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	resp, err := m.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(m.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if err := checkCount(len(resp.Data), len(texts)); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) || out[item.Index] != nil {
			return nil, fmt.Errorf("embedding response has invalid index %d", item.Index)
		}
		if len(item.Embedding) != m.dims {
			return nil, fmt.Errorf("model %s returned %d dimensions, want %d", m.model, len(item.Embedding), m.dims)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}
