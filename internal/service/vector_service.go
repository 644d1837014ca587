package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/vectors/internal/model"
	"github.com/xxxsen/vectors/internal/modeldir"
	appErr "github.com/xxxsen/vectors/internal/pkg/errors"
	"github.com/xxxsen/vectors/internal/record"
	"github.com/xxxsen/vectors/internal/vectorizer"
)

const (
	serviceName  = "vectors"
	statusActive = "active"
)

type StatusInfo struct {
	Extension   string   `json:"extension"`
	Status      string   `json:"status"`
	Ready       bool     `json:"ready"`
	ModelsDir   string   `json:"models_dir"`
	Backends    []string `json:"backends"`
	TextModels  []string `json:"text_models"`
	ImageModels []string `json:"image_models"`
}

// VectorService is the host-facing surface of the vectorizer.
type VectorService struct {
	vectorizer *vectorizer.Vectorizer
	resolver   *modeldir.Resolver
	ready      atomic.Bool
}

func NewVectorService(v *vectorizer.Vectorizer, resolver *modeldir.Resolver) *VectorService {
	return &VectorService{vectorizer: v, resolver: resolver}
}

func (s *VectorService) Name() string {
	return serviceName
}

// OnReady pins the model directory under rootDir. It returns false when the
// directory had already been fixed by an earlier call.
func (s *VectorService) OnReady(ctx context.Context, rootDir string) bool {
	if rootDir == "" {
		logutil.GetLogger(ctx).Warn("host root dir is empty, keep default models dir")
		return false
	}
	dir := modeldir.FromRoot(rootDir)
	applied := s.resolver.Set(dir)
	logger := logutil.GetLogger(ctx).With(zap.String("models_dir", dir))
	if applied {
		logger.Info("models dir set from host root")
	} else {
		logger.Warn("models dir already fixed, ignore host root", zap.String("current", s.resolver.Get(ctx)))
	}
	s.ready.Store(true)
	return applied
}

func (s *VectorService) Status(ctx context.Context) StatusInfo {
	return StatusInfo{
		Extension:   serviceName,
		Status:      statusActive,
		Ready:       s.ready.Load(),
		ModelsDir:   s.resolver.Get(ctx),
		Backends:    model.Backends(),
		TextModels:  s.vectorizer.TextModels(),
		ImageModels: s.vectorizer.ImageModels(),
	}
}

func (s *VectorService) VectorizeFields(ctx context.Context, rec record.Record, mappings []vectorizer.FieldMapping) (record.Record, error) {
	if rec == nil {
		return nil, appErr.New(appErr.ErrInvalid, nil, "record is required")
	}
	out, err := s.vectorizer.VectorizeFields(ctx, rec, mappings)
	if err != nil {
		logutil.GetLogger(ctx).Error("vectorize fields failed", zap.Int("mappings", len(mappings)), zap.Error(err))
		return nil, err
	}
	return out, nil
}

func (s *VectorService) VectorizeFieldsBatch(ctx context.Context, recs []record.Record, mappings []vectorizer.FieldMapping) ([]record.Record, error) {
	for i, rec := range recs {
		if rec == nil {
			return nil, appErr.New(appErr.ErrInvalid, nil, "record %d is null", i)
		}
	}
	start := time.Now()
	out, err := s.vectorizer.VectorizeFieldsBatch(ctx, recs, mappings)
	logger := logutil.GetLogger(ctx).With(
		zap.Int("records", len(recs)),
		zap.Int("mappings", len(mappings)),
		zap.Duration("duration", time.Since(start)),
	)
	if err != nil {
		logger.Error("vectorize batch failed", zap.Error(err))
		return nil, err
	}
	logger.Debug("vectorize batch finished")
	return out, nil
}

func (s *VectorService) VectorizeText(ctx context.Context, text, modelID string) ([]float32, error) {
	vec, err := s.vectorizer.VectorizeText(ctx, text, modelID)
	if err != nil {
		logutil.GetLogger(ctx).Error("vectorize text failed", zap.String("model", modelID), zap.Error(err))
		return nil, err
	}
	return vec, nil
}

func (s *VectorService) VectorizeImage(ctx context.Context, data []byte, modelID string) ([]float32, error) {
	vec, err := s.vectorizer.VectorizeImage(ctx, data, modelID)
	if err != nil {
		logutil.GetLogger(ctx).Error("vectorize image failed", zap.String("model", modelID), zap.Int("bytes", len(data)), zap.Error(err))
		return nil, err
	}
	return vec, nil
}
