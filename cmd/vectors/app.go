package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/vectors/internal/config"
	"github.com/xxxsen/vectors/internal/db"
	"github.com/xxxsen/vectors/internal/embedcache"
	"github.com/xxxsen/vectors/internal/model"
	"github.com/xxxsen/vectors/internal/modeldir"
	"github.com/xxxsen/vectors/internal/repo"
	"github.com/xxxsen/vectors/internal/service"
	"github.com/xxxsen/vectors/internal/vectorizer"
)

type app struct {
	cfg       *config.Config
	db        *sql.DB
	cacheRepo *repo.EmbeddingCacheRepo
	service   *service.VectorService
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func newBackends(cfg *config.Config) (model.Backend, model.Backend, error) {
	text, err := model.NewBackend(cfg.Backend.Text, cfg.Backend.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("init text backend: %w", err)
	}
	if cfg.Backend.Image == cfg.Backend.Text {
		return text, text, nil
	}
	image, err := model.NewBackend(cfg.Backend.Image, cfg.Backend.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("init image backend: %w", err)
	}
	return text, image, nil
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	textBackend, imageBackend, err := newBackends(cfg)
	if err != nil {
		return nil, err
	}

	var wrappers []vectorizer.TextWrapper
	if cfg.VectorCache.DB {
		conn, err := db.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		a.db = conn
		a.cacheRepo = repo.NewEmbeddingCacheRepo(conn)
		backendName := textBackend.Name()
		wrappers = append(wrappers, func(identifier string, m model.TextModel) model.TextModel {
			return embedcache.WrapDB(m, backendName, identifier, a.cacheRepo)
		})
	}
	if cfg.VectorCache.LRUSize > 0 {
		size := cfg.VectorCache.LRUSize
		ttl := time.Duration(cfg.VectorCache.LRUTTLSeconds) * time.Second
		wrappers = append(wrappers, func(identifier string, m model.TextModel) model.TextModel {
			return embedcache.WrapLRU(m, identifier, size, ttl)
		})
	}

	resolver := modeldir.NewResolver()
	v := vectorizer.New(
		vectorizer.NewTextCache(resolver, textBackend, wrappers...),
		vectorizer.NewImageCache(resolver, imageBackend),
		vectorizer.WithStrictBatch(cfg.Batch.Strict),
	)
	a.service = service.NewVectorService(v, resolver)
	if cfg.RootDir != "" {
		a.service.OnReady(ctx, cfg.RootDir)
	}
	logutil.GetLogger(ctx).Info("vectorizer ready",
		zap.String("text_backend", textBackend.Name()),
		zap.String("image_backend", imageBackend.Name()),
		zap.Bool("db_memo", cfg.VectorCache.DB),
		zap.Int("lru_size", cfg.VectorCache.LRUSize),
		zap.Bool("strict_batch", cfg.Batch.Strict),
	)
	return a, nil
}
