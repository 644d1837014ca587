package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/vectors/internal/config"
	"github.com/xxxsen/vectors/internal/handler"
	"github.com/xxxsen/vectors/internal/job"
	"github.com/xxxsen/vectors/internal/metrics"
	"github.com/xxxsen/vectors/internal/middleware"
	"github.com/xxxsen/vectors/internal/pkg/jwt"
	"github.com/xxxsen/vectors/internal/record"
	"github.com/xxxsen/vectors/internal/schedule"
	"github.com/xxxsen/vectors/internal/vectorizer"
)

const maxRecordLine = 64 << 20

func main() {
	var (
		configPath   string
		mappingsPath string
		inputPath    string
		clientName   string
	)

	rootCmd := &cobra.Command{
		Use:   "vectors",
		Short: "record field vectorizer",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run vectors http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	embedCmd := &cobra.Command{
		Use:   "embed",
		Short: "vectorize JSONL records from a file or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mappingsPath == "" {
				return fmt.Errorf("--mappings is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			in := io.Reader(os.Stdin)
			if inputPath != "" && inputPath != "-" {
				file, err := os.Open(inputPath)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer file.Close()
				in = file
			}
			return runEmbed(cmd.Context(), cfg, mappingsPath, in, cmd.OutOrStdout())
		},
	}
	embedCmd.Flags().StringVar(&mappingsPath, "mappings", "", "path to a JSON array of field mappings")
	embedCmd.Flags().StringVar(&inputPath, "input", "", "JSONL records, stdin when empty")

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "mint an api token for a client",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clientName == "" {
				return fmt.Errorf("--client is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}
			token, err := jwt.GenerateToken(clientName, []byte(cfg.Auth.JWTSecret), time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	tokenCmd.Flags().StringVar(&clientName, "client", "", "client name carried by the token")

	rootCmd.AddCommand(runCmd, embedCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cacheRepo != nil {
		scheduler, err := startCleanup(ctx, a.cacheRepo, cfg.VectorCache)
		if err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	deps := handler.RouterDeps{
		Vectors:   handler.NewVectorHandler(a.service),
		Metrics:   metrics.Handler(),
		JWTSecret: []byte(cfg.Auth.JWTSecret),
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			middleware.RateLimit(time.Duration(cfg.RateLimitMs)*time.Millisecond),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening",
		zap.String("addr", addr),
		zap.Bool("auth", cfg.Auth.JWTSecret != ""),
	)

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

type cacheDeleter interface {
	DeleteBefore(ctx context.Context, cutoff int64) (int64, error)
}

// startCleanup schedules the memo cleanup and runs it once before returning.
func startCleanup(ctx context.Context, deleter cacheDeleter, cfg config.VectorCacheConfig) (*schedule.CronScheduler, error) {
	scheduler := schedule.NewCronScheduler()
	cleanup := job.NewEmbeddingCacheCleanupJob(deleter, cfg.MaxAgeDays)
	if err := scheduler.AddJob(cleanup, cfg.CleanupCron); err != nil {
		return nil, fmt.Errorf("schedule cache cleanup: %w", err)
	}
	scheduler.Start(ctx)
	logutil.GetLogger(ctx).Info("scheduler started", zap.Any("jobs", scheduler.Jobs()))
	if err := scheduler.Trigger(cleanup.Name()); err != nil {
		scheduler.Stop()
		return nil, fmt.Errorf("run cache cleanup: %w", err)
	}
	return scheduler, nil
}

func readMappings(path string) ([]vectorizer.FieldMapping, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}
	var mappings []vectorizer.FieldMapping
	if err := json.Unmarshal(raw, &mappings); err != nil {
		return nil, fmt.Errorf("decode mappings: %w", err)
	}
	return mappings, nil
}

func readRecords(in io.Reader) ([]record.Record, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordLine)
	var recs []record.Record
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec record.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode record at line %d: %w", line, err)
		}
		if rec == nil {
			return nil, fmt.Errorf("record at line %d is not an object", line)
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return recs, nil
}

func runEmbed(ctx context.Context, cfg *config.Config, mappingsPath string, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mappings, err := readMappings(mappingsPath)
	if err != nil {
		return err
	}
	recs, err := readRecords(in)
	if err != nil {
		return err
	}
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.service.VectorizeFieldsBatch(ctx, recs, mappings)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	for _, rec := range result {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return w.Flush()
}
