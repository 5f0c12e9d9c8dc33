package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/esgpipe/esgpipe/internal/ai"
	"github.com/esgpipe/esgpipe/internal/cache"
	"github.com/esgpipe/esgpipe/internal/config"
	"github.com/esgpipe/esgpipe/internal/db"
	"github.com/esgpipe/esgpipe/internal/embedcache"
	"github.com/esgpipe/esgpipe/internal/filestore"
	"github.com/esgpipe/esgpipe/internal/handler"
	"github.com/esgpipe/esgpipe/internal/job"
	"github.com/esgpipe/esgpipe/internal/middleware"
	"github.com/esgpipe/esgpipe/internal/repo"
	"github.com/esgpipe/esgpipe/internal/schedule"
	"github.com/esgpipe/esgpipe/internal/service"
	"github.com/esgpipe/esgpipe/internal/taskqueue"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "esgpipe",
		Short: "esgpipe ingestion and retrieval server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run esgpipe server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

// buildManager wires providers in fallback order and stacks the embedding
// caches (in-memory LRU in front of the postgres table) over the embedder.
func buildManager(cfg config.AIConfig, cacheCfg config.CacheConfig, embCacheRepo *repo.EmbeddingCacheRepo) (*ai.Manager, error) {
	providers := make(map[string]ai.IProvider, len(cfg.Providers))
	models := make(map[string]config.AIProviderConfig, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		provider, err := ai.NewProvider(pc.Type, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init ai provider %s: %w", pc.Name, err)
		}
		providers[pc.Name] = provider
		models[pc.Name] = pc
	}

	order := cfg.FallbackOrder
	if len(order) == 0 {
		for _, pc := range cfg.Providers {
			order = append(order, pc.Name)
		}
	}
	var generators []ai.GeneratorEntry
	for _, name := range order {
		provider, ok := providers[name]
		if !ok {
			return nil, fmt.Errorf("fallback_order references unknown provider: %s", name)
		}
		generators = append(generators, ai.GeneratorEntry{
			Name:      name,
			Generator: ai.NewGenerator(provider, models[name].Model),
		})
	}

	var embedders []ai.EmbedderEntry
	appendEmbedder := func(name string) {
		pc, ok := models[name]
		if !ok || pc.EmbedModel == "" {
			return
		}
		for _, existing := range embedders {
			if strings.EqualFold(existing.Name, name) {
				return
			}
		}
		embedders = append(embedders, ai.EmbedderEntry{
			Name:     name,
			Embedder: ai.NewEmbedder(providers[name], pc.EmbedModel),
		})
	}
	if cfg.EmbedProvider != "" {
		appendEmbedder(cfg.EmbedProvider)
	}
	for _, pc := range cfg.Providers {
		appendEmbedder(pc.Name)
	}
	embedder := ai.NewGroupEmbedder(embedders)
	if embedder != nil && cacheCfg.Enable {
		if embCacheRepo != nil {
			embedder = embedcache.WrapDB(embedder, embCacheRepo)
		}
		embedder = embedcache.WrapLRU(embedder, cacheCfg.LruSize, time.Hour)
	}

	return ai.NewManager(ai.NewGeneratorGroup(generators), embedder, ai.ManagerConfig{
		Timeout: cfg.TimeoutSeconds,
	}), nil
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	rootLogger := logutil.GetLogger(context.Background())
	rootLogger.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.Int("workers", cfg.Ingest.Workers),
	)

	docRepo := repo.NewDocumentRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)
	vectorRepo := repo.NewVectorRepo(conn)
	embCacheRepo := repo.NewEmbeddingCacheRepo(conn)

	manager, err := buildManager(cfg.AI, cfg.Cache, embCacheRepo)
	if err != nil {
		return err
	}

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	var kv *cache.Cache
	if cfg.Cache.Enable {
		kv = cache.New(cfg.Cache.LruSize)
	}

	pool := taskqueue.NewPool(cfg.Ingest.Workers, cfg.Ingest.QueueSize)
	ingestService := service.NewIngestService(docRepo, chunkRepo, vectorRepo, store, manager, pool, kv, cfg.Ingest)
	searchService := service.NewSearchService(vectorRepo, manager, chunkRepo, kv, cfg.Search)
	ragService := service.NewRAGService(searchService, manager, kv)

	deps := handler.RouterDeps{
		Documents: handler.NewDocumentHandler(ingestService, docRepo),
		Ingest:    handler.NewIngestHandler(ingestService),
		Search:    handler.NewSearchHandler(searchService),
		RAG:       handler.NewRAGHandler(ragService),
		Health:    handler.NewHealthHandler(vectorRepo, manager, kv),

		AIRateWindow: time.Duration(cfg.AIRateLimitSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(nil),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewReclaimStuckJob(ingestService, cfg.Ingest.ReclaimAfterMinutes), "*/10 * * * *"); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewEmbeddingResyncJob(ingestService, 100), "*/5 * * * *"); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(embCacheRepo, cfg.Cache.MaxAgeDays), "0 3 * * *"); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	scheduler.Start(ctx)

	rootLogger.Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			rootLogger.Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	rootLogger.Info("server stopping...")
	scheduler.Stop()
	pool.Stop()
	return nil
}
