package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openparl/plenumqa/internal/audit"
	"github.com/openparl/plenumqa/internal/circuitbreaker"
	"github.com/openparl/plenumqa/internal/config"
	"github.com/openparl/plenumqa/internal/decompose"
	"github.com/openparl/plenumqa/internal/embeddings"
	"github.com/openparl/plenumqa/internal/expand"
	"github.com/openparl/plenumqa/internal/health"
	"github.com/openparl/plenumqa/internal/httpapi"
	"github.com/openparl/plenumqa/internal/llmclient"
	"github.com/openparl/plenumqa/internal/parties"
	"github.com/openparl/plenumqa/internal/pipeline"
	"github.com/openparl/plenumqa/internal/retrieval"
	"github.com/openparl/plenumqa/internal/synthesis"
	"github.com/openparl/plenumqa/internal/tracing"
	"github.com/openparl/plenumqa/internal/vectordb"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	circuitbreaker.StartMetricsCollection()

	if err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
	}, logger); err != nil {
		logger.Warn("tracing unavailable, continuing without", zap.Error(err))
	}

	// collaborators
	nlp := llmclient.New(llmclient.Config{
		BaseURL:           cfg.NLPService.BaseURL,
		Timeout:           cfg.NLPService.Timeout,
		GenerationTimeout: cfg.NLPService.GenerationTimeout,
	}, logger)

	qdrant := vectordb.New(vectordb.Config{
		Host:       cfg.VectorDB.Host,
		Port:       cfg.VectorDB.Port,
		Collection: cfg.VectorDB.Collection,
		TopK:       cfg.VectorDB.TopK,
		Threshold:  cfg.VectorDB.Threshold,
		Timeout:    cfg.VectorDB.Timeout,
	}, logger)

	var embCache embeddings.Cache
	if cfg.Redis.Enabled {
		rc, err := embeddings.NewRedisCache(cfg.Redis.Addr)
		if err != nil {
			logger.Warn("redis unavailable, embedding cache is local only", zap.Error(err))
		} else {
			embCache = rc
		}
	}
	embedder := embeddings.New(embeddings.Config{
		BaseURL:      cfg.Embeddings.BaseURL,
		DefaultModel: cfg.Embeddings.DefaultModel,
		Timeout:      cfg.Embeddings.Timeout,
		CacheTTL:     cfg.Embeddings.CacheTTL,
		MaxLRU:       cfg.Embeddings.MaxLRU,
	}, embCache)

	partyTable, err := parties.LoadTable(cfg.Pipeline.PartiesPath)
	if err != nil {
		logger.Warn("party table not loadable, using defaults",
			zap.String("path", cfg.Pipeline.PartiesPath), zap.Error(err))
		partyTable = parties.DefaultTable()
	}
	topicTable := decompose.DefaultTopicTable()
	if cfg.Pipeline.TopicsPath != "" {
		if tt, err := decompose.LoadTopicTable(cfg.Pipeline.TopicsPath); err != nil {
			logger.Warn("topic table not loadable, using defaults",
				zap.String("path", cfg.Pipeline.TopicsPath), zap.Error(err))
		} else {
			topicTable = tt
		}
	}

	// pipeline
	decomposer := decompose.New(decompose.Config{
		MaxSamplePoints: cfg.Pipeline.Decompose.MaxSamplePoints,
		MaxTrendBuckets: cfg.Pipeline.Decompose.MaxTrendBuckets,
	}, topicTable, partyTable, logger)

	expander := expand.New(expand.Config{
		MinVariants: cfg.Pipeline.Expansion.MinVariants,
		MaxVariants: cfg.Pipeline.Expansion.MaxVariants,
		MinLength:   cfg.Pipeline.Expansion.MinLength,
		MaxLength:   cfg.Pipeline.Expansion.MaxLength,
		Concurrent:  cfg.Pipeline.Expansion.Concurrent,
	}, nlp, logger)

	coordinator := retrieval.New(retrieval.Config{
		TopKPerQuery: cfg.Pipeline.Retrieval.TopKPerQuery,
		RerankTopN:   cfg.Pipeline.Retrieval.RerankTopN,
	}, embedder, qdrant, nlp, logger)

	synthesizer := synthesis.New(synthesis.Config{
		TopChunks:        cfg.Pipeline.Synthesis.TopChunks,
		MaxSources:       cfg.Pipeline.Synthesis.MaxSources,
		RequireBothSides: cfg.Pipeline.Synthesis.RequireBothSides,
	}, nlp, logger)

	controller, err := pipeline.NewStandardController(pipeline.Deps{
		NLP:         nlp,
		Decomposer:  decomposer,
		Expander:    expander,
		Retriever:   coordinator,
		Synthesizer: synthesizer,
		Log:         logger,
	})
	if err != nil {
		logger.Fatal("build pipeline", zap.Error(err))
	}

	var auditSink httpapi.AuditSink
	if cfg.Audit.Enabled {
		auditSink = audit.New(cfg.Audit.Dir, logger)
	}

	// health and metrics endpoints come up before the API starts serving
	hm := health.NewManager(logger)
	hm.Register(health.NewHTTPChecker("nlp-service", cfg.NLPService.BaseURL+"/health", true))
	hm.Register(health.NewFuncChecker("qdrant", true, qdrant.Healthy))
	hm.Start(ctx)
	defer hm.Stop()

	healthSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HealthPort),
		Handler: hm.Handler(),
	}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server stopped", zap.Error(err))
		}
	}()

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// hot-reload for the pipeline tunables: reconfigure the stage components
	// in place so the next request picks up the swapped values
	watcher, err := config.NewWatcher(config.Path(), cfg.Pipeline, logger)
	if err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
	} else {
		watcher.OnSwap(func(p config.PipelineConfig) {
			decomposer.Reconfigure(decompose.Config{
				MaxSamplePoints: p.Decompose.MaxSamplePoints,
				MaxTrendBuckets: p.Decompose.MaxTrendBuckets,
			})
			expander.Reconfigure(expand.Config{
				MinVariants: p.Expansion.MinVariants,
				MaxVariants: p.Expansion.MaxVariants,
				MinLength:   p.Expansion.MinLength,
				MaxLength:   p.Expansion.MaxLength,
				Concurrent:  p.Expansion.Concurrent,
			})
			coordinator.Reconfigure(retrieval.Config{
				TopKPerQuery: p.Retrieval.TopKPerQuery,
				RerankTopN:   p.Retrieval.RerankTopN,
			})
			synthesizer.Reconfigure(synthesis.Config{
				TopChunks:        p.Synthesis.TopChunks,
				MaxSources:       p.Synthesis.MaxSources,
				RequireBothSides: p.Synthesis.RequireBothSides,
			})
			logger.Info("pipeline tunables swapped",
				zap.Int("expansion_max_variants", p.Expansion.MaxVariants),
				zap.Int("retrieval_top_k", p.Retrieval.TopKPerQuery),
				zap.Int("synthesis_top_chunks", p.Synthesis.TopChunks))
		})
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("config watcher not started", zap.Error(err))
		}
	}

	api := httpapi.New(controller, auditSink, logger)
	apiSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // synthesis calls are slow
	}

	go func() {
		logger.Info("orchestrator listening",
			zap.Int("port", cfg.Server.Port),
			zap.Int("health_port", cfg.Server.HealthPort),
			zap.Int("metrics_port", cfg.Server.MetricsPort))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = healthSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func buildLogger(lc config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc := zap.NewProductionConfig()
	if lc.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
