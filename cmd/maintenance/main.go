// Bulk metadata maintenance against the vector store. Currently supports
// normalizing recorded party names to their canonical fraction names.
package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/openparl/plenumqa/internal/config"
	"github.com/openparl/plenumqa/internal/maintenance"
	"github.com/openparl/plenumqa/internal/parties"
	"github.com/openparl/plenumqa/internal/vectordb"
)

func main() {
	var (
		job     = flag.String("job", "normalize-parties", "maintenance job to run")
		workers = flag.Int("workers", 4, "worker pool size")
		batch   = flag.Int("batch", 256, "points per scroll page and per write")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	qdrant := vectordb.New(vectordb.Config{
		Host:       cfg.VectorDB.Host,
		Port:       cfg.VectorDB.Port,
		Collection: cfg.VectorDB.Collection,
		Timeout:    cfg.VectorDB.Timeout,
	}, logger)

	runner := maintenance.New(maintenance.Config{Workers: *workers, BatchSize: *batch}, qdrant, logger)

	switch *job {
	case "normalize-parties":
		table, err := parties.LoadTable(cfg.Pipeline.PartiesPath)
		if err != nil {
			logger.Warn("party table not loadable, using defaults", zap.Error(err))
			table = parties.DefaultTable()
		}
		n, err := runner.NormalizeParties(context.Background(), table)
		if err != nil {
			logger.Fatal("normalization failed", zap.Error(err))
		}
		logger.Info("done", zap.Int("points_rewritten", n))
	default:
		logger.Fatal("unknown job", zap.String("job", *job))
	}
}
