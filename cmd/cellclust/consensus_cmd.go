package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/meristem-data/cellclust/internal/consensus"
	"github.com/meristem-data/cellclust/internal/db"
)

func runConsensus(args []string) {
	fs := flag.NewFlagSet("consensus", flag.ExitOnError)
	var (
		matrixPath  = fs.String("matrix", "", "genes x cells expression matrix CSV (required)")
		configPath  = fs.String("config", "", "pipeline config JSON; defaults apply when empty")
		outPath     = fs.String("out", "-", "cluster labels TSV; - for stdout")
		markersPath = fs.String("markers", "", "write marker gene list to this path")
		runDir      = fs.String("run-dir", "", "directory for per-iteration artifacts; pre-populated dirs resume")
		dbPath      = fs.String("db", "", "sqlite run registry; runs are recorded when set")
		partitioner = fs.String("partitioner", "bisect", "split partitioner: bisect or kmeans")
		iterations  = fs.Int("iterations", 0, "override configured iteration count")
		seed        = fs.Int64("seed", -1, "override configured rng seed")
		refine      = fs.Bool("refine", false, "refine labels against the co-cluster matrix")
	)
	fs.Parse(args)

	if *matrixPath == "" {
		log.Fatal("consensus: -matrix is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	m, err := loadMatrix(*matrixPath)
	if err != nil {
		log.Fatalf("Failed to load matrix: %v", err)
	}
	log.Printf("[Consensus] loaded %d genes x %d cells", m.NumGenes(), m.NumCells())

	engine, err := buildSplitEngine(cfg, *partitioner)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	opts := consensus.Options{
		Iterations:     cfg.GetIterations(),
		SampleFraction: cfg.GetSampleFraction(),
		Seed:           cfg.GetSeed(),
		Workers:        cfg.GetWorkers(),
		MinSimilarity:  cfg.GetMinSimilarity(),
		RunDir:         *runDir,
	}
	if *iterations > 0 {
		opts.Iterations = *iterations
	}
	if *seed >= 0 {
		opts.Seed = *seed
	}
	if *dbPath != "" {
		registry, err := db.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open run registry: %v", err)
		}
		defer registry.Close()
		if err := registry.MigrateUp(); err != nil {
			log.Fatalf("Failed to migrate run registry: %v", err)
		}
		opts.Store = consensus.NewRunStore(registry.DB)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agg := &consensus.Aggregator{Engine: engine, Opts: opts}
	result, err := agg.Run(ctx, m, m.Cells())
	if err != nil {
		if result == nil || !errors.Is(err, context.Canceled) {
			log.Fatalf("Consensus run failed: %v", err)
		}
		log.Printf("[Consensus] interrupted after %d iterations, writing partial result", result.IterationsDone)
	}
	if result.RunID != "" {
		log.Printf("[Consensus] run %s: %d iterations, %d clusters",
			result.RunID, result.IterationsDone, len(result.Assignment.IDs()))
	} else {
		log.Printf("[Consensus] %d iterations, %d clusters",
			result.IterationsDone, len(result.Assignment.IDs()))
	}
	if result.MergeWarning != nil {
		log.Printf("[Consensus] %s", result.MergeWarning.String())
	}

	assign := result.Assignment
	if *refine {
		refined, warning, err := consensus.Refine(assign, result.CoCluster,
			cfg.GetRefineTolerance(), cfg.GetRefineConfusion(), 0)
		if err != nil {
			log.Fatalf("Refine failed: %v", err)
		}
		if warning != nil {
			log.Printf("[Consensus] %s", warning.String())
		}
		log.Printf("[Consensus] refined into %d clusters", len(refined.IDs()))
		assign = refined
	}

	if err := writeLabels(*outPath, assign); err != nil {
		log.Fatalf("Failed to write labels: %v", err)
	}
	if *markersPath != "" {
		if err := writeMarkers(*markersPath, result.Markers); err != nil {
			log.Fatalf("Failed to write markers: %v", err)
		}
	}
}
