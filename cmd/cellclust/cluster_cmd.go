package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/meristem-data/cellclust/internal/cluster"
	"github.com/meristem-data/cellclust/internal/exprmat"
)

func runCluster(args []string) {
	fs := flag.NewFlagSet("cluster", flag.ExitOnError)
	var (
		matrixPath  = fs.String("matrix", "", "genes x cells expression matrix CSV (required)")
		configPath  = fs.String("config", "", "pipeline config JSON; defaults apply when empty")
		outPath     = fs.String("out", "-", "cluster labels TSV; - for stdout")
		markersPath = fs.String("markers", "", "write marker gene list to this path")
		dendroPath  = fs.String("dendrogram", "", "write cluster dendrogram JSON to this path")
		partitioner = fs.String("partitioner", "bisect", "split partitioner: bisect or kmeans")
	)
	fs.Parse(args)

	if *matrixPath == "" {
		log.Fatal("cluster: -matrix is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	m, err := loadMatrix(*matrixPath)
	if err != nil {
		log.Fatalf("Failed to load matrix: %v", err)
	}
	log.Printf("[Cluster] loaded %d genes x %d cells", m.NumGenes(), m.NumCells())

	engine, err := buildSplitEngine(cfg, *partitioner)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	assign, warnings, err := engine.Run(m, m.Cells())
	if err != nil {
		log.Fatalf("Split failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("[Cluster] branch warning: %s", w.String())
	}
	log.Printf("[Cluster] split produced %d clusters", len(assign.IDs()))

	merger := &cluster.MergeEngine{Tester: engine.Tester, Params: engine.Params}
	merged, err := merger.Run(m, assign)
	if err != nil {
		log.Fatalf("Merge failed: %v", err)
	}
	if merged.Warning != nil {
		log.Printf("[Cluster] %s", merged.Warning.String())
	}
	log.Printf("[Cluster] %d clusters after merge, %d marker genes",
		len(merged.Assignment.IDs()), len(merged.Markers))

	if err := writeLabels(*outPath, merged.Assignment); err != nil {
		log.Fatalf("Failed to write labels: %v", err)
	}
	if *markersPath != "" {
		if err := writeMarkers(*markersPath, merged.Markers); err != nil {
			log.Fatalf("Failed to write markers: %v", err)
		}
	}
	if *dendroPath != "" {
		if err := writeDendrogram(*dendroPath, merged.Medians); err != nil {
			log.Fatalf("Failed to write dendrogram: %v", err)
		}
	}
}

func writeDendrogram(path string, medians *exprmat.Matrix) error {
	if medians == nil || medians.NumCells() < 2 {
		log.Printf("[Cluster] fewer than two clusters, skipping dendrogram")
		return nil
	}
	root, _, err := cluster.BuildDendrogramFromProfiles(medians)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
