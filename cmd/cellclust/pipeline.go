package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/meristem-data/cellclust/internal/cluster"
	"github.com/meristem-data/cellclust/internal/config"
	"github.com/meristem-data/cellclust/internal/de"
	"github.com/meristem-data/cellclust/internal/exprmat"
)

func loadConfig(path string) (*config.PipelineConfig, error) {
	if path == "" {
		return config.EmptyPipelineConfig(), nil
	}
	return config.LoadPipelineConfig(path)
}

func loadMatrix(path string) (*exprmat.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open matrix: %w", err)
	}
	defer f.Close()
	return exprmat.ReadCSV(f)
}

func pipelineParams(cfg *config.PipelineConfig) (de.Params, error) {
	return de.NewParams(de.Params{
		PadjThreshold:    cfg.GetPadjThreshold(),
		LFCThreshold:     cfg.GetLFCThreshold(),
		LowExprThreshold: cfg.GetLowExprThreshold(),
		Q1Threshold:      cfg.GetQ1Threshold(),
		Q2Threshold:      cfg.GetQ2Threshold(),
		QDiffThreshold:   cfg.GetQDiffThreshold(),
		ScoreThreshold:   cfg.GetScoreThreshold(),
		MinClusterSize:   cfg.GetMinClusterSize(),
		ScoreCap:         cfg.GetScoreCap(),
	})
}

func pipelineTester(cfg *config.PipelineConfig) (de.Tester, error) {
	switch cfg.GetDETest() {
	case "welch":
		return de.NewWelchTester(cfg.GetLowExprThreshold()), nil
	case "ranksum":
		return de.NewMannWhitneyTester(cfg.GetLowExprThreshold()), nil
	default:
		return nil, fmt.Errorf("unknown de_test %q", cfg.GetDETest())
	}
}

func pipelinePartitioner(name string) (cluster.Partitioner, error) {
	switch name {
	case "bisect":
		return &cluster.BisectPartitioner{}, nil
	case "kmeans":
		return &cluster.KMeansPartitioner{}, nil
	default:
		return nil, fmt.Errorf("unknown partitioner %q (want bisect or kmeans)", name)
	}
}

func buildSplitEngine(cfg *config.PipelineConfig, partitioner string) (*cluster.SplitEngine, error) {
	params, err := pipelineParams(cfg)
	if err != nil {
		return nil, err
	}
	tester, err := pipelineTester(cfg)
	if err != nil {
		return nil, err
	}
	part, err := pipelinePartitioner(partitioner)
	if err != nil {
		return nil, err
	}
	return &cluster.SplitEngine{
		Reducer:         &cluster.PCAReducer{Components: cfg.GetPCAComponents()},
		Partitioner:     part,
		Tester:          tester,
		Params:          params,
		RemoveThreshold: cfg.GetNuisanceRemoveThreshold(),
		MaxDepth:        cfg.GetMaxSplitDepth(),
	}, nil
}

// writeLabels emits one "cell<TAB>cluster" line per cell, sorted by cell
// name. Path "-" writes to stdout.
func writeLabels(path string, assign cluster.Assignment) error {
	out := os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create labels file: %w", err)
		}
		defer f.Close()
		out = f
	}

	cells := make([]string, 0, len(assign))
	for c := range assign {
		cells = append(cells, c)
	}
	sort.Strings(cells)

	if _, err := fmt.Fprintln(out, "cell\tcluster"); err != nil {
		return err
	}
	for _, c := range cells {
		if _, err := fmt.Fprintf(out, "%s\t%d\n", c, assign[c]); err != nil {
			return err
		}
	}
	return nil
}

func writeMarkers(path string, markers []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create markers file: %w", err)
	}
	defer f.Close()
	for _, g := range markers {
		if _, err := fmt.Fprintln(f, g); err != nil {
			return err
		}
	}
	return nil
}
