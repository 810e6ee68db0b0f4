package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/meristem-data/cellclust/internal/testutil"
)

func runSynth(args []string) {
	fs := flag.NewFlagSet("synth", flag.ExitOnError)
	var (
		outPath        = fs.String("out", "", "output matrix CSV (required)")
		labelsPath     = fs.String("labels", "", "write ground-truth blob labels TSV to this path")
		blobs          = fs.Int("blobs", 3, "number of blobs")
		cellsPerBlob   = fs.Int("cells-per-blob", 50, "cells per blob")
		markersPerBlob = fs.Int("markers-per-blob", 10, "marker genes exclusive to each blob")
		sharedPerGroup = fs.Int("shared-per-group", 5, "lineage genes shared by each sibling blob group")
		seed           = fs.Int64("seed", 1, "rng seed")
	)
	fs.Parse(args)

	if *outPath == "" {
		log.Fatal("synth: -out is required")
	}
	if *blobs < 1 || *cellsPerBlob < 1 || *markersPerBlob < 1 {
		log.Fatal("synth: -blobs, -cells-per-blob and -markers-per-blob must be positive")
	}
	if *sharedPerGroup < 0 {
		log.Fatal("synth: -shared-per-group must be non-negative")
	}

	sizes := make([]int, *blobs)
	for i := range sizes {
		sizes[i] = *cellsPerBlob
	}
	m, blobCells, err := testutil.BlobMatrix(*seed, *markersPerBlob, *sharedPerGroup, sizes)
	if err != nil {
		log.Fatalf("Failed to generate matrix: %v", err)
	}

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}
	defer f.Close()
	if err := m.WriteCSV(f); err != nil {
		log.Fatalf("Failed to write matrix: %v", err)
	}
	log.Printf("[Synth] wrote %d genes x %d cells (%d blobs) to %s",
		m.NumGenes(), m.NumCells(), *blobs, *outPath)

	if *labelsPath != "" {
		lf, err := os.Create(*labelsPath)
		if err != nil {
			log.Fatalf("Failed to create labels file: %v", err)
		}
		defer lf.Close()
		fmt.Fprintln(lf, "cell\tblob")
		for b, cells := range blobCells {
			for _, c := range cells {
				fmt.Fprintf(lf, "%s\t%d\n", c, b+1)
			}
		}
	}
}
