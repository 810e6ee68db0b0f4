package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/meristem-data/cellclust/internal/consensus"
	"github.com/meristem-data/cellclust/internal/db"
)

func runList(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	var (
		dbPath = fs.String("db", "", "sqlite run registry (required)")
		status = fs.String("status", "", "filter by status: running, done, failed or cancelled")
	)
	fs.Parse(args)

	if *dbPath == "" {
		log.Fatal("runs: -db is required")
	}

	registry, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open run registry: %v", err)
	}
	defer registry.Close()

	store := consensus.NewRunStore(registry.DB)
	runs, err := store.List(*status)
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATUS\tITERATIONS\tCELLS\tCLUSTERS\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%d\t%s\n",
			r.RunID, r.Status, r.IterationsDone, r.IterationsRequested,
			r.CellCount, r.ClusterCount,
			time.Unix(0, r.CreatedAt).Format(time.RFC3339))
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("Failed to write run table: %v", err)
	}
}
