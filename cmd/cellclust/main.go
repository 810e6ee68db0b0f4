// Command cellclust clusters single-cell expression matrices.
//
// Subcommands:
//
//	cluster    one split/merge pass over a matrix CSV
//	consensus  bootstrap consensus clustering, optionally refined
//	synth      generate a synthetic blob matrix for pipeline checks
//	runs       list recorded consensus runs
//	migrate    manage the run registry schema
//	version    print build information
package main

import (
	"fmt"
	"os"

	"github.com/meristem-data/cellclust/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "cluster":
		runCluster(os.Args[2:])
	case "consensus":
		runConsensus(os.Args[2:])
	case "synth":
		runSynth(os.Args[2:])
	case "runs":
		runList(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		fmt.Printf("cellclust %s (commit %s, built %s)\n",
			version.Version, version.GitSHA, version.BuildTime)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: cellclust <command> [flags]

Commands:
  cluster    -matrix <csv> [-config <json>] [-out <tsv>] [-markers <path>] [-dendrogram <json>]
  consensus  -matrix <csv> [-config <json>] [-out <tsv>] [-run-dir <dir>] [-db <path>] [-refine]
  synth      -out <csv> [-blobs n] [-cells-per-blob n] [-markers-per-blob n] [-shared-per-group n] [-seed n]
  runs       -db <path> [-status running|done|failed|cancelled]
  migrate    -db <path> up|down|status|force <version>
  version    print build information

Run 'cellclust <command> -h' for the full flag list.
`)
}
