package consensus

import (
	"math"
	"sort"

	"github.com/meristem-data/cellclust/internal/cluster"
	"github.com/meristem-data/cellclust/internal/exprmat"
)

// DefaultRefinePasses bounds the refinement loop.
const DefaultRefinePasses = 50

// Refine reassigns individual cells against the co-cluster ratio matrix. A
// cell moves to another cluster only when that cluster's mean co-clustering
// with the cell beats its current cluster's by more than tolerance AND the
// current mean sits below confusionThreshold, so confidently placed cells
// never move. Passes repeat until no cell moves or maxPasses is reached
// (0 means DefaultRefinePasses); a cap exit returns the best-effort labels
// plus a convergence warning.
func Refine(assign cluster.Assignment, co *exprmat.Labeled, tolerance, confusionThreshold float64, maxPasses int) (cluster.Assignment, *cluster.ConvergenceWarning, error) {
	if maxPasses <= 0 {
		maxPasses = DefaultRefinePasses
	}
	current := assign.Clone()

	cells := make([]string, 0, len(current))
	for c := range current {
		cells = append(cells, c)
	}
	sort.Strings(cells)

	passes := 0
	for ; passes < maxPasses; passes++ {
		// Moves are computed against a frozen snapshot and applied at
		// the end of the pass, so the outcome does not depend on the
		// visit order within a pass.
		snapshot := current.Clone()
		clusters := snapshot.Clusters()
		moves := map[string]int{}

		for _, cell := range cells {
			cur := snapshot[cell]
			curMean, err := meanCoClustering(co, cell, clusters[cur])
			if err != nil {
				return nil, nil, err
			}
			if curMean >= confusionThreshold {
				continue
			}

			// IDs are visited ascending, so ties resolve to the
			// smallest cluster id.
			bestID, bestMean := cur, curMean
			for _, id := range snapshot.IDs() {
				if id == cur {
					continue
				}
				mean, err := meanCoClustering(co, cell, clusters[id])
				if err != nil {
					return nil, nil, err
				}
				if mean > bestMean {
					bestID, bestMean = id, mean
				}
			}
			if bestID != cur && bestMean-curMean > tolerance {
				moves[cell] = bestID
			}
		}

		if len(moves) == 0 {
			break
		}
		for cell, id := range moves {
			current[cell] = id
		}
	}

	var warning *cluster.ConvergenceWarning
	if passes == maxPasses {
		warning = &cluster.ConvergenceWarning{Op: "refine", Passes: passes}
	}
	return current.Normalize(), warning, nil
}

// meanCoClustering averages the cell's co-cluster ratio against the members
// of one cluster, skipping the cell itself and never co-sampled pairs.
func meanCoClustering(co *exprmat.Labeled, cell string, members []string) (float64, error) {
	sum, n := 0.0, 0
	for _, other := range members {
		if other == cell {
			continue
		}
		v, err := co.Get([]string{cell}, []string{other})
		if err != nil {
			return 0, err
		}
		if math.IsNaN(v[0]) {
			continue
		}
		sum += v[0]
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}
