package cluster

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/meristem-data/cellclust/internal/de"
	"github.com/meristem-data/cellclust/internal/exprmat"
)

// DefaultMergePasses bounds the merge fixed-point loop.
const DefaultMergePasses = 100

// MergeEngine collapses cluster pairs that fail the separability test,
// examining only mutually-nearest pairs by centroid distance each pass. A
// clustering where every mutually-nearest pair is separable is a fixed
// point, so rerunning the engine on its own output changes nothing.
type MergeEngine struct {
	Tester de.Tester
	Params de.Params

	// MaxPasses caps the fixed-point loop; 0 means DefaultMergePasses.
	MaxPasses int
}

// MergeResult carries the post-merge clustering and the marker genes that
// distinguished the surviving cluster pairs.
type MergeResult struct {
	Assignment Assignment
	// Markers is the sorted union of passing genes over every separable
	// mutually-nearest pair examined in the final pass.
	Markers []string
	// Medians holds the per-gene median profile of each final cluster,
	// one column per cluster id, ready for dendrogram building.
	Medians *exprmat.Matrix
	// Warning is non-nil when the pass cap was reached before a fixed
	// point; the assignment is still usable but may contain pairs that
	// another pass would have merged.
	Warning *ConvergenceWarning
}

// Run merges non-separable clusters of assign until no mutually-nearest
// pair fails the test. Labels are renumbered contiguously on return.
func (e *MergeEngine) Run(m *exprmat.Matrix, assign Assignment) (MergeResult, error) {
	if e.Tester == nil {
		return MergeResult{}, fmt.Errorf("cluster: merge engine missing tester")
	}
	maxPasses := e.MaxPasses
	if maxPasses == 0 {
		maxPasses = DefaultMergePasses
	}

	current := assign.Clone()
	markers := map[string]struct{}{}

	passes := 0
	for ; passes < maxPasses; passes++ {
		clusters := current.Clusters()
		if len(clusters) < 2 {
			break
		}
		ids := current.IDs()

		centroids, err := medianCentroids(m, clusters, ids)
		if err != nil {
			return MergeResult{}, err
		}
		pairs := mutuallyNearest(ids, centroids)

		merged := false
		clear(markers)
		for _, p := range pairs {
			sep, err := de.TestSeparability(e.Tester, clusters[p[0]], clusters[p[1]], m, e.Params)
			if err != nil {
				return MergeResult{}, &CollaboratorError{Stage: "detest", Err: err}
			}
			if sep.Separable {
				for _, g := range sep.PassingGenes {
					markers[g] = struct{}{}
				}
				continue
			}
			// Absorb the higher label into the lower one.
			for _, c := range clusters[p[1]] {
				current[c] = p[0]
			}
			merged = true
		}
		if !merged {
			break
		}
	}

	res := MergeResult{Assignment: current.Normalize(), Markers: sortedKeys(markers)}
	medians, err := medianMatrix(m, res.Assignment)
	if err != nil {
		return MergeResult{}, err
	}
	res.Medians = medians
	if passes == maxPasses {
		res.Warning = &ConvergenceWarning{Op: "merge", Passes: passes}
	}
	return res, nil
}

// medianMatrix assembles the per-cluster median profiles as a genes x
// clusters matrix with decimal cluster ids for column labels.
func medianMatrix(m *exprmat.Matrix, assign Assignment) (*exprmat.Matrix, error) {
	ids := assign.IDs()
	centroids, err := medianCentroids(m, assign.Clusters(), ids)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(ids))
	data := make([]float64, m.NumGenes()*len(ids))
	for j, id := range ids {
		cols[j] = strconv.Itoa(id)
		for g, v := range centroids[id] {
			data[g*len(ids)+j] = v
		}
	}
	return exprmat.NewMatrix(m.Genes(), cols, data)
}

// medianCentroids computes the per-gene median expression of each cluster's
// member cells, keyed by cluster id.
func medianCentroids(m *exprmat.Matrix, clusters map[int][]string, ids []int) (map[int][]float64, error) {
	nGenes := m.NumGenes()
	out := make(map[int][]float64, len(ids))
	for _, id := range ids {
		members := clusters[id]
		cols := make([]int, len(members))
		for i, c := range members {
			j, err := m.CellIndex(c)
			if err != nil {
				return nil, err
			}
			cols[i] = j
		}
		centroid := make([]float64, nGenes)
		vals := make([]float64, len(cols))
		for g := 0; g < nGenes; g++ {
			for i, j := range cols {
				vals[i] = m.Value(g, j)
			}
			centroid[g] = median(vals)
		}
		out[id] = centroid
	}
	return out, nil
}

// mutuallyNearest returns the id pairs (low, high) where each side is the
// other's nearest cluster by Euclidean centroid distance. Distance ties
// resolve to the smaller id so the pass is deterministic.
func mutuallyNearest(ids []int, centroids map[int][]float64) [][2]int {
	nearest := make(map[int]int, len(ids))
	for _, a := range ids {
		best, bestDist := -1, math.Inf(1)
		for _, b := range ids {
			if a == b {
				continue
			}
			d := sqDist(centroids[a], centroids[b])
			if d < bestDist || (d == bestDist && b < best) {
				best, bestDist = b, d
			}
		}
		nearest[a] = best
	}

	var pairs [][2]int
	for _, a := range ids {
		b := nearest[a]
		if b > a && nearest[b] == a {
			pairs = append(pairs, [2]int{a, b})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
	return pairs
}

func median(vals []float64) float64 {
	tmp := make([]float64, len(vals))
	copy(tmp, vals)
	sort.Float64s(tmp)
	n := len(tmp)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return tmp[n/2]
	}
	return (tmp[n/2-1] + tmp[n/2]) / 2
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
