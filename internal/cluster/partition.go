package cluster

import (
	"errors"
	"fmt"
	"math"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"gonum.org/v1/gonum/mat"
)

// KMeansPartitioner partitions coordinates into at most K groups using
// Lloyd's algorithm. Initialization is randomized by the library, so two
// runs may land in different local optima; use BisectPartitioner where
// bit-for-bit reproducibility matters.
type KMeansPartitioner struct {
	K int // maximum groups; 0 means 2
}

// Partition implements Partitioner.
func (p *KMeansPartitioner) Partition(coords *mat.Dense) ([]int, error) {
	n, d := coords.Dims()
	if n == 0 {
		return nil, &CollaboratorError{Stage: "partition", Err: errors.New("no coordinates")}
	}
	k := p.K
	if k <= 0 {
		k = 2
	}
	if k > n {
		k = n
	}
	if k == 1 {
		return make([]int, n), nil
	}

	dataset := make(clusters.Observations, n)
	for i := 0; i < n; i++ {
		row := make(clusters.Coordinates, d)
		for j := 0; j < d; j++ {
			row[j] = coords.At(i, j)
		}
		dataset[i] = row
	}

	km := kmeans.New()
	cc, err := km.Partition(dataset, k)
	if err != nil {
		return nil, &CollaboratorError{Stage: "partition", Err: fmt.Errorf("kmeans: %w", err)}
	}

	labels := make([]int, n)
	for i, obs := range dataset {
		labels[i] = cc.Nearest(obs)
	}
	return compactLabels(labels), nil
}

// BisectPartitioner is a deterministic two-means split: the two centroids
// are seeded with the farthest point from the grand mean and the farthest
// point from that seed, then refined with Lloyd iterations. No randomness is
// involved, so repeated runs agree exactly.
type BisectPartitioner struct {
	MaxIterations int // 0 means 50
}

// Partition implements Partitioner.
func (p *BisectPartitioner) Partition(coords *mat.Dense) ([]int, error) {
	n, d := coords.Dims()
	if n == 0 {
		return nil, &CollaboratorError{Stage: "partition", Err: errors.New("no coordinates")}
	}
	if n == 1 {
		return []int{0}, nil
	}
	maxIter := p.MaxIterations
	if maxIter <= 0 {
		maxIter = 50
	}

	mean := make([]float64, d)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			mean[j] += coords.At(i, j)
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}

	seedA := farthestFrom(coords, mean)
	centA := rowOf(coords, seedA)
	seedB := farthestFrom(coords, centA)
	centB := rowOf(coords, seedB)

	labels := make([]int, n)
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i := 0; i < n; i++ {
			row := rowOf(coords, i)
			g := 0
			if sqDist(row, centB) < sqDist(row, centA) {
				g = 1
			}
			if labels[i] != g {
				labels[i] = g
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		centA = centroid(coords, labels, 0)
		centB = centroid(coords, labels, 1)
		if centA == nil || centB == nil {
			// One side emptied out; the data does not support a split.
			return make([]int, n), nil
		}
	}
	return compactLabels(labels), nil
}

// AffinityPartitioner treats its input as a square pairwise similarity
// matrix (such as a co-clustering ratio matrix) and clusters it by weighted
// label propagation over edges at or above MinSimilarity. Nodes are visited
// in index order with smallest-label tie-breaking, so the result is
// deterministic.
type AffinityPartitioner struct {
	MinSimilarity float64 // edge cutoff; 0 means 0.5
	MaxPasses     int     // 0 means 100
}

// Partition implements Partitioner.
func (p *AffinityPartitioner) Partition(sim *mat.Dense) ([]int, error) {
	n, c := sim.Dims()
	if n == 0 {
		return nil, &CollaboratorError{Stage: "partition", Err: errors.New("no coordinates")}
	}
	if n != c {
		return nil, &CollaboratorError{Stage: "partition", Err: fmt.Errorf("affinity matrix must be square, got %dx%d", n, c)}
	}
	cutoff := p.MinSimilarity
	if cutoff <= 0 {
		cutoff = 0.5
	}
	maxPasses := p.MaxPasses
	if maxPasses <= 0 {
		maxPasses = 100
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}
	weights := make(map[int]float64, n)
	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		for i := 0; i < n; i++ {
			clear(weights)
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				if w := sim.At(i, j); w >= cutoff && !math.IsNaN(w) {
					weights[labels[j]] += w
				}
			}
			best, bestW := labels[i], 0.0
			for label, w := range weights {
				if w > bestW || (w == bestW && label < best) {
					best, bestW = label, w
				}
			}
			if bestW > 0 && best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return compactLabels(labels), nil
}

// compactLabels renames group ids to 0..k-1 in order of first appearance.
func compactLabels(labels []int) []int {
	remap := make(map[int]int)
	out := make([]int, len(labels))
	for i, l := range labels {
		id, ok := remap[l]
		if !ok {
			id = len(remap)
			remap[l] = id
		}
		out[i] = id
	}
	return out
}

func rowOf(m *mat.Dense, i int) []float64 {
	_, d := m.Dims()
	out := make([]float64, d)
	for j := 0; j < d; j++ {
		out[j] = m.At(i, j)
	}
	return out
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func farthestFrom(m *mat.Dense, ref []float64) int {
	n, _ := m.Dims()
	best, bestD := 0, -1.0
	for i := 0; i < n; i++ {
		if d := sqDist(rowOf(m, i), ref); d > bestD {
			best, bestD = i, d
		}
	}
	return best
}

func centroid(m *mat.Dense, labels []int, group int) []float64 {
	_, d := m.Dims()
	out := make([]float64, d)
	count := 0
	for i, l := range labels {
		if l != group {
			continue
		}
		for j := 0; j < d; j++ {
			out[j] += m.At(i, j)
		}
		count++
	}
	if count == 0 {
		return nil
	}
	for j := range out {
		out[j] /= float64(count)
	}
	return out
}
