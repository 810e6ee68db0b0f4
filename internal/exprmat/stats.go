package exprmat

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// ClusterSums sums expression across the member cells of each cluster.
// cells and labels run in parallel: labels[k] is the cluster id of cells[k].
// The result is a genes × clusters matrix whose columns are named by the
// decimal cluster ids in ascending order.
//
// The sum is computed as a matrix product against a 0/1 cell-to-cluster
// indicator so it stays a single pass even for wide matrices.
func ClusterSums(m *Matrix, cells []string, labels []int) (*Matrix, error) {
	if len(cells) != len(labels) {
		return nil, &DimensionError{Op: "ClusterSums", Want: len(cells), Got: len(labels)}
	}
	sub, err := m.Submatrix(cells)
	if err != nil {
		return nil, err
	}

	ids := uniqueSorted(labels)
	pos := make(map[int]int, len(ids))
	names := make([]string, len(ids))
	for k, id := range ids {
		pos[id] = k
		names[k] = strconv.Itoa(id)
	}

	indicator := mat.NewDense(len(cells), len(ids), nil)
	for k, id := range labels {
		indicator.Set(k, pos[id], 1)
	}

	var sums mat.Dense
	sums.Mul(sub.Dense(), indicator)

	nr, nc := sums.Dims()
	data := make([]float64, nr*nc)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			data[i*nc+j] = sums.At(i, j)
		}
	}
	return NewMatrix(m.Genes(), names, data)
}

// ClusterMeans divides ClusterSums column-wise by cluster size. A cluster
// label only exists because it has at least one member, so the division is
// always defined.
func ClusterMeans(m *Matrix, cells []string, labels []int) (*Matrix, error) {
	sums, err := ClusterSums(m, cells, labels)
	if err != nil {
		return nil, err
	}
	counts := make(map[int]int, len(labels))
	for _, id := range labels {
		counts[id]++
	}
	for j, name := range sums.Cells() {
		id, _ := strconv.Atoi(name)
		n := float64(counts[id])
		for i := 0; i < sums.NumGenes(); i++ {
			sums.data.Set(i, j, sums.data.At(i, j)/n)
		}
	}
	return sums, nil
}

// Tau computes the per-gene specificity score across the matrix columns:
// each row is normalized by its maximum and the score is
// mean(1 - normalized) over (nColumns - 1). Rows whose maximum is zero (or
// constant rows, where the score degenerates) yield exactly 0.
//
// The divide-by-rowmax normalization is load-bearing: downstream marker
// selection assumes this exact form, not a z-score.
func Tau(m *Matrix) []float64 {
	nr, nc := m.NumGenes(), m.NumCells()
	out := make([]float64, nr)
	if nc < 2 {
		return out
	}
	for i := 0; i < nr; i++ {
		rowMax := math.Inf(-1)
		for j := 0; j < nc; j++ {
			if v := m.data.At(i, j); v > rowMax {
				rowMax = v
			}
		}
		if rowMax <= 0 {
			continue
		}
		var sum float64
		for j := 0; j < nc; j++ {
			sum += 1 - m.data.At(i, j)/rowMax
		}
		tau := sum / float64(nc-1)
		if math.IsNaN(tau) || tau < 0 {
			tau = 0
		}
		out[i] = tau
	}
	return out
}

func uniqueSorted(labels []int) []int {
	set := make(map[int]bool, len(labels))
	for _, id := range labels {
		set[id] = true
	}
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
