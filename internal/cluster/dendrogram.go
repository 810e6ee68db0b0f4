package cluster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/meristem-data/cellclust/internal/exprmat"
)

// DendrogramNode is one node of the cluster similarity tree. Leaves carry a
// cluster label; internal nodes carry the average-linkage distance at which
// their children merged.
type DendrogramNode struct {
	Label  string
	Left   *DendrogramNode
	Right  *DendrogramNode
	Height float64
	Size   int
}

// Leaf reports whether the node represents a single cluster.
func (n *DendrogramNode) Leaf() bool { return n.Left == nil && n.Right == nil }

// BuildDendrogram agglomerates clusters by average linkage over the
// correlation distance (1 - Pearson) of their mean expression profiles. It
// returns the tree root and the labeled cluster-cluster correlation matrix
// the distances were derived from. To build over other per-cluster profiles,
// such as the median matrix a merge emits, use BuildDendrogramFromProfiles.
func BuildDendrogram(m *exprmat.Matrix, assign Assignment) (*DendrogramNode, *exprmat.Labeled, error) {
	cells := make([]string, 0, len(assign))
	for c := range assign {
		cells = append(cells, c)
	}
	means, err := exprmat.ClusterMeans(m, cells, assign.Labels(cells))
	if err != nil {
		return nil, nil, err
	}
	return BuildDendrogramFromProfiles(means)
}

// BuildDendrogramFromProfiles runs the agglomeration over a genes x clusters
// profile matrix, one column per cluster.
func BuildDendrogramFromProfiles(profiles *exprmat.Matrix) (*DendrogramNode, *exprmat.Labeled, error) {
	labels := profiles.Cells()
	k := len(labels)
	if k == 0 {
		return nil, nil, fmt.Errorf("cluster: dendrogram over empty assignment")
	}

	corr, err := clusterCorrelation(profiles)
	if err != nil {
		return nil, nil, err
	}
	if k == 1 {
		return &DendrogramNode{Label: labels[0], Size: 1}, corr, nil
	}

	// Active nodes and the pairwise average-linkage distances between them.
	nodes := make([]*DendrogramNode, k)
	for i, lab := range labels {
		nodes[i] = &DendrogramNode{Label: lab, Size: 1}
	}
	dist := make([][]float64, k)
	for i := range dist {
		dist[i] = make([]float64, k)
		for j := range dist[i] {
			if i == j {
				continue
			}
			r, err := corr.Get([]string{labels[i]}, []string{labels[j]})
			if err != nil {
				return nil, nil, err
			}
			dist[i][j] = 1 - r[0]
		}
	}

	active := make([]int, k)
	for i := range active {
		active[i] = i
	}
	for len(active) > 1 {
		// Closest active pair; index-order scan keeps ties deterministic.
		bi, bj, best := 0, 1, math.Inf(1)
		for ai := 0; ai < len(active); ai++ {
			for aj := ai + 1; aj < len(active); aj++ {
				i, j := active[ai], active[aj]
				if dist[i][j] < best {
					bi, bj, best = ai, aj, dist[i][j]
				}
			}
		}
		i, j := active[bi], active[bj]
		merged := &DendrogramNode{
			Left:   nodes[i],
			Right:  nodes[j],
			Height: best,
			Size:   nodes[i].Size + nodes[j].Size,
		}

		// UPGMA update: the new node's distance to any other is the
		// size-weighted mean of its children's distances.
		for _, a := range active {
			if a == i || a == j {
				continue
			}
			d := (float64(nodes[i].Size)*dist[i][a] + float64(nodes[j].Size)*dist[j][a]) /
				float64(nodes[i].Size+nodes[j].Size)
			dist[i][a], dist[a][i] = d, d
		}
		nodes[i] = merged
		active = append(active[:bj], active[bj+1:]...)
	}

	return nodes[active[0]], corr, nil
}

// clusterCorrelation builds the labeled Pearson matrix of the profile
// columns. Zero-variance profiles yield NaN off-diagonal entries.
func clusterCorrelation(profiles *exprmat.Matrix) (*exprmat.Labeled, error) {
	labels := profiles.Cells()
	corr, err := exprmat.NewLabeled(labels)
	if err != nil {
		return nil, err
	}
	nGenes := profiles.NumGenes()
	cols := make([][]float64, len(labels))
	for j := range labels {
		cols[j] = make([]float64, nGenes)
		for g := 0; g < nGenes; g++ {
			cols[j][g] = profiles.Value(g, j)
		}
	}
	d := corr.Dense()
	for i := range labels {
		d.Set(i, i, 1)
		for j := i + 1; j < len(labels); j++ {
			r := stat.Correlation(cols[i], cols[j], nil)
			d.Set(i, j, r)
			d.Set(j, i, r)
		}
	}
	return corr, nil
}
