// Package testutil generates synthetic expression matrices, shared by
// package tests across the repository and by the synth command.
package testutil

import (
	"fmt"
	"math/rand"

	"github.com/meristem-data/cellclust/internal/exprmat"
)

// Blob values sit around High for a blob's marker genes and around zero
// elsewhere, with uniform jitter of width Jitter on every entry.
const (
	High   = 5.0
	Jitter = 0.3
)

// BlobMatrix builds a genes x cells matrix containing len(cellsPerBlob)
// well-separated populations. Each blob owns markersPerBlob consecutive
// genes that are high only in its cells. When sharedPerGroup > 0, sibling
// blob halves of the population additionally share sharedPerGroup lineage
// genes elevated across every blob of the half, the way related cell types
// share lineage markers in real data; those genes are appended after the
// exclusive ones. Cell names are "b<blobIndex>_<n>"; the second return
// value lists the cells of each blob.
func BlobMatrix(seed int64, markersPerBlob, sharedPerGroup int, cellsPerBlob []int) (*exprmat.Matrix, [][]string, error) {
	rng := rand.New(rand.NewSource(seed))
	nBlobs := len(cellsPerBlob)

	var cells []string
	blobs := make([][]string, nBlobs)
	for b, count := range cellsPerBlob {
		for i := 0; i < count; i++ {
			name := fmt.Sprintf("b%d_%03d", b, i)
			blobs[b] = append(blobs[b], name)
			cells = append(cells, name)
		}
	}

	blobOf := make(map[string]int, len(cells))
	for b, members := range blobs {
		for _, c := range members {
			blobOf[c] = b
		}
	}

	// One owner set per gene: exclusive genes first, lineage genes after.
	owners := make([][2]int, 0, nBlobs*markersPerBlob)
	for b := 0; b < nBlobs; b++ {
		for i := 0; i < markersPerBlob; i++ {
			owners = append(owners, [2]int{b, b + 1})
		}
	}
	if sharedPerGroup > 0 {
		for _, group := range lineageGroups(0, nBlobs) {
			for i := 0; i < sharedPerGroup; i++ {
				owners = append(owners, group)
			}
		}
	}

	nGenes := len(owners)
	genes := make([]string, nGenes)
	for g := range genes {
		genes[g] = fmt.Sprintf("g%03d", g)
	}

	data := make([]float64, nGenes*len(cells))
	for g, owner := range owners {
		for ci, c := range cells {
			v := rng.Float64() * Jitter
			if b := blobOf[c]; b >= owner[0] && b < owner[1] {
				v += High
			}
			data[g*len(cells)+ci] = v
		}
	}

	m, err := exprmat.NewMatrix(genes, cells, data)
	if err != nil {
		return nil, nil, err
	}
	return m, blobs, nil
}

// lineageGroups returns the [lo, hi) blob ranges that receive shared lineage
// markers: recursively halve the range and emit every half holding at least
// two blobs. Single-blob halves are already covered by exclusive markers.
func lineageGroups(lo, hi int) [][2]int {
	if hi-lo < 2 {
		return nil
	}
	mid := lo + (hi-lo)/2
	var groups [][2]int
	if mid-lo >= 2 {
		groups = append(groups, [2]int{lo, mid})
	}
	if hi-mid >= 2 {
		groups = append(groups, [2]int{mid, hi})
	}
	groups = append(groups, lineageGroups(lo, mid)...)
	groups = append(groups, lineageGroups(mid, hi)...)
	return groups
}

// Purity scores how well an assignment recovers the reference blobs: each
// cluster is credited with its most common blob, and the result is the
// credited fraction over all cells. 1 means every cluster is pure.
func Purity(assign map[string]int, blobs [][]string) float64 {
	blobOf := make(map[string]int)
	total := 0
	for b, members := range blobs {
		for _, c := range members {
			blobOf[c] = b
			total++
		}
	}

	perCluster := make(map[int]map[int]int)
	for cell, id := range assign {
		b, ok := blobOf[cell]
		if !ok {
			continue
		}
		if perCluster[id] == nil {
			perCluster[id] = make(map[int]int)
		}
		perCluster[id][b]++
	}

	credited := 0
	for _, blobCounts := range perCluster {
		best := 0
		for _, n := range blobCounts {
			if n > best {
				best = n
			}
		}
		credited += best
	}
	if total == 0 {
		return 0
	}
	return float64(credited) / float64(total)
}
