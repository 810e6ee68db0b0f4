package cluster

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/meristem-data/cellclust/internal/de"
	"github.com/meristem-data/cellclust/internal/exprmat"
)

func testMergeEngine(t *testing.T) *MergeEngine {
	t.Helper()
	params, err := de.NewParams(de.DefaultParams())
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	return &MergeEngine{
		Tester: de.NewWelchTester(params.LowExprThreshold),
		Params: params,
	}
}

func TestMergeCollapsesIndistinguishableClusters(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	genes := []string{"g1", "g2", "g3", "g4"}
	cells := make([]string, 24)
	assign := Assignment{}
	for i := range cells {
		cells[i] = fmt.Sprintf("c%02d", i)
		assign[cells[i]] = 1 + i%3 // three arbitrary slices of one population
	}
	data := make([]float64, len(genes)*len(cells))
	for i := range data {
		data[i] = 3 + rng.Float64()*0.2
	}
	m, err := exprmat.NewMatrix(genes, cells, data)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}

	res, err := testMergeEngine(t).Run(m, assign)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Warning != nil {
		t.Fatalf("unexpected warning: %v", res.Warning)
	}
	if got := len(res.Assignment.IDs()); got != 1 {
		t.Errorf("got %d clusters, want everything merged into 1", got)
	}
	if len(res.Markers) != 0 {
		t.Errorf("fully merged result should carry no markers, got %v", res.Markers)
	}
}

func TestMergeKeepsSeparableClusters(t *testing.T) {
	m, blobA, blobB := twoBlobMatrix(t, 10, 15, 12)
	assign := Assignment{}
	for _, c := range blobA {
		assign[c] = 1
	}
	for _, c := range blobB {
		assign[c] = 2
	}

	res, err := testMergeEngine(t).Run(m, assign)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(res.Assignment.IDs()); got != 2 {
		t.Fatalf("got %d clusters, want 2", got)
	}
	if len(res.Markers) == 0 {
		t.Error("separable pair should report marker genes")
	}
	if got := res.Medians.Cells(); len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("median matrix columns = %v, want [1 2]", got)
	}
	if res.Medians.NumGenes() != m.NumGenes() {
		t.Errorf("median matrix has %d genes, want %d", res.Medians.NumGenes(), m.NumGenes())
	}
	for _, c := range blobA[1:] {
		if res.Assignment[c] != res.Assignment[blobA[0]] {
			t.Errorf("cell %s moved out of its cluster", c)
		}
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	m, blobA, blobB := twoBlobMatrix(t, 10, 15, 13)
	assign := Assignment{}
	for i, c := range blobA {
		assign[c] = 1 + i%2 // blob A arbitrarily split in two
	}
	for _, c := range blobB {
		assign[c] = 3
	}

	eng := testMergeEngine(t)
	first, err := eng.Run(m, assign)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := eng.Run(m, first.Assignment)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !reflect.DeepEqual(first.Assignment, second.Assignment) {
		t.Errorf("merge not idempotent:\nfirst  %v\nsecond %v", first.Assignment, second.Assignment)
	}
	if got := len(first.Assignment.IDs()); got != 2 {
		t.Errorf("got %d clusters, want the split blob rejoined into 2", got)
	}
}

func TestMergeSingleCluster(t *testing.T) {
	m, blobA, _ := twoBlobMatrix(t, 4, 5, 14)
	assign := Assignment{}
	for _, c := range blobA {
		assign[c] = 1
	}
	res, err := testMergeEngine(t).Run(m, assign)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(res.Assignment.IDs()); got != 1 {
		t.Errorf("got %d clusters, want 1", got)
	}
}

func TestMedianCentroidsExactValues(t *testing.T) {
	m, err := exprmat.NewMatrix(
		[]string{"g1", "g2"},
		[]string{"c1", "c2", "c3", "c4", "c5"},
		[]float64{
			1, 2, 9, 4, 6,
			0, 8, 2, 2, 2,
		})
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	clusters := map[int][]string{
		1: {"c1", "c2", "c3"}, // odd member count
		2: {"c4", "c5"},       // even member count
	}

	centroids, err := medianCentroids(m, clusters, []int{1, 2})
	if err != nil {
		t.Fatalf("medianCentroids: %v", err)
	}
	if got := centroids[1]; got[0] != 2 || got[1] != 2 {
		t.Errorf("cluster 1 centroid = %v, want [2 2]", got)
	}
	if got := centroids[2]; got[0] != 5 || got[1] != 2 {
		t.Errorf("cluster 2 centroid = %v, want [5 2]", got)
	}
}
