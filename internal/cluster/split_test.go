package cluster

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/meristem-data/cellclust/internal/de"
	"github.com/meristem-data/cellclust/internal/exprmat"
)

func testEngine(t *testing.T) *SplitEngine {
	t.Helper()
	params, err := de.NewParams(de.DefaultParams())
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	return &SplitEngine{
		Reducer:     &PCAReducer{},
		Partitioner: &BisectPartitioner{},
		Tester:      de.NewWelchTester(params.LowExprThreshold),
		Params:      params,
	}
}

func TestSplitEngineRecoversTwoBlobs(t *testing.T) {
	m, blobA, blobB := twoBlobMatrix(t, 10, 20, 3)

	assign, warnings, err := testEngine(t).Run(m, m.Cells())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if got := len(assign.IDs()); got != 2 {
		t.Fatalf("found %d clusters, want 2: %v", got, assign)
	}
	for _, blob := range [][]string{blobA, blobB} {
		for _, c := range blob[1:] {
			if assign[c] != assign[blob[0]] {
				t.Errorf("cell %s split from its blob", c)
			}
		}
	}
	if assign[blobA[0]] == assign[blobB[0]] {
		t.Error("blobs were not separated")
	}
}

func TestSplitEngineCoversEveryCellOnce(t *testing.T) {
	m, _, _ := twoBlobMatrix(t, 10, 20, 4)

	assign, _, err := testEngine(t).Run(m, m.Cells())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(assign) != m.NumCells() {
		t.Fatalf("assignment covers %d cells, want %d", len(assign), m.NumCells())
	}
	for _, c := range m.Cells() {
		if _, ok := assign[c]; !ok {
			t.Errorf("cell %s missing from assignment", c)
		}
	}
	ids := assign.IDs()
	for i, id := range ids {
		if id != i+1 {
			t.Fatalf("labels not contiguous from 1: %v", ids)
		}
	}
}

func TestSplitEngineHomogeneousStaysWhole(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	genes := []string{"g1", "g2", "g3", "g4"}
	cells := make([]string, 30)
	for i := range cells {
		cells[i] = fmt.Sprintf("c%02d", i)
	}
	data := make([]float64, len(genes)*len(cells))
	for i := range data {
		data[i] = 2 + rng.Float64()*0.2
	}
	m, err := exprmat.NewMatrix(genes, cells, data)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}

	assign, warnings, err := testEngine(t).Run(m, cells)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if got := len(assign.IDs()); got != 1 {
		t.Errorf("homogeneous population produced %d clusters, want 1", got)
	}
}

func TestSplitEngineSmallInputIsTerminal(t *testing.T) {
	m, blobA, _ := twoBlobMatrix(t, 6, 3, 6)

	// Six cells sit below twice the minimum cluster size, so no split is
	// attempted and no collaborator runs.
	eng := testEngine(t)
	eng.Reducer = failingReducer{}
	assign, warnings, err := eng.Run(m, blobA)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("collaborator ran on an unsplittable input: %v", warnings)
	}
	if got := len(assign.IDs()); got != 1 {
		t.Errorf("got %d clusters, want 1", got)
	}
}

type failingReducer struct{}

func (failingReducer) Reduce(*exprmat.Matrix, *mat.Dense, float64) (*mat.Dense, error) {
	return nil, &CollaboratorError{Stage: "reduce", Err: errors.New("synthetic failure")}
}

func TestSplitEngineIsolatesBranchFailure(t *testing.T) {
	m, _, _ := twoBlobMatrix(t, 10, 20, 7)

	eng := testEngine(t)
	eng.Reducer = failingReducer{}
	assign, warnings, err := eng.Run(m, m.Cells())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(warnings), warnings)
	}
	if warnings[0].Stage != "reduce" {
		t.Errorf("warning stage = %q, want reduce", warnings[0].Stage)
	}
	if got := len(assign.IDs()); got != 1 {
		t.Errorf("failed branch should stay one cluster, got %d", got)
	}
	if len(assign) != m.NumCells() {
		t.Errorf("assignment covers %d cells, want %d", len(assign), m.NumCells())
	}
}

func TestSplitEngineEmptyInput(t *testing.T) {
	m, _, _ := twoBlobMatrix(t, 4, 3, 8)
	assign, warnings, err := testEngine(t).Run(m, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(assign) != 0 || len(warnings) != 0 {
		t.Errorf("empty input produced assign=%v warnings=%v", assign, warnings)
	}
}
