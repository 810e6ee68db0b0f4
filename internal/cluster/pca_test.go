package cluster

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/meristem-data/cellclust/internal/exprmat"
)

// twoBlobMatrix builds a genes x cells matrix with two populations of
// cellsPer cells each. The first half of the genes is high in blob "a", the
// second half high in blob "b", with seeded jitter on every entry.
func twoBlobMatrix(t *testing.T, nGenes, cellsPer int, seed int64) (*exprmat.Matrix, []string, []string) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	var blobA, blobB []string
	for i := 0; i < cellsPer; i++ {
		blobA = append(blobA, fmt.Sprintf("a%02d", i))
		blobB = append(blobB, fmt.Sprintf("b%02d", i))
	}
	cells := append(append([]string{}, blobA...), blobB...)

	genes := make([]string, nGenes)
	for g := range genes {
		genes[g] = fmt.Sprintf("g%02d", g)
	}

	data := make([]float64, nGenes*len(cells))
	for g := 0; g < nGenes; g++ {
		for c := 0; c < len(cells); c++ {
			inA := c < cellsPer
			high := (g < nGenes/2) == inA
			v := rng.Float64() * 0.3
			if high {
				v += 5
			}
			data[g*len(cells)+c] = v
		}
	}

	m, err := exprmat.NewMatrix(genes, cells, data)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	return m, blobA, blobB
}

func TestPCAReducerSeparatesBlobs(t *testing.T) {
	m, _, _ := twoBlobMatrix(t, 10, 8, 1)

	coords, err := (&PCAReducer{Components: 2}).Reduce(m, nil, 0)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	n, k := coords.Dims()
	if n != 16 || k != 2 {
		t.Fatalf("coords dims = %dx%d, want 16x2", n, k)
	}

	// The leading component must put the two blobs on opposite sides of
	// zero (sign is arbitrary, so only relative placement is checked).
	for i := 1; i < 8; i++ {
		if (coords.At(i, 0) > 0) != (coords.At(0, 0) > 0) {
			t.Errorf("cell %d on wrong side of first component", i)
		}
		if (coords.At(8+i, 0) > 0) == (coords.At(0, 0) > 0) {
			t.Errorf("cell %d on wrong side of first component", 8+i)
		}
	}
}

func TestPCAReducerNuisanceRemoval(t *testing.T) {
	m, _, _ := twoBlobMatrix(t, 10, 8, 2)

	// The nuisance covariate is the blob indicator itself, so the leading
	// component tracks it almost perfectly and must be removed.
	nuisance := mat.NewDense(16, 1, nil)
	for i := 8; i < 16; i++ {
		nuisance.Set(i, 0, 1)
	}

	_, err := (&PCAReducer{Components: 1}).Reduce(m, nuisance, 0.9)
	var ce *CollaboratorError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want CollaboratorError after removing every component", err)
	}
	if ce.Stage != "reduce" {
		t.Errorf("stage = %q, want reduce", ce.Stage)
	}

	// With more components kept, the reducer drops the tainted one and
	// still returns coordinates.
	coords, err := (&PCAReducer{Components: 4}).Reduce(m, nuisance, 0.9)
	if err != nil {
		t.Fatalf("Reduce with spare components: %v", err)
	}
	if n, k := coords.Dims(); n != 16 || k >= 4 {
		t.Errorf("coords dims = %dx%d, want 16 rows and fewer than 4 components", n, k)
	}
}

func TestPCAReducerTooSmall(t *testing.T) {
	m, err := exprmat.NewMatrix([]string{"g1"}, []string{"c1"}, []float64{1})
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	if _, err := (&PCAReducer{}).Reduce(m, nil, 0); err == nil {
		t.Fatal("expected error for a single-cell matrix")
	}
}
