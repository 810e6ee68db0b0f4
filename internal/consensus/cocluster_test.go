package consensus

import (
	"math"
	"testing"

	"github.com/meristem-data/cellclust/internal/cluster"
)

func TestPairCountsRatioSymmetricAndBounded(t *testing.T) {
	p := NewPairCounts()
	together := cluster.Assignment{"a": 1, "b": 1, "c": 2}
	apart := cluster.Assignment{"a": 1, "b": 2, "c": 2}

	p.Record(together, []string{"a", "b", "c"})
	p.Record(apart, []string{"a", "b", "c"})
	p.Record(together, []string{"a", "b"})

	rab, ok := p.Ratio("a", "b")
	if !ok {
		t.Fatal("pair (a,b) unexpectedly undefined")
	}
	rba, _ := p.Ratio("b", "a")
	if rab != rba {
		t.Errorf("ratio not symmetric: %f vs %f", rab, rba)
	}
	if want := 2.0 / 3.0; rab != want {
		t.Errorf("ratio(a,b) = %f, want %f", rab, want)
	}

	rbc, _ := p.Ratio("b", "c")
	if rbc < 0 || rbc > 1 {
		t.Errorf("ratio(b,c) = %f out of [0,1]", rbc)
	}
	if _, ok := p.Ratio("a", "zz"); ok {
		t.Error("never co-sampled pair reported as defined")
	}
}

func TestPairCountsMergeMatchesSequential(t *testing.T) {
	assigns := []cluster.Assignment{
		{"a": 1, "b": 1, "c": 2, "d": 2},
		{"a": 1, "b": 2, "c": 2, "d": 1},
		{"a": 1, "b": 1, "c": 1, "d": 2},
	}
	sampled := [][]string{
		{"a", "b", "c", "d"},
		{"a", "b", "c"},
		{"b", "c", "d"},
	}

	sequential := NewPairCounts()
	for i := range assigns {
		sequential.Record(assigns[i], sampled[i])
	}

	// Split across two accumulators and merge in the opposite order.
	w1, w2 := NewPairCounts(), NewPairCounts()
	w1.Record(assigns[0], sampled[0])
	w2.Record(assigns[1], sampled[1])
	w2.Record(assigns[2], sampled[2])
	merged := NewPairCounts()
	merged.Merge(w2)
	merged.Merge(w1)

	cellsOf := []string{"a", "b", "c", "d"}
	for i := range cellsOf {
		for j := i + 1; j < len(cellsOf); j++ {
			rSeq, okSeq := sequential.Ratio(cellsOf[i], cellsOf[j])
			rMrg, okMrg := merged.Ratio(cellsOf[i], cellsOf[j])
			if okSeq != okMrg || rSeq != rMrg {
				t.Errorf("pair (%s,%s): sequential %f/%v, merged %f/%v",
					cellsOf[i], cellsOf[j], rSeq, okSeq, rMrg, okMrg)
			}
		}
	}
}

func TestPairCountsMatrix(t *testing.T) {
	p := NewPairCounts()
	p.Record(cluster.Assignment{"a": 1, "b": 1}, []string{"a", "b"})

	m, err := p.Matrix([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	for _, lab := range []string{"a", "b", "c"} {
		v, err := m.Get([]string{lab}, []string{lab})
		if err != nil {
			t.Fatalf("Get diagonal: %v", err)
		}
		if v[0] != 1 {
			t.Errorf("diagonal %s = %f, want 1", lab, v[0])
		}
	}
	vab, _ := m.Get([]string{"a"}, []string{"b"})
	if vab[0] != 1 {
		t.Errorf("ratio(a,b) = %f, want 1", vab[0])
	}
	vac, _ := m.Get([]string{"a"}, []string{"c"})
	if !math.IsNaN(vac[0]) {
		t.Errorf("never co-sampled entry = %f, want NaN", vac[0])
	}
}
