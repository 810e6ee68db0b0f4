package testutil

import "testing"

func TestBlobMatrixShape(t *testing.T) {
	m, blobs, err := BlobMatrix(1, 4, 0, []int{3, 5})
	if err != nil {
		t.Fatalf("BlobMatrix: %v", err)
	}
	if m.NumGenes() != 8 {
		t.Errorf("NumGenes = %d, want 8", m.NumGenes())
	}
	if m.NumCells() != 8 {
		t.Errorf("NumCells = %d, want 8", m.NumCells())
	}
	if len(blobs) != 2 || len(blobs[0]) != 3 || len(blobs[1]) != 5 {
		t.Fatalf("blob sizes = %v, want [3 5]", blobs)
	}

	// Marker genes are high only inside the owning blob.
	v, err := m.At("g000", blobs[0][0])
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if v < High-1 {
		t.Errorf("marker value in owning blob = %v, want near %v", v, High)
	}
	v, _ = m.At("g000", blobs[1][0])
	if v > 1 {
		t.Errorf("marker value outside owning blob = %v, want near 0", v)
	}
}

func TestBlobMatrixDeterministic(t *testing.T) {
	a, _, err := BlobMatrix(7, 3, 0, []int{4, 4})
	if err != nil {
		t.Fatalf("BlobMatrix: %v", err)
	}
	b, _, err := BlobMatrix(7, 3, 0, []int{4, 4})
	if err != nil {
		t.Fatalf("BlobMatrix: %v", err)
	}
	for _, g := range a.Genes() {
		for _, c := range a.Cells() {
			va, _ := a.At(g, c)
			vb, _ := b.At(g, c)
			if va != vb {
				t.Fatalf("%s/%s differs across same-seed builds: %v vs %v", g, c, va, vb)
			}
		}
	}
}

func TestPurity(t *testing.T) {
	blobs := [][]string{{"a", "b"}, {"c", "d"}}

	perfect := map[string]int{"a": 1, "b": 1, "c": 2, "d": 2}
	if got := Purity(perfect, blobs); got != 1 {
		t.Errorf("perfect purity = %v, want 1", got)
	}

	oneWrong := map[string]int{"a": 1, "b": 1, "c": 2, "d": 1}
	if got := Purity(oneWrong, blobs); got != 0.75 {
		t.Errorf("purity with one misplaced cell = %v, want 0.75", got)
	}
}

func TestBlobMatrixLineageMarkers(t *testing.T) {
	m, blobs, err := BlobMatrix(3, 9, 7, []int{50, 50, 50, 50})
	if err != nil {
		t.Fatalf("BlobMatrix: %v", err)
	}
	// 4*9 exclusive genes plus 7 shared genes for each sibling pair.
	if m.NumGenes() != 50 {
		t.Fatalf("NumGenes = %d, want 50", m.NumGenes())
	}
	if m.NumCells() != 200 {
		t.Fatalf("NumCells = %d, want 200", m.NumCells())
	}

	// g036..g042 are shared across blobs 0 and 1; g043..g049 across 2 and 3.
	leftShared, rightShared := "g036", "g043"
	for _, c := range []string{blobs[0][0], blobs[1][0]} {
		v, err := m.At(leftShared, c)
		if err != nil {
			t.Fatalf("At: %v", err)
		}
		if v < High-1 {
			t.Errorf("left lineage gene in %s = %v, want near %v", c, v, High)
		}
		v, _ = m.At(rightShared, c)
		if v > 1 {
			t.Errorf("right lineage gene in %s = %v, want near 0", c, v)
		}
	}
	for _, c := range []string{blobs[2][0], blobs[3][0]} {
		v, _ := m.At(rightShared, c)
		if v < High-1 {
			t.Errorf("right lineage gene in %s = %v, want near %v", c, v, High)
		}
	}
}

func TestLineageGroups(t *testing.T) {
	if got := lineageGroups(0, 2); got != nil {
		t.Errorf("two blobs need no lineage groups, got %v", got)
	}
	got := lineageGroups(0, 4)
	want := [][2]int{{0, 2}, {2, 4}}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("lineageGroups(0,4) = %v, want %v", got, want)
	}
	// Three blobs: only the two-blob right half gets shared markers.
	got = lineageGroups(0, 3)
	if len(got) != 1 || got[0] != [2]int{1, 3} {
		t.Errorf("lineageGroups(0,3) = %v, want [[1 3]]", got)
	}
}
