package exprmat

import "math"

// Sparse is a compressed-sparse-column view of a genes × cells matrix.
// Entries absent from the structure are implicit zeros.
type Sparse struct {
	nr, nc int
	colPtr []int
	rowInd []int
	val    []float64
	genes  []string
	cells  []string
}

// NewSparseFromMatrix compresses a dense Matrix, keeping only non-zero
// entries.
func NewSparseFromMatrix(m *Matrix) *Sparse {
	nr, nc := m.NumGenes(), m.NumCells()
	s := &Sparse{
		nr:     nr,
		nc:     nc,
		colPtr: make([]int, nc+1),
		genes:  m.Genes(),
		cells:  m.Cells(),
	}
	for j := 0; j < nc; j++ {
		s.colPtr[j] = len(s.rowInd)
		for i := 0; i < nr; i++ {
			if v := m.Value(i, j); v != 0 {
				s.rowInd = append(s.rowInd, i)
				s.val = append(s.val, v)
			}
		}
	}
	s.colPtr[nc] = len(s.rowInd)
	return s
}

// NumGenes returns the row count.
func (s *Sparse) NumGenes() int { return s.nr }

// NumCells returns the column count.
func (s *Sparse) NumCells() int { return s.nc }

// NNZ returns the number of stored non-zero entries.
func (s *Sparse) NNZ() int { return len(s.val) }

// ColumnCorrelation computes the column-wise Pearson correlation matrix
// without densifying. Per-column sums and squared sums come from the stored
// entries alone; the cross term for each column pair is accumulated over the
// intersection of their non-zero rows, and the implicit zero rows are folded
// in through the closed-form n·μa·μb correction. Results match the dense
// computation within floating tolerance.
func (s *Sparse) ColumnCorrelation() (*Labeled, error) {
	n := float64(s.nr)
	if s.nr < 2 {
		return nil, &DimensionError{Op: "ColumnCorrelation", Want: 2, Got: s.nr}
	}

	sum := make([]float64, s.nc)
	sumSq := make([]float64, s.nc)
	for j := 0; j < s.nc; j++ {
		for k := s.colPtr[j]; k < s.colPtr[j+1]; k++ {
			sum[j] += s.val[k]
			sumSq[j] += s.val[k] * s.val[k]
		}
	}

	out, err := NewLabeled(s.cells)
	if err != nil {
		return nil, err
	}
	d := out.Dense()

	for a := 0; a < s.nc; a++ {
		muA := sum[a] / n
		varA := sumSq[a] - n*muA*muA
		d.Set(a, a, 1)
		for b := a + 1; b < s.nc; b++ {
			muB := sum[b] / n
			varB := sumSq[b] - n*muB*muB

			// Dot product over the intersection of non-zero rows.
			dot := 0.0
			ka, kb := s.colPtr[a], s.colPtr[b]
			for ka < s.colPtr[a+1] && kb < s.colPtr[b+1] {
				switch {
				case s.rowInd[ka] < s.rowInd[kb]:
					ka++
				case s.rowInd[ka] > s.rowInd[kb]:
					kb++
				default:
					dot += s.val[ka] * s.val[kb]
					ka++
					kb++
				}
			}

			r := math.NaN()
			if varA > 0 && varB > 0 {
				r = (dot - n*muA*muB) / math.Sqrt(varA*varB)
			}
			d.Set(a, b, r)
			d.Set(b, a, r)
		}
	}
	return out, nil
}
