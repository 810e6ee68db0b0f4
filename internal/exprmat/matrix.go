package exprmat

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a genes × cells expression matrix with named rows and columns.
// Values are expected to be non-negative, typically log2(CPM+1) scaled.
// Once constructed the matrix is read-only: the clustering core only ever
// reads submatrices by row and column name.
type Matrix struct {
	data    *mat.Dense
	genes   []string
	cells   []string
	geneIdx map[string]int
	cellIdx map[string]int
}

// NewMatrix builds a Matrix from row-major data. len(data) must equal
// len(genes)*len(cells); gene and cell names must be unique.
func NewMatrix(genes, cells []string, data []float64) (*Matrix, error) {
	if len(data) != len(genes)*len(cells) {
		return nil, &DimensionError{Op: "NewMatrix", Want: len(genes) * len(cells), Got: len(data)}
	}
	geneIdx, err := buildIndex("row", genes)
	if err != nil {
		return nil, err
	}
	cellIdx, err := buildIndex("column", cells)
	if err != nil {
		return nil, err
	}
	return &Matrix{
		data:    mat.NewDense(len(genes), len(cells), data),
		genes:   append([]string(nil), genes...),
		cells:   append([]string(nil), cells...),
		geneIdx: geneIdx,
		cellIdx: cellIdx,
	}, nil
}

// buildIndex creates the label → index map once per matrix so repeated
// label resolution never searches the name slice.
func buildIndex(axis string, names []string) (map[string]int, error) {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		if _, dup := idx[n]; dup {
			return nil, fmt.Errorf("exprmat: duplicate %s label %q", axis, n)
		}
		idx[n] = i
	}
	return idx, nil
}

// Genes returns the ordered gene (row) names.
func (m *Matrix) Genes() []string { return m.genes }

// Cells returns the ordered cell (column) names.
func (m *Matrix) Cells() []string { return m.cells }

// NumGenes returns the row count.
func (m *Matrix) NumGenes() int { return len(m.genes) }

// NumCells returns the column count.
func (m *Matrix) NumCells() int { return len(m.cells) }

// GeneIndex resolves a gene name to its row index.
func (m *Matrix) GeneIndex(gene string) (int, error) {
	i, ok := m.geneIdx[gene]
	if !ok {
		return 0, &IndexError{Axis: "row", Label: gene}
	}
	return i, nil
}

// CellIndex resolves a cell name to its column index.
func (m *Matrix) CellIndex(cell string) (int, error) {
	j, ok := m.cellIdx[cell]
	if !ok {
		return 0, &IndexError{Axis: "column", Label: cell}
	}
	return j, nil
}

// At returns the value for a gene/cell name pair.
func (m *Matrix) At(gene, cell string) (float64, error) {
	i, err := m.GeneIndex(gene)
	if err != nil {
		return 0, err
	}
	j, err := m.CellIndex(cell)
	if err != nil {
		return 0, err
	}
	return m.data.At(i, j), nil
}

// Value returns the value at integer indices without label resolution.
func (m *Matrix) Value(i, j int) float64 { return m.data.At(i, j) }

// GeneValues gathers one gene's expression across the named cells.
func (m *Matrix) GeneValues(gene string, cells []string) ([]float64, error) {
	i, err := m.GeneIndex(gene)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for k, c := range cells {
		j, err := m.CellIndex(c)
		if err != nil {
			return nil, err
		}
		out[k] = m.data.At(i, j)
	}
	return out, nil
}

// Submatrix returns a new Matrix restricted to the named cells, keeping all
// genes. Cell order follows the argument order.
func (m *Matrix) Submatrix(cells []string) (*Matrix, error) {
	cols := make([]int, len(cells))
	for k, c := range cells {
		j, err := m.CellIndex(c)
		if err != nil {
			return nil, err
		}
		cols[k] = j
	}
	nr := m.NumGenes()
	data := make([]float64, nr*len(cells))
	for i := 0; i < nr; i++ {
		row := i * len(cells)
		for k, j := range cols {
			data[row+k] = m.data.At(i, j)
		}
	}
	return NewMatrix(m.genes, cells, data)
}

// Dense exposes the underlying gonum matrix for read-only numeric work.
func (m *Matrix) Dense() *mat.Dense { return m.data }
