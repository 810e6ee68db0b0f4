package exprmat

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// ReadCSV parses a genes x cells matrix. The header row names the cells
// (its first field is ignored); every following row is a gene name followed
// by one value per cell.
func ReadCSV(r io.Reader) (*Matrix, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read matrix header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("matrix header has %d fields, need a label column and at least one cell", len(header))
	}
	cells := append([]string(nil), header[1:]...)

	var genes []string
	var data []float64
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read matrix row %d: %w", len(genes)+2, err)
		}
		if len(record) != len(cells)+1 {
			return nil, fmt.Errorf("gene %q has %d values, want %d", record[0], len(record)-1, len(cells))
		}
		genes = append(genes, record[0])
		for _, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("gene %q: parse %q: %w", record[0], field, err)
			}
			data = append(data, v)
		}
	}
	if len(genes) == 0 {
		return nil, fmt.Errorf("matrix has no gene rows")
	}
	return NewMatrix(genes, cells, data)
}

// WriteCSV writes the matrix in the format ReadCSV parses.
func (m *Matrix) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	header := append([]string{"gene"}, m.cells...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write matrix header: %w", err)
	}

	row := make([]string, len(m.cells)+1)
	for i, gene := range m.genes {
		row[0] = gene
		for j := range m.cells {
			row[j+1] = strconv.FormatFloat(m.data.At(i, j), 'g', -1, 64)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write gene %q: %w", gene, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
