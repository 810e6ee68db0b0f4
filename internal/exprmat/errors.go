package exprmat

import "fmt"

// IndexError reports a row or column label that could not be resolved
// against a matrix's name index.
type IndexError struct {
	Axis  string // "row" or "column"
	Label string
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("exprmat: unknown %s label %q", e.Axis, e.Label)
}

// DimensionError reports mismatched matrix or label-vector shapes.
type DimensionError struct {
	Op   string
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("exprmat: %s: dimension mismatch (want %d, got %d)", e.Op, e.Want, e.Got)
}
