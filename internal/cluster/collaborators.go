package cluster

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/meristem-data/cellclust/internal/exprmat"
)

// Reducer is the dimensionality-reduction capability. Given a genes × cells
// submatrix it returns cells × k coordinates. When nuisance is non-nil, any
// output dimension whose absolute correlation with a nuisance column exceeds
// removeThreshold must be excluded deterministically.
type Reducer interface {
	Reduce(sub *exprmat.Matrix, nuisance *mat.Dense, removeThreshold float64) (*mat.Dense, error)
}

// Partitioner is the partitioning capability: it assigns each coordinate row
// a group id in 0..k-1 with k >= 1. Implementations must be deterministic
// given a fixed seed so consensus runs are reproducible.
type Partitioner interface {
	Partition(coords *mat.Dense) ([]int, error)
}

// CollaboratorError wraps a failure from a reduction, partition or DE-test
// collaborator. In the split engine it aborts only the affected branch; at
// the merge or consensus level it is fatal.
type CollaboratorError struct {
	Stage string // "reduce", "partition" or "detest"
	Err   error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("cluster: %s collaborator failed: %v", e.Stage, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// ConvergenceWarning reports a loop that hit its iteration cap before
// reaching a fixed point. It is non-fatal: the best-effort result is
// returned alongside it.
type ConvergenceWarning struct {
	Op     string
	Passes int
}

func (w *ConvergenceWarning) String() string {
	return fmt.Sprintf("%s did not fully converge after %d passes", w.Op, w.Passes)
}
