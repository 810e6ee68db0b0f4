package cluster

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/meristem-data/cellclust/internal/exprmat"
)

// DefaultPCAComponents is the number of principal components retained before
// nuisance removal.
const DefaultPCAComponents = 5

// PCAReducer is the default Reducer: principal components of the cells ×
// genes view of the submatrix, with eigen-removal of components that track a
// nuisance covariate (batch, library depth) too closely.
type PCAReducer struct {
	Components int // components kept before removal; 0 means DefaultPCAComponents
}

// Reduce implements Reducer.
func (r *PCAReducer) Reduce(sub *exprmat.Matrix, nuisance *mat.Dense, removeThreshold float64) (*mat.Dense, error) {
	n, d := sub.NumCells(), sub.NumGenes()
	if n < 2 || d < 1 {
		return nil, &CollaboratorError{Stage: "reduce", Err: errors.New("submatrix too small for PCA")}
	}

	// Observations in rows: transpose the genes × cells payload.
	x := mat.NewDense(n, d, nil)
	for i := 0; i < d; i++ {
		for j := 0; j < n; j++ {
			x.Set(j, i, sub.Value(i, j))
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, &CollaboratorError{Stage: "reduce", Err: errors.New("principal component decomposition failed")}
	}

	k := r.Components
	if k <= 0 {
		k = DefaultPCAComponents
	}
	if lim := min(n, d); k > lim {
		k = lim
	}

	var vec mat.Dense
	pc.VectorsTo(&vec)

	// Project the mean-centered observations onto the leading components.
	centered := mat.DenseCopyOf(x)
	for i := 0; i < d; i++ {
		col := mat.Col(nil, i, x)
		mean := stat.Mean(col, nil)
		for j := 0; j < n; j++ {
			centered.Set(j, i, x.At(j, i)-mean)
		}
	}
	var proj mat.Dense
	proj.Mul(centered, vec.Slice(0, d, 0, k))

	keep := r.keepComponents(&proj, nuisance, removeThreshold)
	if len(keep) == 0 {
		return nil, &CollaboratorError{Stage: "reduce", Err: errors.New("every component exceeded the nuisance removal threshold")}
	}
	out := mat.NewDense(n, len(keep), nil)
	for c, src := range keep {
		for j := 0; j < n; j++ {
			out.Set(j, c, proj.At(j, src))
		}
	}
	return out, nil
}

// keepComponents returns the projected component indices that survive
// eigen-removal against the nuisance matrix. With no nuisance configured
// every component survives.
func (r *PCAReducer) keepComponents(proj *mat.Dense, nuisance *mat.Dense, removeThreshold float64) []int {
	n, k := proj.Dims()
	if nuisance == nil || removeThreshold <= 0 {
		keep := make([]int, k)
		for i := range keep {
			keep[i] = i
		}
		return keep
	}

	_, nCov := nuisance.Dims()
	var keep []int
	comp := make([]float64, n)
	cov := make([]float64, n)
	for c := 0; c < k; c++ {
		mat.Col(comp, c, proj)
		tainted := false
		for v := 0; v < nCov; v++ {
			mat.Col(cov, v, nuisance)
			corr := stat.Correlation(comp, cov, nil)
			if corr > removeThreshold || corr < -removeThreshold {
				tainted = true
				break
			}
		}
		if !tainted {
			keep = append(keep, c)
		}
	}
	return keep
}
