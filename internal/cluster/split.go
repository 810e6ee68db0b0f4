package cluster

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/meristem-data/cellclust/internal/de"
	"github.com/meristem-data/cellclust/internal/exprmat"
)

// BranchWarning records a collaborator failure that aborted one branch of
// the split recursion. The branch's cells stay together as a single cluster
// and sibling branches proceed, so the caller still gets the best clustering
// achievable from unaffected branches.
type BranchWarning struct {
	Cells int
	Depth int
	Stage string
	Err   error
}

func (w BranchWarning) String() string {
	return fmt.Sprintf("branch of %d cells at depth %d aborted in %s: %v", w.Cells, w.Depth, w.Stage, w.Err)
}

// SplitEngine recursively partitions a cell population, accepting each split
// only when every resulting subgroup pair is DE-separable. The recursion is
// driven by an explicit work queue rather than call-stack recursion, which
// bounds stack depth and keeps per-branch failure isolation simple.
type SplitEngine struct {
	Reducer     Reducer
	Partitioner Partitioner
	Tester      de.Tester
	Params      de.Params

	// Nuisance holds one row per cell of the full matrix (matrix cell
	// order); columns are covariates such as batch or library depth.
	// Components correlated with any column beyond RemoveThreshold are
	// discarded during reduction. Nil disables eigen-removal.
	Nuisance        *mat.Dense
	RemoveThreshold float64

	// MaxDepth caps the descent as a safety net; 0 means no cap.
	MaxDepth int
}

type splitTask struct {
	cells []string
	depth int
}

// Run clusters the given cells of m. The returned assignment covers every
// input cell exactly once with contiguous labels starting at 1. Branch
// warnings report subtrees that were abandoned after collaborator failures.
func (e *SplitEngine) Run(m *exprmat.Matrix, cells []string) (Assignment, []BranchWarning, error) {
	if len(cells) == 0 {
		return Assignment{}, nil, nil
	}
	if e.Reducer == nil || e.Partitioner == nil || e.Tester == nil {
		return nil, nil, fmt.Errorf("cluster: split engine missing a collaborator")
	}

	assign := make(Assignment, len(cells))
	var warnings []BranchWarning
	nextID := 1

	terminal := func(task splitTask) {
		for _, c := range task.cells {
			assign[c] = nextID
		}
		nextID++
	}

	queue := []splitTask{{cells: cells, depth: 0}}
	for len(queue) > 0 {
		task := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		if len(task.cells) < 2*e.Params.MinClusterSize {
			terminal(task) // too small to split
			continue
		}
		if e.MaxDepth > 0 && task.depth >= e.MaxDepth {
			terminal(task)
			continue
		}

		groups, warn := e.splitOnce(m, task)
		if warn != nil {
			warnings = append(warnings, *warn)
			terminal(task)
			continue
		}
		if len(groups) < 2 {
			terminal(task)
			continue
		}
		for _, g := range groups {
			queue = append(queue, splitTask{cells: g, depth: task.depth + 1})
		}
	}

	return assign.Normalize(), warnings, nil
}

// splitOnce reduces, partitions and separability-checks one cell set. It
// returns the accepted subgroups (possibly a single group, meaning the
// branch terminates) or a warning describing the collaborator failure that
// aborted the branch.
func (e *SplitEngine) splitOnce(m *exprmat.Matrix, task splitTask) ([][]string, *BranchWarning) {
	sub, err := m.Submatrix(task.cells)
	if err != nil {
		return nil, &BranchWarning{Cells: len(task.cells), Depth: task.depth, Stage: "submatrix", Err: err}
	}

	coords, err := e.Reducer.Reduce(sub, e.nuisanceRows(m, task.cells), e.RemoveThreshold)
	if err != nil {
		return nil, &BranchWarning{Cells: len(task.cells), Depth: task.depth, Stage: "reduce", Err: err}
	}

	labels, err := e.Partitioner.Partition(coords)
	if err != nil {
		return nil, &BranchWarning{Cells: len(task.cells), Depth: task.depth, Stage: "partition", Err: err}
	}
	if len(labels) != len(task.cells) {
		err := fmt.Errorf("partitioner returned %d labels for %d cells", len(labels), len(task.cells))
		return nil, &BranchWarning{Cells: len(task.cells), Depth: task.depth, Stage: "partition", Err: &CollaboratorError{Stage: "partition", Err: err}}
	}

	groups := groupCells(task.cells, labels)
	for len(groups) > 1 {
		merged, err := e.collapseNonSeparable(m, groups)
		if err != nil {
			return nil, &BranchWarning{Cells: len(task.cells), Depth: task.depth, Stage: "detest", Err: err}
		}
		if merged == nil {
			return groups, nil // every pair separable: accept the split
		}
		groups = merged
	}
	return groups, nil
}

// collapseNonSeparable tests every group pair and merges the members of
// failing pairs. It returns nil when all pairs pass, otherwise the collapsed
// grouping for another round (a >2-way split can degrade to fewer
// distinguishable groups before settling).
func (e *SplitEngine) collapseNonSeparable(m *exprmat.Matrix, groups [][]string) ([][]string, error) {
	parent := make([]int, len(groups))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	anyMerge := false
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			sep, err := de.TestSeparability(e.Tester, groups[i], groups[j], m, e.Params)
			if err != nil {
				return nil, &CollaboratorError{Stage: "detest", Err: err}
			}
			if !sep.Separable {
				ri, rj := find(i), find(j)
				if ri != rj {
					if rj < ri {
						ri, rj = rj, ri
					}
					parent[rj] = ri
					anyMerge = true
				}
			}
		}
	}
	if !anyMerge {
		return nil, nil
	}

	collapsed := make(map[int][]string)
	for i, g := range groups {
		root := find(i)
		collapsed[root] = append(collapsed[root], g...)
	}
	roots := make([]int, 0, len(collapsed))
	for r := range collapsed {
		roots = append(roots, r)
	}
	sort.Ints(roots)
	out := make([][]string, 0, len(roots))
	for _, r := range roots {
		members := collapsed[r]
		sort.Strings(members)
		out = append(out, members)
	}
	return out, nil
}

// nuisanceRows slices the engine-level nuisance matrix down to the rows of
// the given cells, in order. Returns nil when no nuisance is configured.
func (e *SplitEngine) nuisanceRows(m *exprmat.Matrix, cells []string) *mat.Dense {
	if e.Nuisance == nil {
		return nil
	}
	_, nCov := e.Nuisance.Dims()
	out := mat.NewDense(len(cells), nCov, nil)
	for i, c := range cells {
		j, err := m.CellIndex(c)
		if err != nil {
			continue
		}
		for v := 0; v < nCov; v++ {
			out.Set(i, v, e.Nuisance.At(j, v))
		}
	}
	return out
}

// groupCells splits cells by partition label, dropping empty groups and
// keeping member lists sorted for determinism.
func groupCells(cells []string, labels []int) [][]string {
	byLabel := make(map[int][]string)
	for i, c := range cells {
		byLabel[labels[i]] = append(byLabel[labels[i]], c)
	}
	ids := make([]int, 0, len(byLabel))
	for id := range byLabel {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([][]string, 0, len(ids))
	for _, id := range ids {
		members := byLabel[id]
		sort.Strings(members)
		out = append(out, members)
	}
	return out
}
