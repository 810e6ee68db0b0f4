package exprmat

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// PairKeySeparator joins the two labels of a compound pair key, e.g. "A_B".
const PairKeySeparator = "_"

// Labeled is a square matrix addressed by row/column label pairs. It backs
// the pairwise bookkeeping matrices of the pipeline (cluster × cluster
// scores, co-clustering ratios keyed by cluster label).
type Labeled struct {
	data   *mat.Dense
	labels []string
	index  map[string]int
}

// NewLabeled creates an n × n zero matrix over the given labels.
func NewLabeled(labels []string) (*Labeled, error) {
	index, err := buildIndex("row", labels)
	if err != nil {
		return nil, err
	}
	n := len(labels)
	return &Labeled{
		data:   mat.NewDense(n, n, nil),
		labels: append([]string(nil), labels...),
		index:  index,
	}, nil
}

// Labels returns the ordered label universe.
func (l *Labeled) Labels() []string { return l.labels }

// Size returns the matrix dimension.
func (l *Labeled) Size() int { return len(l.labels) }

func (l *Labeled) resolve(label string) (int, error) {
	i, ok := l.index[label]
	if !ok {
		return 0, &IndexError{Axis: "row", Label: label}
	}
	return i, nil
}

// Get gathers values for the given row/column label pairs. The two label
// slices must have equal length; element k of the result is the entry at
// (rows[k], cols[k]).
func (l *Labeled) Get(rows, cols []string) ([]float64, error) {
	if len(rows) != len(cols) {
		return nil, &DimensionError{Op: "Get", Want: len(rows), Got: len(cols)}
	}
	out := make([]float64, len(rows))
	for k := range rows {
		i, err := l.resolve(rows[k])
		if err != nil {
			return nil, err
		}
		j, err := l.resolve(cols[k])
		if err != nil {
			return nil, err
		}
		out[k] = l.data.At(i, j)
	}
	return out, nil
}

// Set scatter-writes values at the given label pairs and returns the updated
// matrix. The receiver is not modified: Set copies, so other holders of the
// value never observe the write. values may be length 1, in which case it is
// broadcast to every pair.
func (l *Labeled) Set(rows, cols []string, values []float64) (*Labeled, error) {
	if len(rows) != len(cols) {
		return nil, &DimensionError{Op: "Set", Want: len(rows), Got: len(cols)}
	}
	if len(values) != len(rows) && len(values) != 1 {
		return nil, &DimensionError{Op: "Set", Want: len(rows), Got: len(values)}
	}
	out := &Labeled{
		data:   mat.DenseCopyOf(l.data),
		labels: l.labels,
		index:  l.index,
	}
	for k := range rows {
		i, err := out.resolve(rows[k])
		if err != nil {
			return nil, err
		}
		j, err := out.resolve(cols[k])
		if err != nil {
			return nil, err
		}
		v := values[0]
		if len(values) > 1 {
			v = values[k]
		}
		out.data.Set(i, j, v)
	}
	return out, nil
}

// BuildFromPairs constructs a square matrix from a sparse pair listing keyed
// by compound "A_B" labels. If universe is nil it is derived as the sorted
// set of labels seen in the keys. When directed is false each value is
// mirrored to the symmetric entry.
func BuildFromPairs(pairCounts map[string]float64, universe []string, directed bool) (*Labeled, error) {
	type pair struct {
		a, b string
		v    float64
	}
	pairs := make([]pair, 0, len(pairCounts))
	seen := make(map[string]bool)
	for key, v := range pairCounts {
		parts := strings.Split(key, PairKeySeparator)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("exprmat: malformed pair key %q", key)
		}
		pairs = append(pairs, pair{a: parts[0], b: parts[1], v: v})
		seen[parts[0]] = true
		seen[parts[1]] = true
	}
	if universe == nil {
		universe = make([]string, 0, len(seen))
		for label := range seen {
			universe = append(universe, label)
		}
		sort.Strings(universe)
	}
	out, err := NewLabeled(universe)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		i, err := out.resolve(p.a)
		if err != nil {
			return nil, err
		}
		j, err := out.resolve(p.b)
		if err != nil {
			return nil, err
		}
		out.data.Set(i, j, p.v)
		if !directed {
			out.data.Set(j, i, p.v)
		}
	}
	return out, nil
}

// Dense exposes the numeric payload for read-only use.
func (l *Labeled) Dense() *mat.Dense { return l.data }
