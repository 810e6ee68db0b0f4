package consensus

import (
	"math"

	"github.com/meristem-data/cellclust/internal/cluster"
	"github.com/meristem-data/cellclust/internal/exprmat"
)

type pairKey struct {
	a, b string // a < b
}

func makePairKey(x, y string) pairKey {
	if x < y {
		return pairKey{a: x, b: y}
	}
	return pairKey{a: y, b: x}
}

type pairTally struct {
	co      uint32 // iterations that clustered the pair together
	sampled uint32 // iterations that contained both cells
}

// PairCounts accumulates co-clustering evidence over subsample iterations.
// It stores raw counts; ratios are derived at read time so accumulators can
// be merged associatively in any order. Not safe for concurrent use; each
// worker keeps its own and merges once.
type PairCounts struct {
	counts map[pairKey]pairTally
}

// NewPairCounts returns an empty accumulator.
func NewPairCounts() *PairCounts {
	return &PairCounts{counts: make(map[pairKey]pairTally)}
}

// Record folds one iteration in: every unordered pair of sampled cells gets
// its sample count bumped, and additionally its co-count when assign puts
// both in the same cluster.
func (p *PairCounts) Record(assign cluster.Assignment, sampled []string) {
	for i := 0; i < len(sampled); i++ {
		for j := i + 1; j < len(sampled); j++ {
			key := makePairKey(sampled[i], sampled[j])
			tally := p.counts[key]
			tally.sampled++
			if assign[sampled[i]] == assign[sampled[j]] {
				tally.co++
			}
			p.counts[key] = tally
		}
	}
}

// Merge folds another accumulator into p. The operation is associative and
// commutative, so per-worker accumulators can be combined in any order.
func (p *PairCounts) Merge(other *PairCounts) {
	for key, t := range other.counts {
		cur := p.counts[key]
		cur.co += t.co
		cur.sampled += t.sampled
		p.counts[key] = cur
	}
}

// Ratio returns the fraction of co-sampled iterations that clustered the
// pair together. ok is false when the pair was never co-sampled.
func (p *PairCounts) Ratio(a, b string) (ratio float64, ok bool) {
	t := p.counts[makePairKey(a, b)]
	if t.sampled == 0 {
		return 0, false
	}
	return float64(t.co) / float64(t.sampled), true
}

// Pairs returns the number of distinct pairs with at least one co-sample.
func (p *PairCounts) Pairs() int { return len(p.counts) }

// Matrix assembles the symmetric co-cluster ratio matrix over the given
// cells. Pairs that were never co-sampled are NaN; the diagonal is 1.
func (p *PairCounts) Matrix(cells []string) (*exprmat.Labeled, error) {
	l, err := exprmat.NewLabeled(cells)
	if err != nil {
		return nil, err
	}
	d := l.Dense()
	for i := range cells {
		d.Set(i, i, 1)
		for j := i + 1; j < len(cells); j++ {
			v := math.NaN()
			if r, ok := p.Ratio(cells[i], cells[j]); ok {
				v = r
			}
			d.Set(i, j, v)
			d.Set(j, i, v)
		}
	}
	return l, nil
}
