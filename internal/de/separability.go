package de

import (
	"math"

	"github.com/meristem-data/cellclust/internal/exprmat"
)

// Separability is the verdict for one cluster pair.
type Separability struct {
	// Score is the summed, capped -log10 adjusted p-value over passing genes.
	Score float64
	// Separable reports whether the pair clears the score threshold with at
	// least one passing gene.
	Separable bool
	// PassingGenes lists the genes that cleared every threshold, in matrix
	// gene order. These double as markers for the merge engine.
	PassingGenes []string
}

// TestSeparability runs the DE test on (cellsA, cellsB) and composes the
// threshold logic of the parameter set over the per-gene results. The
// verdict inherits whatever input-order asymmetry the Tester has; the
// threshold composition itself is order-neutral.
func TestSeparability(tester Tester, cellsA, cellsB []string, m *exprmat.Matrix, p Params) (Separability, error) {
	// A group below the minimum cluster size cannot stand on its own, so
	// the pair is never separable regardless of its DE profile.
	if len(cellsA) < p.MinClusterSize || len(cellsB) < p.MinClusterSize {
		return Separability{}, nil
	}
	results, err := tester.Test(cellsA, cellsB, m)
	if err != nil {
		return Separability{}, err
	}

	var sep Separability
	for _, r := range results {
		if !genePasses(r, p) {
			continue
		}
		contribution := -math.Log10(r.AdjPValue)
		if math.IsInf(contribution, 1) || contribution > p.ScoreCap {
			contribution = p.ScoreCap
		}
		sep.Score += contribution
		sep.PassingGenes = append(sep.PassingGenes, r.Gene)
	}
	sep.Separable = sep.Score > p.ScoreThreshold && len(sep.PassingGenes) >= 1
	return sep, nil
}

// genePasses applies the full qualifying-gene predicate. Unset optional
// thresholds skip their clause.
func genePasses(r Result, p Params) bool {
	if !(r.AdjPValue < p.PadjThreshold) {
		return false
	}
	if !(math.Abs(r.LogFC) > p.LFCThreshold) {
		return false
	}
	qMax := math.Max(r.Q1, r.Q2)
	qMin := math.Min(r.Q1, r.Q2)
	if p.Q1Threshold != nil && !(qMax > *p.Q1Threshold) {
		return false
	}
	if p.Q2Threshold != nil && !(qMin < *p.Q2Threshold) {
		return false
	}
	if p.QDiffThreshold != nil {
		if qMax <= 0 {
			return false
		}
		if !(math.Abs(r.Q1-r.Q2)/qMax > *p.QDiffThreshold) {
			return false
		}
	}
	return true
}
