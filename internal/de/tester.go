package de

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/meristem-data/cellclust/internal/exprmat"
)

// Result holds the per-gene outcome of a two-group DE test.
type Result struct {
	Gene      string
	PValue    float64
	AdjPValue float64
	LogFC     float64
	Q1        float64 // detected fraction in the foreground group
	Q2        float64 // detected fraction in the background group
}

// Tester is the external DE-test capability: given two cell groups it
// produces per-gene statistics over all genes of the matrix. The clustering
// core treats it as a black box and only composes threshold logic on top.
type Tester interface {
	Test(cellsA, cellsB []string, m *exprmat.Matrix) ([]Result, error)
}

// WelchTester is the default Tester: per-gene Welch's t-test (two-tailed)
// with Benjamini-Hochberg adjustment. Log fold change is the difference of
// group means, which is the log2 ratio for log2-scaled input. Detection
// fractions q1/q2 count cells above DetectionThreshold.
type WelchTester struct {
	DetectionThreshold float64
}

// NewWelchTester returns a WelchTester with the given detection floor.
func NewWelchTester(detectionThreshold float64) *WelchTester {
	return &WelchTester{DetectionThreshold: detectionThreshold}
}

// Test implements Tester.
func (w *WelchTester) Test(cellsA, cellsB []string, m *exprmat.Matrix) ([]Result, error) {
	if len(cellsA) == 0 || len(cellsB) == 0 {
		return nil, fmt.Errorf("de: empty cell group (a=%d, b=%d)", len(cellsA), len(cellsB))
	}

	genes := m.Genes()
	results := make([]Result, len(genes))
	pvals := make([]float64, len(genes))

	for gi, gene := range genes {
		valsA, err := m.GeneValues(gene, cellsA)
		if err != nil {
			return nil, err
		}
		valsB, err := m.GeneValues(gene, cellsB)
		if err != nil {
			return nil, err
		}

		meanA, varA := meanVar(valsA)
		meanB, varB := meanVar(valsB)
		p := welchP(meanA, varA, len(valsA), meanB, varB, len(valsB))

		results[gi] = Result{
			Gene:   gene,
			PValue: p,
			LogFC:  meanA - meanB,
			Q1:     detectedFraction(valsA, w.DetectionThreshold),
			Q2:     detectedFraction(valsB, w.DetectionThreshold),
		}
		pvals[gi] = p
	}

	adj := benjaminiHochberg(pvals)
	for gi := range results {
		results[gi].AdjPValue = adj[gi]
	}
	return results, nil
}

func meanVar(vals []float64) (mean, variance float64) {
	n := float64(len(vals))
	for _, v := range vals {
		mean += v
	}
	mean /= n
	if len(vals) < 2 {
		return mean, 0
	}
	for _, v := range vals {
		d := v - mean
		variance += d * d
	}
	variance /= n - 1
	return mean, variance
}

func detectedFraction(vals []float64, threshold float64) float64 {
	n := 0
	for _, v := range vals {
		if v > threshold {
			n++
		}
	}
	return float64(n) / float64(len(vals))
}

// welchP computes the two-tailed p-value of Welch's unequal-variance t-test
// using the Welch-Satterthwaite degrees of freedom.
func welchP(meanA, varA float64, nA int, meanB, varB float64, nB int) float64 {
	if nA < 2 || nB < 2 {
		return 1
	}
	seA := varA / float64(nA)
	seB := varB / float64(nB)
	seDiff := math.Sqrt(seA + seB)
	if seDiff < 1e-15 {
		if meanA == meanB {
			return 1
		}
		return 0
	}
	t := (meanA - meanB) / seDiff

	num := (seA + seB) * (seA + seB)
	den := 0.0
	if seA > 0 {
		den += seA * seA / float64(nA-1)
	}
	if seB > 0 {
		den += seB * seB / float64(nB-1)
	}
	if den < 1e-15 {
		return 1
	}
	df := num / den
	if df < 1 {
		df = 1
	}

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * dist.CDF(-math.Abs(t))
}

// benjaminiHochberg applies the step-up FDR correction, preserving input
// order in the returned slice.
func benjaminiHochberg(pvals []float64) []float64 {
	n := len(pvals)
	if n == 0 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return pvals[idx[i]] < pvals[idx[j]] })

	adj := make([]float64, n)
	minP := 1.0
	for i := n - 1; i >= 0; i-- {
		orig := idx[i]
		a := pvals[orig] * float64(n) / float64(i+1)
		if a > 1 {
			a = 1
		}
		if a < minP {
			minP = a
		} else {
			a = minP
		}
		adj[orig] = a
	}
	return adj
}
