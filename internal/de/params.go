package de

import "fmt"

// DefaultScoreCap bounds the contribution of any single gene to a pair score.
const DefaultScoreCap = 20

// ConfigError reports an invalid DE parameter set. It is fatal and reported
// to the caller immediately, never silently corrected.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("de: invalid parameter %s: %s", e.Field, e.Reason)
}

// Params is the immutable bundle of significance thresholds that decide what
// counts as a separating gene and a separating cluster pair. Optional
// thresholds are pointers; nil means the corresponding check is skipped.
type Params struct {
	// PadjThreshold is the adjusted p-value cutoff: a gene only qualifies
	// when its adjusted p-value falls below it.
	PadjThreshold float64
	// LFCThreshold is the minimum absolute log fold change.
	LFCThreshold float64
	// LowExprThreshold is the detection floor used for the q1/q2 fractions.
	LowExprThreshold float64
	// Q1Threshold, when set, requires max(q1,q2) to exceed it.
	Q1Threshold *float64
	// Q2Threshold, when set, requires min(q1,q2) to fall below it.
	Q2Threshold *float64
	// QDiffThreshold, when set, requires |q1-q2|/max(q1,q2) to exceed it.
	QDiffThreshold *float64
	// ScoreThreshold is the minimum summed score for a pair to be separable.
	ScoreThreshold float64
	// MinClusterSize is the smallest viable cluster; the split engine stops
	// descending below twice this size.
	MinClusterSize int
	// ScoreCap bounds each gene's -log10(padj) contribution. Zero means
	// DefaultScoreCap.
	ScoreCap float64
}

// Float64 returns a pointer to v, for the optional threshold fields.
func Float64(v float64) *float64 { return &v }

// DefaultParams returns the production-default DE thresholds.
func DefaultParams() Params {
	return Params{
		PadjThreshold:    0.01,
		LFCThreshold:     1,
		LowExprThreshold: 1,
		Q1Threshold:      Float64(0.5),
		QDiffThreshold:   Float64(0.7),
		ScoreThreshold:   40,
		MinClusterSize:   4,
		ScoreCap:         DefaultScoreCap,
	}
}

// NewParams validates p, applies the score-cap default, and returns the
// finished value. Construction is the only place validation happens; callers
// can rely on a returned Params being internally consistent.
func NewParams(p Params) (Params, error) {
	if p.ScoreCap == 0 {
		p.ScoreCap = DefaultScoreCap
	}
	if err := p.validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

func (p Params) validate() error {
	if p.ScoreThreshold <= 0 {
		return &ConfigError{Field: "ScoreThreshold", Reason: "must be > 0"}
	}
	if p.ScoreCap <= 0 {
		return &ConfigError{Field: "ScoreCap", Reason: "must be > 0"}
	}
	if p.PadjThreshold < 0 || p.PadjThreshold > 1 {
		return &ConfigError{Field: "PadjThreshold", Reason: "must be in [0,1]"}
	}
	if p.LowExprThreshold < 0 {
		return &ConfigError{Field: "LowExprThreshold", Reason: "must be non-negative"}
	}
	if p.MinClusterSize < 1 {
		return &ConfigError{Field: "MinClusterSize", Reason: "must be >= 1"}
	}
	for _, q := range []struct {
		name string
		v    *float64
	}{
		{"Q1Threshold", p.Q1Threshold},
		{"Q2Threshold", p.Q2Threshold},
		{"QDiffThreshold", p.QDiffThreshold},
	} {
		if q.v != nil && (*q.v < 0 || *q.v > 1) {
			return &ConfigError{Field: q.name, Reason: "must be in [0,1]"}
		}
	}
	return nil
}
