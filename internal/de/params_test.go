package de

import (
	"errors"
	"testing"
)

func TestNewParamsDefaults(t *testing.T) {
	p, err := NewParams(DefaultParams())
	if err != nil {
		t.Fatalf("NewParams(DefaultParams()): %v", err)
	}
	if p.ScoreCap != DefaultScoreCap {
		t.Errorf("ScoreCap: got %v, want %v", p.ScoreCap, float64(DefaultScoreCap))
	}
}

func TestNewParamsAppliesScoreCapDefault(t *testing.T) {
	in := DefaultParams()
	in.ScoreCap = 0
	p, err := NewParams(in)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	if p.ScoreCap != DefaultScoreCap {
		t.Errorf("ScoreCap default not applied: got %v", p.ScoreCap)
	}
}

func TestNewParamsValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero score threshold", func(p *Params) { p.ScoreThreshold = 0 }},
		{"negative score threshold", func(p *Params) { p.ScoreThreshold = -5 }},
		{"padj above one", func(p *Params) { p.PadjThreshold = 1.5 }},
		{"negative padj", func(p *Params) { p.PadjThreshold = -0.1 }},
		{"negative low expression", func(p *Params) { p.LowExprThreshold = -1 }},
		{"q1 out of range", func(p *Params) { p.Q1Threshold = Float64(2) }},
		{"q2 out of range", func(p *Params) { p.Q2Threshold = Float64(-0.5) }},
		{"qdiff out of range", func(p *Params) { p.QDiffThreshold = Float64(1.01) }},
		{"zero min cluster size", func(p *Params) { p.MinClusterSize = 0 }},
		{"negative score cap", func(p *Params) { p.ScoreCap = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			_, err := NewParams(p)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
		})
	}
}
