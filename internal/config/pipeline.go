// Package config loads the JSON pipeline configuration. All fields are
// pointer-typed so a partial file is safe: the Get* accessors fall back to
// the built-in defaults for anything the file omits.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PipelineConfig is the root configuration for the clustering pipeline.
// The optional q1/q2/qdiff thresholds use a negative value to disable the
// corresponding check; omitting them keeps the default behavior.
type PipelineConfig struct {
	// DE thresholds
	PadjThreshold    *float64 `json:"padj_threshold,omitempty"`
	LFCThreshold     *float64 `json:"lfc_threshold,omitempty"`
	LowExprThreshold *float64 `json:"low_expr_threshold,omitempty"`
	Q1Threshold      *float64 `json:"q1_threshold,omitempty"`
	Q2Threshold      *float64 `json:"q2_threshold,omitempty"`
	QDiffThreshold   *float64 `json:"qdiff_threshold,omitempty"`
	ScoreThreshold   *float64 `json:"score_threshold,omitempty"`
	MinClusterSize   *int     `json:"min_cluster_size,omitempty"`
	ScoreCap         *float64 `json:"score_cap,omitempty"`
	DETest           *string  `json:"de_test,omitempty"` // "welch" or "ranksum"

	// Split engine
	PCAComponents    *int     `json:"pca_components,omitempty"`
	MaxSplitDepth    *int     `json:"max_split_depth,omitempty"`
	NuisanceRemoveAt *float64 `json:"nuisance_remove_threshold,omitempty"`

	// Consensus
	Iterations     *int     `json:"iterations,omitempty"`
	SampleFraction *float64 `json:"sample_fraction,omitempty"`
	Seed           *int64   `json:"seed,omitempty"`
	Workers        *int     `json:"workers,omitempty"`
	MinSimilarity  *float64 `json:"min_similarity,omitempty"`

	// Refinement
	RefineTolerance *float64 `json:"refine_tolerance,omitempty"`
	RefineConfusion *float64 `json:"refine_confusion,omitempty"`
}

// EmptyPipelineConfig returns a PipelineConfig with every field nil, so
// every accessor serves its default.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file. Fields omitted
// from the file retain their defaults, so partial configs are safe.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configured values are usable. Range validation
// of the DE thresholds themselves happens again in the DE parameter
// constructor; this catches file-level mistakes early with field names the
// user wrote.
func (c *PipelineConfig) Validate() error {
	if c.PadjThreshold != nil && (*c.PadjThreshold < 0 || *c.PadjThreshold > 1) {
		return fmt.Errorf("padj_threshold must be between 0 and 1, got %f", *c.PadjThreshold)
	}
	if c.SampleFraction != nil && (*c.SampleFraction <= 0 || *c.SampleFraction > 1) {
		return fmt.Errorf("sample_fraction must be in (0,1], got %f", *c.SampleFraction)
	}
	if c.MinClusterSize != nil && *c.MinClusterSize < 1 {
		return fmt.Errorf("min_cluster_size must be at least 1, got %d", *c.MinClusterSize)
	}
	if c.Iterations != nil && *c.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", *c.Iterations)
	}
	if c.DETest != nil && *c.DETest != "welch" && *c.DETest != "ranksum" {
		return fmt.Errorf("de_test must be \"welch\" or \"ranksum\", got %q", *c.DETest)
	}
	if c.MinSimilarity != nil && (*c.MinSimilarity <= 0 || *c.MinSimilarity > 1) {
		return fmt.Errorf("min_similarity must be in (0,1], got %f", *c.MinSimilarity)
	}
	return nil
}

// GetPadjThreshold returns the padj_threshold value or the default.
func (c *PipelineConfig) GetPadjThreshold() float64 {
	if c.PadjThreshold == nil {
		return 0.01
	}
	return *c.PadjThreshold
}

// GetLFCThreshold returns the lfc_threshold value or the default.
func (c *PipelineConfig) GetLFCThreshold() float64 {
	if c.LFCThreshold == nil {
		return 1
	}
	return *c.LFCThreshold
}

// GetLowExprThreshold returns the low_expr_threshold value or the default.
func (c *PipelineConfig) GetLowExprThreshold() float64 {
	if c.LowExprThreshold == nil {
		return 1
	}
	return *c.LowExprThreshold
}

// GetQ1Threshold returns the q1 threshold, or nil when the check is
// disabled. Missing means the default of 0.5; a negative value disables.
func (c *PipelineConfig) GetQ1Threshold() *float64 {
	return optionalThreshold(c.Q1Threshold, 0.5)
}

// GetQ2Threshold returns the q2 threshold, or nil when disabled. The check
// is off by default.
func (c *PipelineConfig) GetQ2Threshold() *float64 {
	if c.Q2Threshold == nil || *c.Q2Threshold < 0 {
		return nil
	}
	v := *c.Q2Threshold
	return &v
}

// GetQDiffThreshold returns the qdiff threshold, or nil when disabled.
// Missing means the default of 0.7; a negative value disables.
func (c *PipelineConfig) GetQDiffThreshold() *float64 {
	return optionalThreshold(c.QDiffThreshold, 0.7)
}

func optionalThreshold(field *float64, def float64) *float64 {
	if field == nil {
		return &def
	}
	if *field < 0 {
		return nil
	}
	v := *field
	return &v
}

// GetScoreThreshold returns the score_threshold value or the default.
func (c *PipelineConfig) GetScoreThreshold() float64 {
	if c.ScoreThreshold == nil {
		return 40
	}
	return *c.ScoreThreshold
}

// GetMinClusterSize returns the min_cluster_size value or the default.
func (c *PipelineConfig) GetMinClusterSize() int {
	if c.MinClusterSize == nil {
		return 4
	}
	return *c.MinClusterSize
}

// GetScoreCap returns the score_cap value or the default.
func (c *PipelineConfig) GetScoreCap() float64 {
	if c.ScoreCap == nil {
		return 20
	}
	return *c.ScoreCap
}

// GetDETest returns the de_test value or the default.
func (c *PipelineConfig) GetDETest() string {
	if c.DETest == nil {
		return "welch"
	}
	return *c.DETest
}

// GetPCAComponents returns the pca_components value or the default.
func (c *PipelineConfig) GetPCAComponents() int {
	if c.PCAComponents == nil {
		return 5
	}
	return *c.PCAComponents
}

// GetMaxSplitDepth returns the max_split_depth value or the default of 0,
// meaning no depth cap.
func (c *PipelineConfig) GetMaxSplitDepth() int {
	if c.MaxSplitDepth == nil {
		return 0
	}
	return *c.MaxSplitDepth
}

// GetNuisanceRemoveThreshold returns the nuisance_remove_threshold value or
// the default.
func (c *PipelineConfig) GetNuisanceRemoveThreshold() float64 {
	if c.NuisanceRemoveAt == nil {
		return 0.9
	}
	return *c.NuisanceRemoveAt
}

// GetIterations returns the iterations value or the default.
func (c *PipelineConfig) GetIterations() int {
	if c.Iterations == nil {
		return 100
	}
	return *c.Iterations
}

// GetSampleFraction returns the sample_fraction value or the default.
func (c *PipelineConfig) GetSampleFraction() float64 {
	if c.SampleFraction == nil {
		return 0.8
	}
	return *c.SampleFraction
}

// GetSeed returns the seed value or the default.
func (c *PipelineConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 1
	}
	return *c.Seed
}

// GetWorkers returns the workers value or the default of 0, meaning one
// worker per available CPU.
func (c *PipelineConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetMinSimilarity returns the min_similarity value or the default.
func (c *PipelineConfig) GetMinSimilarity() float64 {
	if c.MinSimilarity == nil {
		return 0.5
	}
	return *c.MinSimilarity
}

// GetRefineTolerance returns the refine_tolerance value or the default.
func (c *PipelineConfig) GetRefineTolerance() float64 {
	if c.RefineTolerance == nil {
		return 0.1
	}
	return *c.RefineTolerance
}

// GetRefineConfusion returns the refine_confusion value or the default.
func (c *PipelineConfig) GetRefineConfusion() float64 {
	if c.RefineConfusion == nil {
		return 0.7
	}
	return *c.RefineConfusion
}
