package training

import (
	"errors"
	"fmt"
)

// RunConfig is the immutable hyperparameter bundle for one training run.
// It never changes after construction, with one exception: at run start the
// trainer appends a version_N suffix to SaveDir so every run gets a fresh
// directory.
type RunConfig struct {
	// SaveDir is the root directory for run artifacts. Each run creates a
	// numbered version subdirectory underneath it.
	SaveDir string `koanf:"save_dir"`

	// LR is the base learning rate handed to warmup and main schedules.
	LR float64 `koanf:"lr"`

	// MaxEpoch bounds the run regardless of validation progress.
	MaxEpoch int `koanf:"max_epoch"`

	// MetricMinBetter selects the metric direction: true means a lower
	// validation metric is an improvement.
	MetricMinBetter bool `koanf:"metric_min_better"`

	// Warmup is the number of optimizer steps driven by the warmup
	// schedule before the main schedule takes over.
	Warmup int `koanf:"warmup"`

	// Patience is the number of consecutive non-improving validation
	// epochs tolerated before the run halts early.
	Patience int `koanf:"patience"`

	// GradClip caps the global gradient norm. nil disables clipping.
	GradClip *float64 `koanf:"grad_clip"`

	// SaveTopK is the number of best checkpoints to retain. -1 retains
	// everything. 0 is rejected by Validate as ambiguous.
	SaveTopK int `koanf:"save_topk"`

	// Extra carries caller-defined settings through to the run manifest.
	Extra map[string]any `koanf:"extra"`
}

// DefaultRunConfig returns a config with the conventional defaults for the
// fields a caller usually leaves alone.
func DefaultRunConfig(saveDir string, lr float64, maxEpoch int) RunConfig {
	return RunConfig{
		SaveDir:         saveDir,
		LR:              lr,
		MaxEpoch:        maxEpoch,
		MetricMinBetter: true,
		Warmup:          1000,
		Patience:        3,
		SaveTopK:        -1,
	}
}

// Validate checks the config for values the trainer cannot work with.
func (c RunConfig) Validate() error {
	if c.SaveDir == "" {
		return errors.New("save_dir must not be empty")
	}
	if c.LR <= 0 {
		return fmt.Errorf("lr must be positive, got %g", c.LR)
	}
	if c.MaxEpoch < 1 {
		return fmt.Errorf("max_epoch must be at least 1, got %d", c.MaxEpoch)
	}
	if c.Warmup < 0 {
		return fmt.Errorf("warmup must not be negative, got %d", c.Warmup)
	}
	if c.Patience < 1 {
		return fmt.Errorf("patience must be at least 1, got %d", c.Patience)
	}
	if c.GradClip != nil && *c.GradClip <= 0 {
		return fmt.Errorf("grad_clip must be positive, got %g", *c.GradClip)
	}
	if c.SaveTopK == 0 {
		return errors.New("save_topk 0 is ambiguous: use -1 to retain all checkpoints or a positive count")
	}
	if c.SaveTopK < -1 {
		return fmt.Errorf("save_topk must be -1 or positive, got %d", c.SaveTopK)
	}
	return nil
}
