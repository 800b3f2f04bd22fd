package operations

import (
	"time"
)

// Per-step timeouts. Loading and the grid dominate run time; the estimators
// are cheap by comparison.
const (
	DefaultStepTimeout        = 10 * time.Minute
	DefaultLoadPanelTimeout   = 5 * time.Minute
	DefaultDetectTimeout      = 2 * time.Minute
	DefaultConvergenceTimeout = 5 * time.Minute
	DefaultRobustnessTimeout  = 5 * time.Minute
	DefaultChartsTimeout      = 2 * time.Minute
	DefaultSensitivityTimeout = 20 * time.Minute
)

// Config controls how the Manager drives a run.
type Config struct {
	// Per-step timeouts keyed by step ID.
	StepTimeouts map[string]time.Duration `json:"step_timeouts"`

	// Retry behavior for steps that fail with a retryable error.
	RetryConfig RetryConfig `json:"retry_config"`

	// ContinueOnError lets later steps run after a failure instead of
	// skipping everything downstream.
	ContinueOnError bool `json:"continue_on_error"`

	// OutputDir is where the run manifest is written. Empty disables the
	// manifest file.
	OutputDir string `json:"output_dir,omitempty"`
}

// NewConfig returns the default run configuration.
func NewConfig() *Config {
	return &Config{
		StepTimeouts: map[string]time.Duration{
			StepIDLoadPanel:    DefaultLoadPanelTimeout,
			StepIDDetectShocks: DefaultDetectTimeout,
			StepIDConvergence:  DefaultConvergenceTimeout,
			StepIDRobustness:   DefaultRobustnessTimeout,
			StepIDCharts:       DefaultChartsTimeout,
			StepIDSensitivity:  DefaultSensitivityTimeout,
		},
		RetryConfig:     NewRetryConfig(),
		ContinueOnError: false,
	}
}

// GetStepTimeout returns the timeout for a specific step.
func (c *Config) GetStepTimeout(stepID string) time.Duration {
	if timeout, ok := c.StepTimeouts[stepID]; ok {
		return timeout
	}
	return DefaultStepTimeout
}

// SetStepTimeout sets the timeout for a specific step.
func (c *Config) SetStepTimeout(stepID string, timeout time.Duration) {
	if c.StepTimeouts == nil {
		c.StepTimeouts = make(map[string]time.Duration)
	}
	c.StepTimeouts[stepID] = timeout
}

// ConfigBuilder provides a fluent interface for building run configurations.
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a builder seeded with the defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: NewConfig()}
}

// WithStepTimeout sets the timeout for a step.
func (b *ConfigBuilder) WithStepTimeout(stepID string, timeout time.Duration) *ConfigBuilder {
	b.config.SetStepTimeout(stepID, timeout)
	return b
}

// WithRetryConfig sets the retry configuration.
func (b *ConfigBuilder) WithRetryConfig(config RetryConfig) *ConfigBuilder {
	b.config.RetryConfig = config
	return b
}

// WithContinueOnError sets whether to continue past step failures.
func (b *ConfigBuilder) WithContinueOnError(continueOnError bool) *ConfigBuilder {
	b.config.ContinueOnError = continueOnError
	return b
}

// WithOutputDir sets the directory the run manifest is written to.
func (b *ConfigBuilder) WithOutputDir(dir string) *ConfigBuilder {
	b.config.OutputDir = dir
	return b
}

// Build returns the built configuration.
func (b *ConfigBuilder) Build() *Config {
	return b.config
}
