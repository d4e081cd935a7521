// Package config loads the run configuration of the sqnxt command.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/sqnxt/internal/squeezenext"
	"github.com/born-ml/sqnxt/internal/tensor"
)

// Config captures the model and run knobs.
type Config struct {
	// Model names a predefined variant (e.g. "sqnxt23v5_1_5"). When set it
	// takes precedence over Arch and Scale.
	Model      string  `yaml:"model"`
	Arch       string  `yaml:"arch"`
	Scale      float64 `yaml:"scale"`
	Classes    int     `yaml:"classes"`
	Pretrained bool    `yaml:"pretrained"`
	InputSize  int     `yaml:"input_size"`
	BatchSize  int     `yaml:"batch_size"`
	Seed       uint64  `yaml:"seed"`
	NumWorkers int     `yaml:"num_workers"`
	Iterations int     `yaml:"iterations"`
}

// Overrides captures CLI supplied values. Zero values leave the config untouched.
type Overrides struct {
	Model      string
	Arch       string
	Scale      float64
	Classes    int
	Pretrained bool
	InputSize  int
	BatchSize  int
	Seed       uint64
	NumWorkers int
	Iterations int
}

// Default returns the reference configuration: sqnxt23 at width 1.0,
// 1000 classes, one 224x224 image.
func Default() *Config {
	return &Config{
		Arch:       squeezenext.Arch23,
		Scale:      1.0,
		Classes:    squeezenext.DefaultClasses,
		InputSize:  squeezenext.DefaultInputSize,
		BatchSize:  1,
		Iterations: 1,
	}
}

// Load reads and validates a Config from YAML. Keys missing from the file
// keep their Default values; unknown keys are rejected.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML from r on top of Default without validating.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.Arch != "" {
		c.Arch = o.Arch
		c.Model = ""
	}
	if o.Scale > 0 {
		c.Scale = o.Scale
		c.Model = ""
	}
	if o.Classes > 0 {
		c.Classes = o.Classes
	}
	if o.Pretrained {
		c.Pretrained = true
	}
	if o.InputSize > 0 {
		c.InputSize = o.InputSize
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.Iterations > 0 {
		c.Iterations = o.Iterations
	}
}

// Resolve returns the architecture tag and width scale the config selects.
func (c *Config) Resolve() (arch string, scale float64, err error) {
	if c.Model == "" {
		return c.Arch, c.Scale, nil
	}
	spec, err := squeezenext.Lookup(c.Model)
	if err != nil {
		return "", 0, err
	}
	return spec.Arch, spec.Scale, nil
}

// Validate verifies the config is runnable. Pretrained is not rejected
// here; the model factory reports it.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	arch, scale, err := c.Resolve()
	if err != nil {
		return err
	}
	blocks, err := squeezenext.BlockCounts(arch)
	if err != nil {
		return err
	}
	plan, err := squeezenext.Config{Width: scale, Blocks: blocks, Classes: c.Classes}.Plan()
	if err != nil {
		return err
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.Iterations <= 0 {
		return fmt.Errorf("iterations must be > 0 (got %d)", c.Iterations)
	}
	if c.NumWorkers < 0 {
		return fmt.Errorf("num_workers must be >= 0 (got %d)", c.NumWorkers)
	}
	if err := plan.CheckInput(c.InputShape()); err != nil {
		return fmt.Errorf("input_size %d: %w", c.InputSize, err)
	}

	return nil
}

// InputShape returns the [batch, 3, size, size] input shape.
func (c *Config) InputShape() tensor.Shape {
	return tensor.Shape{c.BatchSize, squeezenext.InputChannels, c.InputSize, c.InputSize}
}

// Options returns the model factory options the config implies.
func (c *Config) Options() []squeezenext.Option {
	opts := []squeezenext.Option{
		squeezenext.WithClasses(c.Classes),
		squeezenext.WithPretrained(c.Pretrained),
	}
	if c.Seed != 0 {
		opts = append(opts, squeezenext.WithSeed(c.Seed))
	}
	return opts
}
