// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"fmt"
	"os"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/framegraph/pipeline"
	"github.com/gogpu/framegraph/transient"
)

// Config is the file form of the engine options.
//
//	pool:
//	  max_idle_frames: 8
//	  budget_bytes: 268435456
//	  bucketing: pow2
//	shaders:
//	  dir: ./shaders
//	  watch: true
//	  compiler: spirv
//	surface:
//	  format: BGRA8Unorm
//	  present_mode: Mailbox
//	metrics:
//	  enabled: true
type Config struct {
	Pool    PoolConfig    `yaml:"pool"`
	Shaders ShadersConfig `yaml:"shaders"`
	Surface SurfaceConfig `yaml:"surface"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// PoolConfig configures the transient pool.
type PoolConfig struct {
	// MaxIdleFrames is how long a free entry survives unused. Negative
	// disables idle eviction.
	MaxIdleFrames int `yaml:"max_idle_frames"`
	// BudgetBytes is the soft memory budget. Zero means unlimited.
	BudgetBytes uint64 `yaml:"budget_bytes"`
	// Bucketing is "exact", "pow2" or "granularity:N".
	Bucketing string `yaml:"bucketing"`
}

// ShadersConfig configures template loading and compilation.
type ShadersConfig struct {
	Dir      string `yaml:"dir,omitempty"`
	Watch    bool   `yaml:"watch"`
	Compiler string `yaml:"compiler,omitempty"`
}

// SurfaceConfig configures the presentation surface. Names are the
// gputypes String forms, matched case-insensitively.
type SurfaceConfig struct {
	Format      string `yaml:"format,omitempty"`
	PresentMode string `yaml:"present_mode"`
}

// MetricsConfig toggles the Prometheus collector.
type MetricsConfig struct {
	// Enabled registers the engine collector with the default registry.
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the configuration matching the option defaults.
func DefaultConfig() Config {
	return Config{
		Pool: PoolConfig{
			MaxIdleFrames: transient.DefaultMaxIdleFrames,
			Bucketing:     transient.BucketExact.String(),
		},
		Surface: SurfaceConfig{
			PresentMode: gputypes.PresentModeFifo.String(),
		},
	}
}

// LoadConfig reads a YAML config file. Fields missing from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig parses and validates YAML config data.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Marshal returns the YAML form of c.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks every enumerated field.
func (c *Config) Validate() error {
	_, err := c.resolve()
	return err
}

type resolvedConfig struct {
	bucket      transient.BucketPolicy
	format      gputypes.TextureFormat
	presentMode gputypes.PresentMode
	compiler    pipeline.Compiler
}

func (c *Config) resolve() (resolvedConfig, error) {
	var r resolvedConfig
	var err error
	if r.bucket, err = transient.ParseBucketPolicy(c.Pool.Bucketing); err != nil {
		return r, fmt.Errorf("config: pool.bucketing: %w", err)
	}
	if r.format, err = ParseTextureFormat(c.Surface.Format); err != nil {
		return r, fmt.Errorf("config: surface.format: %w", err)
	}
	if r.presentMode, err = ParsePresentMode(c.Surface.PresentMode); err != nil {
		return r, fmt.Errorf("config: surface.present_mode: %w", err)
	}
	if c.Shaders.Compiler != "" {
		if r.compiler, err = pipeline.LookupCompiler(c.Shaders.Compiler); err != nil {
			return r, fmt.Errorf("config: shaders.compiler: %w", err)
		}
	}
	return r, nil
}

// WithConfig applies a config. An invalid config makes NewEngine fail.
func WithConfig(cfg *Config) Option {
	return func(o *options) {
		if cfg == nil {
			return
		}
		r, err := cfg.resolve()
		if err != nil {
			o.err = err
			return
		}
		o.poolOpts = append(o.poolOpts,
			transient.WithMaxIdleFrames(cfg.Pool.MaxIdleFrames),
			transient.WithBudget(cfg.Pool.BudgetBytes),
			transient.WithBucketPolicy(r.bucket),
		)
		if cfg.Shaders.Dir != "" {
			o.shaderDir = cfg.Shaders.Dir
			o.watch = cfg.Shaders.Watch
		}
		if r.compiler != nil {
			o.compiler = r.compiler
		}
		if r.format != gputypes.TextureFormatUndefined {
			o.format = r.format
		}
		o.presentMode = r.presentMode
		if cfg.Metrics.Enabled && o.registerer == nil {
			o.registerer = prometheus.DefaultRegisterer
		}
	}
}

// lastTextureFormat is the highest TextureFormat value defined by gputypes.
const lastTextureFormat = gputypes.TextureFormatASTC12x12UnormSrgb

// ParseTextureFormat returns the format whose String form matches name,
// ignoring case. An empty name is TextureFormatUndefined.
func ParseTextureFormat(name string) (gputypes.TextureFormat, error) {
	if name == "" {
		return gputypes.TextureFormatUndefined, nil
	}
	if strings.EqualFold(name, "unknown") || strings.EqualFold(name, "undefined") {
		return gputypes.TextureFormatUndefined, fmt.Errorf("unknown texture format %q", name)
	}
	for f := gputypes.TextureFormatUndefined; f <= lastTextureFormat; f++ {
		if strings.EqualFold(f.String(), name) {
			return f, nil
		}
	}
	return gputypes.TextureFormatUndefined, fmt.Errorf("unknown texture format %q", name)
}

// ParsePresentMode returns the present mode whose String form matches name,
// ignoring case. An empty name is Fifo.
func ParsePresentMode(name string) (gputypes.PresentMode, error) {
	if name == "" {
		return gputypes.PresentModeFifo, nil
	}
	for _, m := range []gputypes.PresentMode{
		gputypes.PresentModeFifo,
		gputypes.PresentModeFifoRelaxed,
		gputypes.PresentModeImmediate,
		gputypes.PresentModeMailbox,
	} {
		if strings.EqualFold(m.String(), name) {
			return m, nil
		}
	}
	return gputypes.PresentModeUndefined, fmt.Errorf("unknown present mode %q", name)
}
