// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/framegraph/transient"
)

const sampleConfig = `
pool:
  max_idle_frames: 3
  budget_bytes: 1048576
  bucketing: pow2
shaders:
  compiler: wgsl
surface:
  format: rgba16float
  present_mode: mailbox
metrics:
  enabled: false
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Pool.MaxIdleFrames)
	assert.Equal(t, uint64(1<<20), cfg.Pool.BudgetBytes)
	assert.Equal(t, "pow2", cfg.Pool.Bucketing)
	assert.Equal(t, "wgsl", cfg.Shaders.Compiler)

	r, err := cfg.resolve()
	require.NoError(t, err)
	assert.Equal(t, transient.BucketPowerOfTwo, r.bucket)
	assert.Equal(t, gputypes.TextureFormatRGBA16Float, r.format)
	assert.Equal(t, gputypes.PresentModeMailbox, r.presentMode)
	assert.Equal(t, "wgsl", r.compiler.Name())
}

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("pool:\n  budget_bytes: 4096\n"))
	require.NoError(t, err)
	assert.Equal(t, transient.DefaultMaxIdleFrames, cfg.Pool.MaxIdleFrames)
	assert.Equal(t, "exact", cfg.Pool.Bucketing)
	assert.Equal(t, "Fifo", cfg.Surface.PresentMode)

	empty, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *empty)
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bucketing":    "pool:\n  bucketing: fibonacci\n",
		"granularity":  "pool:\n  bucketing: granularity:abc\n",
		"format":       "surface:\n  format: RGB565\n",
		"unknown":      "surface:\n  format: unknown\n",
		"present mode": "surface:\n  present_mode: vsync\n",
		"compiler":     "shaders:\n  compiler: dxc\n",
		"syntax":       "pool: [",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framegraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mailbox", cfg.Surface.PresentMode)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfigMarshalRoundTrip(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)
	data, err := cfg.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_idle_frames: 3")

	again, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestWithConfigConfiguresEngine(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	e, err := NewEngineWithDevice(&noop.Device{}, &noop.Queue{}, &noop.Surface{}, WithSize(16, 16), WithConfig(cfg))
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, gputypes.TextureFormatRGBA16Float, e.Format())
	assert.Equal(t, "wgsl", e.Pipelines().Compiler().Name())
	assert.Equal(t, uint64(1<<20), e.Pool().Stats().Budget)
	assert.Equal(t, gputypes.PresentModeMailbox, e.opts.presentMode)
}

func TestWithConfigInvalidFailsEngine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pool.Bucketing = "sometimes"
	_, err := NewEngineWithDevice(&noop.Device{}, &noop.Queue{}, nil, WithConfig(&cfg))
	assert.ErrorContains(t, err, "pool.bucketing")
}

func TestParseTextureFormat(t *testing.T) {
	f, err := ParseTextureFormat("BGRA8UnormSrgb")
	require.NoError(t, err)
	assert.Equal(t, gputypes.TextureFormatBGRA8UnormSrgb, f)

	f, err = ParseTextureFormat("")
	require.NoError(t, err)
	assert.Equal(t, gputypes.TextureFormatUndefined, f)
}
