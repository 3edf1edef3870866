package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/rerankd/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, zapcore.InfoLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.Output.Stdout)
	assert.False(t, cfg.Output.Stderr)
	assert.True(t, cfg.Sampling.Enabled)
	assert.Equal(t, "rerankd", cfg.Fields["service"])
}

func TestNewBatchConfig(t *testing.T) {
	cfg := NewBatchConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "console", cfg.Format)
	assert.False(t, cfg.Output.Stdout, "stdout is reserved for the reranked stream")
	assert.True(t, cfg.Output.Stderr)
	assert.False(t, cfg.Sampling.Enabled, "batch warnings must not be sampled away")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid default",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "bad format",
			mutate:  func(c *Config) { c.Format = "xml" },
			wantErr: "format must be",
		},
		{
			name: "no outputs",
			mutate: func(c *Config) {
				c.Output = OutputConfig{}
			},
			wantErr: "at least one output",
		},
		{
			name: "zero sampling tick",
			mutate: func(c *Config) {
				c.Sampling.Enabled = true
				c.Sampling.Tick = config.Duration(0)
			},
			wantErr: "sampling tick",
		},
		{
			name: "zero sampling initial",
			mutate: func(c *Config) {
				c.Sampling.Enabled = true
				c.Sampling.Tick = config.Duration(time.Second)
				c.Sampling.Initial = 0
			},
			wantErr: "sampling initial",
		},
		{
			name:    "negative caller skip",
			mutate:  func(c *Config) { c.Caller = CallerConfig{Enabled: true, Skip: -1} },
			wantErr: "caller skip",
		},
		{
			name:    "empty field key",
			mutate:  func(c *Config) { c.Fields = map[string]string{"": "x"} },
			wantErr: "field key",
		},
		{
			name:    "empty field value",
			mutate:  func(c *Config) { c.Fields = map[string]string{"service": ""} },
			wantErr: "empty value",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
