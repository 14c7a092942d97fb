package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexichat/config"
)

func TestParseFlags(t *testing.T) {
	f, fs, err := parseFlags([]string{"--model", "deepseek-reasoner", "-t", "0.2", "--mode", "sequential", "--session", "alice"})
	require.NoError(t, err)
	assert.Equal(t, "deepseek-reasoner", f.model)
	assert.Equal(t, 0.2, f.temperature)
	assert.Equal(t, "sequential", f.mode)
	assert.True(t, fs.Changed("session"))
	assert.False(t, fs.Changed("config"))

	_, _, err = parseFlags([]string{"stray"})
	assert.Error(t, err)
}

func TestApplyFlags_OnlyChangedFlagsOverride(t *testing.T) {
	cfg := &config.Config{
		Client:  config.ClientConfig{Model: "from-config", Temperature: 0.9},
		History: config.HistoryConfig{Backend: config.HistoryMemory},
		Log:     config.LogConfig{Format: config.LogFormatAuto},
	}

	f, fs, err := parseFlags([]string{"--temperature", "0"})
	require.NoError(t, err)
	require.NoError(t, applyFlags(cfg, f, fs))

	assert.Equal(t, "from-config", cfg.Client.Model)
	assert.Equal(t, 0.0, cfg.Client.Temperature)
}

func TestApplyFlags_ValidatesResult(t *testing.T) {
	cfg := &config.Config{
		History: config.HistoryConfig{Backend: config.HistoryMemory},
		Log:     config.LogConfig{Format: config.LogFormatAuto},
	}
	f, fs, err := parseFlags([]string{"--temperature", "3"})
	require.NoError(t, err)
	assert.Error(t, applyFlags(cfg, f, fs))
}

func TestApplyFlags_Task(t *testing.T) {
	newConfig := func() *config.Config {
		return &config.Config{
			Client:  config.ClientConfig{Temperature: 1.0},
			History: config.HistoryConfig{Backend: config.HistoryMemory},
			Log:     config.LogConfig{Format: config.LogFormatAuto},
		}
	}

	cfg := newConfig()
	f, fs, err := parseFlags([]string{"--task", "3"})
	require.NoError(t, err)
	require.NoError(t, applyFlags(cfg, f, fs))
	assert.Equal(t, 1.3, cfg.Client.Temperature)

	cfg = newConfig()
	f, fs, err = parseFlags([]string{"--task", "creative", "--temperature", "0.4"})
	require.NoError(t, err)
	require.NoError(t, applyFlags(cfg, f, fs))
	assert.Equal(t, 0.4, cfg.Client.Temperature)

	cfg = newConfig()
	f, fs, err = parseFlags([]string{"--task", "poetry"})
	require.NoError(t, err)
	assert.Error(t, applyFlags(cfg, f, fs))
}
