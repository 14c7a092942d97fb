// Package config provides configuration management for the application.
//
// Values are resolved in this order, later steps winning:
//  1. built-in defaults
//  2. an optional config.yaml, with ${VAR} and ${VAR:-default} expansion
//  3. environment variables (a .env file in the working directory is
//     loaded first but never overrides variables that are already set)
//
// A task preset (client.task or LEXICHAT_TASK) then replaces the temperature.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"lexichat/internal/httpclient"
)

// DefaultConfigPath is read when Load is given no explicit path.
const DefaultConfigPath = "config.yaml"

// History backends.
const (
	HistoryMemory = "memory"
	HistorySQLite = "sqlite"
	HistoryRedis  = "redis"
)

// Log formats.
const (
	LogFormatAuto   = "auto"
	LogFormatPretty = "pretty"
	LogFormatJSON   = "json"
)

// Config holds the application configuration
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	HTTP    HTTPConfig    `yaml:"http"`
	History HistoryConfig `yaml:"history"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// ClientConfig holds the completion endpoint and request defaults
type ClientConfig struct {
	APIKey          string  `yaml:"api_key"`
	Endpoint        string  `yaml:"endpoint"`
	BalanceEndpoint string  `yaml:"balance_endpoint"`
	Model           string  `yaml:"model"`
	Temperature     float64 `yaml:"temperature"`
	// Task names a temperature preset. When set it replaces Temperature.
	Task         string `yaml:"task"`
	SystemPrompt string `yaml:"system_prompt"`
}

// Task presets.
const (
	TaskCoding       = "coding"
	TaskDataCleaning = "data-cleaning"
	TaskConversation = "conversation"
	TaskTranslation  = "translation"
	TaskCreative     = "creative"
)

var taskTemperatures = map[string]float64{
	TaskCoding:       0.0,
	TaskDataCleaning: 1.0,
	TaskConversation: 1.3,
	TaskTranslation:  1.3,
	TaskCreative:     1.5,
}

// Menu numbers accepted in place of a task name.
var taskNumbers = map[string]string{
	"1": TaskCoding,
	"2": TaskDataCleaning,
	"3": TaskConversation,
	"4": TaskCreative,
}

// TaskTemperature returns the sampling temperature for a task preset, given
// by name or by its menu number (1-4).
func TaskTemperature(task string) (float64, error) {
	key := strings.ToLower(strings.TrimSpace(task))
	if name, ok := taskNumbers[key]; ok {
		key = name
	}
	t, ok := taskTemperatures[key]
	if !ok {
		return 0, fmt.Errorf("unknown task %q: must be one of coding, data-cleaning, conversation, translation, creative or 1-4", task)
	}
	return t, nil
}

// ApplyTask resolves Client.Task into Client.Temperature. It is a no-op when
// no task is set.
func (c *Config) ApplyTask() error {
	if c.Client.Task == "" {
		return nil
	}
	t, err := TaskTemperature(c.Client.Task)
	if err != nil {
		return err
	}
	c.Client.Temperature = t
	return nil
}

// HTTPConfig holds per-phase transport timeouts in seconds.
// A ReadTimeout of 0 leaves reads unbounded, which long streams need.
type HTTPConfig struct {
	ConnectTimeout int `yaml:"connect_timeout"`
	ReadTimeout    int `yaml:"read_timeout"`
	WriteTimeout   int `yaml:"write_timeout"`
	IdleTimeout    int `yaml:"idle_timeout"`
	BalanceTimeout int `yaml:"balance_timeout"`
}

// HistoryConfig selects where conversation turns are kept
type HistoryConfig struct {
	Backend        string `yaml:"backend"`
	SQLitePath     string `yaml:"sqlite_path"`
	RedisURL       string `yaml:"redis_url"`
	RedisKeyPrefix string `yaml:"redis_key_prefix"`
	// RedisTTL expires idle sessions after this many seconds; 0 keeps them forever.
	RedisTTL  int    `yaml:"redis_ttl"`
	SessionID string `yaml:"session_id"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadResult is the outcome of Load.
type LoadResult struct {
	Config *Config
	// Path is the YAML file that was read, or "" when none was found.
	Path string
}

// Load resolves the configuration. An explicit path must exist; the default
// path is optional. The API key is not required here; the client
// constructor rejects a missing one.
func Load(path string) (*LoadResult, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := buildDefaultConfig()
	result := &LoadResult{Config: cfg}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(expandString(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		result.Path = path
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.ApplyTask(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

func buildDefaultConfig() *Config {
	t := httpclient.DefaultTimeouts()
	return &Config{
		Client: ClientConfig{
			Endpoint:        "https://api.deepseek.com/chat/completions",
			BalanceEndpoint: "https://api.deepseek.com/user/balance",
			Model:           "deepseek-chat",
			Temperature:     1.0,
		},
		HTTP: HTTPConfig{
			ConnectTimeout: int(t.Connect / time.Second),
			ReadTimeout:    int(t.Read / time.Second),
			WriteTimeout:   int(t.Write / time.Second),
			IdleTimeout:    int(t.Idle / time.Second),
			BalanceTimeout: 30,
		},
		History: HistoryConfig{
			Backend:        HistoryMemory,
			SQLitePath:     "data/lexichat.db",
			RedisURL:       "redis://localhost:6379",
			RedisKeyPrefix: "lexichat",
		},
		Metrics: MetricsConfig{
			Address: ":9464",
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatAuto,
		},
	}
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch c.History.Backend {
	case HistoryMemory, HistorySQLite, HistoryRedis:
	default:
		return fmt.Errorf("invalid history backend %q: must be one of memory, sqlite, redis", c.History.Backend)
	}
	switch c.Log.Format {
	case LogFormatAuto, LogFormatPretty, LogFormatJSON:
	default:
		return fmt.Errorf("invalid log format %q: must be one of auto, pretty, json", c.Log.Format)
	}
	if c.Client.Temperature < 0 || c.Client.Temperature > 2 {
		return fmt.Errorf("invalid temperature %g: must be within [0, 2]", c.Client.Temperature)
	}
	timeouts := map[string]int{
		"connect_timeout": c.HTTP.ConnectTimeout,
		"read_timeout":    c.HTTP.ReadTimeout,
		"write_timeout":   c.HTTP.WriteTimeout,
		"idle_timeout":    c.HTTP.IdleTimeout,
		"balance_timeout": c.HTTP.BalanceTimeout,
		"redis_ttl":       c.History.RedisTTL,
	}
	for name, v := range timeouts {
		if v < 0 {
			return fmt.Errorf("invalid %s %d: must not be negative", name, v)
		}
	}
	return nil
}

// Timeouts converts the HTTP section into the transport policy.
func (h HTTPConfig) Timeouts() httpclient.Timeouts {
	return httpclient.Timeouts{
		Connect: seconds(h.ConnectTimeout),
		Read:    seconds(h.ReadTimeout),
		Write:   seconds(h.WriteTimeout),
		Idle:    seconds(h.IdleTimeout),
	}
}

// BalanceTimeoutDuration returns BalanceTimeout as a duration.
func (h HTTPConfig) BalanceTimeoutDuration() time.Duration {
	return seconds(h.BalanceTimeout)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandString replaces ${VAR} and ${VAR:-default}. An unset or empty
// variable takes the default when one is given and is otherwise left as is.
func expandString(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := envPattern.FindStringSubmatch(match)
		if v := os.Getenv(m[1]); v != "" {
			return v
		}
		if m[2] != "" {
			return m[3]
		}
		return match
	})
}

// applyEnvOverrides copies set environment variables over cfg.
func applyEnvOverrides(cfg *Config) error {
	envString("DEEPSEEK_API_KEY", &cfg.Client.APIKey)
	envString("DEEPSEEK_ENDPOINT", &cfg.Client.Endpoint)
	envString("DEEPSEEK_BALANCE_ENDPOINT", &cfg.Client.BalanceEndpoint)
	envString("LEXICHAT_MODEL", &cfg.Client.Model)
	envString("LEXICHAT_TASK", &cfg.Client.Task)
	envString("LEXICHAT_SYSTEM_PROMPT", &cfg.Client.SystemPrompt)
	envString("HISTORY_BACKEND", &cfg.History.Backend)
	envString("HISTORY_SQLITE_PATH", &cfg.History.SQLitePath)
	envString("REDIS_URL", &cfg.History.RedisURL)
	envString("HISTORY_REDIS_KEY_PREFIX", &cfg.History.RedisKeyPrefix)
	envString("LEXICHAT_SESSION", &cfg.History.SessionID)
	envString("METRICS_ADDRESS", &cfg.Metrics.Address)
	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("LOG_FORMAT", &cfg.Log.Format)

	return errors.Join(
		envFloat("LEXICHAT_TEMPERATURE", &cfg.Client.Temperature),
		envInt("HTTP_CONNECT_TIMEOUT", &cfg.HTTP.ConnectTimeout),
		envInt("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout),
		envInt("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout),
		envInt("HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout),
		envInt("HTTP_BALANCE_TIMEOUT", &cfg.HTTP.BalanceTimeout),
		envInt("HISTORY_REDIS_TTL", &cfg.History.RedisTTL),
		envBool("METRICS_ENABLED", &cfg.Metrics.Enabled),
	)
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = f
	return nil
}

func envBool(key string, dst *bool) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = b
	return nil
}
