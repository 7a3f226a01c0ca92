package engine

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"
)

// Config is the YAML run configuration. Durations are explicit *_ms fields
// so tests can run with near-zero waits.
type Config struct {
	Workspace    string `yaml:"workspace"`
	ExperimentID string `yaml:"experiment_id"`

	Sandbox struct {
		Binary         string `yaml:"binary"`
		BaseImage      string `yaml:"base_image"`
		Memory         string `yaml:"memory"`
		CPUs           string `yaml:"cpus"`
		ExecTimeoutMS  int    `yaml:"exec_timeout_ms"`
		BuildTimeoutMS int    `yaml:"build_timeout_ms"`
	} `yaml:"sandbox"`

	Retry struct {
		// MaxRepairs bounds repair attempts per phase; the first try plus
		// MaxRepairs repairs.
		MaxRepairs int           `yaml:"max_repairs"`
		Backoff    BackoffConfig `yaml:"backoff"`
	} `yaml:"retry"`

	Governor struct {
		MaxIterations  int `yaml:"max_iterations"`
		PollIntervalMS int `yaml:"poll_interval_ms"`
	} `yaml:"governor"`

	LLM struct {
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"llm"`

	Debug bool `yaml:"debug"`
}

// DefaultConfig mirrors the operational defaults of the hosted runner.
func DefaultConfig() Config {
	var cfg Config
	cfg.Sandbox.Binary = "docker"
	cfg.Sandbox.BaseImage = "autoresearchlab-sandbox"
	cfg.Sandbox.Memory = "2g"
	cfg.Sandbox.CPUs = "1"
	cfg.Sandbox.ExecTimeoutMS = 300_000
	cfg.Sandbox.BuildTimeoutMS = 600_000
	cfg.Retry.MaxRepairs = 3
	cfg.Retry.Backoff = defaultBackoffConfig()
	cfg.Governor.MaxIterations = 50
	cfg.Governor.PollIntervalMS = 5_000
	return cfg
}

// LoadConfig reads a YAML config file over the defaults. Unknown fields are
// rejected so typos surface instead of silently using a default.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace is required")
	}
	if c.Retry.MaxRepairs < 0 {
		return fmt.Errorf("retry.max_repairs must be >= 0")
	}
	if c.Governor.MaxIterations < 0 {
		return fmt.Errorf("governor.max_iterations must be >= 0")
	}
	if c.ExperimentID == "" {
		c.ExperimentID = ulid.Make().String()
	}
	return nil
}

func (c *Config) execTimeout() time.Duration {
	if c.Sandbox.ExecTimeoutMS <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Sandbox.ExecTimeoutMS) * time.Millisecond
}

func (c *Config) buildTimeout() time.Duration {
	if c.Sandbox.BuildTimeoutMS <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.Sandbox.BuildTimeoutMS) * time.Millisecond
}

func (c *Config) governorPoll() time.Duration {
	if c.Governor.PollIntervalMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Governor.PollIntervalMS) * time.Millisecond
}
