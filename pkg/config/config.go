// Package config loads and validates the engine's run configuration: a
// single typed YAML record covering dataset selection, execution limits,
// model backend, docker behavior, and the challenge environment. It follows
// the same defaults-then-file-then-env-override shape the rest of this
// codebase uses for configuration, with unknown fields rejected at load
// time.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DatasetConfig selects which challenges are attempted and in what range.
type DatasetConfig struct {
	Name           string `yaml:"name"`
	ChallengesPath string `yaml:"challenges_path"`
	WriteupPath    string `yaml:"writeup_path,omitempty"`
	Start          int    `yaml:"start,omitempty"`
	End            int    `yaml:"end,omitempty"`
}

// ExecutionConfig bounds how many attempts run, how often, and for how long.
type ExecutionConfig struct {
	TryTimes                int     `yaml:"try_times"`
	StartTry                int     `yaml:"start_try"`
	ParallelTasks           int     `yaml:"parallel_tasks"`
	DelayBetweenSubmissions float64 `yaml:"delay_between_submissions"`
	MaxWaitTime             float64 `yaml:"max_wait_time"`
	PerInstanceStepLimit    int     `yaml:"per_instance_step_limit"`
	ActionTimeout           float64 `yaml:"action_timeout"`
	PerTaskCleanup          bool    `yaml:"per_task_cleanup"`
	AllowDirtyRepo          bool    `yaml:"allow_dirty_repo"`
}

// ModelConfig describes the language-model backend an attempt's solver
// child is configured to talk to.
type ModelConfig struct {
	Provider             string  `yaml:"provider"`
	Name                 string  `yaml:"name"`
	HostURL              string  `yaml:"host_url,omitempty"`
	Temperature          float64 `yaml:"temperature"`
	TopP                 float64 `yaml:"top_p"`
	PerInstanceCostLimit float64 `yaml:"per_instance_cost_limit,omitempty"`
	TotalCostLimit       float64 `yaml:"total_cost_limit,omitempty"`
	MaxRetries           int     `yaml:"max_retries"`
	SuppressDuplicates   bool    `yaml:"suppress_duplicates"`
}

// DockerConfig controls the port range and cleanup concurrency.
type DockerConfig struct {
	PortRangeStart    int  `yaml:"port_range_start"`
	PortRangeEnd      int  `yaml:"port_range_end"`
	ContainerPoolSize int  `yaml:"container_cleanup_pool_size"`
	NetworkPoolSize   int  `yaml:"network_cleanup_pool_size"`
	DynamicPorts      bool `yaml:"enable_dynamic_ports"`
}

// EnvironmentConfig holds the solver sandbox image and startup behavior.
type EnvironmentConfig struct {
	ImageName      string  `yaml:"image_name"`
	StartupDelay   float64 `yaml:"startup_delay"`
	TrajectoryRoot string  `yaml:"trajectory_root"`
}

// SWEAgentConfig names the solver command invoked per attempt.
type SWEAgentConfig struct {
	Command    string `yaml:"command"`
	ConfigFile string `yaml:"config_file,omitempty"`
}

// ReportingConfig controls logging/summary output format and location.
type ReportingConfig struct {
	LogsDir string `yaml:"logs_dir"`
	Format  string `yaml:"format"`
	Level   string `yaml:"level"`
}

// EmergencyConfig controls cancellation behavior.
type EmergencyConfig struct {
	StopFile             string `yaml:"stop_file,omitempty"`
	EnableSignalHandlers bool   `yaml:"enable_signal_handlers"`
}

// MetricsConfig controls the engine's own Prometheus scrape endpoint.
// Empty ListenAddr disables it; the engine still accumulates the
// collectors, it just never serves them.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr,omitempty"`
}

// Config is the complete, typed run configuration loaded from YAML.
type Config struct {
	Dataset         DatasetConfig     `yaml:"dataset"`
	Execution       ExecutionConfig   `yaml:"execution"`
	Model           ModelConfig       `yaml:"model"`
	Docker          DockerConfig      `yaml:"docker"`
	Environment     EnvironmentConfig `yaml:"environment"`
	SWEAgent        SWEAgentConfig    `yaml:"swe_agent"`
	Reporting       ReportingConfig   `yaml:"reporting"`
	Emergency       EmergencyConfig   `yaml:"emergency"`
	Metrics         MetricsConfig     `yaml:"metrics"`
	BenchmarkTotals map[string]int    `yaml:"benchmark_totals,omitempty"`
}

// DefaultConfig returns a Config populated with the engine's defaults.
func DefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Name:           "ctf_challenges",
			ChallengesPath: "challenges.json",
			Start:          1,
		},
		Execution: ExecutionConfig{
			TryTimes:                1,
			StartTry:                1,
			ParallelTasks:           4,
			DelayBetweenSubmissions: 2.0,
			MaxWaitTime:             3600,
			PerInstanceStepLimit:    40,
			ActionTimeout:           60,
			PerTaskCleanup:          true,
		},
		Model: ModelConfig{
			Provider:    "openai",
			Name:        "gpt-4o",
			Temperature: 0.0,
			TopP:        0.95,
			MaxRetries:  10,
		},
		Docker: DockerConfig{
			PortRangeStart:    10000,
			PortRangeEnd:      20000,
			ContainerPoolSize: 10,
			NetworkPoolSize:   5,
			DynamicPorts:      true,
		},
		Environment: EnvironmentConfig{
			ImageName:      "sweagent/swe-agent-ctf:latest",
			StartupDelay:   1.0,
			TrajectoryRoot: "trajectories",
		},
		SWEAgent: SWEAgentConfig{
			Command: "run_ctf.py",
		},
		Reporting: ReportingConfig{
			LogsDir: "logs",
			Format:  "text",
			Level:   "info",
		},
		Emergency: EmergencyConfig{
			EnableSignalHandlers: true,
		},
		BenchmarkTotals: map[string]int{
			"intercode_ctf": 91,
			"cybench":       40,
			"nyu_ctf":       192,
		},
	}
}

// Load reads a YAML configuration file, applying environment-variable
// interpolation before unmarshaling on top of the defaults. Unknown fields
// are rejected.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if override := os.Getenv("OPENAI_API_BASE_URL"); override != "" && cfg.Model.HostURL == "" {
		cfg.Model.HostURL = override
	}

	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// Validate checks the configuration against the invariants the engine
// relies on (1 <= start_try <= try_times, parallel_tasks >= 1) and that the
// credentials required by the selected model backend are present.
func (c *Config) Validate() error {
	if c.Dataset.ChallengesPath == "" {
		return fmt.Errorf("dataset.challenges_path is required")
	}
	if c.Execution.StartTry < 1 {
		return fmt.Errorf("execution.start_try must be >= 1")
	}
	if c.Execution.TryTimes < c.Execution.StartTry {
		return fmt.Errorf("execution.try_times (%d) must be >= start_try (%d)", c.Execution.TryTimes, c.Execution.StartTry)
	}
	if c.Execution.ParallelTasks < 1 {
		return fmt.Errorf("execution.parallel_tasks must be >= 1")
	}
	if c.Docker.PortRangeStart <= 0 || c.Docker.PortRangeEnd <= c.Docker.PortRangeStart {
		return fmt.Errorf("docker.port_range_start/end must describe a non-empty range")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	return c.validateCredentials()
}

// validateCredentials checks that the environment carries the credential
// set required by the configured model backend.
func (c *Config) validateCredentials() error {
	switch c.Model.Provider {
	case "bedrock", "bedrock-anthropic":
		for _, name := range []string{"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN"} {
			if os.Getenv(name) == "" {
				return fmt.Errorf("model.provider=%s requires %s to be set", c.Model.Provider, name)
			}
		}
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("model.provider=openai requires OPENAI_API_KEY to be set")
		}
	case "anthropic":
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			return fmt.Errorf("model.provider=anthropic requires ANTHROPIC_API_KEY to be set")
		}
	case "ollama", "together", "vllm", "replay", "human", "instant_empty_submit":
		// Ollama/Together/vLLM use host_url without a bearer credential; the
		// local-only stubs need nothing at all.
	}
	return nil
}

// BenchmarkTotal returns the configured denominator for a dataset name, and
// whether one is known. Unknown dataset names have no fixed denominator;
// the run report then computes its success rate against the attempts run.
func (c *Config) BenchmarkTotal(datasetName string) (int, bool) {
	total, ok := c.BenchmarkTotals[datasetName]
	return total, ok
}
