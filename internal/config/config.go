// Package config loads stepwise configuration.
//
// Sources are applied in order, later ones winning:
//
//  1. built-in defaults
//  2. stepwise.yaml (decoded strictly: unknown fields are errors)
//  3. a .env file
//  4. the process environment
//
// Command line flags are applied by the caller on top of the result.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/stepwise/internal/scenario"
)

// Default file names looked up in the working directory.
const (
	DefaultFile    = "stepwise.yaml"
	DefaultEnvFile = ".env"
)

// Environment variables read by Load.
const (
	EnvBaseURL     = "STEPWISE_BASE_URL"
	EnvParallelism = "STEPWISE_PARALLELISM"
	EnvReportJSON  = "STEPWISE_REPORT_JSON"
	EnvHistoryDB   = "STEPWISE_HISTORY_DB"
	EnvBrowserURL  = "STEPWISE_BROWSER_URL"

	// EnvVarPrefix seeds a scenario variable: STEPWISE_VAR_ADMIN_PASSWORD
	// becomes ${admin_password}.
	EnvVarPrefix = "STEPWISE_VAR_"
)

// Config is the complete configuration of one invocation. It is not
// modified after Load returns.
type Config struct {
	BaseURL     string         `yaml:"base_url"`
	Parallelism int            `yaml:"parallelism"`
	Preflight   bool           `yaml:"preflight"`
	Timeouts    Timeouts       `yaml:"timeouts"`
	Retry       Retry          `yaml:"retry"`
	Vars        map[string]any `yaml:"vars"`
	Report      Report         `yaml:"report"`
	Browser     Browser        `yaml:"browser"`
	History     History        `yaml:"history"`
}

type Timeouts struct {
	StepMs int `yaml:"step_ms"`
	RunMs  int `yaml:"run_ms"`
}

type Retry struct {
	MaxAttempts int `yaml:"max_attempts"`
	BackoffMs   int `yaml:"backoff_ms"`
}

// Report names the files written after a run. Empty paths are skipped.
type Report struct {
	JSONPath    string `yaml:"json_path"`
	JUnitPath   string `yaml:"junit_path"`
	MetricsPath string `yaml:"metrics_path"`
}

type Browser struct {
	Headless       bool     `yaml:"headless"`
	RemoteURL      string   `yaml:"remote_url"`
	ExecPath       string   `yaml:"exec_path"`
	WindowSize     string   `yaml:"window_size"` // WIDTHxHEIGHT
	Args           []string `yaml:"args"`
	StartTimeoutMs int      `yaml:"start_timeout_ms"`
}

// History configures the run history database. An empty path disables it.
type History struct {
	DBPath string `yaml:"db_path"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Parallelism: 1,
		Timeouts:    Timeouts{StepMs: 30000, RunMs: 300000},
		Retry:       Retry{MaxAttempts: 1},
		Vars:        map[string]any{},
		Browser:     Browser{Headless: true, WindowSize: "1280x800", StartTimeoutMs: 30000},
		History:     History{DBPath: ".stepwise/history.db"},
	}
}

// Options controls where Load reads from.
type Options struct {
	// Path of the YAML file. Empty means DefaultFile when it exists.
	Path string

	// EnvFile is the dotenv file. Empty means DefaultEnvFile when it exists.
	EnvFile string

	// LookupEnv reads the process environment. Nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// Environ lists the process environment as KEY=value. Nil means os.Environ.
	Environ func() []string
}

// Load builds the configuration from every source and validates it.
func Load(opts Options) (*Config, error) {
	cfg, err := Read(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without the final Validate, for callers that overlay further
// settings (command-line flags) before validating.
func Read(opts Options) (*Config, error) {
	cfg := Default()

	path, required := opts.Path, true
	if path == "" {
		path, required = DefaultFile, false
	}
	if err := cfg.mergeFile(path, required); err != nil {
		return nil, err
	}

	env, err := readEnv(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile decodes the YAML file over the current values.
func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if c.Vars == nil {
		c.Vars = map[string]any{}
	}
	return nil
}

// readEnv merges the dotenv file with the process environment. Process
// values win.
func readEnv(opts Options) (map[string]string, error) {
	envFile, required := opts.EnvFile, true
	if envFile == "" {
		envFile, required = DefaultEnvFile, false
	}
	env, err := godotenv.Read(envFile)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !required:
		env = map[string]string{}
	case err != nil:
		return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ
	}
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, kv := range environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, "STEPWISE_") {
			continue
		}
		if v, ok := lookup(key); ok {
			env[key] = v
		}
	}
	return env, nil
}

func (c *Config) applyEnv(env map[string]string) error {
	if v, ok := env[EnvBaseURL]; ok {
		c.BaseURL = v
	}
	if v, ok := env[EnvParallelism]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvParallelism, err)
		}
		c.Parallelism = n
	}
	if v, ok := env[EnvReportJSON]; ok {
		c.Report.JSONPath = v
	}
	if v, ok := env[EnvHistoryDB]; ok {
		c.History.DBPath = v
	}
	if v, ok := env[EnvBrowserURL]; ok {
		c.Browser.RemoteURL = v
	}
	for key, v := range env {
		if name, ok := strings.CutPrefix(key, EnvVarPrefix); ok && name != "" {
			c.Vars[strings.ToLower(name)] = v
		}
	}
	return nil
}

var windowSizePattern = regexp.MustCompile(`^(\d+)x(\d+)$`)

// Validate checks every field. A Config that fails validation never
// reaches the runner.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required"))
	} else if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("base_url %q must be an http(s) URL", c.BaseURL))
	}
	if c.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("parallelism must be >= 1, got %d", c.Parallelism))
	}
	if c.Timeouts.StepMs < 1 {
		errs = append(errs, fmt.Errorf("timeouts.step_ms must be >= 1, got %d", c.Timeouts.StepMs))
	}
	if c.Timeouts.RunMs < 0 {
		errs = append(errs, fmt.Errorf("timeouts.run_ms must be >= 0, got %d", c.Timeouts.RunMs))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.BackoffMs < 0 {
		errs = append(errs, fmt.Errorf("retry.backoff_ms must be >= 0, got %d", c.Retry.BackoffMs))
	}
	if c.Browser.WindowSize != "" && !windowSizePattern.MatchString(c.Browser.WindowSize) {
		errs = append(errs, fmt.Errorf("browser.window_size %q must look like 1280x800", c.Browser.WindowSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Defaults converts timeouts and retry settings for the runner.
func (c *Config) Defaults() scenario.Defaults {
	return scenario.Defaults{
		StepTimeoutMs: c.Timeouts.StepMs,
		RunTimeoutMs:  c.Timeouts.RunMs,
		Retry: scenario.RetryPolicy{
			MaxAttempts: c.Retry.MaxAttempts,
			BackoffMs:   c.Retry.BackoffMs,
		},
	}
}

// WindowDimensions parses Browser.WindowSize. Zero values mean unset.
func (b Browser) WindowDimensions() (width, height int) {
	m := windowSizePattern.FindStringSubmatch(b.WindowSize)
	if m == nil {
		return 0, 0
	}
	width, _ = strconv.Atoi(m[1])
	height, _ = strconv.Atoi(m[2])
	return width, height
}

// StartTimeout is the browser start-up bound.
func (b Browser) StartTimeout() time.Duration {
	return time.Duration(b.StartTimeoutMs) * time.Millisecond
}
