package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEnv builds Options reading from a fixed environment.
func fakeEnv(env map[string]string) Options {
	return Options{
		LookupEnv: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
		Environ: func() []string {
			var out []string
			for k, v := range env {
				out = append(out, k+"="+v)
			}
			return out
		},
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	opts := fakeEnv(nil)
	opts.Path = writeFile(t, dir, "stepwise.yaml", `
base_url: http://localhost:3000
parallelism: 4
timeouts:
  step_ms: 5000
vars:
  page_size: 20
  admin:
    user: root
report:
  json_path: out/report.json
`)
	opts.EnvFile = filepath.Join(dir, "missing.env")

	_, err := Load(opts)
	require.Error(t, err, "an explicitly named env file must exist")

	opts.EnvFile = writeFile(t, dir, ".env", "")
	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.BaseURL)
	assert.Equal(t, 4, cfg.Parallelism)
	assert.Equal(t, 5000, cfg.Timeouts.StepMs)
	assert.Equal(t, 300000, cfg.Timeouts.RunMs, "unset fields keep defaults")
	assert.Equal(t, 1, cfg.Retry.MaxAttempts)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 20, cfg.Vars["page_size"])
	assert.Equal(t, map[string]any{"user": "root"}, cfg.Vars["admin"])
	assert.Equal(t, "out/report.json", cfg.Report.JSONPath)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	opts := fakeEnv(nil)
	opts.Path = writeFile(t, t.TempDir(), "stepwise.yaml", "base_url: http://x\nparalelism: 2\n")

	_, err := Load(opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paralelism")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	opts := fakeEnv(nil)
	opts.Path = filepath.Join(t.TempDir(), "nope.yaml")

	_, err := Load(opts)
	assert.ErrorContains(t, err, "failed to read config")
}

func TestLoad_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	opts := fakeEnv(map[string]string{EnvBaseURL: "http://localhost:3000"})
	opts.Path = writeFile(t, dir, "stepwise.yaml", "")
	opts.EnvFile = writeFile(t, dir, ".env", "")

	cfg, err := Load(opts)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Parallelism)
}

func TestLoad_EnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	opts := fakeEnv(map[string]string{
		EnvParallelism:               "8",
		EnvHistoryDB:                 "/tmp/h.db",
		"STEPWISE_VAR_ADMIN_PASSWORD": "from-process",
		"UNRELATED":                  "ignored",
	})
	opts.Path = writeFile(t, dir, "stepwise.yaml", "base_url: http://file\nparallelism: 2\n")
	opts.EnvFile = writeFile(t, dir, ".env", `
STEPWISE_BASE_URL=http://dotenv
STEPWISE_PARALLELISM=3
STEPWISE_VAR_ADMIN_PASSWORD=from-dotenv
STEPWISE_VAR_TENANT=acme
STEPWISE_BROWSER_URL=ws://chrome:9222
`)

	cfg, err := Load(opts)
	require.NoError(t, err)

	assert.Equal(t, "http://dotenv", cfg.BaseURL, ".env beats the file")
	assert.Equal(t, 8, cfg.Parallelism, "process beats .env")
	assert.Equal(t, "/tmp/h.db", cfg.History.DBPath)
	assert.Equal(t, "ws://chrome:9222", cfg.Browser.RemoteURL)
	assert.Equal(t, "from-process", cfg.Vars["admin_password"])
	assert.Equal(t, "acme", cfg.Vars["tenant"])
}

func TestLoad_BadParallelismEnv(t *testing.T) {
	dir := t.TempDir()
	opts := fakeEnv(map[string]string{EnvBaseURL: "http://x", EnvParallelism: "many"})
	opts.Path = writeFile(t, dir, "stepwise.yaml", "")
	opts.EnvFile = writeFile(t, dir, ".env", "")

	_, err := Load(opts)
	assert.ErrorContains(t, err, EnvParallelism)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing base url", func(c *Config) { c.BaseURL = "" }, "base_url is required"},
		{"bad scheme", func(c *Config) { c.BaseURL = "ftp://x" }, "must be an http(s) URL"},
		{"zero parallelism", func(c *Config) { c.Parallelism = 0 }, "parallelism must be >= 1"},
		{"zero step timeout", func(c *Config) { c.Timeouts.StepMs = 0 }, "timeouts.step_ms"},
		{"negative run budget", func(c *Config) { c.Timeouts.RunMs = -1 }, "timeouts.run_ms"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"negative backoff", func(c *Config) { c.Retry.BackoffMs = -5 }, "retry.backoff_ms"},
		{"bad window", func(c *Config) { c.Browser.WindowSize = "big" }, "window_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.BaseURL = "http://localhost:3000"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Parallelism = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url is required")
	assert.Contains(t, err.Error(), "parallelism must be >= 1")
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	cfg.Retry = Retry{MaxAttempts: 3, BackoffMs: 100}

	d := cfg.Defaults()
	assert.Equal(t, 30000, d.StepTimeoutMs)
	assert.Equal(t, 300000, d.RunTimeoutMs)
	assert.Equal(t, 3, d.Retry.MaxAttempts)
	assert.Equal(t, 100, d.Retry.BackoffMs)
}

func TestWindowDimensions(t *testing.T) {
	w, h := Browser{WindowSize: "1024x768"}.WindowDimensions()
	assert.Equal(t, 1024, w)
	assert.Equal(t, 768, h)

	w, h = Browser{}.WindowDimensions()
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestRead_SkipsValidation(t *testing.T) {
	opts := fakeEnv(nil)
	opts.Path = writeFile(t, t.TempDir(), "stepwise.yaml", "history:\n  db_path: runs.db\n")

	_, err := Load(opts)
	require.Error(t, err)

	cfg, err := Read(opts)
	require.NoError(t, err)
	assert.Equal(t, "runs.db", cfg.History.DBPath)
	assert.Error(t, cfg.Validate())

	cfg.BaseURL = "http://localhost:3000"
	assert.NoError(t, cfg.Validate())
}
