package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ostafen/sigcrawl/internal/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func serveFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.String("host", config.DefaultHost, "")
	fs.Int("port", config.DefaultPort, "")
	fs.Int("threads", config.DefaultThreads, "")
	fs.String("quarantine", config.DefaultQuarantineDir, "")
	fs.Bool("logging", false, "")
	fs.String("log-file", config.DefaultLogFile, "")
	fs.String("log-level", config.DefaultLogLevel, "")
	fs.Int("backlog", config.DefaultBacklog, "")
	fs.Int("queue-size", config.DefaultQueueSize, "")
	fs.String("metrics-addr", "", "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
	require.Equal(t, "127.0.0.1:8888", cfg.Addr())
	require.Empty(t, cfg.LogPath())
}

func TestLoadUnchangedFlagsKeepDefaults(t *testing.T) {
	fs := serveFlags()
	require.NoError(t, fs.Parse(nil))

	cfg, err := config.Load("", fs)
	require.NoError(t, err)
	require.Equal(t, config.Default(), cfg)
}

func TestLoadFlags(t *testing.T) {
	fs := serveFlags()
	require.NoError(t, fs.Parse([]string{
		"--host", "0.0.0.0",
		"--port", "9999",
		"--threads", "8",
		"--quarantine", "/var/quarantine",
		"--logging",
		"--log-level", "DEBUG",
		"--queue-size", "0",
	}))

	cfg, err := config.Load("", fs)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.Host)
	require.Equal(t, 9999, cfg.Port)
	require.Equal(t, 8, cfg.Threads)
	require.Equal(t, "/var/quarantine", cfg.QuarantineDir)
	require.True(t, cfg.Logging)
	require.Equal(t, "server.log", cfg.LogPath())
	require.Equal(t, "DEBUG", cfg.LogLevel)
	require.Equal(t, 0, cfg.QueueSize)
	require.Equal(t, config.DefaultBacklog, cfg.Backlog)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("SIGCRAWL_PORT", "7000")
	t.Setenv("SIGCRAWL_THREADS", "2")
	t.Setenv("SIGCRAWL_QUEUE_SIZE", "16")

	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Port)
	require.Equal(t, 2, cfg.Threads)
	require.Equal(t, 16, cfg.QueueSize)
}

func TestLoadFlagOverridesEnv(t *testing.T) {
	t.Setenv("SIGCRAWL_THREADS", "2")

	fs := serveFlags()
	require.NoError(t, fs.Parse([]string{"--threads", "6"}))

	cfg, err := config.Load("", fs)
	require.NoError(t, err)
	require.Equal(t, 6, cfg.Threads)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigcrawl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host: 10.0.0.1
port: 8000
threads: 3
quarantine: /srv/quarantine
backlog: 32
metrics_addr: 127.0.0.1:9090
`), 0644))

	t.Setenv("SIGCRAWL_PORT", "8001")

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1", cfg.Host)
	require.Equal(t, 8001, cfg.Port)
	require.Equal(t, 3, cfg.Threads)
	require.Equal(t, "/srv/quarantine", cfg.QuarantineDir)
	require.Equal(t, 32, cfg.Backlog)
	require.Equal(t, "127.0.0.1:9090", cfg.MetricsAddr)
	require.Equal(t, config.DefaultQueueSize, cfg.QueueSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, config.Validate(config.Default()))

	tests := []struct {
		name   string
		mutate func(*config.ServerConfig)
		tag    string
	}{
		{"zero threads", func(c *config.ServerConfig) { c.Threads = 0 }, "gte"},
		{"port too large", func(c *config.ServerConfig) { c.Port = 70000 }, "lte"},
		{"negative port", func(c *config.ServerConfig) { c.Port = -1 }, "gte"},
		{"zero backlog", func(c *config.ServerConfig) { c.Backlog = 0 }, "gte"},
		{"negative queue", func(c *config.ServerConfig) { c.QueueSize = -1 }, "gte"},
		{"bad log level", func(c *config.ServerConfig) { c.LogLevel = "TRACE" }, "oneof"},
		{"no quarantine", func(c *config.ServerConfig) { c.QuarantineDir = "" }, "required"},
		{"logging without file", func(c *config.ServerConfig) { c.Logging = true; c.LogFile = "" }, "required_if"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)

			err := config.Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.tag)
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("SIGCRAWL_THREADS", "0")

	_, err := config.Load("", nil)
	require.ErrorContains(t, err, "configuration validation failed")
}
