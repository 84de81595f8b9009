package logger_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ostafen/sigcrawl/internal/logger"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, logger.ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelInfo, logger.ParseLevel("info"))
	require.Equal(t, slog.LevelWarn, logger.ParseLevel("WARN"))
	require.Equal(t, slog.LevelError, logger.ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, logger.ParseLevel("verbose"))
}

func TestSetupWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	log, closer, err := logger.Setup(path, slog.LevelInfo)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("Server listening", "addr", "127.0.0.1:8888")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "Server listening")
	require.Contains(t, string(data), "addr=127.0.0.1:8888")
	require.NotContains(t, string(data), "hidden")
}

func TestSetupAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0644))

	log, closer, err := logger.Setup(path, slog.LevelInfo)
	require.NoError(t, err)
	log.Info("next run")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "previous run\n")
	require.Contains(t, string(data), "next run")
}

func TestSetupDiscard(t *testing.T) {
	log, closer, err := logger.Setup("", slog.LevelDebug)
	require.NoError(t, err)
	require.NotNil(t, log)

	log.Info("dropped")
	require.NoError(t, closer.Close())
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer

	c := logger.NewConsole(&buf)
	c.Infof("moved %d files", 3)
	c.Errorf("failed: %s", "boom")

	require.Equal(t, "[INFO] moved 3 files\n[ERROR] failed: boom\n", buf.String())
}
