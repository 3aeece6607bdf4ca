package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(nil, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7878", cfg.ListenAddr())
	assert.Equal(t, 5, cfg.Workers)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("address: 10.0.0.1\nport: \"8000\"\nworkers: 3\n"), 0o600))

	t.Setenv("RUSTIC_PORT", "8100")
	t.Setenv("RUSTIC_WORKERS", "7")

	cfg, err := loadConfig([]string{"-config", path}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", cfg.Address)
	assert.Equal(t, "8100", cfg.Port)
	assert.Equal(t, 7, cfg.Workers)

	cfg, err = loadConfig([]string{"-config", path, "0.0.0.0", "9000"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr())
}

func TestLoadConfig_Errors(t *testing.T) {
	var stderr bytes.Buffer

	_, err := loadConfig([]string{"127.0.0.1"}, &stderr)
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "usage: rustic-server")

	_, err = loadConfig([]string{"127.0.0.1", "not-a-port"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")

	_, err = loadConfig([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}, &bytes.Buffer{})
	require.Error(t, err)

	_, err = loadConfig([]string{"-h"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestNewLogger(t *testing.T) {
	var out bytes.Buffer

	logger, err := newLogger("debug", "json", &out)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("worker_id", 3).Debug("got a job; executing")
	assert.Contains(t, out.String(), `"worker_id":3`)
	assert.Contains(t, out.String(), `"msg":"got a job; executing"`)

	logger, err = newLogger("", "", &out)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	_, err = newLogger("loud", "text", &out)
	assert.Error(t, err)

	_, err = newLogger("info", "xml", &out)
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Setenv("RUSTIC_STATIC_DIR", t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stderr bytes.Buffer
	err := run(ctx, []string{"127.0.0.1", "0"}, &stderr)
	assert.NoError(t, err)
	assert.Contains(t, stderr.String(), "rustic-server stopped")
}
