package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n2k-relay/n2k-go/pkg/config"
	"github.com/n2k-relay/n2k-go/pkg/n2k"
)

func parse(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	cmd, opts := newRootCmd()
	require.NoError(t, cmd.ParseFlags(args))
	return loadConfig(cmd, *opts)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 4000\nformat: ydraw\nsuppressEcho: true\n"), 0o600))

	cfg, err := parse(t, "--config", path, "--format", "CANDUMP2", "--ws", "127.0.0.1:3002")
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port, "file value kept when flag not set")
	assert.Equal(t, n2k.FormatCandump2, cfg.Format)
	assert.True(t, cfg.SuppressEcho)
	assert.Equal(t, "127.0.0.1:3002", cfg.WebSocket.Address)

	cfg, err = parse(t, "--config", path, "--suppress-echo=false", "-p", "4001")
	require.NoError(t, err)
	assert.False(t, cfg.SuppressEcho)
	assert.Equal(t, 4001, cfg.Port)
}

func TestUnknownFormatKept(t *testing.T) {
	cfg, err := parse(t, "--format", "seatalk")
	require.NoError(t, err)
	assert.Equal(t, n2k.Format("seatalk"), cfg.Format)
}

func TestInvalidFlags(t *testing.T) {
	_, err := parse(t, "--log-level", "loud")
	assert.ErrorIs(t, err, config.ErrInvalidLogLevel)

	_, err = parse(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "warn"}, &buf)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"app":"n2k-server"`)

	assert.Equal(t, zerolog.InfoLevel, newLogger(config.LogConfig{}, &buf).GetLevel())
}

func TestDrainFormat(t *testing.T) {
	f, err := drainFormat("")
	require.NoError(t, err)
	assert.Equal(t, n2k.Format(""), f)

	f, err = drainFormat("YDRAW")
	require.NoError(t, err)
	assert.Equal(t, n2k.FormatYDRAW, f)

	_, err = drainFormat("nmea2000-json")
	assert.ErrorIs(t, err, n2k.ErrUnknownFormat)

	cmd, opts := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--drain", "--drain-format", "ikonvert"}))
	assert.Equal(t, "ikonvert", opts.drainFormat)
}
