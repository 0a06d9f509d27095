package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClientConfig_Defaults(t *testing.T) {
	cfg, err := GetClientConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, Endpoint{Host: DefaultHost, Port: DefaultPort}, cfg.Endpoint)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Connect)
	assert.Equal(t, time.Second, cfg.Timeouts.Poll)
	assert.Equal(t, time.Second, cfg.Timeouts.ReconnectPause)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.ShutdownWait)
	assert.Equal(t, 4096, cfg.Timeouts.ReadChunk)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "chat-client.log", cfg.Log.File)
	assert.Empty(t, cfg.Warnings)
}

func TestGetClientConfig_EnvOverridesLog(t *testing.T) {
	t.Setenv("CHAT_LOG_LEVEL", "debug")
	t.Setenv("CHAT_LOG_FILE", "/tmp/chat.log")
	t.Setenv("CHAT_LOG_MAX_SIZE_MB", "20")

	cfg, err := GetClientConfig([]string{"example.org", "7000"})
	require.NoError(t, err)

	assert.Equal(t, Endpoint{Host: "example.org", Port: 7000}, cfg.Endpoint)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/chat.log", cfg.Log.File)
	assert.Equal(t, 20, cfg.Log.MaxSizeMB)
	assert.Equal(t, DefaultLogMaxBackups, cfg.Log.MaxBackups, "unset variables keep defaults")
}

func TestGetClientConfig_InvalidPort(t *testing.T) {
	_, err := GetClientConfig([]string{"localhost", "port"})
	assert.ErrorIs(t, err, ErrInvalidPort)
}

func TestGetClientConfig_InvalidEnvValueFallsBackToDefaults(t *testing.T) {
	t.Setenv("CHAT_LOG_MAX_SIZE_MB", "lots")
	t.Setenv("CHAT_LOG_LEVEL", "debug")

	cfg, err := GetClientConfig([]string{"example.org", "7000"})
	require.NoError(t, err)

	assert.Equal(t, Endpoint{Host: "example.org", Port: 7000}, cfg.Endpoint)
	assert.Equal(t, defaultLog(), cfg.Log, "a broken environment is ignored as a whole")
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0].Error(), "lots")
}

func TestGetClientConfig_InvalidLogLevelFallsBackToDefaults(t *testing.T) {
	t.Setenv("CHAT_LOG_LEVEL", "chatty")
	t.Setenv("CHAT_LOG_FILE", "/tmp/chat.log")

	cfg, err := GetClientConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, defaultLog(), cfg.Log)
	require.Len(t, cfg.Warnings, 1)
	assert.ErrorIs(t, cfg.Warnings[0], ErrInvalidLogLevel)
}

func TestGetClientConfig_BlankLogFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("CHAT_LOG_FILE", "   ")

	cfg, err := GetClientConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultLogFile, cfg.Log.File)
	require.Len(t, cfg.Warnings, 1)
	assert.ErrorIs(t, cfg.Warnings[0], ErrEmptyLogFile)
}

func TestGetClientConfig_BlankHostIsNotFatal(t *testing.T) {
	cfg, err := GetClientConfig([]string{" ", "7000"})
	require.NoError(t, err)

	assert.Equal(t, Endpoint{Host: " ", Port: 7000}, cfg.Endpoint)
	assert.Empty(t, cfg.Warnings)
}

func TestConfigBuilder_LaterLayersWin(t *testing.T) {
	b := newConfigBuilder(Endpoint{Host: "h", Port: 1}).withDefaults()
	b.configs = append(b.configs, &ClientConfig{Timeouts: Timeouts{Poll: 50 * time.Millisecond}})

	cfg, err := b.build()
	require.NoError(t, err)

	assert.Equal(t, 50*time.Millisecond, cfg.Timeouts.Poll)
	assert.Equal(t, DefaultConnectTimeout, cfg.Timeouts.Connect)
}
