package utilities

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_DEV", "true")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_MAX_AGE_DAYS", "3")

	cfg := ConfigFromEnv()
	assert.True(t, cfg.Dev)
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, 3, cfg.MaxAgeDays)
}

func TestLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, level("warning"))
	assert.Equal(t, zapcore.ErrorLevel, level("error"))
	assert.Equal(t, zapcore.InfoLevel, level("loud"))
}

func TestInitWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.log")
	lg, err := Init(Config{Level: "info", File: path, MaxAgeDays: 1})
	require.NoError(t, err)

	lg.Info("hello")
	_ = lg.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"hello"`)
}

func TestIDs(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	assert.NotEqual(t, a, b)
	assert.Len(t, NewKSUID(), 27)

	h, err := RandomHex(16)
	require.NoError(t, err)
	assert.Len(t, h, 32)
}
